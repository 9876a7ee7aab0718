package structured

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"resty.dev/v3"

	"resucheck/internal/export/raster"
	"resucheck/internal/shared/storage/object/local"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestRefLoaderScalesDataURL(t *testing.T) {
	l := &RefLoader{}
	thumb, err := l.Load(context.Background(), raster.DataURL("image/png", pngBytes(t, 720, 100)), 360)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if thumb.Width != 360 || thumb.Height != 50 {
		t.Fatalf("expected 360x50, got %dx%d", thumb.Width, thumb.Height)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb.JPEG))
	if err != nil {
		t.Fatalf("thumbnail is not a jpeg: %v", err)
	}
	if cfg.Width != 360 || cfg.Height != 50 {
		t.Fatalf("unexpected encoded size %dx%d", cfg.Width, cfg.Height)
	}
}

func TestRefLoaderKeepsSmallImages(t *testing.T) {
	thumb, err := (&RefLoader{}).Load(context.Background(), raster.DataURL("image/png", pngBytes(t, 120, 80)), 360)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if thumb.Width != 120 || thumb.Height != 80 {
		t.Fatalf("small image should not be upscaled, got %dx%d", thumb.Width, thumb.Height)
	}
}

func TestRefLoaderHTTPAndStore(t *testing.T) {
	body := pngBytes(t, 40, 20)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	client := resty.New()
	defer client.Close()

	ctx := context.Background()
	store := local.New(t.TempDir(), "")
	if _, err := store.SaveWithKey(ctx, "previews/page.png", "image/png", bytes.NewReader(body)); err != nil {
		t.Fatalf("SaveWithKey: %v", err)
	}
	l := &RefLoader{HTTP: client, Store: store}

	if _, err := l.Load(ctx, srv.URL+"/page.png", 360); err != nil {
		t.Fatalf("http Load: %v", err)
	}
	if _, err := l.Load(ctx, srv.URL+"/missing.png", 360); err == nil {
		t.Fatalf("expected error for 404")
	}
	if thumb, err := l.Load(ctx, "previews/page.png", 360); err != nil || thumb.Width != 40 {
		t.Fatalf("store Load: %v %+v", err, thumb)
	}
	if _, err := l.Load(ctx, "data:image/png;base64", 360); err == nil {
		t.Fatalf("expected malformed data url error")
	}
}
