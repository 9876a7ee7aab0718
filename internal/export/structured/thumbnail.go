package structured

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"math"
	"net/url"
	"strings"

	"golang.org/x/image/draw"
	"resty.dev/v3"

	"resucheck/internal/shared/storage/object"
)

const thumbnailQuality = 80

// Thumbnail is a JPEG ready to embed.
type Thumbnail struct {
	JPEG   []byte
	Width  int
	Height int
}

// ThumbnailLoader fetches an image reference and scales it down.
type ThumbnailLoader interface {
	Load(ctx context.Context, ref string, maxWidth int) (*Thumbnail, error)
}

// RefLoader resolves data: URLs, http(s) URLs and object store keys.
type RefLoader struct {
	HTTP  *resty.Client
	Store object.ObjectStore
}

// Load fetches ref, shrinks it to at most maxWidth pixels wide and
// re-encodes it as JPEG on a white background.
func (l *RefLoader) Load(ctx context.Context, ref string, maxWidth int) (*Thumbnail, error) {
	raw, err := l.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, errors.New("empty image")
	}
	scale := 1.0
	if maxWidth > 0 && b.Dx() > maxWidth {
		scale = float64(maxWidth) / float64(b.Dx())
	}
	w := int(math.Max(1, math.Round(float64(b.Dx())*scale)))
	h := int(math.Max(1, math.Round(float64(b.Dy())*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return &Thumbnail{JPEG: buf.Bytes(), Width: w, Height: h}, nil
}

func (l *RefLoader) fetch(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURL(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if l.HTTP == nil {
			return nil, errors.New("no http client configured")
		}
		resp, err := l.HTTP.R().SetContext(ctx).Get(ref)
		if err != nil {
			return nil, fmt.Errorf("fetch image: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode())
		}
		return resp.Bytes(), nil
	default:
		if l.Store == nil {
			return nil, errors.New("no object store configured")
		}
		return object.ReadAll(ctx, l.Store, ref)
	}
}

func decodeDataURL(ref string) ([]byte, error) {
	comma := strings.IndexByte(ref, ',')
	if comma < 0 {
		return nil, errors.New("malformed data url")
	}
	meta, payload := ref[len("data:"):comma], ref[comma+1:]
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
