// Package raster converts the first page of a PDF into a PNG image.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"regexp"
	"time"

	"golang.org/x/image/draw"

	"resucheck/internal/shared/lazy"
	"resucheck/internal/shared/metrics"
	"resucheck/internal/shared/telemetry"
)

const contentTypePNG = "image/png"

var pdfExt = regexp.MustCompile(`(?i)\.pdf$`)

// File is a converted image.
type File struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
	// Key is set when the allocator persisted the image.
	Key string
}

// Reader returns a reader over the image bytes.
func (f *File) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

// Result is either an image (ImageURL and File) or an Error message.
type Result struct {
	ImageURL string `json:"imageUrl"`
	File     *File  `json:"-"`
	Error    string `json:"error,omitempty"`
}

// OK reports whether the conversion produced an image.
func (r Result) OK() bool {
	return r.Error == "" && r.File != nil
}

// Rasterizer renders page 1 of a PDF at Scale. The engine is loaded on first
// use and shared by every later call.
type Rasterizer struct {
	engine *lazy.Value[Engine]
	urls   URLAllocator
}

// New returns a Rasterizer that builds its engine with load. A nil urls
// allocator inlines images as data: URLs.
func New(load LoadFunc, urls URLAllocator) *Rasterizer {
	if urls == nil {
		urls = DataURLs{}
	}
	return &Rasterizer{
		engine: lazy.New(func(ctx context.Context) (Engine, error) { return load(ctx) }),
		urls:   urls,
	}
}

// Ready loads the engine if needed and reports whether it is usable.
func (r *Rasterizer) Ready(ctx context.Context) error {
	_, err := r.engine.Get(ctx)
	return err
}

// Release frees a URL returned in an earlier Result.
func (r *Rasterizer) Release(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	return r.urls.Release(ctx, url)
}

// Keep hands a URL's backing object over to the caller. Allocators that do
// not track URLs ignore it.
func (r *Rasterizer) Keep(url string) {
	if k, ok := r.urls.(interface{ Keep(string) }); ok && url != "" {
		k.Keep(url)
	}
}

// Convert renders the first page of the PDF read from src. It never panics
// and never returns an error; failures are reported in Result.Error.
func (r *Rasterizer) Convert(ctx context.Context, name string, src io.Reader) (res Result) {
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			res = failed(fmt.Errorf("%v", rec))
		}
		metrics.IncRasterConvert(res.Error != "")
		fields := map[string]any{
			"file":        name,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if res.Error != "" {
			fields["error"] = res.Error
			telemetry.Warn("raster.convert", fields)
			return
		}
		fields["width"] = res.File.Width
		fields["height"] = res.File.Height
		telemetry.Info("raster.convert", fields)
	}()

	file, err := r.render(ctx, name, src)
	if err != nil {
		return failed(err)
	}
	url, err := r.urls.Allocate(ctx, file)
	if err != nil {
		return failed(err)
	}
	return Result{ImageURL: url, File: file}
}

func (r *Rasterizer) render(ctx context.Context, name string, src io.Reader) (*File, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	vp, err := firstPageViewport(data)
	if err != nil {
		return nil, err
	}
	engine, err := r.engine.Get(ctx)
	if err != nil {
		return nil, err
	}
	out, err := engine.Render(ctx, data, RenderRequest{Page: 1, Width: vp.Width, Height: vp.Height})
	if err != nil {
		return nil, err
	}
	out, err = fitPNG(out, vp)
	if err != nil {
		return nil, err
	}
	return &File{
		Name:        OutputName(name),
		ContentType: contentTypePNG,
		Data:        out,
		Width:       vp.Width,
		Height:      vp.Height,
	}, nil
}

// fitPNG returns data unchanged when it is a PNG of exactly vp's size and
// otherwise rescales it to vp and re-encodes.
func fitPNG(data []byte, vp Viewport) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	b := img.Bounds()
	if format == "png" && b.Dx() == vp.Width && b.Dy() == vp.Height {
		return data, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, vp.Width, vp.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// OutputName swaps a trailing .pdf for .png, or appends .png.
func OutputName(name string) string {
	if pdfExt.MatchString(name) {
		return pdfExt.ReplaceAllString(name, ".png")
	}
	return name + ".png"
}

func failed(err error) Result {
	return Result{Error: "Failed to convert PDF: " + err.Error()}
}
