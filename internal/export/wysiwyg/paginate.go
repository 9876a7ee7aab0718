package wysiwyg

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/signintech/gopdf"
	"golang.org/x/image/draw"

	"resucheck/internal/export/layout"
)

const (
	jpegQuality = 92
	// browsers refuse canvases above this many pixels
	maxSurfacePixels = 268435456
)

// ErrNoSurface is returned when a slice surface cannot be allocated.
var ErrNoSurface = errors.New("canvas 2D context not available")

// Pages is a paginated snapshot.
type Pages struct {
	Data   []byte
	Pages  int
	Page   layout.Size
	Slices []layout.Slice
}

// Paginate lays img out at full page width. An image that fits one page is
// placed whole; a taller one is cut into page-height slices, each copied to
// its own surface, JPEG-encoded and drawn at the origin of a new page.
func Paginate(img image.Image, opts layout.CaptureOptions) (*Pages, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	page := opts.Page()
	slices, err := layout.PlanSlices(w, h, page)
	if err != nil {
		return nil, err
	}
	bg, err := opts.BackgroundColor()
	if err != nil {
		return nil, err
	}

	doc := &gopdf.GoPdf{}
	doc.Start(gopdf.Config{Unit: gopdf.UnitPT, PageSize: gopdf.Rect{W: page.W, H: page.H}})

	for i, s := range slices {
		surface, err := newSurface(w, s.Height)
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		draw.Draw(surface, surface.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
		draw.Draw(surface, surface.Bounds(), img, image.Pt(b.Min.X, b.Min.Y+s.Y), draw.Over)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, surface, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("slice %d: encode: %w", i, err)
		}
		holder, err := gopdf.ImageHolderByBytes(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		doc.AddPage()
		rect := &gopdf.Rect{W: page.W, H: s.PageHeight(w, page)}
		if err := doc.ImageByHolder(holder, 0, 0, rect); err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
	}

	data, err := doc.GetBytesPdfReturnErr()
	if err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return &Pages{Data: data, Pages: doc.GetNumberOfPages(), Page: page, Slices: slices}, nil
}

func newSurface(w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 || int64(w)*int64(h) > maxSurfacePixels {
		return nil, ErrNoSurface
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}
