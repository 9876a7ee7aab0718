package raster

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/ledongthuc/pdf"
)

// Scale is the fixed viewport scale applied to page 1.
const Scale = 2.0

var (
	errNoPages     = errors.New("document has no pages")
	errBadMediaBox = errors.New("page has no usable MediaBox")
)

// Viewport is the pixel size page 1 renders at.
type Viewport struct {
	Width  int
	Height int
}

// firstPageViewport parses data and returns page 1's visible area scaled by
// Scale, with width and height swapped for pages rotated by 90 or 270. The
// visible area is the CropBox clipped to the MediaBox, or the MediaBox alone
// when there is no usable CropBox.
func firstPageViewport(data []byte) (Viewport, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Viewport{}, err
	}
	if reader.NumPage() < 1 {
		return Viewport{}, errNoPages
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return Viewport{}, errNoPages
	}

	media, ok := boxOf(inherited(page.V, "MediaBox"))
	if !ok {
		return Viewport{}, errBadMediaBox
	}
	view := media
	if crop, ok := boxOf(inherited(page.V, "CropBox")); ok {
		if clipped, ok := crop.intersect(media); ok {
			view = clipped
		}
	}
	w, h := view.x1-view.x0, view.y1-view.y0

	rotate := inherited(page.V, "Rotate").Int64() % 360
	if rotate < 0 {
		rotate += 360
	}
	if rotate == 90 || rotate == 270 {
		w, h = h, w
	}
	vp := Viewport{
		Width:  int(math.Floor(w * Scale)),
		Height: int(math.Floor(h * Scale)),
	}
	if vp.Width < 1 || vp.Height < 1 {
		return Viewport{}, fmt.Errorf("%w: %dx%d", errBadMediaBox, vp.Width, vp.Height)
	}
	return vp, nil
}

// rect is a normalized page box with x0 < x1 and y0 < y1.
type rect struct {
	x0, y0, x1, y1 float64
}

func boxOf(v pdf.Value) (rect, bool) {
	if v.Len() != 4 {
		return rect{}, false
	}
	r := rect{
		x0: math.Min(v.Index(0).Float64(), v.Index(2).Float64()),
		y0: math.Min(v.Index(1).Float64(), v.Index(3).Float64()),
		x1: math.Max(v.Index(0).Float64(), v.Index(2).Float64()),
		y1: math.Max(v.Index(1).Float64(), v.Index(3).Float64()),
	}
	if r.x1 <= r.x0 || r.y1 <= r.y0 {
		return rect{}, false
	}
	return r, true
}

func (r rect) intersect(o rect) (rect, bool) {
	out := rect{
		x0: math.Max(r.x0, o.x0),
		y0: math.Max(r.y0, o.y0),
		x1: math.Min(r.x1, o.x1),
		y1: math.Min(r.y1, o.y1),
	}
	if out.x1 <= out.x0 || out.y1 <= out.y0 {
		return rect{}, false
	}
	return out, true
}

// inherited looks key up on the page and then on its ancestors.
func inherited(v pdf.Value, key string) pdf.Value {
	for ; !v.IsNull(); v = v.Key("Parent") {
		if r := v.Key(key); !r.IsNull() {
			return r
		}
	}
	return pdf.Value{}
}
