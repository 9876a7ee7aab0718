// Package layout holds the page geometry shared by both PDF export paths.
// All lengths are PDF points unless a name says pixels.
package layout

import (
	"errors"
	"math"
)

// Format is a named paper size.
type Format string

const (
	A4     Format = "a4"
	Letter Format = "letter"
)

// Orientation of the page.
type Orientation string

const (
	Portrait  Orientation = "portrait"
	Landscape Orientation = "landscape"
)

const (
	// Margin is the page margin used by the structured builder.
	Margin = 48.0
	// LineHeight is the fixed height of one wrapped text line.
	LineHeight = 14.0
)

// ErrInvalidImage is returned for images with a non-positive dimension.
var ErrInvalidImage = errors.New("image dimensions must be positive")

// Size is a page size in points.
type Size struct {
	W float64
	H float64
}

// PageSize returns the size of format in the given orientation. Unknown
// formats fall back to A4.
func PageSize(format Format, orientation Orientation) Size {
	size := Size{W: 595.28, H: 841.89}
	if format == Letter {
		size = Size{W: 612, H: 792}
	}
	if orientation == Landscape {
		size.W, size.H = size.H, size.W
	}
	return size
}

// Printable returns the text width between the left and right margins.
func Printable(page Size) float64 {
	return page.W - 2*Margin
}

// FitToWidth returns the height in points of an image scaled so its width
// equals the full page width.
func FitToWidth(imgW, imgH int, page Size) float64 {
	if imgW <= 0 {
		return 0
	}
	return float64(imgH) * page.W / float64(imgW)
}

// Slice is one horizontal strip of a source image, in pixels.
type Slice struct {
	Y      int
	Height int
}

// PageHeight returns the slice height in points once scaled to page width.
func (s Slice) PageHeight(imgW int, page Size) float64 {
	return FitToWidth(imgW, s.Height, page)
}

// PlanSlices splits an imgW x imgH image into page-sized strips. An image
// that fits on one page yields a single slice. Otherwise every slice is
// floor(pageH*imgW/pageW) pixels tall except the last, which takes the
// remainder. The slices cover the image exactly, in order.
func PlanSlices(imgW, imgH int, page Size) ([]Slice, error) {
	if imgW <= 0 || imgH <= 0 || page.W <= 0 || page.H <= 0 {
		return nil, ErrInvalidImage
	}
	if FitToWidth(imgW, imgH, page) <= page.H {
		return []Slice{{Y: 0, Height: imgH}}, nil
	}

	pagePx := int(math.Floor(page.H * float64(imgW) / page.W))
	if pagePx < 1 {
		pagePx = 1
	}
	slices := make([]Slice, 0, imgH/pagePx+1)
	for y := 0; y < imgH; y += pagePx {
		h := pagePx
		if y+h > imgH {
			h = imgH - y
		}
		slices = append(slices, Slice{Y: y, Height: h})
	}
	return slices, nil
}
