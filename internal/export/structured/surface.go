package structured

import (
	"fmt"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"resucheck/internal/export/layout"
)

// Surface is the drawing target of the builder. Text positions are baselines.
type Surface interface {
	PageSize() layout.Size
	AddPage() error
	SetFont(bold bool, size float64) error
	SetTextGray(level uint8)
	Measure(text string) (float64, error)
	Text(x, y float64, text string) error
	Line(x1, y1, x2, y2 float64, gray uint8) error
	Image(jpeg []byte, x, y, w, h float64) error
	PageCount() int
	Bytes() ([]byte, error)
}

// SurfaceFactory opens a Surface with one blank page of the given size.
type SurfaceFactory func(page layout.Size) (Surface, error)

const (
	fontFamily = "go"
	// ascent of the Go fonts as a fraction of the font size
	fontAscent = 0.905
	ruleWidth  = 0.5
)

// GopdfSurface draws with gopdf using the Go fonts.
type GopdfSurface struct {
	pdf      *gopdf.GoPdf
	page     layout.Size
	fontSize float64
}

// NewGopdfSurface starts a document with one page.
func NewGopdfSurface(page layout.Size) (Surface, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{Unit: gopdf.UnitPT, PageSize: gopdf.Rect{W: page.W, H: page.H}})
	if err := pdf.AddTTFFontData(fontFamily, goregular.TTF); err != nil {
		return nil, fmt.Errorf("load regular font: %w", err)
	}
	if err := pdf.AddTTFFontDataWithOption(fontFamily, gobold.TTF, gopdf.TtfOption{Style: gopdf.Bold}); err != nil {
		return nil, fmt.Errorf("load bold font: %w", err)
	}
	pdf.AddPage()
	s := &GopdfSurface{pdf: pdf, page: page}
	if err := s.SetFont(false, 12); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GopdfSurface) PageSize() layout.Size { return s.page }

func (s *GopdfSurface) AddPage() error {
	s.pdf.AddPage()
	return nil
}

func (s *GopdfSurface) SetFont(bold bool, size float64) error {
	style := ""
	if bold {
		style = "B"
	}
	if err := s.pdf.SetFont(fontFamily, style, size); err != nil {
		return err
	}
	s.fontSize = size
	return nil
}

func (s *GopdfSurface) SetTextGray(level uint8) {
	s.pdf.SetTextColor(level, level, level)
}

func (s *GopdfSurface) Measure(text string) (float64, error) {
	return s.pdf.MeasureTextWidth(text)
}

// Text draws text with its baseline at y. gopdf positions cells by their
// top edge, so the ascent is subtracted.
func (s *GopdfSurface) Text(x, y float64, text string) error {
	s.pdf.SetXY(x, y-s.fontSize*fontAscent)
	return s.pdf.Cell(nil, text)
}

func (s *GopdfSurface) Line(x1, y1, x2, y2 float64, gray uint8) error {
	s.pdf.SetLineWidth(ruleWidth)
	s.pdf.SetStrokeColor(gray, gray, gray)
	s.pdf.Line(x1, y1, x2, y2)
	s.pdf.SetStrokeColor(0, 0, 0)
	return nil
}

func (s *GopdfSurface) Image(jpeg []byte, x, y, w, h float64) error {
	holder, err := gopdf.ImageHolderByBytes(jpeg)
	if err != nil {
		return err
	}
	return s.pdf.ImageByHolder(holder, x, y, &gopdf.Rect{W: w, H: h})
}

func (s *GopdfSurface) PageCount() int { return s.pdf.GetNumberOfPages() }

func (s *GopdfSurface) Bytes() ([]byte, error) { return s.pdf.GetBytesPdfReturnErr() }
