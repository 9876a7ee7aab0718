package layout

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	minScale          = 2.0
	maxScale          = 3.0
	defaultBackground = "#ffffff"
)

var validate = validator.New()

// CaptureOptions configure one WYSIWYG capture. A zero value is usable
// after Normalize.
type CaptureOptions struct {
	FileName    string      `json:"fileName,omitempty" validate:"omitempty,endswith=.pdf"`
	Format      Format      `json:"format,omitempty" validate:"oneof=a4 letter"`
	Orientation Orientation `json:"orientation,omitempty" validate:"oneof=portrait landscape"`
	Scale       float64     `json:"scale,omitempty" validate:"gte=2,lte=3"`
	Background  string      `json:"background,omitempty" validate:"hexcolor"`
}

// DefaultCaptureOptions derives options from a device pixel ratio.
func DefaultCaptureOptions(devicePixelRatio float64, now time.Time) CaptureOptions {
	return CaptureOptions{
		FileName:    SnapshotFileName(now),
		Format:      A4,
		Orientation: Portrait,
		Scale:       ClampScale(devicePixelRatio),
		Background:  defaultBackground,
	}
}

// ClampScale bounds a render scale to [2,3]. Non-positive input means 2.
func ClampScale(scale float64) float64 {
	if scale < minScale {
		return minScale
	}
	if scale > maxScale {
		return maxScale
	}
	return scale
}

// Normalize fills blank fields with defaults and clamps the scale.
func (o CaptureOptions) Normalize(now time.Time) CaptureOptions {
	if strings.TrimSpace(o.FileName) == "" {
		o.FileName = SnapshotFileName(now)
	}
	o.Format = Format(strings.ToLower(strings.TrimSpace(string(o.Format))))
	if o.Format == "" {
		o.Format = A4
	}
	o.Orientation = Orientation(strings.ToLower(strings.TrimSpace(string(o.Orientation))))
	if o.Orientation == "" {
		o.Orientation = Portrait
	}
	o.Scale = ClampScale(o.Scale)
	if strings.TrimSpace(o.Background) == "" {
		o.Background = defaultBackground
	}
	return o
}

// Validate checks the options with their struct tags.
func (o CaptureOptions) Validate() error {
	if err := validate.Struct(o); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid capture options: %s", strings.Join(parts, ", "))
		}
		return err
	}
	return nil
}

// Page returns the page size selected by the options.
func (o CaptureOptions) Page() Size {
	return PageSize(o.Format, o.Orientation)
}

// BackgroundColor parses Background as #rgb or #rrggbb.
func (o CaptureOptions) BackgroundColor() (color.RGBA, error) {
	return ParseHexColor(o.Background)
}

// ParseHexColor parses #rgb or #rrggbb.
func ParseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
