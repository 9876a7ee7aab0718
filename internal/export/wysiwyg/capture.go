// Package wysiwyg exports a review by snapshotting its rendered page and
// paginating the snapshot into a PDF.
package wysiwyg

import (
	"context"
	"errors"
	"image"

	"resucheck/internal/export"
	"resucheck/internal/export/layout"
)

// ErrNotFound is returned when the target element is not in the document.
var ErrNotFound = errors.New("element not found in document")

// Capturer renders target and returns a snapshot of its element.
type Capturer interface {
	Capture(ctx context.Context, target export.Target, opts layout.CaptureOptions) (image.Image, error)
}
