package wysiwyg

import (
	"context"
	"strings"

	"resucheck/internal/export"
)

// Name identifies this strategy in the export chain.
const Name = "wysiwyg"

// Strategy captures the rendered review and paginates the snapshot.
type Strategy struct {
	Capturer Capturer
}

// NewStrategy returns a Strategy backed by capturer.
func NewStrategy(capturer Capturer) *Strategy {
	return &Strategy{Capturer: capturer}
}

func (s *Strategy) Name() string { return Name }

func (s *Strategy) Export(ctx context.Context, req export.Request) (*export.Document, error) {
	if s.Capturer == nil || strings.TrimSpace(req.Target.URL) == "" || strings.TrimSpace(req.Target.Selector) == "" {
		return nil, ErrNotFound
	}
	opts := req.Options.Normalize(req.Now)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	img, err := s.Capturer.Capture(ctx, req.Target, opts)
	if err != nil {
		return nil, err
	}
	pages, err := Paginate(img, opts)
	if err != nil {
		return nil, err
	}
	return &export.Document{FileName: opts.FileName, Data: pages.Data, Pages: pages.Pages}, nil
}
