package structured

import (
	"context"

	"resucheck/internal/export"
)

// Name identifies this strategy in the export chain.
const Name = "structured"

// Strategy adapts Builder to the export chain.
type Strategy struct {
	Builder *Builder
}

// NewStrategy wraps builder.
func NewStrategy(builder *Builder) *Strategy {
	return &Strategy{Builder: builder}
}

func (s *Strategy) Name() string { return Name }

func (s *Strategy) Export(ctx context.Context, req export.Request) (*export.Document, error) {
	return s.Builder.Build(ctx, Input{
		Feedback:       req.Feedback,
		CompanyName:    req.CompanyName,
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		ImageRef:       req.ImageRef,
		Now:            req.Now,
	})
}
