// Package export turns a review into a downloadable PDF. Strategies are
// tried in order; the first one that succeeds wins.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"resucheck/internal/export/layout"
	"resucheck/internal/feedback"
	"resucheck/internal/shared/metrics"
	"resucheck/internal/shared/telemetry"
)

var (
	// ErrExportFailed is returned when every strategy failed.
	ErrExportFailed = errors.New("export failed")
	// ErrUnknownStrategy is returned by Only for a name the chain lacks.
	ErrUnknownStrategy = errors.New("unknown export strategy")
)

// Target locates the rendered review a snapshot is taken from.
type Target struct {
	URL      string
	Selector string
}

// Request carries everything any strategy may need. It is built once and
// handed unchanged to each strategy.
type Request struct {
	Feedback       feedback.Feedback
	CompanyName    string
	JobTitle       string
	JobDescription string
	// ImageRef is a data: URL, an http(s) URL or an object store key.
	ImageRef string
	Target   Target
	Options  layout.CaptureOptions
	Now      time.Time
}

// Document is a finished PDF.
type Document struct {
	FileName string
	Data     []byte
	Pages    int
	Strategy string
}

// Strategy produces a Document from a Request.
type Strategy interface {
	Name() string
	Export(ctx context.Context, req Request) (*Document, error)
}

// Chain tries strategies in order.
type Chain struct {
	strategies []Strategy
}

// NewChain returns a chain over strategies; nil entries are skipped.
func NewChain(strategies ...Strategy) *Chain {
	c := &Chain{}
	for _, s := range strategies {
		if s != nil {
			c.strategies = append(c.strategies, s)
		}
	}
	return c
}

// Names lists the strategies in order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Only returns a chain holding just the named strategy.
func (c *Chain) Only(name string) (*Chain, error) {
	for _, s := range c.strategies {
		if s.Name() == name {
			return &Chain{strategies: []Strategy{s}}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
}

// Export runs each strategy once, in order, until one succeeds. If all fail
// the returned error wraps ErrExportFailed and every cause.
func (c *Chain) Export(ctx context.Context, req Request) (*Document, error) {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	start := time.Now()
	var errs []error
	for i, s := range c.strategies {
		doc, err := s.Export(ctx, req)
		if err == nil && doc != nil {
			doc.Strategy = s.Name()
			elapsed := time.Since(start)
			metrics.IncExport(s.Name())
			metrics.ObserveExportDurationMs(float64(elapsed.Milliseconds()))
			telemetry.Info("export.complete", map[string]any{
				"strategy":    s.Name(),
				"pages":       doc.Pages,
				"bytes":       len(doc.Data),
				"file":        doc.FileName,
				"duration_ms": elapsed.Milliseconds(),
			})
			return doc, nil
		}
		if err == nil {
			err = errors.New("no document produced")
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		fields := map[string]any{"strategy": s.Name(), "error": err}
		if i < len(c.strategies)-1 {
			metrics.IncExportFallback()
			fields["next"] = c.strategies[i+1].Name()
		}
		telemetry.Warn("export.strategy_failed", fields)
	}
	metrics.IncExportFailed()
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no strategies configured", ErrExportFailed)
	}
	return nil, fmt.Errorf("%w: %w", ErrExportFailed, errors.Join(errs...))
}
