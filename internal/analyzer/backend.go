package analyzer

import (
	"context"
	"encoding/json"

	"resucheck/internal/backend"
	"resucheck/internal/session"
)

// BackendAnalyzer is the client the backend analyzer calls.
type BackendAnalyzer interface {
	AnalyzeResume(ctx context.Context, creds backend.Credentials, req backend.AnalyzeRequest) (json.RawMessage, error)
}

// Backend delegates analysis to the backend, which charges the coin itself.
type Backend struct {
	Client BackendAnalyzer
}

// NewBackend builds a Backend analyzer.
func NewBackend(client BackendAnalyzer) *Backend {
	return &Backend{Client: client}
}

// Name implements Analyzer.
func (b *Backend) Name() string { return "backend" }

// Analyze implements Analyzer.
func (b *Backend) Analyze(ctx context.Context, sess *session.Session, in Input) (json.RawMessage, error) {
	var creds backend.Credentials
	if sess != nil {
		creds = sess.Credentials
	}
	raw, err := b.Client.AnalyzeResume(ctx, creds, backend.AnalyzeRequest{
		CompanyName:    in.CompanyName,
		JobTitle:       in.JobTitle,
		JobDescription: in.JobDescription,
		ImageBase64:    PNGDataURL(in.Image),
	})
	if err != nil {
		return nil, err
	}
	return unwrapFeedback(raw)
}
