package reviews

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"resucheck/internal/analyzer"
	"resucheck/internal/backend"
	"resucheck/internal/export"
	"resucheck/internal/export/layout"
	"resucheck/internal/export/raster"
	"resucheck/internal/extract"
	"resucheck/internal/feedback"
	"resucheck/internal/session"
	"resucheck/internal/shared/auth"
	"resucheck/internal/shared/metrics"
	"resucheck/internal/shared/storage/object"
	"resucheck/internal/shared/telemetry"
	"resucheck/internal/shared/util"
)

// ViewSelector is the element the WYSIWYG capture snapshots.
const ViewSelector = "#review"

// Rasterizer renders the first page of an uploaded PDF.
type Rasterizer interface {
	Convert(ctx context.Context, name string, src io.Reader) raster.Result
	Keep(url string)
}

// ViewTokens signs and checks the links handed to the headless browser.
type ViewTokens interface {
	Sign(reviewID, userID string) (string, error)
	Verify(token, reviewID string) (*auth.ViewClaims, error)
}

// SessionInvalidator drops a cached session after its balance changed.
type SessionInvalidator interface {
	Invalidate(creds backend.Credentials)
}

// CreateInput is one upload.
type CreateInput struct {
	CompanyName    string
	JobTitle       string
	JobDescription string
	FileName       string
	Data           []byte
}

// Service runs the upload workflow and exports finished reviews.
type Service struct {
	Repo     Repo
	Store    object.ObjectStore
	Raster   Rasterizer
	Analyzer analyzer.Analyzer
	Chain    *export.Chain
	Tokens   ViewTokens
	Sessions SessionInvalidator

	// PublicBaseURL is where the capture browser reaches this service.
	PublicBaseURL string
	Now           func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create checks the wallet, stores the PDF, renders its first page, asks the
// analyzer for feedback and records the finished review. Failures after the
// review was recorded mark it failed.
func (s *Service) Create(ctx context.Context, sess *session.Session, in CreateInput) (Review, error) {
	if sess == nil || sess.UserID() == "" {
		return Review{}, session.ErrNoSession
	}
	in.FileName = strings.TrimSpace(in.FileName)
	if in.FileName == "" || len(in.Data) == 0 {
		return Review{}, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}
	if !extract.IsPDF(in.Data) {
		return Review{}, fmt.Errorf("%w: file must be a PDF", ErrInvalidInput)
	}

	rev := Review{
		ID:             uuid.NewString(),
		UserID:         sess.UserID(),
		CompanyName:    strings.TrimSpace(in.CompanyName),
		JobTitle:       strings.TrimSpace(in.JobTitle),
		JobDescription: strings.TrimSpace(in.JobDescription),
		FileName:       in.FileName,
		Status:         StatusProcessing,
		CreatedAt:      s.now().UTC(),
	}

	s.status(rev, "checking_wallet")
	if sess.Coins() < analyzer.AnalysisCost {
		return Review{}, ErrInsufficientCoins
	}

	rev.ResumeKey = path.Join("resumes", util.HashUserKey(rev.UserID), rev.ID+".pdf")
	if _, err := s.Store.SaveWithKey(ctx, rev.ResumeKey, "application/pdf", bytes.NewReader(in.Data)); err != nil {
		return Review{}, fmt.Errorf("store resume: %w", err)
	}
	if err := s.Repo.Create(ctx, rev); err != nil {
		return Review{}, err
	}

	s.status(rev, "converting")
	res := s.Raster.Convert(ctx, in.FileName, bytes.NewReader(in.Data))
	if !res.OK() {
		s.fail(ctx, &rev, res.Error)
		return rev, fmt.Errorf("%w: %s", ErrConversion, res.Error)
	}
	s.Raster.Keep(res.ImageURL)
	rev.ImageKey = res.File.Key
	if rev.ImageKey == "" {
		rev.ImageKey = path.Join("previews", rev.ID+".png")
		if _, err := s.Store.SaveWithKey(ctx, rev.ImageKey, res.File.ContentType, res.File.Reader()); err != nil {
			s.fail(ctx, &rev, "store preview: "+err.Error())
			return rev, fmt.Errorf("store preview: %w", err)
		}
	}

	s.status(rev, "extracting")
	text, err := extract.ExtractText(ctx, s.Store, rev.ResumeKey)
	if err != nil {
		telemetry.Warn("review.extract_failed", map[string]any{
			"review_id": rev.ID,
			"error":     err.Error(),
		})
	}

	s.status(rev, "examining")
	raw, err := s.Analyzer.Analyze(ctx, sess, analyzer.Input{
		CompanyName:    rev.CompanyName,
		JobTitle:       rev.JobTitle,
		JobDescription: rev.JobDescription,
		Image:          res.File.Data,
		ResumeText:     text,
	})
	if err != nil {
		s.fail(ctx, &rev, analysisMessage(err))
		return rev, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}
	if err := feedback.Validate(raw); err != nil {
		telemetry.Warn("review.feedback_schema", map[string]any{
			"review_id": rev.ID,
			"analyzer":  s.Analyzer.Name(),
			"error":     err.Error(),
		})
	}
	fb, err := feedback.Normalize(raw)
	if err != nil {
		s.fail(ctx, &rev, err.Error())
		return rev, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}

	done := s.now().UTC()
	rev.Feedback = &fb
	rev.Status = StatusCompleted
	rev.CompletedAt = &done
	if err := s.Repo.Update(ctx, rev); err != nil {
		return rev, err
	}
	if s.Sessions != nil {
		s.Sessions.Invalidate(sess.Credentials)
	}
	metrics.IncReviewCreated()
	s.status(rev, "complete")

	s.resolveURLs(ctx, &rev)
	return rev, nil
}

// Get returns a review owned by userID with its URLs resolved.
func (s *Service) Get(ctx context.Context, userID, id string) (Review, error) {
	if userID == "" || strings.TrimSpace(id) == "" {
		return Review{}, ErrInvalidInput
	}
	rev, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return Review{}, err
	}
	s.resolveURLs(ctx, &rev)
	return rev, nil
}

// List returns userID's reviews newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Review, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	out, err := s.Repo.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range out {
		s.resolveURLs(ctx, &out[i])
	}
	return out, nil
}

// Strategies lists the export strategies in the order they are tried.
func (s *Service) Strategies() []string {
	if s.Chain == nil {
		return nil
	}
	return s.Chain.Names()
}

// ExportInput selects how a review is exported.
type ExportInput struct {
	Options layout.CaptureOptions
	// Strategy limits the chain to one strategy when set.
	Strategy string
}

// Export renders a completed review to PDF. The WYSIWYG strategy captures
// the review's view page through a signed link; the structured strategy
// draws from the stored feedback.
func (s *Service) Export(ctx context.Context, userID, id string, in ExportInput) (*export.Document, error) {
	rev, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !rev.Ready() {
		return nil, ErrNotReady
	}

	chain := s.Chain
	if chain == nil {
		chain = export.NewChain()
	}
	if name := strings.TrimSpace(in.Strategy); name != "" {
		chain, err = chain.Only(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	now := s.now()
	opts := in.Options
	if strings.TrimSpace(opts.FileName) == "" {
		opts.FileName = layout.ReviewFileName(rev.JobTitle, rev.CompanyName, now)
	}
	opts = opts.Normalize(now)
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	req := export.Request{
		Feedback:       *rev.Feedback,
		CompanyName:    rev.CompanyName,
		JobTitle:       rev.JobTitle,
		JobDescription: rev.JobDescription,
		ImageRef:       rev.ImageKey,
		Options:        opts,
		Now:            now,
	}
	if target, err := s.viewURL(rev); err != nil {
		telemetry.Warn("review.view_url_failed", map[string]any{
			"review_id": rev.ID,
			"error":     err.Error(),
		})
	} else {
		req.Target = export.Target{URL: target, Selector: ViewSelector}
	}
	return chain.Export(ctx, req)
}

// ViewPage is what the capture page renders.
type ViewPage struct {
	Review Review
	// ImageData is the preview inlined as a data: URL.
	ImageData string
}

// View checks a signed view token and loads the review it grants.
func (s *Service) View(ctx context.Context, id, token string) (ViewPage, error) {
	if s.Tokens == nil {
		return ViewPage{}, ErrNotFound
	}
	claims, err := s.Tokens.Verify(token, id)
	if err != nil {
		return ViewPage{}, err
	}
	rev, err := s.Repo.Get(ctx, claims.Subject, id)
	if err != nil {
		return ViewPage{}, err
	}
	if !rev.Ready() {
		return ViewPage{}, ErrNotReady
	}
	page := ViewPage{Review: rev}
	if rev.ImageKey != "" {
		data, err := object.ReadAll(ctx, s.Store, rev.ImageKey)
		if err != nil {
			telemetry.Warn("review.preview_missing", map[string]any{
				"review_id": rev.ID,
				"error":     err.Error(),
			})
		} else {
			page.ImageData = raster.DataURL("image/png", data)
		}
	}
	return page, nil
}

func (s *Service) viewURL(rev Review) (string, error) {
	if s.Tokens == nil || s.PublicBaseURL == "" {
		return "", errors.New("view links not configured")
	}
	token, err := s.Tokens.Sign(rev.ID, rev.UserID)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(s.PublicBaseURL, "/") + "/api/v1/reviews/" + rev.ID + "/view?token=" + token, nil
}

func (s *Service) resolveURLs(ctx context.Context, rev *Review) {
	if rev.ResumeKey != "" {
		if u, err := s.Store.URL(ctx, rev.ResumeKey); err == nil {
			rev.ResumeURL = u
		}
	}
	if rev.ImageKey != "" {
		if u, err := s.Store.URL(ctx, rev.ImageKey); err == nil {
			rev.ImageURL = u
		}
	}
}

func (s *Service) fail(ctx context.Context, rev *Review, msg string) {
	done := s.now().UTC()
	rev.Status = StatusFailed
	rev.Error = msg
	rev.CompletedAt = &done
	metrics.IncReviewFailed()
	s.status(*rev, "failed")
	// The caller's context may already be done; the failure still has to land.
	if err := s.Repo.Update(context.WithoutCancel(ctx), *rev); err != nil {
		telemetry.Error("review.update_failed", map[string]any{
			"review_id": rev.ID,
			"error":     err.Error(),
		})
	}
}

func (s *Service) status(rev Review, stage string) {
	fields := map[string]any{
		"review_id": rev.ID,
		"user_id":   rev.UserID,
		"stage":     stage,
	}
	if rev.Error != "" {
		fields["error"] = rev.Error
	}
	telemetry.Info("review.status", fields)
}

// analysisMessage is the text shown to the user for a failed analysis.
func analysisMessage(err error) string {
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return "Failed to examine resume"
}
