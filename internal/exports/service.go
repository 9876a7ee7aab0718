package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"resucheck/internal/export"
	"resucheck/internal/export/layout"
	"resucheck/internal/queue"
	"resucheck/internal/reviews"
	"resucheck/internal/shared/storage/object"
	"resucheck/internal/shared/telemetry"
	"resucheck/internal/shared/util"
)

// ReviewSource is the part of the review service exports depend on.
type ReviewSource interface {
	Get(ctx context.Context, userID, id string) (reviews.Review, error)
	Export(ctx context.Context, userID, id string, in reviews.ExportInput) (*export.Document, error)
	Strategies() []string
}

// ErrUnrecoverable marks a job that can never succeed, such as one whose
// review was deleted. The worker drops such messages.
var ErrUnrecoverable = errors.New("export unrecoverable")

// Service records export jobs and renders them.
type Service struct {
	Repo    Repo
	Reviews ReviewSource
	Store   object.ObjectStore
	// Queue is optional; without it jobs are rendered during Enqueue.
	Queue queue.Client
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Enqueue records an export of a finished review and hands it to the queue.
func (s *Service) Enqueue(ctx context.Context, userID, reviewID string, in reviews.ExportInput) (Export, error) {
	if userID == "" || strings.TrimSpace(reviewID) == "" {
		return Export{}, ErrInvalidInput
	}
	rev, err := s.Reviews.Get(ctx, userID, reviewID)
	if err != nil {
		return Export{}, err
	}
	if !rev.Ready() {
		return Export{}, reviews.ErrNotReady
	}

	strategy := strings.TrimSpace(in.Strategy)
	if strategy != "" && !slices.Contains(s.Reviews.Strategies(), strategy) {
		return Export{}, fmt.Errorf("%w: %w %q", ErrInvalidInput, export.ErrUnknownStrategy, strategy)
	}

	now := s.now()
	opts := in.Options
	if strings.TrimSpace(opts.FileName) == "" {
		opts.FileName = layout.ReviewFileName(rev.JobTitle, rev.CompanyName, now)
	}
	opts = opts.Normalize(now)
	if err := opts.Validate(); err != nil {
		return Export{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	exp := Export{
		ID:        uuid.NewString(),
		ReviewID:  rev.ID,
		UserID:    userID,
		Status:    StatusQueued,
		Options:   opts,
		Strategy:  strategy,
		FileName:  opts.FileName,
		CreatedAt: now.UTC(),
	}
	if err := s.Repo.Create(ctx, exp); err != nil {
		return Export{}, err
	}
	s.transition(ctx, exp, "none->queued")

	if s.Queue == nil {
		if err := s.Process(ctx, exp.ID); err != nil {
			telemetry.Warn("export.inline_failed", map[string]any{
				"request_id": requestIDFromContext(ctx),
				"export_id":  exp.ID,
				"error":      err.Error(),
			})
		}
		return s.Repo.GetByID(ctx, exp.ID)
	}

	msg := queue.Message{
		ExportID:   exp.ID,
		RequestID:  requestIDFromContext(ctx),
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    queue.MessageVersion,
	}
	if err := s.Queue.Send(ctx, msg); err != nil {
		s.fail(ctx, &exp, "queued", fmt.Errorf("enqueue: %w", err))
		return exp, fmt.Errorf("enqueue export: %w", err)
	}
	return exp, nil
}

// Process renders one export job. Completed jobs are left alone so that a
// redelivered message does no work.
func (s *Service) Process(ctx context.Context, id string) error {
	exp, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrUnrecoverable, err)
		}
		return err
	}
	if exp.Status == StatusCompleted {
		return nil
	}

	from := exp.Status
	exp.Status = StatusRunning
	exp.Error = ""
	if err := s.Repo.Update(ctx, exp); err != nil {
		return fmt.Errorf("set running: %w", err)
	}
	s.transition(ctx, exp, from+"->running")

	doc, err := s.Reviews.Export(ctx, exp.UserID, exp.ReviewID, reviews.ExportInput{
		Options:  exp.Options,
		Strategy: exp.Strategy,
	})
	if err != nil {
		s.fail(ctx, &exp, "running", err)
		if errors.Is(err, reviews.ErrNotFound) || errors.Is(err, reviews.ErrNotReady) || errors.Is(err, reviews.ErrInvalidInput) {
			return fmt.Errorf("%w: %w", ErrUnrecoverable, err)
		}
		return err
	}

	key := path.Join("exports", util.HashUserKey(exp.UserID), exp.ID+".pdf")
	size, err := s.Store.SaveWithKey(ctx, key, "application/pdf", bytes.NewReader(doc.Data))
	if err != nil {
		s.fail(ctx, &exp, "running", fmt.Errorf("store export: %w", err))
		return fmt.Errorf("store export: %w", err)
	}

	done := s.now().UTC()
	exp.Status = StatusCompleted
	exp.Strategy = doc.Strategy
	exp.FileName = doc.FileName
	exp.StorageKey = key
	exp.SizeBytes = size
	exp.CompletedAt = &done
	if err := s.Repo.Update(ctx, exp); err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	s.transition(ctx, exp, "running->completed")
	return nil
}

// Get returns an export owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (Export, error) {
	if userID == "" || strings.TrimSpace(id) == "" {
		return Export{}, ErrInvalidInput
	}
	return s.Repo.Get(ctx, userID, id)
}

// ListByReview returns every export of one review.
func (s *Service) ListByReview(ctx context.Context, userID, reviewID string) ([]Export, error) {
	if userID == "" || strings.TrimSpace(reviewID) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByReview(ctx, userID, reviewID)
}

// Open returns the stored PDF of a completed export. The caller closes it.
func (s *Service) Open(ctx context.Context, userID, id string) (Export, io.ReadCloser, error) {
	exp, err := s.Get(ctx, userID, id)
	if err != nil {
		return Export{}, nil, err
	}
	if exp.Status != StatusCompleted || exp.StorageKey == "" {
		return exp, nil, ErrNotReady
	}
	rc, err := s.Store.Open(ctx, exp.StorageKey)
	if err != nil {
		return exp, nil, fmt.Errorf("open export: %w", err)
	}
	return exp, rc, nil
}

func (s *Service) fail(ctx context.Context, exp *Export, from string, cause error) {
	done := s.now().UTC()
	exp.Status = StatusFailed
	exp.Error = sanitizeError(cause)
	exp.CompletedAt = &done
	if err := s.Repo.Update(backgroundWithRequestID(ctx), *exp); err != nil {
		telemetry.Error("export.update_failed", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"export_id":  exp.ID,
			"error":      err.Error(),
		})
	}
	s.transition(ctx, *exp, from+"->failed")
}

func (s *Service) transition(ctx context.Context, exp Export, transition string) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           exp.UserID,
		"review_id":         exp.ReviewID,
		"export_id":         exp.ID,
		"status":            exp.Status,
		"status_transition": transition,
	}
	if exp.Strategy != "" {
		fields["strategy"] = exp.Strategy
	}
	if exp.Error != "" {
		fields["error"] = exp.Error
	}
	telemetry.Info("export.status", fields)
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return strings.ToValidUTF8(msg, "\uFFFD")
}
