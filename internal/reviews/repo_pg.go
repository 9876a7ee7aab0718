package reviews

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"resucheck/internal/feedback"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const reviewColumns = `id, user_id, company_name, job_title, job_description, file_name, resume_key, image_key, feedback, status, error, created_at, completed_at`

// Create inserts a new review.
func (r *PGRepo) Create(ctx context.Context, rev Review) error {
	const query = `
INSERT INTO reviews (
    id,
    user_id,
    company_name,
    job_title,
    job_description,
    file_name,
    resume_key,
    image_key,
    feedback,
    status,
    error,
    created_at,
    completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	fb, err := marshalFeedback(rev.Feedback)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(
		ctx,
		query,
		rev.ID,
		rev.UserID,
		rev.CompanyName,
		rev.JobTitle,
		rev.JobDescription,
		rev.FileName,
		rev.ResumeKey,
		nullString(rev.ImageKey),
		fb,
		rev.Status,
		nullString(rev.Error),
		rev.CreatedAt,
		rev.CompletedAt,
	)
	return err
}

// Update stores the mutable fields of a review.
func (r *PGRepo) Update(ctx context.Context, rev Review) error {
	const query = `
UPDATE reviews
SET image_key = $1, feedback = $2, status = $3, error = $4, completed_at = $5
WHERE id = $6`

	fb, err := marshalFeedback(rev.Feedback)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query,
		nullString(rev.ImageKey),
		fb,
		rev.Status,
		nullString(rev.Error),
		rev.CompletedAt,
		rev.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches a review owned by userID.
func (r *PGRepo) Get(ctx context.Context, userID, id string) (Review, error) {
	query := `SELECT ` + reviewColumns + `
FROM reviews
WHERE user_id = $1 AND id = $2
LIMIT 1`
	return scanReview(r.DB.QueryRowContext(ctx, query, userID, id))
}

// GetByID fetches a review regardless of owner.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Review, error) {
	query := `SELECT ` + reviewColumns + `
FROM reviews
WHERE id = $1
LIMIT 1`
	return scanReview(r.DB.QueryRowContext(ctx, query, id))
}

// List returns a user's reviews ordered newest-first.
func (r *PGRepo) List(ctx context.Context, userID string, limit, offset int) ([]Review, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + reviewColumns + `
FROM reviews
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Review{}
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (Review, error) {
	var rev Review
	var imageKey sql.NullString
	var fb []byte
	var errMsg sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&rev.ID,
		&rev.UserID,
		&rev.CompanyName,
		&rev.JobTitle,
		&rev.JobDescription,
		&rev.FileName,
		&rev.ResumeKey,
		&imageKey,
		&fb,
		&rev.Status,
		&errMsg,
		&rev.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Review{}, ErrNotFound
		}
		return Review{}, err
	}
	if imageKey.Valid {
		rev.ImageKey = imageKey.String
	}
	if errMsg.Valid {
		rev.Error = errMsg.String
	}
	if completedAt.Valid {
		rev.CompletedAt = &completedAt.Time
	}
	if len(fb) > 0 {
		var parsed feedback.Feedback
		if err := json.Unmarshal(fb, &parsed); err != nil {
			return Review{}, fmt.Errorf("decode feedback for review %s: %w", rev.ID, err)
		}
		rev.Feedback = &parsed
	}
	return rev, nil
}

func marshalFeedback(fb *feedback.Feedback) (any, error) {
	if fb == nil {
		return nil, nil
	}
	raw, err := json.Marshal(fb)
	if err != nil {
		return nil, fmt.Errorf("encode feedback: %w", err)
	}
	return string(raw), nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
