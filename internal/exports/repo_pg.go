package exports

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const exportColumns = `id, review_id, user_id, status, options, strategy, file_name, storage_key, size_bytes, error, created_at, completed_at`

// Create inserts a queued export.
func (r *PGRepo) Create(ctx context.Context, exp Export) error {
	const query = `
INSERT INTO exports (
    id,
    review_id,
    user_id,
    status,
    options,
    strategy,
    file_name,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	opts, err := json.Marshal(exp.Options)
	if err != nil {
		return fmt.Errorf("encode export options: %w", err)
	}
	_, err = r.DB.ExecContext(ctx, query,
		exp.ID,
		exp.ReviewID,
		exp.UserID,
		exp.Status,
		string(opts),
		exp.Strategy,
		exp.FileName,
		exp.CreatedAt,
	)
	return err
}

// Update stores the progress of an export.
func (r *PGRepo) Update(ctx context.Context, exp Export) error {
	const query = `
UPDATE exports
SET status = $1, strategy = $2, file_name = $3, storage_key = $4, size_bytes = $5, error = $6, completed_at = $7
WHERE id = $8`

	res, err := r.DB.ExecContext(ctx, query,
		exp.Status,
		exp.Strategy,
		exp.FileName,
		nullString(exp.StorageKey),
		exp.SizeBytes,
		nullString(exp.Error),
		exp.CompletedAt,
		exp.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Get(ctx context.Context, userID, id string) (Export, error) {
	query := `SELECT ` + exportColumns + `
FROM exports
WHERE user_id = $1 AND id = $2
LIMIT 1`
	return scanExport(r.DB.QueryRowContext(ctx, query, userID, id))
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Export, error) {
	query := `SELECT ` + exportColumns + `
FROM exports
WHERE id = $1
LIMIT 1`
	return scanExport(r.DB.QueryRowContext(ctx, query, id))
}

// ListByReview returns the exports of one review newest first.
func (r *PGRepo) ListByReview(ctx context.Context, userID, reviewID string) ([]Export, error) {
	query := `SELECT ` + exportColumns + `
FROM exports
WHERE user_id = $1 AND review_id = $2
ORDER BY created_at DESC`

	rows, err := r.DB.QueryContext(ctx, query, userID, reviewID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Export{}
	for rows.Next() {
		exp, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExport(row rowScanner) (Export, error) {
	var exp Export
	var opts []byte
	var storageKey, errMsg sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&exp.ID,
		&exp.ReviewID,
		&exp.UserID,
		&exp.Status,
		&opts,
		&exp.Strategy,
		&exp.FileName,
		&storageKey,
		&exp.SizeBytes,
		&errMsg,
		&exp.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Export{}, ErrNotFound
		}
		return Export{}, err
	}
	if len(opts) > 0 {
		if err := json.Unmarshal(opts, &exp.Options); err != nil {
			return Export{}, fmt.Errorf("decode options for export %s: %w", exp.ID, err)
		}
	}
	exp.StorageKey = storageKey.String
	exp.Error = errMsg.String
	if completedAt.Valid {
		exp.CompletedAt = &completedAt.Time
	}
	return exp, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
