package exports

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"resucheck/internal/export/layout"
)

var scanColumns = []string{
	"id", "review_id", "user_id", "status", "options", "strategy", "file_name",
	"storage_key", "size_bytes", "error", "created_at", "completed_at",
}

func newMock(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateStoresOptionsJSON(t *testing.T) {
	repo, mock := newMock(t)
	exp := Export{
		ID:        "exp-1",
		ReviewID:  "rev-1",
		UserID:    "42",
		Status:    StatusQueued,
		Options:   layout.CaptureOptions{Format: layout.A4, Orientation: layout.Portrait, Scale: 2},
		FileName:  "out.pdf",
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO exports").
		WithArgs(
			"exp-1",
			"rev-1",
			"42",
			StatusQueued,
			`{"format":"a4","orientation":"portrait","scale":2}`,
			"",
			"out.pdf",
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), exp); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateNotFound(t *testing.T) {
	repo, mock := newMock(t)
	done := time.Now().UTC()
	exp := Export{
		ID:          "exp-1",
		Status:      StatusCompleted,
		Strategy:    "wysiwyg",
		FileName:    "out.pdf",
		StorageKey:  "exports/abc/exp-1.pdf",
		SizeBytes:   1024,
		CompletedAt: &done,
	}

	mock.ExpectExec("UPDATE exports").
		WithArgs(StatusCompleted, "wysiwyg", "out.pdf", "exports/abc/exp-1.pdf", int64(1024), nil, sqlmock.AnyArg(), "exp-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE exports").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Update(context.Background(), exp); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := repo.Update(context.Background(), exp); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetDecodesRow(t *testing.T) {
	repo, mock := newMock(t)
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	done := created.Add(3 * time.Second)

	rows := sqlmock.NewRows(scanColumns).AddRow(
		"exp-1", "rev-1", "42", StatusCompleted,
		[]byte(`{"format":"letter","orientation":"landscape","scale":2.5}`),
		"structured", "out.pdf", "exports/abc/exp-1.pdf", int64(2048), nil, created, done,
	)
	mock.ExpectQuery("SELECT (.+) FROM exports").
		WithArgs("42", "exp-1").
		WillReturnRows(rows)

	exp, err := repo.Get(context.Background(), "42", "exp-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if exp.Options.Format != layout.Letter || exp.Options.Scale != 2.5 {
		t.Fatalf("options not decoded: %+v", exp.Options)
	}
	if exp.StorageKey != "exports/abc/exp-1.pdf" || exp.SizeBytes != 2048 || exp.Error != "" {
		t.Fatalf("unexpected export %+v", exp)
	}
	if exp.CompletedAt == nil || !exp.CompletedAt.Equal(done) {
		t.Fatalf("unexpected completedAt %v", exp.CompletedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNoRows(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM exports").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListByReview(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(scanColumns).
		AddRow("exp-2", "rev-1", "42", StatusQueued, []byte(`{}`), "", "b.pdf", nil, int64(0), nil, now, nil).
		AddRow("exp-1", "rev-1", "42", StatusFailed, []byte(`{}`), "", "a.pdf", nil, int64(0), "boom", now.Add(-time.Minute), now)
	mock.ExpectQuery("SELECT (.+) FROM exports").
		WithArgs("42", "rev-1").
		WillReturnRows(rows)

	out, err := repo.ListByReview(context.Background(), "42", "rev-1")
	if err != nil {
		t.Fatalf("ListByReview: %v", err)
	}
	if len(out) != 2 || out[0].ID != "exp-2" || out[1].Error != "boom" {
		t.Fatalf("unexpected rows %+v", out)
	}
}
