package reviews

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"resucheck/internal/feedback"
)

var scanColumns = []string{
	"id", "user_id", "company_name", "job_title", "job_description", "file_name",
	"resume_key", "image_key", "feedback", "status", "error", "created_at", "completed_at",
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

func TestPGRepoCreateProcessingReview(t *testing.T) {
	repo, mock := newMock(t)
	rev := Review{
		ID:             "rev-1",
		UserID:         "42",
		CompanyName:    "Acme",
		JobTitle:       "Backend Engineer",
		JobDescription: "Go",
		FileName:       "cv.pdf",
		ResumeKey:      "resumes/abc/rev-1.pdf",
		Status:         StatusProcessing,
		CreatedAt:      time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(
			rev.ID,
			rev.UserID,
			rev.CompanyName,
			rev.JobTitle,
			rev.JobDescription,
			rev.FileName,
			rev.ResumeKey,
			nil, // image_key
			nil, // feedback
			StatusProcessing,
			nil, // error
			sqlmock.AnyArg(),
			nil, // completed_at
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), rev); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateStoresFeedbackJSON(t *testing.T) {
	repo, mock := newMock(t)
	done := time.Now().UTC()
	rev := Review{
		ID:          "rev-1",
		ImageKey:    "previews/rev-1.png",
		Feedback:    &feedback.Feedback{OverallScore: 80},
		Status:      StatusCompleted,
		CompletedAt: &done,
	}

	mock.ExpectExec("UPDATE reviews").
		WithArgs("previews/rev-1.png", sqlmock.AnyArg(), StatusCompleted, nil, sqlmock.AnyArg(), "rev-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE reviews").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Update(context.Background(), rev); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := repo.Update(context.Background(), Review{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetDecodesFeedback(t *testing.T) {
	repo, mock := newMock(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(scanColumns).AddRow(
		"rev-1", "42", "Acme", "Engineer", "Go", "cv.pdf", "resumes/abc/rev-1.pdf",
		"previews/rev-1.png", []byte(`{"overallScore":75,"ATS":{"score":60,"tips":[{"type":"good","tip":"Clear"}]}}`),
		StatusCompleted, nil, created, created,
	)
	mock.ExpectQuery("SELECT (.+) FROM reviews").
		WithArgs("42", "rev-1").
		WillReturnRows(rows)

	rev, err := repo.Get(context.Background(), "42", "rev-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rev.Feedback == nil || rev.Feedback.OverallScore != 75 || len(rev.Feedback.ATS.Tips) != 1 {
		t.Fatalf("unexpected feedback %+v", rev.Feedback)
	}
	if rev.ImageKey != "previews/rev-1.png" || rev.CompletedAt == nil || rev.Error != "" {
		t.Fatalf("unexpected review %+v", rev)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetMapsNoRows(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM reviews").
		WithArgs("rev-x").
		WillReturnError(sql.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "rev-x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListClampsLimit(t *testing.T) {
	repo, mock := newMock(t)
	created := time.Now().UTC()
	rows := sqlmock.NewRows(scanColumns).
		AddRow("rev-2", "42", "", "B", "", "b.pdf", "k2", nil, nil, StatusProcessing, nil, created, nil).
		AddRow("rev-1", "42", "", "A", "", "a.pdf", "k1", nil, nil, StatusFailed, "boom", created.Add(-time.Hour), nil)
	mock.ExpectQuery("SELECT (.+) FROM reviews").
		WithArgs("42", 100, 0).
		WillReturnRows(rows)

	out, err := repo.List(context.Background(), "42", 500, -3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 2 || out[0].ID != "rev-2" || out[1].Error != "boom" || out[0].Feedback != nil {
		t.Fatalf("unexpected list %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
