package reviews

import (
	"time"

	"resucheck/internal/feedback"
)

// Status values for reviews.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Review is one analyzed resume for one job.
type Review struct {
	ID             string
	UserID         string
	CompanyName    string
	JobTitle       string
	JobDescription string
	FileName       string
	ResumeKey      string
	ImageKey       string
	Feedback       *feedback.Feedback
	Status         string
	Error          string
	CreatedAt      time.Time
	CompletedAt    *time.Time

	// Resolved at read time, never stored.
	ResumeURL string
	ImageURL  string
}

// Ready reports whether the review can be exported.
func (r Review) Ready() bool {
	return r.Status == StatusCompleted && r.Feedback != nil
}
