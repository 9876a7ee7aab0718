package exports

import (
	"time"

	"resucheck/internal/export/layout"
)

// Export job statuses.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Export is one asynchronous PDF rendering of a review.
type Export struct {
	ID          string
	ReviewID    string
	UserID      string
	Status      string
	Options     layout.CaptureOptions
	Strategy    string
	FileName    string
	StorageKey  string
	SizeBytes   int64
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}
