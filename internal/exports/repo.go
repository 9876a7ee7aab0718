package exports

import "context"

// Repo defines persistence for export jobs.
type Repo interface {
	Create(ctx context.Context, exp Export) error
	Update(ctx context.Context, exp Export) error
	// Get returns an export owned by userID.
	Get(ctx context.Context, userID, id string) (Export, error)
	// GetByID is used by the worker, which has no user context.
	GetByID(ctx context.Context, id string) (Export, error)
	ListByReview(ctx context.Context, userID, reviewID string) ([]Export, error)
}
