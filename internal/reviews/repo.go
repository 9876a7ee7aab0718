package reviews

import "context"

// Repo defines persistence operations for reviews.
type Repo interface {
	Create(ctx context.Context, r Review) error
	Update(ctx context.Context, r Review) error
	Get(ctx context.Context, userID, id string) (Review, error)
	GetByID(ctx context.Context, id string) (Review, error)
	List(ctx context.Context, userID string, limit, offset int) ([]Review, error)
}
