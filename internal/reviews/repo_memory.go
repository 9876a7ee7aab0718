package reviews

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Review // reviewID -> review
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Review)}
}

// Create stores a new review.
func (r *MemoryRepo) Create(ctx context.Context, rev Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[rev.ID] = rev
	return nil
}

// Update replaces a stored review.
func (r *MemoryRepo) Update(ctx context.Context, rev Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[rev.ID]; !ok {
		return ErrNotFound
	}
	r.data[rev.ID] = rev
	return nil
}

// Get returns a review owned by userID.
func (r *MemoryRepo) Get(ctx context.Context, userID, id string) (Review, error) {
	rev, err := r.GetByID(ctx, id)
	if err != nil {
		return Review{}, err
	}
	if rev.UserID != userID {
		return Review{}, ErrNotFound
	}
	return rev, nil
}

// GetByID returns a review regardless of owner.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Review, error) {
	if err := ctx.Err(); err != nil {
		return Review{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rev, ok := r.data[id]
	if !ok {
		return Review{}, ErrNotFound
	}
	return rev, nil
}

// List returns a user's reviews newest first, honoring limit/offset.
func (r *MemoryRepo) List(ctx context.Context, userID string, limit, offset int) ([]Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	var out []Review
	for _, rev := range r.data {
		if rev.UserID == userID {
			out = append(out, rev)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Review{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

var _ Repo = (*MemoryRepo)(nil)
