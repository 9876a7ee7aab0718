package exports

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Export
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]Export)}
}

func (r *MemoryRepo) Create(ctx context.Context, exp Export) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[exp.ID] = exp
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, exp Export) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[exp.ID]; !ok {
		return ErrNotFound
	}
	r.data[exp.ID] = exp
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID, id string) (Export, error) {
	exp, err := r.GetByID(ctx, id)
	if err != nil {
		return Export{}, err
	}
	if exp.UserID != userID {
		return Export{}, ErrNotFound
	}
	return exp, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Export, error) {
	if err := ctx.Err(); err != nil {
		return Export{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	exp, ok := r.data[id]
	if !ok {
		return Export{}, ErrNotFound
	}
	return exp, nil
}

func (r *MemoryRepo) ListByReview(ctx context.Context, userID, reviewID string) ([]Export, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Export{}
	for _, exp := range r.data {
		if exp.UserID == userID && exp.ReviewID == reviewID {
			out = append(out, exp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
