package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// Service runs the registered dependency checks.
type Service struct {
	Timeout time.Duration

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{Timeout: 3 * time.Second, checks: map[string]CheckFunc{}}
}

// Register adds a named check. A nil fn reports the dependency as disabled.
func (s *Service) Register(name string, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = fn
}

// Status runs every check concurrently. ok is false when any enabled check
// failed; results maps each name to "ok", "disabled" or the error text.
func (s *Service) Status(ctx context.Context) (bool, map[string]string) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	fns := make([]CheckFunc, len(names))
	for i, name := range names {
		fns[i] = s.checks[name]
	}
	s.mu.RUnlock()

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, fn := range fns {
		if fn == nil {
			results[i] = "disabled"
			continue
		}
		wg.Add(1)
		go func(i int, fn CheckFunc) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				results[i] = err.Error()
				return
			}
			results[i] = "ok"
		}(i, fn)
	}
	wg.Wait()

	ok := true
	out := make(map[string]string, len(names))
	for i, name := range names {
		out[name] = results[i]
		if results[i] != "ok" && results[i] != "disabled" {
			ok = false
		}
	}
	return ok, out
}
