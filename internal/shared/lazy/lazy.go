// Package lazy holds process-wide values that are initialized on first use.
package lazy

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Value initializes a T at most once successfully. Callers that arrive while
// an initialization is in flight share it instead of starting their own, and
// each caller stops waiting when its own ctx is done. If initialization fails,
// a later call retries.
type Value[T any] struct {
	init  func(context.Context) (T, error)
	group singleflight.Group

	mu    sync.RWMutex
	val   T
	ready bool
}

// New returns a Value that uses init to build its value.
func New[T any](init func(context.Context) (T, error)) *Value[T] {
	return &Value[T]{init: init}
}

// Get returns the value, initializing it if needed. The initializer runs
// with ctx's values but not its cancellation, so a caller giving up does not
// fail the attempt for the others.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	if val, ok := v.load(); ok {
		return val, nil
	}
	initCtx := context.WithoutCancel(ctx)
	ch := v.group.DoChan("init", func() (any, error) {
		if val, ok := v.load(); ok {
			return val, nil
		}
		val, err := v.run(initCtx)
		if err != nil {
			return nil, err
		}
		v.mu.Lock()
		v.val, v.ready = val, true
		v.mu.Unlock()
		return val, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Loaded reports whether the value has been initialized.
func (v *Value[T]) Loaded() bool {
	_, ok := v.load()
	return ok
}

func (v *Value[T]) load() (T, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.val, v.ready
}

func (v *Value[T]) run(ctx context.Context) (val T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PanicError{Value: rec}
		}
	}()
	return v.init(ctx)
}

// PanicError reports a panic raised by an initializer.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("lazy init panicked: %v", e.Value)
}
