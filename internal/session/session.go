// Package session resolves the backend user behind a browser request.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"resucheck/internal/backend"
	"resucheck/internal/shared/telemetry"
)

// DefaultTTL bounds how long a resolved user is reused.
const DefaultTTL = 10 * time.Minute

// ErrNoSession means the request carries no usable backend session.
var ErrNoSession = errors.New("session: not signed in")

// Session is the signed-in user together with the credentials that proved it.
type Session struct {
	User        backend.User
	Credentials backend.Credentials
}

// UserID returns the backend user ID.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	return string(s.User.ID)
}

// Coins returns the balance reported when the session was resolved.
func (s *Session) Coins() float64 {
	if s == nil {
		return 0
	}
	return float64(s.User.Coins)
}

// IsAdmin reports whether the user may use the admin console. Super admins
// are admins too.
func (s *Session) IsAdmin() bool {
	if s == nil {
		return false
	}
	return s.User.Role == backend.RoleAdmin || s.User.Role == backend.RoleSuperAdmin
}

// IsSuperAdmin reports whether the user holds the super_admin role.
func (s *Session) IsSuperAdmin() bool {
	return s != nil && s.User.Role == backend.RoleSuperAdmin
}

// HasRole reports whether the user holds any of roles.
func (s *Session) HasRole(roles ...string) bool {
	if s == nil {
		return false
	}
	for _, r := range roles {
		if s.User.Role == r {
			return true
		}
	}
	return false
}

// Lookup fetches the user for credentials.
type Lookup interface {
	Me(ctx context.Context, creds backend.Credentials) (backend.User, error)
}

type entry struct {
	user    backend.User
	expires time.Time
}

// Resolver caches backend lookups per credential.
type Resolver struct {
	Lookup Lookup
	TTL    time.Duration
	Now    func() time.Time

	mu    sync.Mutex
	cache map[string]entry
	gen   uint64 // bumped by Invalidate; lookups started earlier are not cached
	group singleflight.Group
}

// NewResolver builds a Resolver with the default TTL.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{Lookup: lookup, TTL: DefaultTTL}
}

// Resolve returns the session for creds. Concurrent lookups for the same
// credentials share one backend call.
func (r *Resolver) Resolve(ctx context.Context, creds backend.Credentials) (*Session, error) {
	if creds.Empty() {
		return nil, ErrNoSession
	}
	key := creds.Key()
	if user, ok := r.cached(key); ok {
		return &Session{User: user, Credentials: creds}, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		gen := r.generation()
		user, err := r.Lookup.Me(ctx, creds)
		if err != nil {
			return nil, err
		}
		r.store(key, gen, user)
		return user, nil
	})
	if err != nil {
		if backend.IsUnauthorized(err) {
			return nil, ErrNoSession
		}
		telemetry.Warn("session.resolve_failed", map[string]any{"error": err.Error()})
		return nil, err
	}
	return &Session{User: v.(backend.User), Credentials: creds}, nil
}

// Invalidate drops the cached user for creds.
func (r *Resolver) Invalidate(creds backend.Credentials) {
	if creds.Empty() {
		return
	}
	key := creds.Key()
	r.mu.Lock()
	delete(r.cache, key)
	r.gen++
	r.mu.Unlock()
	r.group.Forget(key)
}

func (r *Resolver) cached(key string) (backend.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[key]
	if !ok {
		return backend.User{}, false
	}
	if !r.now().Before(e.expires) {
		delete(r.cache, key)
		return backend.User{}, false
	}
	return e.user, true
}

func (r *Resolver) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// store caches user unless an invalidation happened after gen was read.
func (r *Resolver) store(key string, gen uint64, user backend.User) {
	ttl := r.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}
	if r.cache == nil {
		r.cache = make(map[string]entry)
	}
	r.cache[key] = entry{user: user, expires: r.now().Add(ttl)}
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

type ctxKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session attached to ctx, if any.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
