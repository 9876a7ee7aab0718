package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resucheck/internal/backend"
	"resucheck/internal/session"
	"resucheck/internal/shared/server/respond"
)

const (
	userIDKey  = "userId"
	sessionKey = "session"
)

// SessionResolver resolves the backend session for forwarded credentials.
type SessionResolver interface {
	Resolve(ctx context.Context, creds backend.Credentials) (*session.Session, error)
}

// Session resolves the caller's backend session and stores it in context.
func Session(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		creds := backend.CredentialsFromRequest(c.Request)
		sess, err := resolver.Resolve(c.Request.Context(), creds)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				respond.Error(c, http.StatusUnauthorized, "unauthorized", backend.FriendlyMessage("unauthorized"), nil)
				return
			}
			respond.Error(c, http.StatusBadGateway, "backend_unavailable", "could not verify session", nil)
			return
		}

		c.Set(sessionKey, sess)
		c.Set(userIDKey, sess.UserID())
		c.Request = c.Request.WithContext(session.WithSession(c.Request.Context(), sess))
		c.Next()
	}
}

// RequireRole rejects callers whose session holds none of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFromContext(c)
		if sess == nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", backend.FriendlyMessage("unauthorized"), nil)
			return
		}
		if !sess.HasRole(roles...) {
			respond.Error(c, http.StatusForbidden, "forbidden", backend.FriendlyMessage("unauthorized"), nil)
			return
		}
		c.Next()
	}
}

// SessionFromContext fetches the session set by the Session middleware.
func SessionFromContext(c *gin.Context) *session.Session {
	if c == nil {
		return nil
	}
	val, _ := c.Get(sessionKey)
	if sess, ok := val.(*session.Session); ok {
		return sess
	}
	return nil
}

// UserIDFromContext fetches the user ID set by the Session middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
