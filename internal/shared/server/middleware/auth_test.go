package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"resucheck/internal/backend"
	"resucheck/internal/session"
)

type stubResolver struct {
	sess *session.Session
	err  error
	got  backend.Credentials
}

func (s *stubResolver) Resolve(ctx context.Context, creds backend.Credentials) (*session.Session, error) {
	s.got = creds
	return s.sess, s.err
}

func TestSessionAllowsOptionsWithoutIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Session(&stubResolver{err: session.ErrNoSession}))
	router.OPTIONS("/api/v1/reviews", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/reviews", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestSessionStoresResolvedUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolver := &stubResolver{sess: &session.Session{User: backend.User{ID: "u1"}}}
	router := gin.New()
	router.Use(Session(resolver))
	router.GET("/api/v1/reviews", func(c *gin.Context) {
		if _, ok := session.FromContext(c.Request.Context()); !ok {
			t.Errorf("expected session in request context")
		}
		c.String(http.StatusOK, UserIDFromContext(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews", nil)
	req.Header.Set("Cookie", "PHPSESSID=abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || resp.Body.String() != "u1" {
		t.Fatalf("unexpected response %d %q", resp.Code, resp.Body.String())
	}
	if resolver.got.Cookie != "PHPSESSID=abc" {
		t.Fatalf("expected cookie forwarded, got %q", resolver.got.Cookie)
	}
}

func TestSessionRejects(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "no session", err: session.ErrNoSession, want: http.StatusUnauthorized},
		{name: "backend down", err: errors.New("dial tcp: refused"), want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			router := gin.New()
			router.Use(Session(&stubResolver{err: tt.err}))
			router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/x", nil))
			if resp.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name  string
		role  string
		roles []string
		want  int
	}{
		{name: "user on admin route", role: backend.RoleUser, roles: []string{backend.RoleAdmin, backend.RoleSuperAdmin}, want: http.StatusForbidden},
		{name: "admin on admin route", role: backend.RoleAdmin, roles: []string{backend.RoleAdmin, backend.RoleSuperAdmin}, want: http.StatusOK},
		{name: "admin on super route", role: backend.RoleAdmin, roles: []string{backend.RoleSuperAdmin}, want: http.StatusForbidden},
		{name: "super on super route", role: backend.RoleSuperAdmin, roles: []string{backend.RoleSuperAdmin}, want: http.StatusOK},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			router := gin.New()
			router.Use(Session(&stubResolver{sess: &session.Session{User: backend.User{ID: "u1", Role: tt.role}}}))
			router.GET("/admin", RequireRole(tt.roles...), func(c *gin.Context) { c.Status(http.StatusOK) })

			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/admin", nil))
			if resp.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.Code)
			}
		})
	}
}
