package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"resucheck/internal/backend"
	"resucheck/internal/session"
	"resucheck/internal/shared/server/middleware"
)

type stubResolver struct {
	role string
}

func (s stubResolver) Resolve(ctx context.Context, creds backend.Credentials) (*session.Session, error) {
	if creds.Empty() {
		return nil, session.ErrNoSession
	}
	return &session.Session{User: backend.User{ID: "1", Role: s.role}, Credentials: creds}, nil
}

func newRouter(fb *fakeBackend, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(middleware.Session(stubResolver{role: role}))
	NewHandler(NewService(fb)).RegisterRoutes(api)
	return r
}

func call(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Cookie", "PHPSESSID=abc")
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestRoleGuards(t *testing.T) {
	tests := []struct {
		role   string
		path   string
		status int
	}{
		{role: backend.RoleUser, path: "/api/v1/admin/users", status: http.StatusForbidden},
		{role: backend.RoleAdmin, path: "/api/v1/admin/users", status: http.StatusOK},
		{role: backend.RoleSuperAdmin, path: "/api/v1/admin/users", status: http.StatusOK},
		{role: backend.RoleAdmin, path: "/api/v1/super_admin/users", status: http.StatusForbidden},
		{role: backend.RoleSuperAdmin, path: "/api/v1/super_admin/users", status: http.StatusOK},
	}
	for _, tt := range tests {
		resp := call(newRouter(&fakeBackend{}, tt.role), http.MethodGet, tt.path, "")
		if resp.Code != tt.status {
			t.Fatalf("%s %s: expected %d, got %d", tt.role, tt.path, tt.status, resp.Code)
		}
	}
}

func TestScopeFollowsRouteFamily(t *testing.T) {
	fb := &fakeBackend{}
	router := newRouter(fb, backend.RoleSuperAdmin)

	if resp := call(router, http.MethodPost, "/api/v1/super_admin/users/9/block", `{"block":true}`); resp.Code != http.StatusOK {
		t.Fatalf("block: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp := call(router, http.MethodDelete, "/api/v1/admin/users/9", ""); resp.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.Code)
	}
	if !fb.blocked["9"] || len(fb.deleted) != 1 {
		t.Fatalf("unexpected backend state blocked=%v deleted=%v", fb.blocked, fb.deleted)
	}
	if len(fb.scopes) != 2 || fb.scopes[0] != backend.ScopeSuperAdmin || fb.scopes[1] != backend.ScopeAdmin {
		t.Fatalf("unexpected scopes %v", fb.scopes)
	}

	if resp := call(router, http.MethodPost, "/api/v1/admin/users/9/block", `{}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without block flag, got %d", resp.Code)
	}
}

func TestTransactionsFilteredLocally(t *testing.T) {
	fb := &fakeBackend{txs: []backend.Transaction{
		{ID: "1", Phone: strPtr("0803")},
		{ID: "2", User: &backend.TransactionUser{Name: "Ada", Email: "ada@example.com"}},
	}}
	resp := call(newRouter(fb, backend.RoleAdmin), http.MethodGet, "/api/v1/admin/transactions?q=ADA", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Transactions []backend.Transaction `json:"transactions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Transactions) != 1 || body.Transactions[0].ID != "2" {
		t.Fatalf("unexpected transactions %+v", body.Transactions)
	}
}

func TestSendEmailRoutes(t *testing.T) {
	fb := &fakeBackend{
		users:   []backend.User{{Email: "a@example.com"}, {Email: "b@example.com"}},
		failFor: map[string]bool{"a@example.com": true, "b@example.com": true},
	}
	router := newRouter(fb, backend.RoleAdmin)

	if resp := call(router, http.MethodPost, "/api/v1/admin/send-email", `{"to":"all","subject":"","message":"m"}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	resp := call(router, http.MethodPost, "/api/v1/admin/send-email", `{"to":"all","subject":"s","message":"m"}`)
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 when every send failed, got %d", resp.Code)
	}

	fb.failFor = nil
	resp = call(router, http.MethodPost, "/api/v1/admin/send-email", `{"to":"all","subject":"s","message":"m"}`)
	var res SendResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil || res.Sent != 2 {
		t.Fatalf("unexpected result %+v %v", res, err)
	}

	superRouter := newRouter(fb, backend.RoleSuperAdmin)
	if resp := call(superRouter, http.MethodPost, "/api/v1/super_admin/send-email", `{"to":"all","subject":"s","message":"m"}`); resp.Code != http.StatusNotFound {
		t.Fatalf("expected no send-email under super_admin, got %d", resp.Code)
	}
}
