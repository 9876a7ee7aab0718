package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resucheck/internal/backend"
	"resucheck/internal/shared/server/middleware"
	"resucheck/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches /admin (admins and super admins) and /super_admin
// (super admins only). rg must already resolve the session.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	adm := rg.Group("/admin", middleware.RequireRole(backend.RoleAdmin, backend.RoleSuperAdmin))
	h.registerScope(adm, backend.ScopeAdmin)
	adm.POST("/send-email", h.sendEmail)

	super := rg.Group("/super_admin", middleware.RequireRole(backend.RoleSuperAdmin))
	h.registerScope(super, backend.ScopeSuperAdmin)
}

func (h *Handler) registerScope(rg *gin.RouterGroup, scope backend.Scope) {
	rg.GET("/users", h.users(scope))
	rg.GET("/transactions", h.transactions(scope))
	rg.POST("/users/:id/block", h.block(scope))
	rg.DELETE("/users/:id", h.remove(scope))
}

func (h *Handler) users(scope backend.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := h.Svc.Users(c.Request.Context(), creds(c), scope, c.Query("q"))
		if err != nil {
			respond.BackendError(c, err)
			return
		}
		respond.OK(c, gin.H{"users": users})
	}
}

func (h *Handler) transactions(scope backend.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		txs, err := h.Svc.Transactions(c.Request.Context(), creds(c), scope, c.Query("q"))
		if err != nil {
			respond.BackendError(c, err)
			return
		}
		respond.OK(c, gin.H{"transactions": txs})
	}
}

type blockRequest struct {
	Block *bool `json:"block" binding:"required"`
}

func (h *Handler) block(scope backend.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req blockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", err.Error())
			return
		}
		id := c.Param("id")
		if err := h.Svc.Block(c.Request.Context(), creds(c), scope, id, *req.Block); err != nil {
			h.writeError(c, err)
			return
		}
		respond.OK(c, gin.H{"ok": true, "id": id, "isBlocked": *req.Block})
	}
}

func (h *Handler) remove(scope backend.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := h.Svc.Delete(c.Request.Context(), creds(c), scope, id); err != nil {
			h.writeError(c, err)
			return
		}
		respond.OK(c, gin.H{"ok": true, "id": id})
	}
}

func (h *Handler) sendEmail(c *gin.Context) {
	var in EmailInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Subject and message are required", err.Error())
		return
	}
	res, err := h.Svc.SendEmail(c.Request.Context(), creds(c), in)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "Subject and message are required", nil)
		case errors.Is(err, ErrNoRecipients):
			respond.Error(c, http.StatusUnprocessableEntity, "no_recipients", "no users to e-mail", nil)
		default:
			respond.BackendError(c, err)
		}
		return
	}
	if res.Sent == 0 && res.Failed > 0 {
		respond.Error(c, http.StatusBadGateway, "send_failed", "Failed to send email", res)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	if errors.Is(err, ErrInvalidInput) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "user id is required", nil)
		return
	}
	respond.BackendError(c, err)
}

func creds(c *gin.Context) backend.Credentials {
	if sess := middleware.SessionFromContext(c); sess != nil {
		return sess.Credentials
	}
	return backend.CredentialsFromRequest(c.Request)
}
