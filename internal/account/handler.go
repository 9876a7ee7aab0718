package account

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

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

// RegisterPublicRoutes attaches the routes that work without a session.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/logout", h.logout)
	rg.POST("/auth/forgot/start", h.forgotStart)
	rg.POST("/auth/forgot/verify", h.forgotVerify)
	rg.POST("/auth/forgot/reset", h.forgotReset)
}

// RegisterRoutes attaches the session-protected routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.GET("/profile", h.profile)
	rg.POST("/profile", h.updateProfile)
	rg.POST("/coins/add", h.addCoins)
	rg.POST("/coins/spend", h.spendCoins)
	rg.POST("/payments/paystack/init", h.paystackInit)
	rg.POST("/payments/paystack/verify", h.paystackVerify)
}

type meResponse struct {
	User    backend.User `json:"user"`
	IsAdmin bool         `json:"isAdmin"`
	IsSuper bool         `json:"isSuperAdmin"`
}

func (h *Handler) me(c *gin.Context) {
	sess := middleware.SessionFromContext(c)
	if sess == nil {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", backend.FriendlyMessage("unauthorized"), nil)
		return
	}
	respond.OK(c, meResponse{User: sess.User, IsAdmin: sess.IsAdmin(), IsSuper: sess.IsSuperAdmin()})
}

func (h *Handler) login(c *gin.Context) {
	var req backend.LoginRequest
	if !bind(c, &req) {
		return
	}
	reply, err := h.Svc.Login(c.Request.Context(), credentials(c), req)
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.SetCookies(c, reply.SetCookies)
	respond.OK(c, reply)
}

func (h *Handler) register(c *gin.Context) {
	var req backend.RegisterRequest
	if !bind(c, &req) {
		return
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Passwords do not match", nil)
		return
	}
	reply, err := h.Svc.Register(c.Request.Context(), credentials(c), req)
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.SetCookies(c, reply.SetCookies)
	respond.JSON(c, http.StatusCreated, reply)
}

func (h *Handler) logout(c *gin.Context) {
	reply, err := h.Svc.Logout(c.Request.Context(), credentials(c))
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.SetCookies(c, reply.SetCookies)
	respond.OK(c, reply)
}

func (h *Handler) profile(c *gin.Context) {
	reply, err := h.Svc.Profile(c.Request.Context(), credentials(c))
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.OK(c, reply)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req backend.ProfileUpdate
	if !bind(c, &req) {
		return
	}
	if req.NewPassword != nil && (req.ConfirmPassword == nil || *req.ConfirmPassword != *req.NewPassword) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Passwords do not match", nil)
		return
	}
	reply, err := h.Svc.UpdateProfile(c.Request.Context(), credentials(c), req)
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.SetCookies(c, reply.SetCookies)
	respond.OK(c, reply)
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type verifyRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

func (r *emailRequest) Normalize() { r.Email = strings.TrimSpace(r.Email) }

func (r *verifyRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Code = strings.TrimSpace(r.Code)
}

func (h *Handler) forgotStart(c *gin.Context) {
	var req emailRequest
	if !bind(c, &req) {
		return
	}
	reply, err := h.Svc.ForgotStart(c.Request.Context(), credentials(c), req.Email)
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.OK(c, reply)
}

func (h *Handler) forgotVerify(c *gin.Context) {
	var req verifyRequest
	if !bind(c, &req) {
		return
	}
	reply, err := h.Svc.ForgotVerify(c.Request.Context(), credentials(c), req.Email, req.Code)
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.OK(c, reply)
}

func (h *Handler) forgotReset(c *gin.Context) {
	var req backend.ForgotResetRequest
	if !bind(c, &req) {
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Passwords do not match", nil)
		return
	}
	reply, err := h.Svc.ForgotReset(c.Request.Context(), credentials(c), req)
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.OK(c, reply)
}

func (h *Handler) addCoins(c *gin.Context) {
	var req backend.CoinsRequest
	if !bind(c, &req) {
		return
	}
	reply, err := h.Svc.AddCoins(c.Request.Context(), credentials(c), req)
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.OK(c, reply)
}

func (h *Handler) spendCoins(c *gin.Context) {
	var req backend.CoinsRequest
	if !bind(c, &req) {
		return
	}
	reply, err := h.Svc.SpendCoins(c.Request.Context(), credentials(c), req)
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.OK(c, reply)
}

func (h *Handler) paystackInit(c *gin.Context) {
	var req backend.PaystackInitRequest
	if !bind(c, &req) {
		return
	}
	reply, err := h.Svc.PaystackInit(c.Request.Context(), credentials(c), req)
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.OK(c, reply)
}

type referenceRequest struct {
	Reference string `json:"reference"`
}

func (h *Handler) paystackVerify(c *gin.Context) {
	var req referenceRequest
	if c.Request.ContentLength != 0 {
		if !bind(c, &req) {
			return
		}
	}
	if strings.TrimSpace(req.Reference) == "" {
		req.Reference = c.Query("reference")
	}
	if strings.TrimSpace(req.Reference) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "reference is required", nil)
		return
	}
	reply, err := h.Svc.PaystackVerify(c.Request.Context(), credentials(c), req.Reference)
	if err != nil {
		respond.BackendError(c, err)
		return
	}
	respond.OK(c, reply)
}

// credentials returns the resolved session's credentials when there is one.
func credentials(c *gin.Context) backend.Credentials {
	if sess := middleware.SessionFromContext(c); sess != nil {
		return sess.Credentials
	}
	return backend.CredentialsFromRequest(c.Request)
}

// normalizer is implemented by payloads that tidy user input before
// validation.
type normalizer interface {
	Normalize()
}

// bind decodes the JSON body, normalizes it and then runs the binding tags.
func bind(c *gin.Context, dst any) bool {
	if c.Request.Body == nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", "empty body")
		return false
	}
	if err := json.NewDecoder(c.Request.Body).Decode(dst); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", err.Error())
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.Normalize()
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", err.Error())
		return false
	}
	return true
}
