package reviews

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"resucheck/internal/backend"
	"resucheck/internal/export"
	"resucheck/internal/export/layout"
	"resucheck/internal/feedback"
	"resucheck/internal/session"
	"resucheck/internal/shared/auth"
	"resucheck/internal/shared/server/middleware"
	"resucheck/internal/shared/server/respond"
)

const maxUploadSize = 10 << 20 // 10MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the session-protected review routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reviews", h.create)
	rg.GET("/reviews", h.list)
	rg.GET("/reviews/:id", h.get)
	rg.GET("/reviews/:id/export", h.export)
}

// RegisterViewRoutes attaches the token-authenticated capture page.
func (h *Handler) RegisterViewRoutes(rg *gin.RouterGroup) {
	rg.GET("/reviews/:id/view", h.view)
}

// ReviewResponse is the outward-facing representation of a review.
type ReviewResponse struct {
	ID             string             `json:"id"`
	CompanyName    string             `json:"companyName"`
	JobTitle       string             `json:"jobTitle"`
	JobDescription string             `json:"jobDescription"`
	FileName       string             `json:"fileName"`
	ResumeURL      string             `json:"resumeUrl,omitempty"`
	ImageURL       string             `json:"imageUrl,omitempty"`
	Feedback       *feedback.Feedback `json:"feedback,omitempty"`
	Status         string             `json:"status"`
	Error          string             `json:"error,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	CompletedAt    *time.Time         `json:"completedAt,omitempty"`
}

func toResponse(rev Review) ReviewResponse {
	return ReviewResponse{
		ID:             rev.ID,
		CompanyName:    rev.CompanyName,
		JobTitle:       rev.JobTitle,
		JobDescription: rev.JobDescription,
		FileName:       rev.FileName,
		ResumeURL:      rev.ResumeURL,
		ImageURL:       rev.ImageURL,
		Feedback:       rev.Feedback,
		Status:         rev.Status,
		Error:          rev.Error,
		CreatedAt:      rev.CreatedAt,
		CompletedAt:    rev.CompletedAt,
	}
}

type createRequest struct {
	CompanyName    string `form:"companyName" binding:"max=200"`
	JobTitle       string `form:"jobTitle" binding:"max=200"`
	JobDescription string `form:"jobDescription" binding:"max=20000"`
}

func (h *Handler) create(c *gin.Context) {
	sess := middleware.SessionFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	var req createRequest
	if err := c.ShouldBind(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", err.Error())
		return
	}
	// The web form posts hyphenated field names.
	if req.CompanyName == "" {
		req.CompanyName = c.PostForm("company-name")
	}
	if req.JobTitle == "" {
		req.JobTitle = c.PostForm("job-title")
	}
	if req.JobDescription == "" {
		req.JobDescription = c.PostForm("job-description")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}

	rev, err := h.Svc.Create(c.Request.Context(), sess, CreateInput{
		CompanyName:    req.CompanyName,
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		FileName:       fileHeader.Filename,
		Data:           data,
	})
	if rev.ID != "" {
		c.Set("reviewId", rev.ID)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, session.ErrNoSession), backend.IsUnauthorized(err):
			respond.Error(c, http.StatusUnauthorized, "unauthorized", backend.FriendlyMessage("unauthorized"), nil)
		case errors.Is(err, ErrInsufficientCoins):
			respond.Error(c, http.StatusPaymentRequired, "insufficient_coins", "Insufficient coins. Please buy a coin on the homepage.", nil)
		case errors.Is(err, ErrConversion):
			respond.Error(c, http.StatusUnprocessableEntity, "conversion_failed", "Failed to convert PDF to image", gin.H{"reviewId": rev.ID})
		case errors.Is(err, ErrAnalysis):
			respond.Error(c, http.StatusBadGateway, "analysis_failed", analysisMessage(err), gin.H{"reviewId": rev.ID})
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create review", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(rev))
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("reviewId", id)
	rev, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		h.lookupError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(rev))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0

	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}

	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	revs, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.lookupError(c, err)
		return
	}

	resp := make([]ReviewResponse, 0, len(revs))
	for _, rev := range revs {
		resp = append(resp, toResponse(rev))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) export(c *gin.Context) {
	id := c.Param("id")
	c.Set("reviewId", id)

	in, err := ExportInputFromQuery(c)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	doc, err := h.Svc.Export(c.Request.Context(), middleware.UserIDFromContext(c), id, in)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotReady):
			respond.Error(c, http.StatusConflict, "not_ready", "review has no feedback to export yet", nil)
		case errors.Is(err, export.ErrExportFailed):
			respond.Error(c, http.StatusInternalServerError, "export_failed", "Failed to generate styled PDF. Please try again.", nil)
		default:
			h.lookupError(c, err)
		}
		return
	}

	c.Set("exportStrategy", doc.Strategy)
	c.Header("X-Export-Strategy", doc.Strategy)
	respond.Attachment(c, doc.FileName, "application/pdf", doc.Data)
}

// ExportInputFromQuery reads capture options from the format, orientation,
// scale, background, fileName and strategy query parameters.
func ExportInputFromQuery(c *gin.Context) (ExportInput, error) {
	in := ExportInput{
		Options: layout.CaptureOptions{
			FileName:    strings.TrimSpace(c.Query("fileName")),
			Format:      layout.Format(c.Query("format")),
			Orientation: layout.Orientation(c.Query("orientation")),
			Background:  c.Query("background"),
		},
		Strategy: c.Query("strategy"),
	}
	if v := strings.TrimSpace(c.Query("scale")); v != "" {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ExportInput{}, errors.New("scale must be a number")
		}
		in.Options.Scale = scale
	}
	return in, nil
}

func (h *Handler) view(c *gin.Context) {
	id := c.Param("id")
	c.Set("reviewId", id)
	page, err := h.Svc.View(c.Request.Context(), id, c.Query("token"))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "invalid or expired view link", nil)
		case errors.Is(err, ErrNotReady):
			respond.Error(c, http.StatusConflict, "not_ready", "review has no feedback yet", nil)
		default:
			h.lookupError(c, err)
		}
		return
	}
	html, err := RenderView(page)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to render review", nil)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (h *Handler) lookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "review not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch review", nil)
	}
}
