package exports

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resucheck/internal/reviews"
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

// RegisterRoutes attaches the export routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reviews/:id/exports", h.create)
	rg.GET("/reviews/:id/exports", h.listByReview)
	rg.GET("/exports/:id", h.get)
	rg.GET("/exports/:id/file", h.file)
}

// ExportResponse is the outward-facing representation of an export job.
type ExportResponse struct {
	ID          string     `json:"id"`
	ReviewID    string     `json:"reviewId"`
	Status      string     `json:"status"`
	Strategy    string     `json:"strategy,omitempty"`
	FileName    string     `json:"fileName"`
	SizeBytes   int64      `json:"sizeBytes,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func toResponse(exp Export) ExportResponse {
	return ExportResponse{
		ID:          exp.ID,
		ReviewID:    exp.ReviewID,
		Status:      exp.Status,
		Strategy:    exp.Strategy,
		FileName:    exp.FileName,
		SizeBytes:   exp.SizeBytes,
		Error:       exp.Error,
		CreatedAt:   exp.CreatedAt,
		CompletedAt: exp.CompletedAt,
	}
}

func (h *Handler) create(c *gin.Context) {
	reviewID := c.Param("id")
	c.Set("reviewId", reviewID)

	in, err := reviews.ExportInputFromQuery(c)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	exp, err := h.Svc.Enqueue(ctx, middleware.UserIDFromContext(c), reviewID, in)
	if exp.ID != "" {
		c.Set("exportId", exp.ID)
	}
	if err != nil {
		switch {
		case errors.Is(err, reviews.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "review not found", nil)
		case errors.Is(err, reviews.ErrNotReady):
			respond.Error(c, http.StatusConflict, "not_ready", "review has no feedback to export yet", nil)
		case errors.Is(err, ErrInvalidInput), errors.Is(err, reviews.ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to queue export", nil)
		}
		return
	}

	status := http.StatusAccepted
	if exp.Status == StatusCompleted || exp.Status == StatusFailed {
		status = http.StatusCreated
	}
	c.Set("statusTransition", "none->"+exp.Status)
	respond.JSON(c, status, toResponse(exp))
}

func (h *Handler) listByReview(c *gin.Context) {
	reviewID := c.Param("id")
	c.Set("reviewId", reviewID)
	exps, err := h.Svc.ListByReview(c.Request.Context(), middleware.UserIDFromContext(c), reviewID)
	if err != nil {
		h.lookupError(c, err)
		return
	}
	resp := make([]ExportResponse, 0, len(exps))
	for _, exp := range exps {
		resp = append(resp, toResponse(exp))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("exportId", id)
	exp, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		h.lookupError(c, err)
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(exp))
}

func (h *Handler) file(c *gin.Context) {
	id := c.Param("id")
	c.Set("exportId", id)
	exp, rc, err := h.Svc.Open(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if err != nil {
		if errors.Is(err, ErrNotReady) {
			respond.Error(c, http.StatusConflict, "not_ready", "export is "+exp.Status, nil)
			return
		}
		h.lookupError(c, err)
		return
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read export", nil)
		return
	}
	c.Set("exportStrategy", exp.Strategy)
	c.Header("X-Export-Strategy", exp.Strategy)
	respond.Attachment(c, exp.FileName, "application/pdf", data)
}

func (h *Handler) lookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "export not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch export", nil)
	}
}
