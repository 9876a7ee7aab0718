package server

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"resucheck/internal/account"
	"resucheck/internal/admin"
	"resucheck/internal/exports"
	"resucheck/internal/reviews"
	"resucheck/internal/services/health"
	"resucheck/internal/shared/config"
	"resucheck/internal/shared/metrics"
	"resucheck/internal/shared/server/middleware"
	"resucheck/internal/shared/server/respond"
	"resucheck/internal/shared/storage/object"
	"resucheck/internal/shared/util"
)

// Rate limit groups for the authenticated API.
const (
	rateGroupReview  = "REVIEW"
	rateGroupExport  = "EXPORT"
	rateGroupPolling = "POLLING"
)

// RouterDeps carries the handlers NewRouter mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config   config.Config
	Resolver middleware.SessionResolver
	Reviews  *reviews.Handler
	Exports  *exports.Handler
	Account  *account.Handler
	Admin    *admin.Handler
	Health   *health.Service
	// Store is served under /api/v1/objects when objects are local.
	Store   object.ObjectStore
	Limiter *middleware.RateLimiter
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", healthHandler(deps.Health))

	if deps.Account != nil {
		deps.Account.RegisterPublicRoutes(api)
	}
	if deps.Reviews != nil {
		deps.Reviews.RegisterViewRoutes(api)
	}

	authed := api.Group("")
	authed.Use(
		middleware.Session(deps.Resolver),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"DEFAULT":        {Rate: 10, Burst: 40},
				rateGroupReview:  {Rate: 0.2, Burst: 5},
				rateGroupExport:  {Rate: 1, Burst: 10},
				rateGroupPolling: {Rate: 5, Burst: 20},
			},
			GroupFor: rateGroupFor,
			Limiter:  deps.Limiter,
		}),
	)
	if deps.Account != nil {
		deps.Account.RegisterRoutes(authed)
	}
	if deps.Reviews != nil {
		deps.Reviews.RegisterRoutes(authed)
	}
	if deps.Exports != nil {
		deps.Exports.RegisterRoutes(authed)
	}
	if deps.Admin != nil {
		deps.Admin.RegisterRoutes(authed)
	}
	if deps.Store != nil && deps.Config.ObjectStoreType != "s3" {
		authed.GET("/objects/*key", objectHandler(deps.Store))
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	route, method := c.FullPath(), c.Request.Method
	switch {
	case method == http.MethodPost && route == "/api/v1/reviews":
		return rateGroupReview
	case route == "/api/v1/reviews/:id/export",
		method == http.MethodPost && route == "/api/v1/reviews/:id/exports":
		return rateGroupExport
	case method == http.MethodGet && route == "/api/v1/exports/:id":
		return rateGroupPolling
	default:
		return ""
	}
}

func healthHandler(svc *health.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc == nil {
			respond.OK(c, gin.H{"ok": true, "checks": gin.H{}})
			return
		}
		ok, checks := svc.Status(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, gin.H{"ok": ok, "checks": checks})
	}
}

// objectHandler streams locally stored objects. Previews are readable by any
// signed-in user; resumes and exports only by the user whose hash prefixes
// the key.
func objectHandler(store object.ObjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimPrefix(path.Clean("/"+c.Param("key")), "/")
		if !canRead(key, middleware.UserIDFromContext(c)) {
			respond.Error(c, http.StatusNotFound, "not_found", "object not found", nil)
			return
		}
		rc, err := store.Open(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				respond.Error(c, http.StatusNotFound, "not_found", "object not found", nil)
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to read object", nil)
			return
		}
		defer rc.Close()

		contentType := mime.TypeByExtension(path.Ext(key))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Cache-Control", "private, max-age=300")
		c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
	}
}

func canRead(key, userID string) bool {
	if userID == "" {
		return false
	}
	parts := strings.SplitN(key, "/", 3)
	switch parts[0] {
	case "previews":
		return len(parts) >= 2 && parts[1] != ""
	case "resumes", "exports":
		return len(parts) == 3 && parts[1] == util.HashUserKey(userID)
	default:
		return false
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
