package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resucheck/internal/backend"
)

// BackendError writes a failed backend call. Backend replies keep their
// status and friendly message; transport failures become 502.
func BackendError(c *gin.Context, err error) {
	var be *backend.Error
	if !errors.As(err, &be) {
		Error(c, http.StatusBadGateway, "backend_unavailable", "could not reach the account service", nil)
		return
	}
	status := be.Status
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	code := "backend_error"
	if backend.IsUnauthorized(err) {
		code = "unauthorized"
	}
	if backend.FriendlyMessage(be.Code) != be.Code {
		code = be.Code
	}
	Error(c, status, code, be.Message, nil)
}

// SetCookies relays backend Set-Cookie headers to the browser.
func SetCookies(c *gin.Context, cookies []string) {
	for _, v := range cookies {
		c.Writer.Header().Add("Set-Cookie", v)
	}
}
