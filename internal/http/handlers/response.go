package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/leaktrack-backend/internal/http/middleware"
)

// ErrorResponse is the error body of every endpoint, middleware included.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Code is stable and machine-readable; see errors.go.
	Code string `json:"code" example:"not_found"`
	// Message is safe to show to a tester or admin.
	Message string `json:"message" example:"inspection not found"`
}

func fail(c *gin.Context, status int, code, msg string) { failErr(c, status, code, msg, nil) }

// failErr aborts with an ErrorResponse. Server errors are logged with err at
// error level; client errors at debug, so rejected scans can be traced
// without noise.
func failErr(c *gin.Context, status int, code, msg string, err error) {
	var ev *zerolog.Event
	if status >= http.StatusInternalServerError {
		ev = middleware.LoggerFrom(c).Error()
	} else {
		ev = middleware.LoggerFrom(c).Debug()
	}
	ev.Err(err).Int("status", status).Str("code", code).Msg(msg)

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is used by the router's NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
