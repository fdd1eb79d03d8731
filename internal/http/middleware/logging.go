// Package middleware contains the Gin middleware of the leakage tracker API:
// request correlation, access logging, panic recovery, authentication and
// role gates, idempotency keys, rate limiting, metrics and security headers.
//
// This file provides RequestID, Logger and Recovery plus the access-log
// plumbing shared with RedactingLogger. Every request gets a logger carrying
// its request id; it is stored under the "logger" Gin key and on the request
// context, so services reach it through zerolog's log.Ctx(ctx).
//
// Recommended order: RequestID, Logger (or RedactingLogger), Recovery.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key under which the request ID is stored.
	requestIDKey = "requestID"
	// requestIDHeader is the HTTP header used to propagate the correlation ID.
	requestIDHeader = "X-Request-ID"
	// ctxKeyLogger is the Gin context key of the request-scoped logger.
	ctxKeyLogger = "logger"
	// maxQueryLogLength caps the number of bytes of the raw query string logged.
	maxQueryLogLength = 2048
	// maxRequestIDLength bounds client-supplied correlation IDs.
	maxRequestIDLength = 128
)

// requestIDRE is what a client-supplied X-Request-ID may contain; anything
// else is replaced so IDs stay safe to echo into headers and logs.
var requestIDRE = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

// RequestID reuses a well-formed incoming X-Request-ID or generates a UUIDv4.
// The ID is echoed in the response header and stored under "requestID".
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if len(rid) > maxRequestIDLength || !requestIDRE.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one structured access log line per request. Conditional GETs
// answered with 304 are logged at debug so polling clients (inspection lists,
// repair history) do not flood the log.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		l := log.With().
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Logger()
		attachLogger(c, l)

		c.Next()

		ev := accessEvent(c, l, start)
		ev.Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			// ContentLength can be -1 if unknown.
			Int64("bytes_in", c.Request.ContentLength).
			Msg("request")
	}
}

// accessEvent starts the access-log event for a finished request: level by
// outcome plus caller, status, latency and size fields. The caller adds its
// own fields and sends it.
func accessEvent(c *gin.Context, l zerolog.Logger, start time.Time) *zerolog.Event {
	status := c.Writer.Status()

	var ev *zerolog.Event
	switch {
	case len(c.Errors) > 0 || status >= 500:
		ev = l.Error()
	case status >= 400:
		ev = l.Warn()
	case status == http.StatusNotModified:
		ev = l.Debug()
	default:
		ev = l.Info()
	}

	ev.Str("user_id", c.GetString(ctxKeyUserID)).
		Str("role", RoleFrom(c)).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Int("bytes_out", c.Writer.Size())
	if id := c.Param("id"); id != "" {
		ev.Str("resource_id", id)
	}
	if IsReplay(c) {
		ev.Bool("replay", true)
	}
	if len(c.Errors) > 0 {
		ev.Str("errors", c.Errors.String())
	}
	return ev
}

// Recovery turns a panic into a logged stack trace and, when nothing was
// written yet, a JSON 500 in the API's error shape.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid := c.GetString(requestIDKey)
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", rid).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header(requestIDHeader, rid)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": rid,
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or the global logger when
// none was attached. The result is never nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(ctxKeyLogger); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// attachLogger stores l in the Gin context and on the request context.
func attachLogger(c *gin.Context, l zerolog.Logger) {
	c.Set(ctxKeyLogger, &l)
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

// routePath is the matched route pattern, or the raw path for unmatched
// requests.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

// truncate caps s at limit bytes and appends an ellipsis. A limit <= 0
// disables truncation.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
