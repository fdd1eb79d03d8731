package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// exposedHeaders are the response headers browser clients may read.
var exposedHeaders = []string{"X-Request-ID", "ETag", HeaderIdempotencyReplayed}

// photoCSP is sent with uploaded photos so a crafted upload cannot run
// script when opened directly.
const photoCSP = "default-src 'none'; img-src 'self'; sandbox"

// SecurityOptions configures SecurityHeaders.
//
// HSTS is only ever sent on HTTPS requests (direct TLS or X-Forwarded-Proto);
// HSTSMaxAge defaults to 180 days. Paths under CacheablePrefixes hold
// write-once repair photos and are cached publicly for CacheMaxAge (default
// 30 days); every other response gets no-store when NoStore is set.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool // Permissions-Policy and X-Permitted-Cross-Domain-Policies

	CacheablePrefixes []string
	CacheMaxAge       time.Duration
}

// SecurityHeaders sets hardening headers on every response: nosniff, frame
// denial and no-referrer always, the rest per opt.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	hsts := "max-age=" + strconv.Itoa(secondsOr(opt.HSTSMaxAge, 180*24*time.Hour)) + "; includeSubDomains; preload"
	photoCache := "public, max-age=" + strconv.Itoa(secondsOr(opt.CacheMaxAge, 30*24*time.Hour)) + ", immutable"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		switch {
		case hasAnyPrefix(c.Request.URL.Path, opt.CacheablePrefixes):
			h.Set("Cache-Control", photoCache)
			h.Set("Content-Security-Policy", photoCSP)
		case opt.NoStore:
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		// CORS may already have exposed some of these.
		h.Set("Access-Control-Expose-Headers", appendTokens(h.Get("Access-Control-Expose-Headers"), exposedHeaders))

		c.Next()
	}
}

// appendTokens adds each name missing from the comma-separated list cur.
func appendTokens(cur string, names []string) string {
	for _, name := range names {
		if strings.Contains(cur, name) {
			continue
		}
		if cur != "" {
			cur += ", "
		}
		cur += name
	}
	return cur
}

func secondsOr(d, def time.Duration) int {
	if d <= 0 {
		d = def
	}
	return int(d.Seconds())
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
