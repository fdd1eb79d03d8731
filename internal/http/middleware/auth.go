// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file authenticates API callers and gates routes by role:
//
//   - Authenticate verifies the bearer token (or, in development mode, trusts
//     the X-User-ID header) and stores the caller in the Gin context under
//     "userID", "userName" and "identity".
//   - RequireRole looks the caller's role up in the role table and admits
//     only the listed roles. Admins pass every gate. Callers without a role
//     get 403 with code "role_unassigned" so the client can show the
//     "ask an admin" notice.
//
// Roles are never read from the token.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/leaktrack-backend/internal/auth"
	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/services"
)

const (
	ctxKeyUserID   = "userID"
	ctxKeyUserName = "userName"
	ctxKeyIdentity = "identity"
	ctxKeyRole     = "role"

	// HeaderUserID carries the caller id in development mode.
	HeaderUserID = "X-User-ID"
	// HeaderUserName optionally carries the caller's display name in
	// development mode.
	HeaderUserName = "X-User-Name"
)

var authFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_auth_failures_total",
		Help: "Requests rejected by authentication or role checks.",
	},
	[]string{"reason"},
)

func init() {
	prometheus.MustRegister(authFailures)
}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// RoleSource resolves the role assigned to a user.
type RoleSource interface {
	Role(ctx context.Context, userID string) (string, error)
}

// Authenticate resolves the caller. With a nil verifier it runs in
// development mode and trusts X-User-ID; otherwise a valid
// "Authorization: Bearer <jwt>" is required.
func Authenticate(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
			if uid == "" {
				deny(c, http.StatusUnauthorized, "missing_user", "unauthorized", "X-User-ID header required")
				return
			}
			setIdentity(c, auth.Identity{UserID: uid, Name: strings.TrimSpace(c.GetHeader(HeaderUserName))})
			c.Next()
			return
		}

		tok, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			deny(c, http.StatusUnauthorized, "missing_token", "unauthorized", "bearer token required")
			return
		}
		id, err := v.Verify(tok)
		if err != nil {
			reason := "invalid_token"
			if errors.Is(err, auth.ErrRevokedToken) {
				reason = "revoked_token"
			}
			deny(c, http.StatusUnauthorized, reason, "unauthorized", "invalid or expired token")
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

func setIdentity(c *gin.Context, id auth.Identity) {
	c.Set(ctxKeyUserID, id.UserID)
	c.Set(ctxKeyUserName, id.Name)
	c.Set(ctxKeyIdentity, id)
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// RoleFrom returns the role stored by RequireRole, or "" on ungated routes.
func RoleFrom(c *gin.Context) string {
	return c.GetString(ctxKeyRole)
}

// RequireRole admits callers holding one of roles. Admins are always
// admitted. It must run after Authenticate.
func RequireRole(src RoleSource, roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles)+1)
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	allowed[domain.RoleAdmin] = struct{}{}

	return func(c *gin.Context) {
		role, err := src.Role(c.Request.Context(), c.GetString(ctxKeyUserID))
		switch {
		case errors.Is(err, services.ErrRoleUnassigned):
			deny(c, http.StatusForbidden, "role_unassigned", "role_unassigned", err.Error())
			return
		case err != nil:
			LoggerFrom(c).Error().Err(err).Msg("role lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "internal_error",
				"message":    "could not resolve role",
			})
			return
		}
		if _, ok := allowed[role]; !ok {
			deny(c, http.StatusForbidden, "wrong_role", "forbidden", "your role cannot access this resource")
			return
		}
		c.Set(ctxKeyRole, role)
		c.Next()
	}
}

func deny(c *gin.Context, status int, reason, code, msg string) {
	authFailures.WithLabelValues(reason).Inc()
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}
