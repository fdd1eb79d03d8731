// Session HTTP handlers.
//
// These back the sign-in flow of the client:
//   - GET    /session        (who am I, assigned role, last picked role)
//   - PUT    /session/role   (role selection screen)
//   - DELETE /session        (sign-out)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leaktrack-backend/internal/http/middleware"
)

// SelectRoleRequest is the JSON payload of the role selection screen.
type SelectRoleRequest struct {
	Role string `json:"role" binding:"required" example:"tester"`
}

// GetSession godoc
// @ID          getSession
// @Summary     Current session
// @Description Returns the caller's profile, the role an admin assigned and the role last selected. needs_role is true when no role is assigned yet.
// @Tags        Session
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  services.SessionView
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /session [get]
func (h *Handlers) GetSession(c *gin.Context) {
	v, err := h.sessions.Get(c.Request.Context(), userID(c), userName(c))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, v)
}

// SelectRole godoc
// @ID          selectRole
// @Summary     Select active role
// @Description Records the role picked on the role selection screen. The caller must hold the role; admins may pick any role.
// @Tags        Session
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.SelectRoleRequest  true  "Role to activate"
// @Success     200  {object}  domain.Session
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown role"
// @Failure     403  {object}  handlers.ErrorResponse  "Role not held or not assigned"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /session/role [put]
func (h *Handlers) SelectRole(c *gin.Context) {
	var req SelectRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role is required")
		return
	}
	sess, err := h.sessions.SelectRole(c.Request.Context(), userID(c), strings.TrimSpace(req.Role))
	if err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, sess)
}

// SignOut godoc
// @ID          signOut
// @Summary     Sign out
// @Description Clears the selected role and revokes the bearer token until it expires.
// @Tags        Session
// @Security    BearerAuth
// @Success     204  {string}  string  "No Content"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /session [delete]
func (h *Handlers) SignOut(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context(), userID(c)); err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	if h.revoker != nil {
		if id, found := middleware.IdentityFrom(c); found {
			h.revoker.Revoke(id)
		}
	}
	noContent(c)
}
