// Admin HTTP handlers.
//
//   - GET /admin/overview          (dashboard summary + recent inspections)
//   - GET /admin/export.csv        (CSV download of inspections)
//   - GET /admin/users             (profiles with their roles)
//   - PUT /admin/users/{id}/role   (assign a role)
package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leaktrack-backend/internal/http/middleware"
	"github.com/tbourn/leaktrack-backend/internal/repo"
)

// AssignRoleRequest is the payload for assigning a role to a user.
type AssignRoleRequest struct {
	Role string `json:"role" binding:"required" enums:"admin,tester,repairman" example:"repairman"`
	// FullName seeds the profile of a user who has never signed in.
	FullName string `json:"full_name,omitempty" example:"Eleni K."`
}

// UsersResponse wraps the user list.
type UsersResponse struct {
	Users []repo.UserRow `json:"users"`
}

// Overview godoc
// @ID          adminOverview
// @Summary     Admin dashboard
// @Description Status counts, leakage-free counts for today/this week/this month, delayed count and top leakage types over the inspections in range, plus the newest inspections. truncated is set when the range held more inspections than one overview reads.
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Param       from  query  string  false  "RFC3339 or YYYY-MM-DD (inclusive)"
// @Param       to    query  string  false  "RFC3339 (exclusive) or YYYY-MM-DD (inclusive day)"
// @Success     200  {object}  services.Overview
// @Failure     400  {object}  handlers.ErrorResponse  "Bad range"
// @Failure     403  {object}  handlers.ErrorResponse  "Admins only"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/overview [get]
func (h *Handlers) Overview(c *gin.Context) {
	from, to, err := h.parseRange(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	ov, err := h.overview.Overview(c.Request.Context(), from, to)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ov)
}

// ExportCSV godoc
// @ID          adminExportCSV
// @Summary     Export inspections as CSV
// @Description Columns: chassis no, product line, model, leakage, severity, status, tester, timestamp. Newest first.
// @Tags        Admin
// @Produce     text/csv
// @Security    BearerAuth
// @Param       from  query  string  false  "RFC3339 or YYYY-MM-DD (inclusive)"
// @Param       to    query  string  false  "RFC3339 (exclusive) or YYYY-MM-DD (inclusive day)"
// @Success     200  {string}  string  "CSV file"
// @Header      200  {string}  Content-Disposition  "attachment; filename=..."
// @Failure     400  {object}  handlers.ErrorResponse  "Bad range"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/export.csv [get]
func (h *Handlers) ExportCSV(c *gin.Context) {
	from, to, err := h.parseRange(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	// Buffer so a mid-export failure still produces a JSON error.
	var buf bytes.Buffer
	n, err := h.overview.Export(c.Request.Context(), &buf, from, to)
	if err != nil {
		failService(c, err, ErrCodeExportFailed)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(time.Now().In(h.loc))))
	c.Header("X-Export-Rows", strconv.Itoa(n))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func exportFilename(now time.Time) string {
	return "inspections-" + now.Format("2006-01-02") + ".csv"
}

// ListUsers godoc
// @ID          adminListUsers
// @Summary     List users with roles
// @Tags        Admin
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.UsersResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/users [get]
func (h *Handlers) ListUsers(c *gin.Context) {
	rows, err := h.users.List(c.Request.Context())
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, UsersResponse{Users: rows})
}

// AssignRole godoc
// @ID          adminAssignRole
// @Summary     Assign a role
// @Description Grants a role to a user, replacing the previous one. A profile is created for users who have not signed in yet.
// @Tags        Admin
// @Accept      json
// @Security    BearerAuth
// @Param       id    path  string  true  "User ID"
// @Param       body  body  handlers.AssignRoleRequest  true  "Role"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown role"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /admin/users/{id}/role [put]
func (h *Handlers) AssignRole(c *gin.Context) {
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role is required")
		return
	}
	uid := strings.TrimSpace(c.Param("id"))
	if err := h.users.SetRole(c.Request.Context(), uid, req.FullName, strings.TrimSpace(req.Role)); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	middleware.LoggerFrom(c).Info().
		Str("target_user_id", uid).
		Str("role", req.Role).
		Msg("role assigned")
	noContent(c)
}
