package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leaktrack-backend/internal/services"
)

// Error codes returned in ErrorResponse.Code. Clients branch on these, never
// on messages. The generic ones mirror their HTTP status; the rest name the
// operation that failed or a state the client must react to.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized" // written by middleware.Authenticate
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests" // written by middleware.RateLimiter
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// ErrCodeRoleUnassigned tells the client to show the "ask an admin to
	// assign you a role" notice instead of the role buttons.
	ErrCodeRoleUnassigned = "role_unassigned"

	ErrCodeCreateFailed = "create_failed"
	ErrCodeUpdateFailed = "update_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeExportFailed = "export_failed"
)

// serviceErrors maps service errors to a status and code. The first match
// wins; errors.Is sees through wrapping.
var serviceErrors = []struct {
	target error
	status int
	code   string
}{
	{services.ErrInspectionNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrRepairNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrMachineNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrCatalogNotFound, http.StatusNotFound, ErrCodeNotFound},

	{services.ErrInvalidSeverity, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidStatus, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidRepairStatus, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidRole, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidInput, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidPhoto, http.StatusBadRequest, ErrCodeBadRequest},

	{services.ErrAlreadyCompleted, http.StatusConflict, ErrCodeConflict},
	{services.ErrDuplicateCode, http.StatusConflict, ErrCodeConflict},

	{services.ErrRoleUnassigned, http.StatusForbidden, ErrCodeRoleUnassigned},
	{services.ErrRoleMismatch, http.StatusForbidden, ErrCodeForbidden},
}

// failService writes the response for a service error. Unmapped errors
// become a 500 carrying fallbackCode and a generic message; the cause is
// only logged.
func failService(c *gin.Context, err error, fallbackCode string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			fail(c, m.status, m.code, err.Error())
			return
		}
	}
	failErr(c, http.StatusInternalServerError, fallbackCode, "could not complete the request", err)
}
