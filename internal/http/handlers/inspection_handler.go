// Inspection HTTP handlers.
//
// This file exposes the tester side and the repair queue:
//   - POST /inspections          (submit; Idempotency-Key aware)
//   - GET  /inspections          (history, paginated, ETag support)
//   - GET  /inspections/{id}     (detail)
//   - GET  /repairs/queue        (work list of the repairman)
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/http/middleware"
	"github.com/tbourn/leaktrack-backend/internal/services"
)

// CreateInspectionRequest is the JSON payload of the inspection form.
type CreateInspectionRequest struct {
	ChassisNumber string  `json:"chassis_number" binding:"required" example:"EX200-0042"`
	ModelID       string  `json:"model_id"       binding:"required" format:"uuid"`
	LeakageTypeID *string `json:"leakage_type_id,omitempty" format:"uuid"`
	Severity      string  `json:"severity"       binding:"required" enums:"None,Low,Medium,High" example:"Medium"`
	Remarks       string  `json:"remarks"        example:"oil seep at boom cylinder"`
}

// ListInspectionsResponse wraps a page of inspections and pagination
// information.
type ListInspectionsResponse struct {
	Inspections []services.InspectionView `json:"inspections"`
	Pagination  Pagination                `json:"pagination"`
}

// QueueResponse is the repair work list.
type QueueResponse struct {
	Inspections []services.InspectionView `json:"inspections"`
}

// CreateInspection godoc
// @ID          createInspection
// @Summary     Submit an inspection
// @Description Records a test result. The machine is registered on first use of a chassis number for the model. Leakage-free inspections (severity None) are stored as Completed; all others start Pending. A repeated Idempotency-Key returns the original inspection with Idempotency-Replayed: true.
// @Tags        Inspections
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateInspectionRequest  true  "Inspection"
// @Success     201  {object}  services.InspectionView
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     403  {object}  handlers.ErrorResponse  "Wrong role"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown model or leakage type"
// @Failure     429  {object}  handlers.ErrorResponse  "Too many requests"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /inspections [post]
func (h *Handlers) CreateInspection(c *gin.Context) {
	ctx := c.Request.Context()

	if id, status, found := h.replayed(c); found {
		v, err := h.inspections.Get(ctx, id)
		if err != nil {
			failService(c, err, ErrCodeInternal)
			return
		}
		markReplayed(c)
		ok(c, status, v)
		return
	}

	var req CreateInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chassis_number, model_id and severity are required")
		return
	}
	v, err := h.inspections.Submit(ctx, userID(c), userName(c), services.InspectionInput{
		ChassisNumber: req.ChassisNumber,
		ModelID:       req.ModelID,
		LeakageTypeID: req.LeakageTypeID,
		Severity:      req.Severity,
		Remarks:       req.Remarks,
	})
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	h.remember(c, v.ID, http.StatusCreated)
	ok(c, http.StatusCreated, v)
}

// ListInspections godoc
// @ID          listInspections
// @Summary     List inspections (paginated)
// @Description Testers always see their own inspections. Admins see all, optionally narrowed by tester_id or mine=true. status=Delayed selects inspections stored as Delayed or Pending longer than the delay threshold; status=Pending selects only those not yet delayed. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Inspections
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       mine           query   bool    false  "Only the caller's inspections"
// @Param       tester_id      query   string  false  "Admin only: filter by tester"
// @Param       status         query   string  false  "Pending, Completed or Delayed"
// @Param       from           query   string  false  "RFC3339 or YYYY-MM-DD (inclusive)"
// @Param       to             query   string  false  "RFC3339 (exclusive) or YYYY-MM-DD (inclusive day)"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListInspectionsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /inspections [get]
func (h *Handlers) ListInspections(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	from, to, err := h.parseRange(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	q := services.InspectionQuery{
		Status: strings.TrimSpace(c.Query("status")),
		From:   from,
		To:     to,
	}
	mine, _ := strconv.ParseBool(c.Query("mine"))
	switch {
	case middleware.RoleFrom(c) != domain.RoleAdmin || mine:
		q.TesterID = userID(c)
	default:
		q.TesterID = strings.TrimSpace(c.Query("tester_id"))
	}

	// ETag pre-check (best effort).
	// The delayed count is part of the scope: rows turn delayed as time
	// passes, with no write to move the update stamp.
	if st, err := h.inspections.Stats(ctx, q); err == nil {
		scope := fmt.Sprintf("%s:%s:%s:%s:%d:%d:%d", q.TesterID, q.Status, unixOrEmpty(from), unixOrEmpty(to), page, pageSize, st.Delayed)
		if notModified(c, etagFor("inspections", scope, st.Count, st.MaxUpdatedAt)) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.inspections.ListPage(ctx, q, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListInspectionsResponse{
		Inspections: items,
		Pagination:  newPagination(page, pageSize, total),
	})
}

// GetInspection godoc
// @ID          getInspection
// @Summary     Inspection detail
// @Description Returns one inspection with machine, model, product line, leakage type, tester and repairs.
// @Tags        Inspections
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Inspection ID"  format(uuid)
// @Success     200  {object}  services.InspectionView
// @Failure     404  {object}  handlers.ErrorResponse  "Inspection not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /inspections/{id} [get]
func (h *Handlers) GetInspection(c *gin.Context) {
	v, err := h.inspections.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, v)
}

// RepairQueue godoc
// @ID          repairQueue
// @Summary     Repair queue
// @Description Inspections awaiting repair, oldest first. delayed is true for inspections pending longer than the delay threshold.
// @Tags        Repairs
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.QueueResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Wrong role"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /repairs/queue [get]
func (h *Handlers) RepairQueue(c *gin.Context) {
	items, err := h.inspections.Queue(c.Request.Context(), h.queueLimit)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, QueueResponse{Inspections: items})
}

func unixOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}
