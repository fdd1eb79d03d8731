// Repair HTTP handlers.
//
//   - POST /inspections/{id}/repairs   (record a repair; JSON or multipart with a photo)
//   - GET  /repairs                    (the caller's repair history, ETag support)
//
// A repair completes its inspection. Photo uploads are best effort: when the
// photo store fails the repair is still stored and the response carries
// photo_warning.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/services"
)

// CreateRepairRequest is the JSON form of a repair submission. Multipart
// submissions use the same field names plus a "photo" file part.
type CreateRepairRequest struct {
	RepairStatus string     `json:"repair_status" form:"repair_status" enums:"Repairable,Not Repairable" example:"Repairable"`
	Notes        string     `json:"notes"         form:"notes"         example:"replaced hose clamp"`
	StartedAt    *time.Time `json:"started_at,omitempty"   form:"started_at"   time_format:"2006-01-02T15:04:05Z07:00"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" form:"completed_at" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ListRepairsResponse wraps a page of repairs and pagination information.
type ListRepairsResponse struct {
	Repairs    []domain.RepairRecord `json:"repairs"`
	Pagination Pagination            `json:"pagination"`
}

// CreateRepair godoc
// @ID          createRepair
// @Summary     Record a repair
// @Description Stores the repair and marks the inspection Completed. Accepts JSON, or multipart/form-data with an optional image in the "photo" part. Returns 409 when the inspection is already completed. A repeated Idempotency-Key returns the original repair with Idempotency-Replayed: true.
// @Tags        Repairs
// @Accept      json,mpfd
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header    string  false  "Key for safe retries"
// @Param       id               path      string  true   "Inspection ID"  format(uuid)
// @Param       body             body      handlers.CreateRepairRequest  false  "Repair (JSON)"
// @Param       photo            formData  file    false  "Repair photo (image/*)"
// @Success     201  {object}  services.RepairResult
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed or invalid photo"
// @Failure     403  {object}  handlers.ErrorResponse  "Wrong role"
// @Failure     404  {object}  handlers.ErrorResponse  "Inspection not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Inspection already completed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /inspections/{id}/repairs [post]
func (h *Handlers) CreateRepair(c *gin.Context) {
	ctx := c.Request.Context()

	if id, status, found := h.replayed(c); found {
		rec, err := h.repairs.Get(ctx, id)
		if err != nil {
			failService(c, err, ErrCodeInternal)
			return
		}
		markReplayed(c)
		ok(c, status, services.RepairResult{Repair: rec})
		return
	}

	req, photo, err := bindRepair(c)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	var r io.Reader
	if photo != nil {
		defer photo.Close()
		r = photo
	}
	res, err := h.repairs.Submit(ctx, userID(c), userName(c), c.Param("id"), services.RepairInput{
		RepairStatus: req.RepairStatus,
		Notes:        req.Notes,
		StartedAt:    nonZero(req.StartedAt),
		CompletedAt:  nonZero(req.CompletedAt),
	}, r)
	if err != nil {
		failService(c, err, ErrCodeCreateFailed)
		return
	}
	h.remember(c, res.Repair.ID, http.StatusCreated)
	ok(c, http.StatusCreated, res)
}

// bindRepair reads the submission from JSON or multipart form data. The
// returned file is nil when no photo was attached.
func bindRepair(c *gin.Context) (CreateRepairRequest, multipart.File, error) {
	var req CreateRepairRequest
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, nil, fmt.Errorf("invalid JSON body")
		}
		return req, nil, nil
	}

	if err := c.ShouldBind(&req); err != nil {
		return req, nil, fmt.Errorf("invalid form: %v", err)
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return req, nil, nil
		}
		return req, nil, fmt.Errorf("invalid photo part")
	}
	f, err := fh.Open()
	if err != nil {
		return req, nil, fmt.Errorf("unreadable photo part")
	}
	return req, f, nil
}

// nonZero drops the zero time a blank form field binds to.
func nonZero(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	return t
}

// ListRepairs godoc
// @ID          listRepairs
// @Summary     Repair history (paginated)
// @Description Returns the caller's repairs, newest first, with their inspections. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Repairs
// @Produce     json
// @Security    BearerAuth
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListRepairsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /repairs [get]
func (h *Handlers) ListRepairs(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	if count, maxTS, err := h.repairs.Stats(ctx, uid); err == nil {
		if notModified(c, etagFor("repairs", fmt.Sprintf("%s:%d:%d", uid, page, pageSize), count, maxTS)) {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.repairs.ListMine(ctx, uid, page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListRepairsResponse{
		Repairs:    items,
		Pagination: newPagination(page, pageSize, total),
	})
}
