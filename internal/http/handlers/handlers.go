// Package handlers exposes the leakage tracker's REST endpoints.
//
// Handlers are transport-thin: they read the caller from the Gin context
// (set by middleware.Authenticate), validate and bind input, call the
// services, and translate results and service errors into JSON responses.
// Everything they need is expressed as the small context-aware interfaces
// below, so tests can swap any of them.
package handlers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/leaktrack-backend/internal/auth"
	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/http/middleware"
	"github.com/tbourn/leaktrack-backend/internal/repo"
	"github.com/tbourn/leaktrack-backend/internal/report"
	"github.com/tbourn/leaktrack-backend/internal/services"
	"github.com/tbourn/leaktrack-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// SessionService backs the role selection screen.
type SessionService interface {
	Get(ctx context.Context, userID, fullName string) (*services.SessionView, error)
	SelectRole(ctx context.Context, userID, role string) (*domain.Session, error)
	SignOut(ctx context.Context, userID string) error
}

// CatalogService serves product lines, models, leakage types and machine
// lookups.
type CatalogService interface {
	ProductLines(ctx context.Context) ([]domain.ProductLine, error)
	Models(ctx context.Context, productLineID string) ([]domain.Model, error)
	LeakageTypes(ctx context.Context, productLineID string) ([]domain.LeakageType, error)
	LookupMachine(ctx context.Context, chassis, modelID string) (*domain.Machine, error)
	CreateProductLine(ctx context.Context, code, name string) (*domain.ProductLine, error)
	CreateModel(ctx context.Context, productLineID, code, name string) (*domain.Model, error)
	CreateLeakageType(ctx context.Context, productLineID, code, name string) (*domain.LeakageType, error)
}

// InspectionService records and lists inspections.
type InspectionService interface {
	Submit(ctx context.Context, testerID, testerName string, in services.InspectionInput) (*services.InspectionView, error)
	Get(ctx context.Context, id string) (*services.InspectionView, error)
	ListPage(ctx context.Context, q services.InspectionQuery, page, pageSize int) ([]services.InspectionView, int64, error)
	Stats(ctx context.Context, q services.InspectionQuery) (services.ListStamp, error)
	Queue(ctx context.Context, limit int) ([]services.InspectionView, error)
}

// RepairService records repairs and lists a repairman's history.
type RepairService interface {
	Submit(ctx context.Context, repairmanID, repairmanName, inspectionID string, in services.RepairInput, photo io.Reader) (*services.RepairResult, error)
	Get(ctx context.Context, id string) (*domain.RepairRecord, error)
	ListMine(ctx context.Context, repairmanID string, page, pageSize int) ([]domain.RepairRecord, int64, error)
	Stats(ctx context.Context, repairmanID string) (int64, *time.Time, error)
}

// OverviewService computes the admin dashboard and CSV export.
type OverviewService interface {
	Overview(ctx context.Context, from, to *time.Time) (*services.Overview, error)
	Export(ctx context.Context, w io.Writer, from, to *time.Time) (int, error)
}

// UserService lists users and assigns roles.
type UserService interface {
	List(ctx context.Context) ([]repo.UserRow, error)
	SetRole(ctx context.Context, userID, fullName, role string) error
}

// IdempotencyStore remembers which resource an Idempotency-Key produced.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID, scope, key string, now time.Time) (resourceID string, status int, found bool, err error)
	Remember(ctx context.Context, userID, scope, key, resourceID string, status int) error
}

// TokenRevoker invalidates the caller's bearer token on sign-out.
type TokenRevoker interface {
	Revoke(id auth.Identity)
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers. Idempotency and Revoker may
// be nil: keys are then ignored and sign-out only clears the session row.
type Services struct {
	Sessions    SessionService
	Catalog     CatalogService
	Inspections InspectionService
	Repairs     RepairService
	Overview    OverviewService
	Users       UserService
	Idempotency IdempotencyStore
	Revoker     TokenRevoker

	// Location is the calendar used for date-only range parameters; nil
	// means UTC.
	Location *time.Location
	// QueueLimit caps the repair queue; <= 0 means 200.
	QueueLimit int
}

// Handlers groups all HTTP endpoints.
type Handlers struct {
	sessions    SessionService
	catalog     CatalogService
	inspections InspectionService
	repairs     RepairService
	overview    OverviewService
	users       UserService
	idem        IdempotencyStore
	revoker     TokenRevoker
	loc         *time.Location
	queueLimit  int
}

// New constructs Handlers bound to the given services.
func New(s Services) *Handlers {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	ql := s.QueueLimit
	if ql <= 0 {
		ql = 200
	}
	return &Handlers{
		sessions:    s.Sessions,
		catalog:     s.Catalog,
		inspections: s.Inspections,
		repairs:     s.Repairs,
		overview:    s.Overview,
		users:       s.Users,
		idem:        s.Idempotency,
		revoker:     s.Revoker,
		loc:         loc,
		queueLimit:  ql,
	}
}

// userID returns the authenticated caller. Routes are mounted behind
// middleware.Authenticate, so it is never empty in production.
func userID(c *gin.Context) string {
	return c.GetString("userID")
}

// userName returns the caller's display name from the token or dev header.
func userName(c *gin.Context) string {
	return c.GetString("userName")
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	tp := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: tp,
		HasNext:    page < tp,
	}
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.ClampInt(c.Query("page"), 1, 1, 1<<20)
	pageSize = utils.ClampInt(c.Query("page_size"), defaultPageSize, 1, maxPageSize)
	return
}

// parseRange reads the optional from/to query parameters in h.loc.
func (h *Handlers) parseRange(c *gin.Context) (from, to *time.Time, err error) {
	return report.ParseRange(c.Query("from"), c.Query("to"), h.loc)
}

// etagFor builds the weak list ETag from a count and the newest update time.
func etagFor(kind, scope string, count int64, maxTS *time.Time) string {
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	return fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, scope, count, ts)
}

// notModified sets the ETag header and reports whether the client copy is
// current.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	return c.GetHeader("If-None-Match") == etag
}

// idempotencyKey returns the validated key and its scope, or "" when the
// request carries none or no store is configured.
func (h *Handlers) idempotencyKey(c *gin.Context) (key, scope string) {
	if h.idem == nil {
		return "", ""
	}
	k, ok := middleware.GetIdempotencyKey(c)
	if !ok {
		return "", ""
	}
	return k, middleware.GetIdempotencyScope(c)
}

// replayed returns the stored resource id when this request repeats an
// earlier successful one.
func (h *Handlers) replayed(c *gin.Context) (resourceID string, status int, ok bool) {
	key, scope := h.idempotencyKey(c)
	if key == "" || !middleware.IsReplay(c) {
		return "", 0, false
	}
	id, st, found, err := h.idem.Lookup(c.Request.Context(), userID(c), scope, key, time.Now().UTC())
	if err != nil || !found {
		return "", 0, false
	}
	return id, st, true
}

// remember stores the created resource under the request's key. Failures
// only cost the replay, so they are logged and dropped.
func (h *Handlers) remember(c *gin.Context, resourceID string, status int) {
	key, scope := h.idempotencyKey(c)
	if key == "" {
		return
	}
	if err := h.idem.Remember(c.Request.Context(), userID(c), scope, key, resourceID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("scope", scope).Msg("idempotency store failed")
	}
}

func markReplayed(c *gin.Context) {
	c.Header(middleware.HeaderIdempotencyReplayed, "true")
}
