package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/leaktrack-backend/internal/auth"
	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/http/middleware"
	"github.com/tbourn/leaktrack-backend/internal/repo"
	"github.com/tbourn/leaktrack-backend/internal/services"
	"github.com/tbourn/leaktrack-backend/internal/storage"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type failingStore struct{}

func (failingStore) Put(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("sftp: connection refused")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("sftp: connection refused")
}

type recordingRevoker struct{ revoked []auth.Identity }

func (r *recordingRevoker) Revoke(id auth.Identity) { r.revoked = append(r.revoked, id) }

type testEnv struct {
	db      *gorm.DB
	r       *gin.Engine
	repairs *services.RepairService
	revoker *recordingRevoker

	lineID, modelID, leakID, otherLineID string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	return db
}

// newEnv wires real services over an in-memory database behind the dev-mode
// authenticator, role gates and idempotency validator, mirroring the router.
func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	ctx := context.Background()

	pl, err := repo.CreateProductLine(ctx, db, "EXC", "Excavators")
	if err != nil {
		t.Fatalf("CreateProductLine: %v", err)
	}
	m, err := repo.CreateModel(ctx, db, pl.ID, "EX200", "EX 200")
	if err != nil {
		t.Fatalf("CreateModel: %v", err)
	}
	lt, err := repo.CreateLeakageType(ctx, db, pl.ID, "HYD", "Hydraulic")
	if err != nil {
		t.Fatalf("CreateLeakageType: %v", err)
	}
	other, err := repo.CreateProductLine(ctx, db, "WHL", "Wheel loaders")
	if err != nil {
		t.Fatalf("CreateProductLine: %v", err)
	}

	photos, err := storage.NewLocalStore(t.TempDir(), "http://test/photos")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	roles := services.NewRoleResolver(db, 0)
	idem := &services.IdempotencyService{DB: db}
	env := &testEnv{
		db:          db,
		repairs:     &services.RepairService{DB: db, Photos: photos},
		revoker:     &recordingRevoker{},
		lineID:      pl.ID,
		modelID:     m.ID,
		leakID:      lt.ID,
		otherLineID: other.ID,
	}
	h := New(Services{
		Sessions:    &services.SessionService{DB: db, Roles: roles},
		Catalog:     services.NewCatalogService(db, 0),
		Inspections: &services.InspectionService{DB: db},
		Repairs:     env.repairs,
		Overview:    &services.OverviewService{DB: db, RecentLimit: 5},
		Users:       &services.UserService{DB: db, Roles: roles},
		Idempotency: idem,
		Revoker:     env.revoker,
	})

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1", middleware.Authenticate(nil), middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, idem.Exists))
	api.GET("/session", h.GetSession)
	api.PUT("/session/role", h.SelectRole)
	api.DELETE("/session", h.SignOut)
	api.GET("/product-lines", h.ListProductLines)
	api.GET("/product-lines/:id/models", h.ListModels)
	api.GET("/product-lines/:id/leakage-types", h.ListLeakageTypes)
	api.GET("/machines/lookup", h.LookupMachine)
	api.GET("/inspections/:id", h.GetInspection)

	tester := api.Group("", middleware.RequireRole(roles, domain.RoleTester))
	tester.POST("/inspections", h.CreateInspection)
	tester.GET("/inspections", h.ListInspections)

	repairman := api.Group("", middleware.RequireRole(roles, domain.RoleRepairman))
	repairman.GET("/repairs/queue", h.RepairQueue)
	repairman.POST("/inspections/:id/repairs", h.CreateRepair)
	repairman.GET("/repairs", h.ListRepairs)

	admin := api.Group("/admin", middleware.RequireRole(roles))
	admin.GET("/overview", h.Overview)
	admin.GET("/export.csv", h.ExportCSV)
	admin.GET("/users", h.ListUsers)
	admin.PUT("/users/:id/role", h.AssignRole)
	admin.POST("/product-lines", h.CreateProductLine)
	admin.POST("/models", h.CreateModel)
	admin.POST("/leakage-types", h.CreateLeakageType)

	env.r = r
	return env
}

// grant assigns role to uid directly in the database.
func (e *testEnv) grant(t *testing.T, uid, role string) {
	t.Helper()
	ctx := context.Background()
	if _, err := repo.EnsureProfile(ctx, e.db, uid, uid); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if err := repo.SetRole(ctx, e.db, uid, role); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
}

type call struct {
	method, path, user string
	body               any // marshalled as JSON unless []byte
	contentType        string
	headers            map[string]string
}

func (e *testEnv) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := c.body.(type) {
	case nil:
	case []byte:
		rdr = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
		if c.contentType == "" {
			c.contentType = "application/json"
		}
	}
	req := httptest.NewRequest(c.method, c.path, rdr)
	if c.contentType != "" {
		req.Header.Set("Content-Type", c.contentType)
	}
	if c.user != "" {
		req.Header.Set(middleware.HeaderUserID, c.user)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d; want %d; body=%s", w.Code, want, w.Body.String())
	}
}

func expectCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, w, status)
	if er := decode[ErrorResponse](t, w); er.Code != code {
		t.Fatalf("code = %q; want %q", er.Code, code)
	}
}

// submitInspection posts an inspection as uid and returns its id.
func (e *testEnv) submitInspection(t *testing.T, uid, chassis, severity string) string {
	t.Helper()
	body := CreateInspectionRequest{ChassisNumber: chassis, ModelID: e.modelID, Severity: severity}
	if severity != domain.SeverityNone {
		body.LeakageTypeID = &e.leakID
	}
	w := e.do(t, call{method: http.MethodPost, path: "/api/v1/inspections", user: uid, body: body})
	expectStatus(t, w, http.StatusCreated)
	return decode[services.InspectionView](t, w).ID
}

// backdate moves an inspection's created_at without touching updated_at,
// the way the passage of time would.
func (e *testEnv) backdate(t *testing.T, id string, at time.Time) {
	t.Helper()
	if err := e.db.Model(&domain.InspectionRecord{}).Where("id = ?", id).UpdateColumn("created_at", at).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
}

// setStatus overwrites an inspection's stored status, for rows written as
// Delayed by older clients.
func (e *testEnv) setStatus(t *testing.T, id, status string) {
	t.Helper()
	if err := e.db.Model(&domain.InspectionRecord{}).Where("id = ?", id).UpdateColumn("status", status).Error; err != nil {
		t.Fatalf("setStatus: %v", err)
	}
}
