// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, authentication, role gates,
// idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Roles come from the database, never from the token
package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/leaktrack-backend/docs" // registers the OpenAPI document
	"github.com/tbourn/leaktrack-backend/internal/auth"
	"github.com/tbourn/leaktrack-backend/internal/config"
	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/http/handlers"
	"github.com/tbourn/leaktrack-backend/internal/http/middleware"
	"github.com/tbourn/leaktrack-backend/internal/observability"
	"github.com/tbourn/leaktrack-backend/internal/report"
	"github.com/tbourn/leaktrack-backend/internal/services"
	"github.com/tbourn/leaktrack-backend/internal/storage"
)

// Deps are the long-lived collaborators the router needs beyond the config.
type Deps struct {
	DB     *gorm.DB
	Photos storage.PhotoStore // nil disables photo uploads (repairs are kept, with a warning)

	// Idempotency is shared with the background purge loop; nil builds one
	// from DB and the configured TTL.
	Idempotency *services.IdempotencyService
}

// corsAllowHeaders are the request headers browsers may send cross-origin.
var corsAllowHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
	middleware.HeaderUserID, middleware.HeaderUserName, middleware.HeaderIdempotencyKey,
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), compression, CORS
// and security headers, health, metrics, docs and photo endpoints, and then
// mounts the versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip, CORS and Security headers
//
// Inside the API group:
//  8. Authenticate: bearer token (or X-User-ID in dev mode)
//  9. Idempotency validator (needs the caller; before rate limiting so replays bypass it)
//  10. Rate limiter (per user/IP, bypass on replay)
//  11. RequireRole per route group
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	db := deps.DB

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(observability.ServiceName(cfg.OTEL)))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body size limit; photo uploads get the photo cap on top
	r.Use(limitBody(cfg.MaxBodyBytes, cfg.MaxBodyBytes+cfg.Photos.MaxBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics(middleware.MetricsOptions{SkipPaths: []string{"/metrics", "/health"}}))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compression (images are already compressed and skipped by extension)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     corsAllowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Content-Disposition", "ETag", middleware.HeaderIdempotencyReplayed},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     corsAllowHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "Content-Disposition", "ETag", middleware.HeaderIdempotencyReplayed},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	photoPath := localPhotoPath(cfg.Photos)
	sec := middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}
	if photoPath != "" {
		sec.CacheablePrefixes = []string{photoPath + "/"}
	}
	r.Use(middleware.SecurityHeaders(sec))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if photoPath != "" {
		r.Static(photoPath, cfg.Photos.Dir)
	}

	// Dependency injection: services ← repo/db/store
	roles := services.NewRoleResolver(db, cfg.Auth.RoleCacheTTL)
	idem := deps.Idempotency
	if idem == nil {
		idem = &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}
	}

	// A nil *auth.Verifier must not reach the interfaces below as a typed nil.
	var (
		verifier middleware.TokenVerifier
		revoker  handlers.TokenRevoker
	)
	if !cfg.Auth.DevMode() {
		v := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
		verifier, revoker = v, v
	}

	h := handlers.New(handlers.Services{
		Sessions: &services.SessionService{DB: db, Roles: roles},
		Catalog:  services.NewCatalogService(db, cfg.CatalogCacheTTL),
		Inspections: &services.InspectionService{
			DB:             db,
			DelayThreshold: cfg.Report.DelayThreshold,
		},
		Repairs: &services.RepairService{
			DB:            db,
			Photos:        deps.Photos,
			MaxPhotoBytes: cfg.Photos.MaxBytes,
		},
		Overview:    NewOverviewService(db, cfg.Report),
		Users:       &services.UserService{DB: db, Roles: roles},
		Idempotency: idem,
		Revoker:     revoker,
		Location:    cfg.Report.Location,
		QueueLimit:  cfg.Report.QueueLimit,
	})

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	// Versioned API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.Authenticate(verifier),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, idem.Exists),
		rl.Handler(),
	)
	{
		// Session and role selection
		api.GET("/session", h.GetSession)
		api.PUT("/session/role", h.SelectRole)
		api.DELETE("/session", h.SignOut)

		// Catalog and machines (any signed-in user)
		api.GET("/product-lines", h.ListProductLines)
		api.GET("/product-lines/:id/models", h.ListModels)
		api.GET("/product-lines/:id/leakage-types", h.ListLeakageTypes)
		api.GET("/machines/lookup", h.LookupMachine)
		api.GET("/inspections/:id", h.GetInspection)
	}

	tester := api.Group("", middleware.RequireRole(roles, domain.RoleTester))
	{
		tester.POST("/inspections", h.CreateInspection)
		tester.GET("/inspections", h.ListInspections)
	}

	repairman := api.Group("", middleware.RequireRole(roles, domain.RoleRepairman))
	{
		repairman.GET("/repairs/queue", h.RepairQueue)
		repairman.POST("/inspections/:id/repairs", h.CreateRepair)
		repairman.GET("/repairs", h.ListRepairs)
	}

	// No roles listed: admins only.
	admin := api.Group("/admin", middleware.RequireRole(roles))
	{
		admin.GET("/overview", h.Overview)
		admin.GET("/export.csv", h.ExportCSV)
		admin.GET("/users", h.ListUsers)
		admin.PUT("/users/:id/role", h.AssignRole)
		admin.POST("/product-lines", h.CreateProductLine)
		admin.POST("/models", h.CreateModel)
		admin.POST("/leakage-types", h.CreateLeakageType)
	}
}

// NewOverviewService builds the dashboard/export service from the report
// settings. The CLI uses it too.
func NewOverviewService(db *gorm.DB, rc config.ReportConfig) *services.OverviewService {
	return &services.OverviewService{
		DB: db,
		Options: report.Options{
			Location:       rc.Location,
			Week:           rc.WeekWindow,
			DelayThreshold: rc.DelayThreshold,
			TopN:           rc.TopN,
		},
		FetchLimit:  rc.FetchLimit,
		RecentLimit: rc.Recent,
	}
}

// localPhotoPath is the URL path the local photo directory is served under,
// or "" when photos live elsewhere.
func localPhotoPath(pc config.PhotoConfig) string {
	if pc.Store != config.PhotoStoreLocal || pc.Dir == "" {
		return ""
	}
	p := pc.PublicBaseURL
	if u, err := url.Parse(p); err == nil && u.Host != "" {
		p = u.Path
	}
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return ""
	}
	return p
}

// limitBody returns a Gin middleware that caps the request body size to
// maxBytes using http.MaxBytesReader, or to multipartMax for multipart
// uploads. Requests exceeding the cap will cause downstream body reads to
// error. A cap <= 0 leaves the body alone.
func limitBody(maxBytes, multipartMax int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := maxBytes
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			limit = multipartMax
		}
		if limit > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
