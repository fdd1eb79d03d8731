// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the database connection, authentication,
// reporting windows, photo storage, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "leaktrack")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the database.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres|mysql
	Path   string // DB_PATH: sqlite file
	DSN    string // DB_DSN: postgres/mysql connection string
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret    string        // AUTH_JWT_SECRET; empty enables the X-User-ID dev mode
	JWTIssuer    string        // AUTH_JWT_ISSUER; optional
	RoleCacheTTL time.Duration // AUTH_ROLE_CACHE_TTL
}

// DevMode reports whether requests are authenticated by the X-User-ID header
// instead of a bearer token.
func (a AuthConfig) DevMode() bool { return a.JWTSecret == "" }

// ReportConfig tunes the inspection list and the admin overview.
type ReportConfig struct {
	DelayThreshold time.Duration  // DELAY_THRESHOLD
	TimeZone       string         // REPORT_TIMEZONE (IANA name)
	Location       *time.Location // resolved from TimeZone
	WeekWindow     time.Duration  // REPORT_WEEK_WINDOW
	TopN           int            // REPORT_TOP_N
	FetchLimit     int            // OVERVIEW_FETCH_LIMIT
	Recent         int            // OVERVIEW_RECENT
	QueueLimit     int            // REPAIR_QUEUE_LIMIT
}

// SFTPConfig configures the SFTP photo store.
type SFTPConfig struct {
	Host           string        // SFTP_HOST
	Port           int           // SFTP_PORT
	User           string        // SFTP_USER
	Password       string        // SFTP_PASSWORD
	KeyFile        string        // SFTP_KEY_FILE
	KnownHostsFile string        // SFTP_KNOWN_HOSTS
	BasePath       string        // SFTP_BASE_PATH
	PublicBaseURL  string        // SFTP_PUBLIC_BASE_URL
	Timeout        time.Duration // SFTP_TIMEOUT
}

// PhotoConfig selects where repair photos are kept.
type PhotoConfig struct {
	Store         string // PHOTO_STORE: local|sftp
	Dir           string // PHOTO_DIR (local store)
	PublicBaseURL string // PHOTO_PUBLIC_BASE_URL (local store)
	MaxBytes      int64  // PHOTO_MAX_BYTES
	SFTP          SFTPConfig
}

// Photo store kinds.
const (
	PhotoStoreLocal = "local"
	PhotoStoreSFTP  = "sftp"
)

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // JSON bodies; multipart uploads get PhotoMaxBytes on top
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DB              DBConfig
	Auth            AuthConfig
	Report          ReportConfig
	Photos          PhotoConfig
	CatalogCacheTTL time.Duration

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      getint64("MAX_BODY_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "leaktrack.db"),
			DSN:    getenv("DB_DSN", ""),
		},
		Auth: AuthConfig{
			JWTSecret:    getenv("AUTH_JWT_SECRET", ""),
			JWTIssuer:    getenv("AUTH_JWT_ISSUER", ""),
			RoleCacheTTL: getdur("AUTH_ROLE_CACHE_TTL", 30*time.Second),
		},
		Report: ReportConfig{
			DelayThreshold: getdur("DELAY_THRESHOLD", 48*time.Hour),
			TimeZone:       getenv("REPORT_TIMEZONE", "UTC"),
			WeekWindow:     getdur("REPORT_WEEK_WINDOW", 7*24*time.Hour),
			TopN:           getint("REPORT_TOP_N", 10),
			FetchLimit:     getint("OVERVIEW_FETCH_LIMIT", 500),
			Recent:         getint("OVERVIEW_RECENT", 20),
			QueueLimit:     getint("REPAIR_QUEUE_LIMIT", 200),
		},
		Photos: PhotoConfig{
			Store:         strings.ToLower(getenv("PHOTO_STORE", PhotoStoreLocal)),
			Dir:           getenv("PHOTO_DIR", "data/photos"),
			PublicBaseURL: strings.TrimRight(getenv("PHOTO_PUBLIC_BASE_URL", "/photos"), "/"),
			MaxBytes:      getint64("PHOTO_MAX_BYTES", 8<<20),
			SFTP: SFTPConfig{
				Host:           getenv("SFTP_HOST", ""),
				Port:           getint("SFTP_PORT", 22),
				User:           getenv("SFTP_USER", ""),
				Password:       getenv("SFTP_PASSWORD", ""),
				KeyFile:        getenv("SFTP_KEY_FILE", ""),
				KnownHostsFile: getenv("SFTP_KNOWN_HOSTS", ""),
				BasePath:       getenv("SFTP_BASE_PATH", "."),
				PublicBaseURL:  strings.TrimRight(getenv("SFTP_PUBLIC_BASE_URL", ""), "/"),
				Timeout:        getdur("SFTP_TIMEOUT", 30*time.Second),
			},
		},
		CatalogCacheTTL: getdur("CATALOG_CACHE_TTL", 5*time.Minute),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "leaktrack"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	if err := cfg.DB.validate(); err != nil {
		return cfg, err
	}
	if cfg.Auth.RoleCacheTTL < 0 {
		return cfg, errors.New("AUTH_ROLE_CACHE_TTL must be >= 0")
	}
	if err := cfg.Report.validate(); err != nil {
		return cfg, err
	}
	loc, err := time.LoadLocation(cfg.Report.TimeZone)
	if err != nil {
		return cfg, fmt.Errorf("REPORT_TIMEZONE: %w", err)
	}
	cfg.Report.Location = loc
	if err := cfg.Photos.validate(); err != nil {
		return cfg, err
	}
	if cfg.CatalogCacheTTL < 0 {
		return cfg, errors.New("CATALOG_CACHE_TTL must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

func (d DBConfig) validate() error {
	switch d.Driver {
	case "sqlite":
		if strings.TrimSpace(d.Path) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case "postgres", "mysql":
		if strings.TrimSpace(d.DSN) == "" {
			return fmt.Errorf("DB_DSN is required for DB_DRIVER=%s", d.Driver)
		}
	default:
		return errors.New("DB_DRIVER must be one of: sqlite, postgres, mysql")
	}
	return nil
}

func (r ReportConfig) validate() error {
	if r.DelayThreshold <= 0 {
		return errors.New("DELAY_THRESHOLD must be > 0")
	}
	if r.WeekWindow <= 0 {
		return errors.New("REPORT_WEEK_WINDOW must be > 0")
	}
	if r.TopN < 1 {
		return errors.New("REPORT_TOP_N must be >= 1")
	}
	if r.FetchLimit < 1 {
		return errors.New("OVERVIEW_FETCH_LIMIT must be >= 1")
	}
	if r.Recent < 0 {
		return errors.New("OVERVIEW_RECENT must be >= 0")
	}
	if r.QueueLimit < 1 {
		return errors.New("REPAIR_QUEUE_LIMIT must be >= 1")
	}
	return nil
}

func (p PhotoConfig) validate() error {
	if p.MaxBytes <= 0 {
		return errors.New("PHOTO_MAX_BYTES must be > 0")
	}
	switch p.Store {
	case PhotoStoreLocal:
		if strings.TrimSpace(p.Dir) == "" {
			return errors.New("PHOTO_DIR must not be empty")
		}
	case PhotoStoreSFTP:
		s := p.SFTP
		if s.Host == "" || s.User == "" {
			return errors.New("SFTP_HOST and SFTP_USER are required for PHOTO_STORE=sftp")
		}
		if s.Password == "" && s.KeyFile == "" {
			return errors.New("one of SFTP_PASSWORD or SFTP_KEY_FILE is required")
		}
		if s.PublicBaseURL == "" {
			return errors.New("SFTP_PUBLIC_BASE_URL is required for PHOTO_STORE=sftp")
		}
		if s.Port < 1 || s.Port > 65535 {
			return errors.New("SFTP_PORT must be in [1,65535]")
		}
	default:
		return errors.New("PHOTO_STORE must be one of: local, sftp")
	}
	return nil
}

// lookup parses k with parse, falling back to def when k is unset, empty or
// malformed. Validation of the parsed value happens in validate.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func getenv(k, def string) string {
	return lookup(k, def, func(v string) (string, error) { return v, nil })
}

func getfloat(k string, def float64) float64 {
	return lookup(k, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func getint(k string, def int) int { return lookup(k, def, strconv.Atoi) }

func getint64(k string, def int64) int64 {
	return lookup(k, def, func(v string) (int64, error) { return strconv.ParseInt(v, 10, 64) })
}

func getdur(k string, def time.Duration) time.Duration { return lookup(k, def, time.ParseDuration) }

func getbool(k string, def bool) bool {
	return lookup(k, def, func(v string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, errors.New("not a bool")
	})
}

// splitCSV splits a comma list, dropping blanks. Empty input yields nil.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing one;
// blank input is "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
