package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf) // plain JSON lines
	return &buf
}

func TestRedactPII(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"chassis=CH-2291&status=pending", "chassis=CH-2291&status=pending"},
		{"tester_id=123e4567-e89b-12d3-a456-426614174000", "tester_id=[REDACTED:id]"},
		{"notify=a.b+tag@example.com", "notify=[REDACTED:email]"},
		{"call 555-123-4567", "call [REDACTED:phone]"},
	}
	for _, tc := range tests {
		if got := redactPII(tc.in); got != tc.want {
			t.Errorf("redactPII(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Header(requestIDHeader, "rid-resp")
		c.Next()
	})
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{" X-Api-Key ", ""}}))
	r.GET("/api/v1/inspections/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	q := "tester_id=123e4567-e89b-12d3-a456-426614174000&contact=a@b.com"
	req := httptest.NewRequest(http.MethodGet, "/api/v1/inspections/i-9?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set("X-Device", "scanner 555-123-4567")
	req.Header.Set(requestIDHeader, "rid-req")
	r.ServeHTTP(httptest.NewRecorder(), req)

	logs := buf.String()
	for _, want := range []string{
		`"level":"info"`,
		`"path":"/api/v1/inspections/:id"`,
		`"resource_id":"i-9"`,
		`"request_id":"rid-resp"`,
		`"query":"tester_id=[REDACTED:id]&contact=[REDACTED:email]"`,
		`"Authorization":"[REDACTED]"`,
		`"Cookie":"[REDACTED]"`,
		`"X-Api-Key":"[REDACTED]"`,
		`"X-Device":"scanner [REDACTED:phone]"`,
		`"message":"http_request"`,
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("missing %s in %s", want, logs)
		}
	}
	for _, leaked := range []string{"secret", "topsecret", "shhh"} {
		if strings.Contains(logs, leaked) {
			t.Errorf("%q leaked into logs", leaked)
		}
	}
}

func TestRedactingLogger_LevelsAndRequestIDFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for path, rid := range map[string]string{"/missing": "rid-warn", "/broken": "rid-err"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(requestIDHeader, rid)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %s", len(lines), buf.String())
	}
	for _, l := range lines {
		switch {
		case strings.Contains(l, `"request_id":"rid-warn"`):
			if !strings.Contains(l, `"level":"warn"`) {
				t.Errorf("404 line: %s", l)
			}
		case strings.Contains(l, `"request_id":"rid-err"`):
			if !strings.Contains(l, `"level":"error"`) {
				t.Errorf("500 line: %s", l)
			}
		default:
			t.Errorf("unexpected line: %s", l)
		}
	}
}

func TestRedactingLogger_MasksUserNameAndLogsCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}))
	r.POST("/api/v1/inspections", func(c *gin.Context) {
		c.Set(ctxKeyUserID, "tester-7")
		c.Set(ctxKeyRole, "tester")
		LoggerFrom(c).Info().Msg("handler")
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/inspections", nil)
	req.Header.Set(HeaderUserName, "Maria Papadopoulou")
	req.Header.Set(requestIDHeader, "rid-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	logs := buf.String()
	if strings.Contains(logs, "Papadopoulou") {
		t.Fatalf("display name leaked into logs: %s", logs)
	}
	if !strings.Contains(logs, `"X-User-Name":"[REDACTED]"`) {
		t.Fatalf("X-User-Name must be masked: %s", logs)
	}
	if !strings.Contains(logs, `"user_id":"tester-7"`) || !strings.Contains(logs, `"role":"tester"`) {
		t.Fatalf("expected caller fields, got: %s", logs)
	}
	if !strings.Contains(logs, `"message":"handler"`) || strings.Count(logs, `"request_id":"rid-7"`) < 2 {
		t.Fatalf("expected request-scoped handler log, got: %s", logs)
	}
}
