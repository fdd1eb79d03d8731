package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type lookupCall struct {
	userID, scope, key string
}

func recordingLookup(exists bool, err error) (IdempotencyLookup, *[]lookupCall) {
	var calls []lookupCall
	return func(_ context.Context, userID, scope, key string, _ time.Time) (bool, error) {
		calls = append(calls, lookupCall{userID, scope, key})
		return exists, err
	}, &calls
}

func TestIdempotencyHelpers_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) || GetIdempotencyScope(c) != "" {
		t.Fatalf("expected no replay and no scope by default")
	}

	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must read as absent")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("non-bool replay flag must read as false")
	}
}

func TestIdempotencyValidator_SafeMethodAndMissingHeaderPassThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lookup, calls := recordingLookup(true, nil)

	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.GET("/inspections", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Errorf("GET must not stash a key")
		}
		c.Status(http.StatusOK)
	})
	r.POST("/inspections", func(c *gin.Context) {
		if IsReplay(c) {
			t.Errorf("request without key cannot be a replay")
		}
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodGet, "/inspections", nil)
	req.Header.Set(HeaderIdempotencyKey, "k1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/inspections", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("POST -> %d", w.Code)
	}
	if len(*calls) != 0 {
		t.Fatalf("lookup should not run, got %v", *calls)
	}
}

func TestIdempotencyValidator_RejectsMalformedKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(IdempotencyValidator(IdempotencyOptions{
		MaxLen:  8,
		Pattern: regexp.MustCompile(`^[a-z0-9-]+$`),
	}, nil))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusCreated) })

	for _, key := range []string{"toolong-key", "BAD KEY"} {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q -> %d; want 400", key, w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if body["code"] != "bad_idempotency_key" {
			t.Fatalf("code = %v", body["code"])
		}
		if body["request_id"] == "" || body["request_id"] != w.Header().Get(requestIDHeader) {
			t.Fatalf("request_id mismatch: %v vs %q", body["request_id"], w.Header().Get(requestIDHeader))
		}
	}
}

func TestIdempotencyValidator_RouteScopeAndReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lookup, calls := recordingLookup(true, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ctxKeyUserID, "rep-1")
		c.Next()
	})
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/inspections/:id/repair", func(c *gin.Context) {
		key, ok := GetIdempotencyKey(c)
		if !ok || key != "abc-1" {
			t.Errorf("key = %q, %v", key, ok)
		}
		if got := GetIdempotencyScope(c); got != "POST /inspections/:id/repair:insp-9" {
			t.Errorf("scope = %q", got)
		}
		if !IsReplay(c) || !c.GetBool(ctxKeyRateBypass) {
			t.Errorf("expected replay and rate bypass flags")
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/inspections/insp-9/repair", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	want := lookupCall{"rep-1", "POST /inspections/:id/repair:insp-9", "abc-1"}
	if len(*calls) != 1 || (*calls)[0] != want {
		t.Fatalf("lookup calls = %v; want [%v]", *calls, want)
	}
}

func TestIdempotencyValidator_CustomScopeAndLookupErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lookup, calls := recordingLookup(true, errors.New("db down"))

	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{
		Scope: func(c *gin.Context) string { return "inspection.create" },
	}, func(ctx context.Context, uid, scope, key string, now time.Time) (bool, error) {
		_, err := lookup(ctx, uid, scope, key, now)
		return false, err
	}))
	r.POST("/inspections", func(c *gin.Context) {
		if IsReplay(c) {
			t.Errorf("failed lookup must not mark a replay")
		}
		if GetIdempotencyScope(c) != "inspection.create" {
			t.Errorf("scope = %q", GetIdempotencyScope(c))
		}
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/inspections", strings.NewReader("{}"))
	req.Header.Set(HeaderIdempotencyKey, "k-2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; lookup errors must not block", w.Code)
	}
	if len(*calls) != 1 || (*calls)[0].scope != "inspection.create" {
		t.Fatalf("lookup calls = %v", *calls)
	}
}

func TestUnsafeMethod(t *testing.T) {
	for m, want := range map[string]bool{
		http.MethodGet:     false,
		http.MethodHead:    false,
		http.MethodOptions: false,
		http.MethodPost:    true,
		http.MethodPut:     true,
		http.MethodPatch:   true,
		http.MethodDelete:  true,
	} {
		if got := unsafeMethod(m); got != want {
			t.Errorf("unsafeMethod(%s) = %v; want %v", m, got, want)
		}
	}
}
