package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tbourn/leaktrack-backend/internal/domain"
	"github.com/tbourn/leaktrack-backend/internal/http/middleware"
	"github.com/tbourn/leaktrack-backend/internal/services"
)

func TestCreateInspection_ValidationAndRoles(t *testing.T) {
	env := newEnv(t)
	env.grant(t, "tess", domain.RoleTester)
	env.grant(t, "rae", domain.RoleRepairman)

	cases := map[string]struct {
		user   string
		body   any
		status int
		code   string
	}{
		"wrong role": {"rae", CreateInspectionRequest{ChassisNumber: "C1", ModelID: env.modelID, Severity: "None"}, http.StatusForbidden, ErrCodeForbidden},
		"no role":    {"nobody", CreateInspectionRequest{ChassisNumber: "C1", ModelID: env.modelID, Severity: "None"}, http.StatusForbidden, ErrCodeRoleUnassigned},
		"bad json":   {"tess", []byte("{"), http.StatusBadRequest, ErrCodeBadRequest},
		"missing":    {"tess", map[string]string{"chassis_number": "C1"}, http.StatusBadRequest, ErrCodeBadRequest},
		"severity":   {"tess", CreateInspectionRequest{ChassisNumber: "C1", ModelID: env.modelID, Severity: "Critical"}, http.StatusBadRequest, ErrCodeBadRequest},
		"no leak":    {"tess", CreateInspectionRequest{ChassisNumber: "C1", ModelID: env.modelID, Severity: "High"}, http.StatusBadRequest, ErrCodeBadRequest},
		"model":      {"tess", CreateInspectionRequest{ChassisNumber: "C1", ModelID: "missing", Severity: "None"}, http.StatusNotFound, ErrCodeNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := call{method: http.MethodPost, path: "/api/v1/inspections", user: tc.user, body: tc.body}
			if _, raw := tc.body.([]byte); raw {
				c.contentType = "application/json"
			}
			expectCode(t, env.do(t, c), tc.status, tc.code)
		})
	}
}

func TestCreateInspection_StatusAndIdempotentReplay(t *testing.T) {
	env := newEnv(t)
	env.grant(t, "tess", domain.RoleTester)

	body := CreateInspectionRequest{ChassisNumber: "ex-1", ModelID: env.modelID, LeakageTypeID: &env.leakID, Severity: domain.SeverityHigh, Remarks: "seep"}
	key := map[string]string{middleware.HeaderIdempotencyKey: "insp-key-1"}

	w := env.do(t, call{method: http.MethodPost, path: "/api/v1/inspections", user: "tess", body: body, headers: key})
	expectStatus(t, w, http.StatusCreated)
	first := decode[services.InspectionView](t, w)
	if first.Status != domain.StatusPending || first.Machine == nil || first.Machine.ChassisNumber != "EX-1" {
		t.Fatalf("unexpected inspection: %+v", first)
	}
	if w.Header().Get(middleware.HeaderIdempotencyReplayed) != "" {
		t.Fatalf("first request must not be marked replayed")
	}

	w = env.do(t, call{method: http.MethodPost, path: "/api/v1/inspections", user: "tess", body: body, headers: key})
	expectStatus(t, w, http.StatusCreated)
	if w.Header().Get(middleware.HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("expected replay header")
	}
	if again := decode[services.InspectionView](t, w); again.ID != first.ID {
		t.Fatalf("replay returned %s; want %s", again.ID, first.ID)
	}

	var n int64
	env.db.Model(&domain.InspectionRecord{}).Count(&n)
	if n != 1 {
		t.Fatalf("inspections stored = %d; want 1", n)
	}

	// Leakage-free inspections complete immediately.
	w = env.do(t, call{method: http.MethodPost, path: "/api/v1/inspections", user: "tess",
		body: CreateInspectionRequest{ChassisNumber: "ex-2", ModelID: env.modelID, Severity: domain.SeverityNone}})
	expectStatus(t, w, http.StatusCreated)
	if v := decode[services.InspectionView](t, w); v.Status != domain.StatusCompleted {
		t.Fatalf("status = %q; want Completed", v.Status)
	}
}

func TestListInspections_ScopeFiltersAndETag(t *testing.T) {
	env := newEnv(t)
	env.grant(t, "tess", domain.RoleTester)
	env.grant(t, "tom", domain.RoleTester)
	env.grant(t, "boss", domain.RoleAdmin)

	a := env.submitInspection(t, "tess", "A-1", domain.SeverityMedium)
	env.submitInspection(t, "tess", "A-2", domain.SeverityNone)
	env.submitInspection(t, "tom", "B-1", domain.SeverityLow)
	env.setStatus(t, env.submitInspection(t, "tom", "B-2", domain.SeverityHigh), domain.StatusDelayed)
	env.backdate(t, a, time.Now().UTC().Add(-72*time.Hour))

	list := func(user, query string) ListInspectionsResponse {
		t.Helper()
		w := env.do(t, call{method: http.MethodGet, path: "/api/v1/inspections" + query, user: user})
		expectStatus(t, w, http.StatusOK)
		return decode[ListInspectionsResponse](t, w)
	}

	cases := map[string]struct {
		user, query string
		want        int64
	}{
		"tester sees own":       {"tess", "", 2},
		"tester ignores filter": {"tess", "?tester_id=tom", 2},
		"admin sees all":        {"boss", "", 4},
		"admin by tester":       {"boss", "?tester_id=tom", 2},
		"admin mine":            {"boss", "?mine=true", 0},
		"completed":             {"tess", "?status=Completed", 1},
		"delayed":               {"boss", "?status=Delayed", 2},
		"delayed own":           {"tess", "?status=Delayed", 1},
		"pending not delayed":   {"boss", "?status=Pending", 1},
		"pending own overdue":   {"tess", "?status=Pending", 0},
		"range excludes old":    {"boss", "?from=" + time.Now().UTC().Add(-time.Hour).Format(time.RFC3339), 3},
		"date-only to":          {"boss", "?to=" + time.Now().UTC().Format("2006-01-02"), 4},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := list(tc.user, tc.query).Pagination.Total; got != tc.want {
				t.Fatalf("total = %d; want %d", got, tc.want)
			}
		})
	}

	page := list("boss", "?page=2&page_size=3")
	if len(page.Inspections) != 1 || page.Pagination.TotalPages != 2 || page.Pagination.HasNext {
		t.Fatalf("page 2 = %+v", page.Pagination)
	}

	for _, v := range list("boss", "?status=Delayed").Inspections {
		if !v.Delayed {
			t.Fatalf("delayed list carries a non-delayed row: %+v", v)
		}
	}
	for _, v := range list("boss", "?status=Pending").Inspections {
		if v.Delayed {
			t.Fatalf("pending list carries a delayed row: %+v", v)
		}
	}

	for _, bad := range []string{"?status=Lost", "?from=yesterday", "?from=2026-03-10&to=2026-03-01"} {
		w := env.do(t, call{method: http.MethodGet, path: "/api/v1/inspections" + bad, user: "boss"})
		expectCode(t, w, http.StatusBadRequest, ErrCodeBadRequest)
	}

	// Conditional GET.
	w := env.do(t, call{method: http.MethodGet, path: "/api/v1/inspections", user: "tess"})
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	w = env.do(t, call{method: http.MethodGet, path: "/api/v1/inspections", user: "tess", headers: map[string]string{"If-None-Match": etag}})
	expectStatus(t, w, http.StatusNotModified)

	env.submitInspection(t, "tess", "A-3", domain.SeverityNone)
	w = env.do(t, call{method: http.MethodGet, path: "/api/v1/inspections", user: "tess", headers: map[string]string{"If-None-Match": etag}})
	expectStatus(t, w, http.StatusOK)
}

func TestListInspections_ETagFollowsDelay(t *testing.T) {
	env := newEnv(t)
	env.grant(t, "tess", domain.RoleTester)
	id := env.submitInspection(t, "tess", "D-1", domain.SeverityHigh)

	get := func(etag string) *httptest.ResponseRecorder {
		t.Helper()
		c := call{method: http.MethodGet, path: "/api/v1/inspections", user: "tess"}
		if etag != "" {
			c.headers = map[string]string{"If-None-Match": etag}
		}
		return env.do(t, c)
	}

	w := get("")
	expectStatus(t, w, http.StatusOK)
	if decode[ListInspectionsResponse](t, w).Inspections[0].Delayed {
		t.Fatalf("fresh inspection reported delayed")
	}
	etag := w.Header().Get("ETag")

	// Time passes; nothing is written.
	env.backdate(t, id, time.Now().UTC().Add(-72*time.Hour))

	w = get(etag)
	expectStatus(t, w, http.StatusOK)
	if !decode[ListInspectionsResponse](t, w).Inspections[0].Delayed {
		t.Fatalf("overdue inspection not reported delayed")
	}
	if again := w.Header().Get("ETag"); again == etag {
		t.Fatalf("ETag unchanged after the inspection became delayed: %s", again)
	}
	expectStatus(t, get(w.Header().Get("ETag")), http.StatusNotModified)
}

func TestCreateInspection_ReplayOfMissingInspection(t *testing.T) {
	env := newEnv(t)
	env.grant(t, "tess", domain.RoleTester)

	body := CreateInspectionRequest{ChassisNumber: "G-1", ModelID: env.modelID, Severity: domain.SeverityNone}
	key := map[string]string{middleware.HeaderIdempotencyKey: "insp-gone-1"}
	w := env.do(t, call{method: http.MethodPost, path: "/api/v1/inspections", user: "tess", body: body, headers: key})
	expectStatus(t, w, http.StatusCreated)
	id := decode[services.InspectionView](t, w).ID

	if err := env.db.Delete(&domain.InspectionRecord{}, "id = ?", id).Error; err != nil {
		t.Fatalf("delete: %v", err)
	}
	w = env.do(t, call{method: http.MethodPost, path: "/api/v1/inspections", user: "tess", body: body, headers: key})
	expectCode(t, w, http.StatusNotFound, ErrCodeNotFound)

	var n int64
	env.db.Model(&domain.InspectionRecord{}).Count(&n)
	if n != 0 {
		t.Fatalf("replay created %d inspections; want none", n)
	}
}

func TestGetInspectionAndQueue(t *testing.T) {
	env := newEnv(t)
	env.grant(t, "tess", domain.RoleTester)
	env.grant(t, "rae", domain.RoleRepairman)

	old := env.submitInspection(t, "tess", "Q-1", domain.SeverityHigh)
	fresh := env.submitInspection(t, "tess", "Q-2", domain.SeverityLow)
	env.submitInspection(t, "tess", "Q-3", domain.SeverityNone)
	env.backdate(t, old, time.Now().UTC().Add(-50*time.Hour))

	w := env.do(t, call{method: http.MethodGet, path: "/api/v1/inspections/" + fresh, user: "rae"})
	expectStatus(t, w, http.StatusOK)
	v := decode[services.InspectionView](t, w)
	if v.LeakageType == nil || v.LeakageType.Code != "HYD" || v.Tester == nil {
		t.Fatalf("detail missing relations: %+v", v)
	}

	w = env.do(t, call{method: http.MethodGet, path: "/api/v1/inspections/does-not-exist", user: "rae"})
	expectCode(t, w, http.StatusNotFound, ErrCodeNotFound)

	w = env.do(t, call{method: http.MethodGet, path: "/api/v1/repairs/queue", user: "tess"})
	expectCode(t, w, http.StatusForbidden, ErrCodeForbidden)

	w = env.do(t, call{method: http.MethodGet, path: "/api/v1/repairs/queue", user: "rae"})
	expectStatus(t, w, http.StatusOK)
	q := decode[QueueResponse](t, w)
	if len(q.Inspections) != 2 {
		t.Fatalf("queue size = %d; want 2", len(q.Inspections))
	}
	if q.Inspections[0].ID != old || !q.Inspections[0].Delayed || q.Inspections[1].Delayed {
		t.Fatalf("queue order or delayed flags wrong: %+v", q.Inspections)
	}
}
