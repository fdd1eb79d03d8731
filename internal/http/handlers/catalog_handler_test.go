package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

func TestCatalog_ReadEndpoints(t *testing.T) {
	env := newEnv(t)
	const uid = "anyone"

	lines := decode[ProductLinesResponse](t, env.do(t, call{method: http.MethodGet, path: "/api/v1/product-lines", user: uid}))
	if len(lines.ProductLines) != 2 || lines.ProductLines[0].Code != "EXC" {
		t.Fatalf("product lines = %+v", lines.ProductLines)
	}

	w := env.do(t, call{method: http.MethodGet, path: "/api/v1/product-lines/" + env.lineID + "/models", user: uid})
	expectStatus(t, w, http.StatusOK)
	if ms := decode[ModelsResponse](t, w); len(ms.Models) != 1 || ms.Models[0].ID != env.modelID {
		t.Fatalf("models = %+v", ms.Models)
	}

	w = env.do(t, call{method: http.MethodGet, path: "/api/v1/product-lines/" + env.otherLineID + "/leakage-types", user: uid})
	expectStatus(t, w, http.StatusOK)
	if lt := decode[LeakageTypesResponse](t, w); lt.LeakageTypes == nil || len(lt.LeakageTypes) != 0 {
		t.Fatalf("expected empty non-null list, got %s", w.Body.String())
	}

	w = env.do(t, call{method: http.MethodGet, path: "/api/v1/product-lines/nope/models", user: uid})
	expectCode(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestCatalog_LookupMachine(t *testing.T) {
	env := newEnv(t)
	env.grant(t, "tess", domain.RoleTester)

	lookup := func(chassis, model string) string {
		q := url.Values{"chassis_number": {chassis}, "model_id": {model}}
		return "/api/v1/machines/lookup?" + q.Encode()
	}

	w := env.do(t, call{method: http.MethodGet, path: lookup("ex200-0042", env.modelID), user: "tess"})
	expectCode(t, w, http.StatusNotFound, ErrCodeNotFound)

	w = env.do(t, call{method: http.MethodGet, path: lookup("", env.modelID), user: "tess"})
	expectCode(t, w, http.StatusBadRequest, ErrCodeBadRequest)

	env.submitInspection(t, "tess", " ex200-0042 ", domain.SeverityNone)

	w = env.do(t, call{method: http.MethodGet, path: lookup("EX200-0042", env.modelID), user: "tess"})
	expectStatus(t, w, http.StatusOK)
	if m := decode[domain.Machine](t, w); m.ChassisNumber != "EX200-0042" || m.ModelID != env.modelID {
		t.Fatalf("machine = %+v", m)
	}
}

func TestCatalog_AdminWrites(t *testing.T) {
	env := newEnv(t)
	env.grant(t, "boss", domain.RoleAdmin)
	env.grant(t, "tess", domain.RoleTester)

	w := env.do(t, call{method: http.MethodPost, path: "/api/v1/admin/product-lines", user: "tess", body: CreateProductLineRequest{Code: "DOZ", Name: "Dozers"}})
	expectCode(t, w, http.StatusForbidden, ErrCodeForbidden)

	w = env.do(t, call{method: http.MethodPost, path: "/api/v1/admin/product-lines", user: "boss", body: CreateProductLineRequest{Code: " doz ", Name: "Dozers"}})
	expectStatus(t, w, http.StatusCreated)
	pl := decode[domain.ProductLine](t, w)
	if pl.Code != "DOZ" {
		t.Fatalf("code not normalized: %q", pl.Code)
	}

	w = env.do(t, call{method: http.MethodPost, path: "/api/v1/admin/product-lines", user: "boss", body: CreateProductLineRequest{Code: "DOZ", Name: "Again"}})
	expectCode(t, w, http.StatusConflict, ErrCodeConflict)

	w = env.do(t, call{method: http.MethodPost, path: "/api/v1/admin/models", user: "boss", body: CreateLineItemRequest{ProductLineID: pl.ID, Code: "D6", Name: "D6 dozer"}})
	expectStatus(t, w, http.StatusCreated)

	w = env.do(t, call{method: http.MethodPost, path: "/api/v1/admin/leakage-types", user: "boss", body: CreateLineItemRequest{ProductLineID: "missing", Code: "HYD", Name: "Hydraulic"}})
	expectCode(t, w, http.StatusNotFound, ErrCodeNotFound)

	w = env.do(t, call{method: http.MethodPost, path: "/api/v1/admin/models", user: "boss", body: map[string]string{"code": "X"}})
	expectCode(t, w, http.StatusBadRequest, ErrCodeBadRequest)

	// New entries are visible through the read side.
	ms := decode[ModelsResponse](t, env.do(t, call{method: http.MethodGet, path: "/api/v1/product-lines/" + pl.ID + "/models", user: "tess"}))
	if len(ms.Models) != 1 || ms.Models[0].Code != "D6" {
		t.Fatalf("models = %+v", ms.Models)
	}
}
