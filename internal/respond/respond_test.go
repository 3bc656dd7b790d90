package respond

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/courier-http/courier/internal/errors"
	"github.com/courier-http/courier/internal/routes"
)

func routeWith(t *testing.T, line string) *routes.Route {
	t.Helper()
	rts, _, err := routes.ParseManifest(strings.NewReader(line))
	if err != nil || len(rts) != 1 {
		t.Fatalf("manifest parse: %v", err)
	}
	return rts[0]
}

func TestWriteJSONMode(t *testing.T) {
	rt := routeWith(t, "GET /api/users UsersController#index response=json")
	rec := httptest.NewRecorder()

	Write(rec, httptest.NewRequest("GET", "/api/users", nil), rt, map[string]interface{}{"ok": true})

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestWriteRedirectMode(t *testing.T) {
	rt := routeWith(t, "POST /login Sessions#create response=redirect")
	rec := httptest.NewRecorder()

	Write(rec, httptest.NewRequest("POST", "/login", nil), rt, "/dashboard")

	if rec.Code != http.StatusFound {
		t.Errorf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/dashboard" {
		t.Errorf("Location = %q", loc)
	}
}

func TestWriteAutoModeNegotiates(t *testing.T) {
	rt := routeWith(t, "GET /page Pages#show response=auto")

	jsonReq := httptest.NewRequest("GET", "/page", nil)
	jsonReq.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	Write(rec, jsonReq, rt, map[string]string{"title": "x"})
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("json accept: Content-Type = %q", ct)
	}

	htmlReq := httptest.NewRequest("GET", "/page", nil)
	htmlReq.Header.Set("Accept", "text/html")
	rec = httptest.NewRecorder()
	Write(rec, htmlReq, rt, "<h1>x</h1>")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("html accept: Content-Type = %q", ct)
	}
}

func TestWriteExplicitResponseStatus(t *testing.T) {
	rt := routeWith(t, "POST /api/users UsersController#create response=json")
	rec := httptest.NewRecorder()

	Write(rec, httptest.NewRequest("POST", "/api/users", nil), rt, &Response{
		Status:  http.StatusCreated,
		Headers: map[string]string{"Location": "/api/users/7"},
		Body:    map[string]int{"id": 7},
	})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if rec.Header().Get("Location") != "/api/users/7" {
		t.Error("explicit header lost")
	}
}

func TestWriteErrorDefersToRouteMode(t *testing.T) {
	jsonRoute := routeWith(t, "GET /api/thing Things#show response=json")
	r := httptest.NewRequest("GET", "/api/thing", nil)
	r.Header.Set("Accept", "text/html")

	rec := httptest.NewRecorder()
	WriteError(rec, r, jsonRoute, errors.ErrNotFound)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("route mode must beat Accept header, Content-Type = %q", ct)
	}

	viewRoute := routeWith(t, "GET /page Pages#show response=view")
	r = httptest.NewRequest("GET", "/page", nil)
	r.Header.Set("Accept", "application/json")

	rec = httptest.NewRecorder()
	WriteError(rec, r, viewRoute, errors.ErrNotFound)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("view route must render HTML errors, Content-Type = %q", ct)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWriteErrorNegotiatesWithoutRouteMode(t *testing.T) {
	r := httptest.NewRequest("GET", "/missing", nil)
	r.Header.Set("Accept", "application/json")

	rec := httptest.NewRecorder()
	WriteError(rec, r, nil, errors.ErrNotFound)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
