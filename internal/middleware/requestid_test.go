package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Fatal("request ID missing from context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seen {
		t.Errorf("response header %q != context id %q", got, seen)
	}
}

func TestRequestIDTrustedFromHeader(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", "client-id-123")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if seen != "client-id-123" {
		t.Errorf("expected trusted client id, got %q", seen)
	}
}

func TestRequestIDUntrustedHeader(t *testing.T) {
	var seen string
	cfg := DefaultRequestIDConfig
	cfg.TrustHeader = false
	h := RequestIDWithConfig(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Request-ID", "client-id-123")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if seen == "client-id-123" || seen == "" {
		t.Errorf("untrusted header must be replaced, got %q", seen)
	}
}
