package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecoveryReturns500(t *testing.T) {
	var logged interface{}
	h := RecoveryWithConfig(RecoveryConfig{
		LogFunc: func(err interface{}, stack []byte) { logged = err },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if logged != "boom" {
		t.Errorf("panic value not logged, got %v", logged)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Error("panic detail must not leak into the response by default")
	}
}

func TestRecoveryExposesDetailInDevelopment(t *testing.T) {
	h := RecoveryWithConfig(RecoveryConfig{
		ExposeDetail: true,
		LogFunc:      func(interface{}, []byte) {},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if !strings.Contains(rec.Body.String(), "boom") {
		t.Error("development mode must include the panic detail")
	}
}

func TestRecoveryPassesThrough(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
