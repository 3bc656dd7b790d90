package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/courier-http/courier/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMemoryBackendEnforcesLimit(t *testing.T) {
	l := New(config.RateLimitConfig{
		Enabled: true,
		Rate:    3,
		Period:  time.Minute,
		Burst:   3,
		PerIP:   true,
	}, nil)
	h := l.Middleware()(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "203.0.113.1:1000"
		h.ServeHTTP(rec, r)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "203.0.113.1:1000"
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After")
	}
}

func TestMemoryBackendKeysAreIndependent(t *testing.T) {
	l := New(config.RateLimitConfig{
		Enabled: true,
		Rate:    1,
		Period:  time.Minute,
		Burst:   1,
		PerIP:   true,
	}, nil)
	h := l.Middleware()(okHandler())

	first := httptest.NewRequest("GET", "/", nil)
	first.RemoteAddr = "203.0.113.1:1000"
	h.ServeHTTP(httptest.NewRecorder(), first)

	rec := httptest.NewRecorder()
	other := httptest.NewRequest("GET", "/", nil)
	other.RemoteAddr = "203.0.113.2:1000"
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Errorf("distinct client must have its own bucket, status = %d", rec.Code)
	}
}

func TestStatsCount(t *testing.T) {
	l := New(config.RateLimitConfig{
		Enabled: true,
		Rate:    1,
		Period:  time.Minute,
		Burst:   1,
	}, nil)
	h := l.Middleware()(okHandler())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	allowed, rejected := l.Stats()
	if allowed != 1 || rejected != 1 {
		t.Errorf("allowed=%d rejected=%d, want 1/1", allowed, rejected)
	}
}
