package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Parse([]byte("server:\n  address: \":8080\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Session.Store != "memory" {
		t.Errorf("default session store = %q, want memory", cfg.Session.Store)
	}
	if cfg.Security.Validation.MaxParamDepth != 8 {
		t.Errorf("default max_param_depth = %d, want 8", cfg.Security.Validation.MaxParamDepth)
	}
	if cfg.Security.CSRF.ParamName != "csrf_token" {
		t.Errorf("default csrf param = %q", cfg.Security.CSRF.ParamName)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("default read timeout = %v", cfg.Server.ReadTimeout)
	}
}

func TestEnvExpansion(t *testing.T) {
	os.Setenv("COURIER_TEST_ADDR", ":7070")
	defer os.Unsetenv("COURIER_TEST_ADDR")

	loader := NewLoader()
	cfg, err := loader.Parse([]byte("server:\n  address: \"${COURIER_TEST_ADDR}\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Address != ":7070" {
		t.Errorf("env var not expanded: %q", cfg.Server.Address)
	}
}

func TestCSRFSecretRequired(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Parse([]byte("security:\n  csrf:\n    enabled: true\n"))
	if err == nil || !strings.Contains(err.Error(), "csrf.secret") {
		t.Fatalf("expected csrf secret error, got %v", err)
	}

	_, err = loader.Parse([]byte("security:\n  csrf:\n    enabled: true\n    secret: short\n"))
	if err == nil || !strings.Contains(err.Error(), "32 bytes") {
		t.Fatalf("expected short-secret error, got %v", err)
	}
}

func TestRedisSessionNeedsAddress(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Parse([]byte("session:\n  store: redis\n"))
	if err == nil || !strings.Contains(err.Error(), "redis.address") {
		t.Fatalf("expected redis address error, got %v", err)
	}
}

func TestDuplicateStaticPrefix(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Parse([]byte(`
static:
  - prefix: /assets
    root: /tmp
  - prefix: /assets
    root: /var
`))
	if err == nil || !strings.Contains(err.Error(), "duplicate static mount") {
		t.Fatalf("expected duplicate mount error, got %v", err)
	}
}

func TestInvalidTokenAlgorithm(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Parse([]byte("auth:\n  token:\n    enabled: true\n    algorithm: ES256\n"))
	if err == nil || !strings.Contains(err.Error(), "unsupported token algorithm") {
		t.Fatalf("expected algorithm error, got %v", err)
	}
}
