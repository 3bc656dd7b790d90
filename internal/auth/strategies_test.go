package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/courier-http/courier/internal/config"
	"github.com/courier-http/courier/internal/session"
)

func contextWithSession(t *testing.T, data map[string]interface{}) (*Context, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	t.Cleanup(store.Close)
	if err := store.Set(context.Background(), "sid", data, time.Hour); err != nil {
		t.Fatal(err)
	}
	return &Context{
		Request:   httptest.NewRequest("GET", "/", nil),
		SessionID: "sid",
		Store:     store,
	}, store
}

func TestSessionStrategy(t *testing.T) {
	s := NewSessionStrategy("")

	ctx, _ := contextWithSession(t, map[string]interface{}{"user_id": "42"})
	res := s.Authenticate(ctx, Requirement{})
	if !res.IsAuthenticated() {
		t.Fatal("expected success with user in session")
	}
	if res.User() != "42" || res.Method() != "session" {
		t.Errorf("res = %v/%v", res.User(), res.Method())
	}

	// No cookie at all.
	res = s.Authenticate(newTestContext(), Requirement{})
	if res.IsAuthenticated() {
		t.Error("expected failure without session")
	}

	// Session exists but has no user.
	ctx, _ = contextWithSession(t, map[string]interface{}{"theme": "dark"})
	if s.Authenticate(ctx, Requirement{}).IsAuthenticated() {
		t.Error("expected failure when session lacks user")
	}
}

func TestAPIKeyStrategy(t *testing.T) {
	s := NewAPIKeyStrategy(config.APIKeyConfig{
		Keys: []config.APIKeyEntry{{Key: "k-123", ClientID: "acme"}},
	})

	ctx := newTestContext()
	ctx.Request.Header.Set("X-API-Key", "k-123")
	res := s.Authenticate(ctx, Requirement{})
	if !res.IsAuthenticated() || res.User() != "acme" {
		t.Fatalf("expected acme, got %v", res.User())
	}
	if res.Metadata()["client_id"] != "acme" {
		t.Errorf("metadata = %v", res.Metadata())
	}

	ctx = newTestContext()
	ctx.Request.Header.Set("X-API-Key", "wrong")
	if s.Authenticate(ctx, Requirement{}).IsAuthenticated() {
		t.Error("invalid key accepted")
	}

	if s.Authenticate(newTestContext(), Requirement{}).IsAuthenticated() {
		t.Error("missing key accepted")
	}
}

func TestAPIKeyQueryParam(t *testing.T) {
	s := NewAPIKeyStrategy(config.APIKeyConfig{
		QueryParam: "api_key",
		Keys:       []config.APIKeyEntry{{Key: "k-123", ClientID: "acme"}},
	})
	ctx := newTestContext()
	ctx.Request = httptest.NewRequest("GET", "/?api_key=k-123", nil)
	if !s.Authenticate(ctx, Requirement{}).IsAuthenticated() {
		t.Error("query param key rejected")
	}
}

func TestTokenStrategy(t *testing.T) {
	secret := "token-secret-token-secret-token!"
	s, err := NewTokenStrategy(config.TokenConfig{Secret: secret, Issuer: "courier"})
	if err != nil {
		t.Fatal(err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-9",
		"iss": "courier",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}

	ctx := newTestContext()
	ctx.Request.Header.Set("Authorization", "Bearer "+signed)
	res := s.Authenticate(ctx, Requirement{})
	if !res.IsAuthenticated() {
		t.Fatal("valid token rejected")
	}
	if res.User() != "user-9" || res.Method() != "token" {
		t.Errorf("res = %v/%v", res.User(), res.Method())
	}

	// Wrong issuer.
	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-9",
		"iss": "intruder",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	badSigned, _ := bad.SignedString([]byte(secret))
	ctx = newTestContext()
	ctx.Request.Header.Set("Authorization", "Bearer "+badSigned)
	if s.Authenticate(ctx, Requirement{}).IsAuthenticated() {
		t.Error("wrong issuer accepted")
	}

	// Tampered token.
	ctx = newTestContext()
	ctx.Request.Header.Set("Authorization", "Bearer "+signed+"x")
	if s.Authenticate(ctx, Requirement{}).IsAuthenticated() {
		t.Error("tampered token accepted")
	}
}

func TestBasicStrategy(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	s := NewBasicStrategy(config.BasicConfig{
		Users: []config.BasicUser{{
			Username:     "alice",
			PasswordHash: string(hash),
			ClientID:     "c1",
			Roles:        []string{"admin"},
		}},
	})

	ctx := newTestContext()
	ctx.Request.SetBasicAuth("alice", "hunter2")
	res := s.Authenticate(ctx, Requirement{})
	if !res.IsAuthenticated() || res.User() != "alice" {
		t.Fatalf("expected alice, got %v", res.User())
	}
	if !hasRole(res.Session()["roles"], "admin") {
		t.Errorf("roles missing from session: %v", res.Session())
	}

	ctx = newTestContext()
	ctx.Request.SetBasicAuth("alice", "wrong")
	if s.Authenticate(ctx, Requirement{}).IsAuthenticated() {
		t.Error("wrong password accepted")
	}

	ctx = newTestContext()
	ctx.Request.SetBasicAuth("mallory", "hunter2")
	if s.Authenticate(ctx, Requirement{}).IsAuthenticated() {
		t.Error("unknown user accepted")
	}
}

func TestRoleStrategy(t *testing.T) {
	s := NewRoleStrategy("", "")

	ctx, _ := contextWithSession(t, map[string]interface{}{
		"user_id": "42",
		"roles":   []interface{}{"editor", "admin"},
	})
	res := s.Authenticate(ctx, Requirement{Name: "role", Argument: "admin"})
	if !res.IsAuthenticated() {
		t.Fatal("expected success for held role")
	}
	if res.User() != "42" {
		t.Errorf("user = %v", res.User())
	}

	ctx, _ = contextWithSession(t, map[string]interface{}{"roles": []interface{}{"viewer"}})
	if s.Authenticate(ctx, Requirement{Name: "role", Argument: "admin"}).IsAuthenticated() {
		t.Error("missing role accepted")
	}

	if s.Authenticate(newTestContext(), Requirement{Name: "role", Argument: "admin"}).IsAuthenticated() {
		t.Error("no session accepted")
	}

	ctx, _ = contextWithSession(t, map[string]interface{}{"roles": []interface{}{"admin"}})
	if s.Authenticate(ctx, Requirement{Name: "role"}).IsAuthenticated() {
		t.Error("empty argument accepted")
	}
}
