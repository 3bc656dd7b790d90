// Package session provides the session store consumed by the auth
// resolver and CSRF subsystem. Stores are keyed by an opaque session
// identifier carried in a cookie.
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Store persists session mappings keyed by session identifier.
type Store interface {
	Get(ctx context.Context, id string) (map[string]interface{}, error)
	Set(ctx context.Context, id string, data map[string]interface{}, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// IDFromRequest extracts the session identifier from the request cookie.
func IDFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}

// NewID synthesizes a fresh session identifier.
func NewID() string {
	return uuid.New().String()
}

// SetCookie writes the session identifier cookie on the response.
func SetCookie(w http.ResponseWriter, cookieName, id string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
