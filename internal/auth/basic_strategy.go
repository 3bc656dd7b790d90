package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/courier-http/courier/internal/config"
)

type basicUserData struct {
	passwordHash []byte
	clientID     string
	roles        []string
}

// BasicStrategy authenticates HTTP Basic credentials against a local user
// list of bcrypt password hashes.
type BasicStrategy struct {
	realm     string
	users     map[string]*basicUserData
	dummyHash []byte // timing-safe comparison for unknown users
}

// NewBasicStrategy creates a basic strategy from config.
func NewBasicStrategy(cfg config.BasicConfig) *BasicStrategy {
	realm := cfg.Realm
	if realm == "" {
		realm = "Restricted"
	}

	users := make(map[string]*basicUserData, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Username] = &basicUserData{
			passwordHash: []byte(u.PasswordHash),
			clientID:     u.ClientID,
			roles:        u.Roles,
		}
	}

	// Pre-compute a dummy hash so we can run bcrypt.CompareHashAndPassword even
	// for unknown usernames, preventing timing-based user enumeration.
	dummyHash, _ := bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.DefaultCost)

	return &BasicStrategy{
		realm:     realm,
		users:     users,
		dummyHash: dummyHash,
	}
}

// Realm returns the configured authentication realm.
func (s *BasicStrategy) Realm() string {
	return s.realm
}

// Authenticate verifies Basic credentials from the request.
func (s *BasicStrategy) Authenticate(ctx *Context, _ Requirement) *Result {
	username, password, ok := ctx.Request.BasicAuth()
	if !ok {
		return Failure("basic", "credentials not provided")
	}

	user, found := s.users[username]
	if !found {
		// Run bcrypt against dummy hash to prevent timing side-channel
		bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return Failure("basic", "invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		return Failure("basic", "invalid credentials")
	}

	roles := make([]interface{}, len(user.roles))
	for i, r := range user.roles {
		roles[i] = r
	}

	return Authenticated(username, map[string]interface{}{
		"user_id": username,
		"roles":   roles,
	}, "basic", map[string]interface{}{
		"client_id": user.clientID,
	})
}
