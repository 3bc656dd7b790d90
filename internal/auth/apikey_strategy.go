package auth

import (
	"github.com/courier-http/courier/internal/config"
)

// APIKeyStrategy authenticates requests carrying a known API key in a
// header or query parameter.
type APIKeyStrategy struct {
	header     string
	queryParam string
	keys       map[string]string // key -> clientID
}

// NewAPIKeyStrategy creates an API key strategy from config.
func NewAPIKeyStrategy(cfg config.APIKeyConfig) *APIKeyStrategy {
	s := &APIKeyStrategy{
		header:     cfg.Header,
		queryParam: cfg.QueryParam,
		keys:       make(map[string]string, len(cfg.Keys)),
	}

	if s.header == "" && s.queryParam == "" {
		s.header = "X-API-Key"
	}

	for _, entry := range cfg.Keys {
		s.keys[entry.Key] = entry.ClientID
	}

	return s
}

// Authenticate verifies the API key and returns a client identity.
func (s *APIKeyStrategy) Authenticate(ctx *Context, _ Requirement) *Result {
	key := s.extractKey(ctx)
	if key == "" {
		return Failure("apikey", "API key not provided")
	}

	clientID, ok := s.keys[key]
	if !ok {
		return Failure("apikey", "invalid API key")
	}

	return Authenticated(clientID, map[string]interface{}{}, "apikey", map[string]interface{}{
		"client_id": clientID,
	})
}

// extractKey extracts the API key from the request, header first.
func (s *APIKeyStrategy) extractKey(ctx *Context) string {
	if s.header != "" {
		if key := ctx.Request.Header.Get(s.header); key != "" {
			return key
		}
	}
	if s.queryParam != "" {
		if key := ctx.Request.URL.Query().Get(s.queryParam); key != "" {
			return key
		}
	}
	return ""
}
