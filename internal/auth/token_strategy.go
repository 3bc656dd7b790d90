package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/courier-http/courier/internal/config"
)

// TokenStrategy authenticates JWT bearer tokens from the Authorization
// header (HS256/HS384/HS512 with a shared secret, or RS256/RS384/RS512
// with a PEM public key).
type TokenStrategy struct {
	secret    []byte
	publicKey *rsa.PublicKey
	issuer    string
	audience  []string
	algorithm string
	keyFunc   jwt.Keyfunc
}

// NewTokenStrategy creates a token strategy from config.
func NewTokenStrategy(cfg config.TokenConfig) (*TokenStrategy, error) {
	s := &TokenStrategy{
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		algorithm: cfg.Algorithm,
	}

	if s.algorithm == "" {
		s.algorithm = "HS256"
	}

	if strings.HasPrefix(s.algorithm, "HS") {
		s.secret = []byte(cfg.Secret)
		s.keyFunc = func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		}
	} else if strings.HasPrefix(s.algorithm, "RS") {
		block, _ := pem.Decode([]byte(cfg.PublicKey))
		if block == nil {
			return nil, fmt.Errorf("failed to parse PEM block containing public key")
		}
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key: %w", err)
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is not an RSA key")
		}
		s.publicKey = rsaPub
		s.keyFunc = func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.publicKey, nil
		}
	} else {
		return nil, fmt.Errorf("unsupported algorithm: %s", s.algorithm)
	}

	return s, nil
}

// Authenticate validates the bearer token and maps its claims into the
// result metadata. The subject claim becomes the user reference.
func (s *TokenStrategy) Authenticate(ctx *Context, _ Requirement) *Result {
	raw := extractBearer(ctx.Request.Header.Get("Authorization"))
	if raw == "" {
		return Failure("token", "bearer token not provided")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{s.algorithm}),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	for _, aud := range s.audience {
		opts = append(opts, jwt.WithAudience(aud))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, s.keyFunc, opts...)
	if err != nil || !token.Valid {
		return Failure("token", "invalid token")
	}

	var user interface{}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		user = sub
	}

	metadata := make(map[string]interface{}, len(claims))
	for k, v := range claims {
		metadata[k] = v
	}

	return Authenticated(user, map[string]interface{}{}, "token", metadata)
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
