package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

// Loader loads and validates configuration files.
type Loader struct {
	envPattern *regexp.Regexp
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPattern: regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`),
	}
}

// Load reads, expands, unmarshals and validates a YAML configuration file.
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return l.Parse(data)
}

// Parse unmarshals and validates YAML configuration bytes.
func (l *Loader) Parse(data []byte) (*Config, error) {
	expanded := l.expandEnvVars(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match // Keep original if env var not set
	})
}

// validate checks configuration for errors
func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}

	if cfg.Security.CSRF.Enabled && cfg.Security.CSRF.Secret == "" {
		return fmt.Errorf("security.csrf.secret is required when CSRF is enabled")
	}
	if cfg.Security.CSRF.Enabled && len(cfg.Security.CSRF.Secret) < 32 {
		return fmt.Errorf("security.csrf.secret must be at least 32 bytes")
	}

	v := cfg.Security.Validation
	if v.Enabled {
		if v.MaxRequestBytes <= 0 {
			return fmt.Errorf("security.validation.max_request_bytes must be positive")
		}
		if v.MaxParamDepth <= 0 {
			return fmt.Errorf("security.validation.max_param_depth must be positive")
		}
		if v.MaxParamKeys <= 0 {
			return fmt.Errorf("security.validation.max_param_keys must be positive")
		}
	}

	switch cfg.Session.Store {
	case "", "memory":
	case "redis":
		if cfg.Session.Redis.Address == "" {
			return fmt.Errorf("session.redis.address is required for the redis store")
		}
	default:
		return fmt.Errorf("invalid session store: %s", cfg.Session.Store)
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Rate <= 0 {
			return fmt.Errorf("rate_limit.rate must be positive")
		}
		switch cfg.RateLimit.Backend {
		case "", "memory":
		case "redis":
			if cfg.RateLimit.Redis.Address == "" {
				return fmt.Errorf("rate_limit.redis.address is required for the redis backend")
			}
		default:
			return fmt.Errorf("invalid rate limit backend: %s", cfg.RateLimit.Backend)
		}
	}

	if cfg.Auth.Token.Enabled {
		alg := cfg.Auth.Token.Algorithm
		if alg == "" || strings.HasPrefix(alg, "HS") {
			if cfg.Auth.Token.Secret == "" {
				return fmt.Errorf("auth.token.secret is required for HMAC algorithms")
			}
		} else if strings.HasPrefix(alg, "RS") {
			if cfg.Auth.Token.PublicKey == "" {
				return fmt.Errorf("auth.token.public_key is required for RSA algorithms")
			}
		} else {
			return fmt.Errorf("unsupported token algorithm: %s", alg)
		}
	}

	seen := make(map[string]bool, len(cfg.Static))
	for i, m := range cfg.Static {
		if m.Prefix == "" || m.Root == "" {
			return fmt.Errorf("static mount %d: prefix and root are required", i)
		}
		if !strings.HasPrefix(m.Prefix, "/") {
			return fmt.Errorf("static mount %d: prefix must start with /", i)
		}
		if seen[m.Prefix] {
			return fmt.Errorf("duplicate static mount prefix: %s", m.Prefix)
		}
		seen[m.Prefix] = true
	}

	return nil
}
