package config

import "time"

// Config is the top-level courier configuration.
type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Ops         OpsConfig       `yaml:"ops"`
	Logging     LoggingConfig   `yaml:"logging"`
	Manifest    string          `yaml:"manifest"`
	Security    SecurityConfig  `yaml:"security"`
	Auth        AuthConfig      `yaml:"auth"`
	Session     SessionConfig   `yaml:"session"`
	Static      []StaticMount   `yaml:"static"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Development bool            `yaml:"development"`
}

// ServerConfig configures the main HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// OpsConfig configures the optional operations listener (metrics, health).
type OpsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// LoggingConfig configures structured logging output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// SecurityConfig is the mutable-until-frozen security bag shared by the
// pipeline middlewares.
type SecurityConfig struct {
	CSRF           CSRFConfig        `yaml:"csrf"`
	Validation     ValidationConfig  `yaml:"validation"`
	TrustedProxies []string          `yaml:"trusted_proxies"`
	HeaderMap      map[string]string `yaml:"header_map"`
	Headers        HeadersConfig     `yaml:"headers"`
}

// CSRFConfig configures the CSRF token subsystem.
type CSRFConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Secret     string `yaml:"secret"`
	ParamName  string `yaml:"param_name"`
	HeaderName string `yaml:"header_name"`
	AltHeader  string `yaml:"alt_header"`
	CookieName string `yaml:"cookie_name"`
}

// ValidationConfig configures the input validator ceilings.
type ValidationConfig struct {
	Enabled         bool     `yaml:"enabled"`
	MaxRequestBytes int64    `yaml:"max_request_bytes"`
	MaxParamDepth   int      `yaml:"max_param_depth"`
	MaxParamKeys    int      `yaml:"max_param_keys"`
	MaxArrayLength  int      `yaml:"max_array_length"`
	MaxKeyLength    int      `yaml:"max_key_length"`
	MaxValueLength  int      `yaml:"max_value_length"`
	DeniedTypes     []string `yaml:"denied_content_types"`
}

// HeadersConfig configures security response headers.
type HeadersConfig struct {
	XContentTypeOptions     string            `yaml:"x_content_type_options"`
	XFrameOptions           string            `yaml:"x_frame_options"`
	StrictTransportSecurity string            `yaml:"strict_transport_security"`
	ContentSecurityPolicy   string            `yaml:"content_security_policy"`
	ReferrerPolicy          string            `yaml:"referrer_policy"`
	Custom                  map[string]string `yaml:"custom"`
}

// AuthConfig configures the built-in authentication strategies.
type AuthConfig struct {
	LoginPath string         `yaml:"login_path"`
	Session   SessionAuth    `yaml:"session"`
	APIKey    APIKeyConfig   `yaml:"apikey"`
	Token     TokenConfig    `yaml:"token"`
	Basic     BasicConfig    `yaml:"basic"`
	Role      RoleAuthConfig `yaml:"role"`
}

// SessionAuth configures the session strategy.
type SessionAuth struct {
	Enabled bool   `yaml:"enabled"`
	UserKey string `yaml:"user_key"`
}

// APIKeyConfig configures the apikey strategy.
type APIKeyConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Header     string        `yaml:"header"`
	QueryParam string        `yaml:"query_param"`
	Keys       []APIKeyEntry `yaml:"keys"`
}

// APIKeyEntry maps one API key to a client identity.
type APIKeyEntry struct {
	Key      string `yaml:"key"`
	ClientID string `yaml:"client_id"`
}

// TokenConfig configures the JWT bearer-token strategy.
type TokenConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Secret    string   `yaml:"secret"`
	PublicKey string   `yaml:"public_key"`
	Algorithm string   `yaml:"algorithm"`
	Issuer    string   `yaml:"issuer"`
	Audience  []string `yaml:"audience"`
}

// BasicConfig configures the basic strategy.
type BasicConfig struct {
	Enabled bool        `yaml:"enabled"`
	Realm   string      `yaml:"realm"`
	Users   []BasicUser `yaml:"users"`
}

// BasicUser is one basic-auth principal with a bcrypt password hash.
type BasicUser struct {
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	ClientID     string   `yaml:"client_id"`
	Roles        []string `yaml:"roles"`
}

// RoleAuthConfig configures the role strategy.
type RoleAuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	RolesKey string `yaml:"roles_key"`
	Wildcard bool   `yaml:"wildcard"` // register as role:* fallback
}

// SessionConfig configures the session store.
type SessionConfig struct {
	Store      string        `yaml:"store"` // memory | redis
	CookieName string        `yaml:"cookie_name"`
	TTL        time.Duration `yaml:"ttl"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds redis connection settings shared by the session store
// and the rate-limit backend.
type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// StaticMount maps a URL prefix onto a filesystem directory.
type StaticMount struct {
	Prefix       string `yaml:"prefix"`
	Root         string `yaml:"root"`
	Index        string `yaml:"index"`
	CacheControl string `yaml:"cache_control"`
}

// RateLimitConfig configures the optional rate-limit middleware.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Rate    int           `yaml:"rate"`
	Period  time.Duration `yaml:"period"`
	Burst   int           `yaml:"burst"`
	PerIP   bool          `yaml:"per_ip"`
	Backend string        `yaml:"backend"` // memory | redis
	Redis   RedisConfig   `yaml:"redis"`
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Ops: OpsConfig{
			Address: ":9090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Security: SecurityConfig{
			CSRF: CSRFConfig{
				ParamName:  "csrf_token",
				HeaderName: "X-CSRF-Token",
				AltHeader:  "X-XSRF-Token",
				CookieName: "_courier_csrf",
			},
			Validation: ValidationConfig{
				MaxRequestBytes: 10 << 20, // 10 MiB
				MaxParamDepth:   8,
				MaxParamKeys:    256,
				MaxArrayLength:  256,
				MaxKeyLength:    128,
				MaxValueLength:  64 << 10,
				DeniedTypes: []string{
					"application/x-sh",
					"application/x-msdownload",
					"application/x-httpd-php",
					"text/x-script",
				},
			},
			Headers: HeadersConfig{
				XContentTypeOptions: "nosniff",
				XFrameOptions:       "SAMEORIGIN",
			},
		},
		Auth: AuthConfig{
			Session: SessionAuth{UserKey: "user_id"},
			Role:    RoleAuthConfig{RolesKey: "roles"},
		},
		Session: SessionConfig{
			Store:      "memory",
			CookieName: "_courier_session",
			TTL:        24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Period:  time.Minute,
			Backend: "memory",
		},
	}
}
