// Package securityheaders attaches the configured security response
// headers. Header pairs are precomputed once; the middleware sets them
// before the rest of the pipeline runs so error responses carry them
// too.
package securityheaders

import (
	"net/http"
	"sync/atomic"

	"github.com/courier-http/courier/internal/config"
	"github.com/courier-http/courier/internal/middleware"
)

// headerPair is a precomputed header name + value.
type headerPair struct {
	Name  string
	Value string
}

// Compiled holds the precomputed security headers.
type Compiled struct {
	headers []headerPair
	applied atomic.Int64
}

// New creates a Compiled set from config. Defaults are applied for
// fields not explicitly set.
func New(cfg config.HeadersConfig) *Compiled {
	var pairs []headerPair

	xcto := cfg.XContentTypeOptions
	if xcto == "" {
		xcto = "nosniff"
	}
	pairs = append(pairs, headerPair{"X-Content-Type-Options", xcto})

	if cfg.XFrameOptions != "" {
		pairs = append(pairs, headerPair{"X-Frame-Options", cfg.XFrameOptions})
	}
	if cfg.StrictTransportSecurity != "" {
		pairs = append(pairs, headerPair{"Strict-Transport-Security", cfg.StrictTransportSecurity})
	}
	if cfg.ContentSecurityPolicy != "" {
		pairs = append(pairs, headerPair{"Content-Security-Policy", cfg.ContentSecurityPolicy})
	}
	if cfg.ReferrerPolicy != "" {
		pairs = append(pairs, headerPair{"Referrer-Policy", cfg.ReferrerPolicy})
	}
	for name, value := range cfg.Custom {
		pairs = append(pairs, headerPair{name, value})
	}

	return &Compiled{headers: pairs}
}

// Apply sets all configured security headers.
func (c *Compiled) Apply(h http.Header) {
	c.applied.Add(1)
	for _, p := range c.headers {
		h.Set(p.Name, p.Value)
	}
}

// Count returns how many responses received headers.
func (c *Compiled) Count() int64 {
	return c.applied.Load()
}

// Middleware returns the chainable header stage. Headers are written
// up front so a panic or early rejection downstream still unwinds with
// them attached.
func (c *Compiled) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Apply(w.Header())
			next.ServeHTTP(w, r)
		})
	}
}
