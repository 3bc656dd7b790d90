// Package server assembles the full request pipeline: middleware
// stack, dispatcher, auth resolver, handler invocation and response
// formatting. All mutators are usable only during the configuration
// window; the first request freezes everything.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/courier-http/courier/internal/auth"
	"github.com/courier-http/courier/internal/config"
	"github.com/courier-http/courier/internal/freeze"
	"github.com/courier-http/courier/internal/handler"
	"github.com/courier-http/courier/internal/logging"
	"github.com/courier-http/courier/internal/metrics"
	"github.com/courier-http/courier/internal/middleware"
	"github.com/courier-http/courier/internal/middleware/csrf"
	"github.com/courier-http/courier/internal/middleware/privacy"
	"github.com/courier-http/courier/internal/middleware/ratelimit"
	"github.com/courier-http/courier/internal/middleware/securityheaders"
	"github.com/courier-http/courier/internal/middleware/validation"
	"github.com/courier-http/courier/internal/router"
	"github.com/courier-http/courier/internal/routes"
	"github.com/courier-http/courier/internal/session"
	"github.com/courier-http/courier/internal/static"
	"go.uber.org/zap"
)

// Server owns all pipeline state. It is an http.Handler; the first
// request it serves freezes the configuration.
type Server struct {
	cfg   *config.Config
	guard freeze.Guard

	strategies *auth.Registry
	resolver   *auth.Resolver
	handlers   *handler.Registry
	router     *router.Router
	store      session.Store

	builder   *middleware.Builder
	collector *metrics.Collector

	protector *csrf.Protector
	validator *validation.Validator
	limiter   *ratelimit.Limiter
	privacy   *privacy.Resolver
	headers   *securityheaders.Compiled

	mu       sync.Mutex
	proxies  []string
	invokers map[*routes.Route]handler.Invoker
	chain    http.Handler
	loadErrs []*routes.LoadError
}

// New builds a Server from configuration. Construction opens the
// configuration window; handlers, strategies and routes are added
// afterwards and the whole thing freezes on the first request.
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	store, err := newStore(cfg.Session)
	if err != nil {
		return nil, err
	}

	tier, err := static.NewTier(cfg.Static)
	if err != nil {
		return nil, err
	}

	priv, err := privacy.New(cfg.Security.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		store:     store,
		builder:   middleware.NewBuilder(),
		collector: metrics.NewCollector(),
		privacy:   priv,
		headers:   securityheaders.New(cfg.Security.Headers),
		proxies:   append([]string(nil), cfg.Security.TrustedProxies...),
		invokers:  make(map[*routes.Route]handler.Invoker),
	}

	s.strategies = auth.NewRegistry(&s.guard)
	s.resolver = auth.NewResolver(s.strategies)
	s.handlers = handler.NewRegistry(&s.guard)
	s.router = router.New(&s.guard, tier)

	if cfg.Security.CSRF.Enabled {
		s.protector = csrf.New(cfg.Security.CSRF, cfg.Session.CookieName, false)
		s.protector.OnRejection(s.collector.RecordCSRFRejection)
	}
	if cfg.Security.Validation.Enabled {
		s.validator = validation.New(cfg.Security.Validation)
		s.validator.OnRejection(s.collector.RecordValidationRejection)
	}
	if cfg.RateLimit.Enabled {
		var backend ratelimit.Backend
		if cfg.RateLimit.Backend == "redis" {
			backend = ratelimit.NewRedisBackend(cfg.RateLimit)
		}
		s.limiter = ratelimit.New(cfg.RateLimit, backend)
		s.limiter.OnRejection(s.collector.RecordRateLimited)
	}

	if err := s.registerBuiltinStrategies(); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Store {
	case "", "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		return session.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// registerBuiltinStrategies wires the configured strategies under
// their canonical names.
func (s *Server) registerBuiltinStrategies() error {
	ac := s.cfg.Auth

	if ac.Session.Enabled {
		s.strategies.Register("session", auth.NewSessionStrategy(ac.Session.UserKey))
	}
	if ac.APIKey.Enabled {
		s.strategies.Register("apikey", auth.NewAPIKeyStrategy(ac.APIKey))
	}
	if ac.Token.Enabled {
		ts, err := auth.NewTokenStrategy(ac.Token)
		if err != nil {
			return fmt.Errorf("token strategy: %w", err)
		}
		s.strategies.Register("token", ts)
	}
	if ac.Basic.Enabled {
		s.strategies.Register("basic", auth.NewBasicStrategy(ac.Basic))
	}
	if ac.Role.Enabled {
		name := "role"
		if ac.Role.Wildcard {
			name = "role:*"
		}
		s.strategies.Register(name, auth.NewRoleStrategy(ac.Role.RolesKey, ac.Session.UserKey))
	}
	return nil
}

// Use appends a named middleware to the stack.
func (s *Server) Use(name string, m middleware.Middleware) error {
	s.guard.MustBeConfigurable()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder.Use(name, m)
}

// AddTrustedProxy extends the trusted proxy set.
func (s *Server) AddTrustedProxy(cidr string) error {
	s.guard.MustBeConfigurable()
	s.mu.Lock()
	defer s.mu.Unlock()

	proxies := append(append([]string(nil), s.proxies...), cidr)
	priv, err := privacy.New(proxies)
	if err != nil {
		return err
	}
	s.proxies = proxies
	s.privacy = priv
	return nil
}

// AddAuthStrategy registers a strategy under a requirement name.
func (s *Server) AddAuthStrategy(name string, strategy auth.Strategy) {
	s.strategies.Register(name, strategy)
}

// RegisterClass registers a class-level handler table.
func (s *Server) RegisterClass(name string, methods map[string]handler.Func) {
	s.handlers.RegisterClass(name, methods)
}

// RegisterInstance registers an instance handler factory.
func (s *Server) RegisterInstance(name string, factory func() handler.Instance) {
	s.handlers.RegisterInstance(name, factory)
}

// RegisterLogic registers a logic unit.
func (s *Server) RegisterLogic(name string, fn handler.LogicFunc) {
	s.handlers.RegisterLogic(name, fn)
}

// LoadManifest loads a route manifest file. Malformed lines were
// already skipped with a warning; unknown handler targets are fatal
// here, at load time.
func (s *Server) LoadManifest(path string) error {
	s.guard.MustBeConfigurable()

	rs, loadErrs, err := routes.LoadFile(path)
	if err != nil {
		return err
	}
	return s.addRoutes(rs, loadErrs)
}

// LoadRoutes registers pre-parsed routes.
func (s *Server) LoadRoutes(rs []*routes.Route) error {
	s.guard.MustBeConfigurable()
	return s.addRoutes(rs, nil)
}

func (s *Server) addRoutes(rs []*routes.Route, loadErrs []*routes.LoadError) error {
	for _, le := range loadErrs {
		logging.Warn("skipping malformed manifest line",
			zap.Int("line", le.Line),
			zap.String("text", le.Text),
			zap.String("reason", le.Message),
		)
	}
	s.mu.Lock()
	s.loadErrs = append(s.loadErrs, loadErrs...)
	s.mu.Unlock()

	for _, rt := range rs {
		inv, err := s.handlers.Resolve(rt.Target)
		if err != nil {
			return fmt.Errorf("route %s %s: %w", rt.Verb, rt.Path, err)
		}
		if err := s.router.AddRoute(rt); err != nil {
			return err
		}
		s.mu.Lock()
		s.invokers[rt] = inv
		s.mu.Unlock()
	}
	return nil
}

// Frozen reports whether the first request has sealed configuration.
func (s *Server) Frozen() bool {
	return s.guard.Frozen()
}

// Collector exposes the metrics collector for the operations listener.
func (s *Server) Collector() *metrics.Collector {
	return s.collector
}

// ServeHTTP freezes configuration on first use and serves through the
// composed chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.guard.Freeze(s.buildChain)
	s.chain.ServeHTTP(w, r)
}

// Close releases the session store and flushes logs.
func (s *Server) Close() error {
	var err error
	if closer, ok := s.store.(interface{ Close() error }); ok {
		err = closer.Close()
	}
	logging.Sync()
	return err
}

// sessionID returns the request's session identifier, or "".
func (s *Server) sessionID(r *http.Request) string {
	return session.IDFromRequest(r, s.cfg.Session.CookieName)
}

// installSession merges an authenticated result's session mapping into
// the shared store so later stages and handlers observe it.
func (s *Server) installSession(ctx context.Context, id string, data map[string]interface{}) {
	if id == "" || len(data) == 0 {
		return
	}
	existing, err := s.store.Get(ctx, id)
	if err != nil || existing == nil {
		existing = map[string]interface{}{}
	}
	for k, v := range data {
		existing[k] = v
	}
	if err := s.store.Set(ctx, id, existing, s.cfg.Session.TTL); err != nil {
		logging.Warn("session install failed", zap.String("session_id", id), zap.Error(err))
	}
}
