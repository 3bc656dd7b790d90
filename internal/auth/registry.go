package auth

import (
	"net/http"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/courier-http/courier/internal/freeze"
	"github.com/courier-http/courier/internal/logging"
	"github.com/courier-http/courier/internal/session"
)

// Requirement is one parsed auth requirement. For "role:admin" resolved
// through the "role" strategy, Name is "role" and Argument is "admin";
// Raw preserves the manifest spelling.
type Requirement struct {
	Raw      string
	Name     string
	Argument string
}

// Strategy authenticates one requirement against a request context.
// Implementations return an authenticated result on success, a failure
// result (or nil) otherwise. Returning a failure result instead of nil
// gets the reason into the resolver's logs.
type Strategy interface {
	Authenticate(ctx *Context, req Requirement) *Result
}

// Context carries the read-only request facts strategies evaluate against.
// The session mapping is loaded from the store lazily, once.
type Context struct {
	Request    *http.Request
	SessionID  string
	Store      session.Store
	PathParams map[string]string

	sess       map[string]interface{}
	sessLoaded bool
}

// Session returns the session mapping for the context's session id,
// loading it from the store on first use. A missing or failed lookup
// yields an empty mapping.
func (c *Context) Session() map[string]interface{} {
	if c.sessLoaded {
		return c.sess
	}
	c.sessLoaded = true
	if c.Store == nil || c.SessionID == "" {
		c.sess = map[string]interface{}{}
		return c.sess
	}
	data, err := c.Store.Get(c.Request.Context(), c.SessionID)
	if err != nil {
		logging.Warn("session lookup failed", zap.String("session_id", c.SessionID), zap.Error(err))
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	c.sess = data
	return c.sess
}

// Registry maps strategy names to strategies. It is populated during the
// configuration window and frozen with the rest of the pipeline.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	guard      *freeze.Guard
}

// NewRegistry creates a registry bound to the given freeze guard.
func NewRegistry(guard *freeze.Guard) *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
		guard:      guard,
	}
}

// Register adds a strategy under a name. Names may be plain ("session"),
// argument-taking ("role"), or wildcard fallbacks ("role:*").
// Panics with freeze.ErrFrozen after the first request.
func (r *Registry) Register(name string, s Strategy) {
	r.guard.MustBeConfigurable()
	r.mu.Lock()
	r.strategies[name] = s
	r.mu.Unlock()
}

// Lookup returns the strategy registered under name.
func (r *Registry) Lookup(name string) (Strategy, bool) {
	r.mu.RLock()
	s, ok := r.strategies[name]
	r.mu.RUnlock()
	return s, ok
}

// Names returns the registered strategy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
