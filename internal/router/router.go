// Package router dispatches requests in three tiers: literal routes by
// exact path, static mounts by prefix, then dynamic routes scanned in
// registration order where the first match wins.
package router

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/courier-http/courier/internal/freeze"
	"github.com/courier-http/courier/internal/routes"
	"github.com/courier-http/courier/internal/static"
)

// Match is the outcome of a successful lookup: either a compiled route
// with extracted parameters or a static mount.
type Match struct {
	Route  *routes.Route
	Params map[string]string
	Mount  *static.Mount
}

// Router holds the frozen route tables.
type Router struct {
	guard    *freeze.Guard
	literals map[string]map[string]*routes.Route
	dynamic  map[string][]*routes.Route
	tier     *static.Tier
	errors   map[int]*routes.Route
}

// New creates a Router bound to the freeze guard. The static tier may
// be nil when no mounts are configured.
func New(guard *freeze.Guard, tier *static.Tier) *Router {
	return &Router{
		guard:    guard,
		literals: make(map[string]map[string]*routes.Route),
		dynamic:  make(map[string][]*routes.Route),
		tier:     tier,
		errors:   make(map[int]*routes.Route),
	}
}

// AddRoute registers a compiled route. Literal paths go to the exact
// table; patterned paths append to the ordered dynamic list. Literal
// /404 and /500 routes additionally register as error interceptors.
func (rt *Router) AddRoute(r *routes.Route) error {
	rt.guard.MustBeConfigurable()

	verb := r.Verb
	if r.Literal() {
		table := rt.literals[verb]
		if table == nil {
			table = make(map[string]*routes.Route)
			rt.literals[verb] = table
		}
		if _, dup := table[r.Path]; dup {
			return fmt.Errorf("duplicate literal route %s %s", verb, r.Path)
		}
		table[r.Path] = r

		switch r.Path {
		case "/404":
			rt.errors[http.StatusNotFound] = r
		case "/500":
			rt.errors[http.StatusInternalServerError] = r
		}
		return nil
	}

	rt.dynamic[verb] = append(rt.dynamic[verb], r)
	return nil
}

// AddRoutes registers a batch, stopping at the first error.
func (rt *Router) AddRoutes(rs []*routes.Route) error {
	for _, r := range rs {
		if err := rt.AddRoute(r); err != nil {
			return err
		}
	}
	return nil
}

// ErrorRoute returns the manifest route intercepting the given status,
// or nil.
func (rt *Router) ErrorRoute(status int) *routes.Route {
	return rt.errors[status]
}

// NormalizePath canonicalizes a request path: a leading slash is
// enforced, a trailing slash (except on the root) is stripped, and
// invalid UTF-8 is refused.
func NormalizePath(path string) (string, bool) {
	if !utf8.ValidString(path) {
		return "", false
	}
	if path == "" {
		return "/", true
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path, true
}

// Lookup resolves a normalized path for a verb. HEAD requests fall
// back to GET routes when no HEAD route exists.
func (rt *Router) Lookup(verb, path string) (*Match, bool) {
	if m, ok := rt.lookupVerb(verb, path); ok {
		return m, true
	}
	if verb == http.MethodHead {
		return rt.lookupVerb(http.MethodGet, path)
	}
	return nil, false
}

func (rt *Router) lookupVerb(verb, path string) (*Match, bool) {
	if table := rt.literals[verb]; table != nil {
		if r, ok := table[path]; ok {
			return &Match{Route: r, Params: map[string]string{}}, true
		}
	}

	if (verb == http.MethodGet || verb == http.MethodHead) && rt.tier != nil {
		if m := rt.tier.Lookup(path); m != nil {
			return &Match{Mount: m}, true
		}
	}

	for _, r := range rt.dynamic[verb] {
		if params, ok := r.Match(path); ok {
			if params == nil {
				params = map[string]string{}
			}
			return &Match{Route: r, Params: params}, true
		}
	}
	return nil, false
}

// MethodAllowed reports whether any other verb would match the path,
// which distinguishes 405 from 404.
func (rt *Router) MethodAllowed(excludeVerb, path string) bool {
	for verb, table := range rt.literals {
		if verb == excludeVerb {
			continue
		}
		if _, ok := table[path]; ok {
			return true
		}
	}
	for verb, list := range rt.dynamic {
		if verb == excludeVerb {
			continue
		}
		for _, r := range list {
			if _, ok := r.Match(path); ok {
				return true
			}
		}
	}
	return false
}
