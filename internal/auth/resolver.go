package auth

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/courier-http/courier/internal/logging"
	"github.com/courier-http/courier/internal/routes"
)

// Rejection describes an exhausted requirement list: every strategy failed
// or was unregistered. The tried list preserves requirement order for the
// logs.
type Rejection struct {
	Tried []string
}

// binding is a resolved (requirement -> strategy) pair. A nil strategy
// marks an unregistered requirement that is skipped at evaluation time.
type binding struct {
	req      Requirement
	strategy Strategy
}

// Resolver evaluates a route's auth requirements. Strategy lookups are
// cached per requirement string; authentication itself is re-evaluated on
// every request.
type Resolver struct {
	registry *Registry
	cache    *lru.Cache[string, []binding]
}

// NewResolver creates a resolver over the registry.
func NewResolver(registry *Registry) *Resolver {
	cache, _ := lru.New[string, []binding](256)
	return &Resolver{
		registry: registry,
		cache:    cache,
	}
}

// Resolve evaluates the route's requirements left to right with OR
// semantics. Routes without an auth option yield the anonymous result.
// The first authenticated result short-circuits the remainder; if every
// requirement is exhausted a Rejection is returned and the handler must
// not run.
func (rv *Resolver) Resolve(route *routes.Route, ctx *Context) (*Result, *Rejection) {
	raw := route.Option("auth")
	if raw == "" {
		return Anonymous(), nil
	}

	bindings := rv.bindings(raw)
	tried := make([]string, 0, len(bindings))

	for _, b := range bindings {
		tried = append(tried, b.req.Raw)
		if b.strategy == nil {
			logging.Warn("auth strategy not registered, skipping requirement",
				zap.String("requirement", b.req.Raw),
			)
			continue
		}

		res := b.strategy.Authenticate(ctx, b.req)
		if res.IsAuthenticated() {
			return res, nil
		}
		logging.Debug("auth strategy declined",
			zap.String("requirement", b.req.Raw),
			zap.String("reason", res.failureReason()),
		)
	}

	logging.Info("authentication exhausted",
		zap.Strings("strategies_tried", tried),
	)
	return nil, &Rejection{Tried: tried}
}

// bindings resolves a requirement string to strategies, consulting the
// LRU first. Resolution order per requirement: exact name, prefix before
// ":" with the suffix as argument, then the "prefix:*" wildcard fallback.
func (rv *Resolver) bindings(raw string) []binding {
	if cached, ok := rv.cache.Get(raw); ok {
		return cached
	}

	parts := strings.Split(raw, ",")
	out := make([]binding, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, rv.bind(part))
	}

	rv.cache.Add(raw, out)
	return out
}

func (rv *Resolver) bind(raw string) binding {
	// Exact name wins.
	if s, ok := rv.registry.Lookup(raw); ok {
		return binding{req: Requirement{Raw: raw, Name: raw}, strategy: s}
	}

	name, arg, hasArg := strings.Cut(raw, ":")
	if hasArg {
		if s, ok := rv.registry.Lookup(name); ok {
			return binding{req: Requirement{Raw: raw, Name: name, Argument: arg}, strategy: s}
		}
		if s, ok := rv.registry.Lookup(name + ":*"); ok {
			return binding{req: Requirement{Raw: raw, Name: name, Argument: arg}, strategy: s}
		}
	}

	return binding{req: Requirement{Raw: raw, Name: name, Argument: arg}}
}
