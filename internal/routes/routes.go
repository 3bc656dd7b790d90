// Package routes compiles plaintext route manifests into immutable route
// descriptors. One manifest line has the form
//
//	VERB PATH TARGET [key=value ...]
//
// for example
//
//	GET /users/:id UsersController#show response=json auth=session,apikey
//
// Lines not starting with a word character are ignored. Malformed lines
// are skipped with a LoadError; unsafe target names abort loading.
package routes

import (
	"strings"
)

// TargetKind classifies how a route target is invoked.
type TargetKind int

const (
	// ClassMethod targets Name.Method called on a registered class table.
	ClassMethod TargetKind = iota
	// InstanceMethod targets Name#Method: instantiate, then call.
	InstanceMethod
	// LogicUnit targets a bare handler invoked with the constrained
	// (auth result, params, locale) signature.
	LogicUnit
)

func (k TargetKind) String() string {
	switch k {
	case ClassMethod:
		return "class"
	case InstanceMethod:
		return "instance"
	case LogicUnit:
		return "logic"
	default:
		return "unknown"
	}
}

// Target is a parsed route target specification.
type Target struct {
	Kind   TargetKind
	Name   string
	Method string
}

func (t Target) String() string {
	switch t.Kind {
	case ClassMethod:
		return t.Name + "." + t.Method
	case InstanceMethod:
		return t.Name + "#" + t.Method
	default:
		return t.Name
	}
}

// Route is an immutable compiled route descriptor. It is created once at
// load time and never mutated afterwards.
type Route struct {
	Verb    string
	Path    string
	Target  Target
	options map[string]string
	matcher *matcher
}

// Option returns the value of a route option, or "".
func (r *Route) Option(key string) string {
	return r.options[key]
}

// Options returns a copy of the route's option mapping.
func (r *Route) Options() map[string]string {
	out := make(map[string]string, len(r.options))
	for k, v := range r.options {
		out[k] = v
	}
	return out
}

// ResponseMode returns the route's declared response option
// (json | redirect | view | auto | "").
func (r *Route) ResponseMode() string {
	return r.options["response"]
}

// CSRFExempt reports whether the route opted out of CSRF protection.
func (r *Route) CSRFExempt() bool {
	return r.options["csrf"] == "exempt"
}

// AuthRequirements returns the comma-separated auth option split in
// declaration order, or nil when the route has no auth option.
func (r *Route) AuthRequirements() []string {
	raw := r.options["auth"]
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Literal reports whether the route's path contains no captures and can be
// matched by exact string comparison.
func (r *Route) Literal() bool {
	return r.matcher.literal
}

// ParamNames returns the capture names in declaration order.
func (r *Route) ParamNames() []string {
	return r.matcher.paramNames
}

// Match matches a normalized path against the route's compiled matcher and
// extracts path parameters. The full path must match; there is no partial
// matching.
func (r *Route) Match(path string) (map[string]string, bool) {
	return r.matcher.match(path)
}

// Pattern returns the compiled matcher's pattern source, for diagnostics
// and determinism checks.
func (r *Route) Pattern() string {
	return r.matcher.pattern
}
