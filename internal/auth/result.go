// Package auth implements the authentication-strategy resolution engine.
// Every dispatched route receives a Result: routes without an auth option
// get an anonymous result, routes with one get OR-logic evaluation of the
// listed requirements, first success wins.
package auth

type resultKind int

const (
	kindAuthenticated resultKind = iota
	kindAnonymous
	kindFailure
)

// Result is the immutable outcome of strategy evaluation. Handlers always
// see either an authenticated or an anonymous result; failure results are
// internal to the resolver.
type Result struct {
	kind     resultKind
	user     interface{}
	session  map[string]interface{}
	method   string
	metadata map[string]interface{}
	reason   string
}

// Authenticated builds a successful result.
func Authenticated(user interface{}, session map[string]interface{}, method string, metadata map[string]interface{}) *Result {
	if session == nil {
		session = map[string]interface{}{}
	}
	return &Result{
		kind:     kindAuthenticated,
		user:     user,
		session:  session,
		method:   method,
		metadata: metadata,
	}
}

// Anonymous builds the anonymous result: empty session, nil user.
func Anonymous() *Result {
	return &Result{
		kind:    kindAnonymous,
		session: map[string]interface{}{},
		method:  "anonymous",
	}
}

// Failure builds an internal failure result carrying the reason a strategy
// declined. Failure results never reach handlers.
func Failure(method, reason string) *Result {
	return &Result{
		kind:   kindFailure,
		method: method,
		reason: reason,
	}
}

// IsAuthenticated reports whether a strategy succeeded.
func (r *Result) IsAuthenticated() bool {
	return r != nil && r.kind == kindAuthenticated
}

// IsAnonymous reports whether this is the anonymous result.
func (r *Result) IsAnonymous() bool {
	return r != nil && r.kind == kindAnonymous
}

// User returns the opaque user reference, nil for anonymous results.
func (r *Result) User() interface{} {
	return r.user
}

// Session returns the result's session mapping.
func (r *Result) Session() map[string]interface{} {
	return r.session
}

// Method returns the auth-method tag ("session", "apikey", "anonymous", ...).
func (r *Result) Method() string {
	return r.method
}

// Metadata returns strategy-specific metadata, may be nil.
func (r *Result) Metadata() map[string]interface{} {
	return r.metadata
}

// failureReason is used by the resolver for logging; empty unless the
// result is a failure.
func (r *Result) failureReason() string {
	if r == nil {
		return "strategy returned no result"
	}
	return r.reason
}
