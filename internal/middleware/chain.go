package middleware

import (
	"fmt"
	"net/http"
)

// Middleware is a function that wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// Chain represents a chain of middlewares
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{
		middlewares: middlewares,
	}
}

// Then chains the middlewares and returns the final handler
func (c *Chain) Then(h http.Handler) http.Handler {
	if h == nil {
		h = http.DefaultServeMux
	}

	// Apply middlewares in reverse order so first middleware is outermost
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i](h)
	}

	return h
}

// ThenFunc chains the middlewares with an http.HandlerFunc
func (c *Chain) ThenFunc(fn http.HandlerFunc) http.Handler {
	if fn == nil {
		return c.Then(nil)
	}
	return c.Then(fn)
}

// Len returns the number of middlewares in the chain
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Builder accumulates an ordered, de-duplicated middleware list during
// the configuration window. Build folds the list exactly once; the
// resulting chain is reused for every request.
type Builder struct {
	middlewares []Middleware
	names       map[string]bool
}

// NewBuilder creates a new middleware builder
func NewBuilder() *Builder {
	return &Builder{
		middlewares: make([]Middleware, 0),
		names:       make(map[string]bool),
	}
}

// Use appends a named middleware. Re-using a name is rejected; a
// middleware that supports multiple independently-configured instances
// must be added under distinct names.
func (b *Builder) Use(name string, m Middleware) error {
	if b.names[name] {
		return fmt.Errorf("middleware %q already registered", name)
	}
	b.names[name] = true
	b.middlewares = append(b.middlewares, m)
	return nil
}

// UseIf appends the middleware only when condition holds.
func (b *Builder) UseIf(condition bool, name string, m Middleware) error {
	if !condition {
		return nil
	}
	return b.Use(name, m)
}

// Has reports whether a middleware name is registered.
func (b *Builder) Has(name string) bool {
	return b.names[name]
}

// Len returns the number of registered middlewares.
func (b *Builder) Len() int {
	return len(b.middlewares)
}

// Build creates a Chain from the builder
func (b *Builder) Build() *Chain {
	return NewChain(b.middlewares...)
}

// Handler wraps the given handler with all middlewares
func (b *Builder) Handler(h http.Handler) http.Handler {
	return b.Build().Then(h)
}

// WrapFunc converts a middleware-style function to a Middleware
func WrapFunc(fn func(w http.ResponseWriter, r *http.Request, next http.Handler)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fn(w, r, next)
		})
	}
}
