// Package handler holds the registered-handler table that route targets
// resolve against at load time. Targets are bound to typed functions
// registered at startup; there is no runtime reflection.
package handler

import (
	"net/http"

	"github.com/courier-http/courier/internal/auth"
	"github.com/courier-http/courier/internal/routes"
)

// Params is the merged parameter mapping a handler receives: path
// captures, query parameters and sanitized form values.
type Params map[string]interface{}

// String returns a parameter as a string, or "".
func (p Params) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Context carries everything a handler may use. Handlers return a value
// for the response formatter instead of writing to the connection.
type Context struct {
	Request *http.Request
	Route   *routes.Route
	Params  Params
	Auth    *auth.Result
	Locale  string
}

// Func is a class-level callable.
type Func func(*Context) (interface{}, error)

// Instance is an instance-level callable: a fresh value is constructed
// per request, then asked to handle the named method.
type Instance interface {
	Handle(method string, ctx *Context) (interface{}, error)
}

// LogicFunc is the constrained logic-unit signature: no access to the raw
// request, only the auth result, merged parameters and resolved locale.
type LogicFunc func(res *auth.Result, params Params, locale string) (interface{}, error)
