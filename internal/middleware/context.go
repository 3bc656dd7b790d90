package middleware

import (
	"context"

	"github.com/courier-http/courier/internal/routes"
)

type routeKey struct{}

// WithRoute stores the dispatched route descriptor in the context so
// route-scoped middlewares can consult its options.
func WithRoute(ctx context.Context, rt *routes.Route) context.Context {
	return context.WithValue(ctx, routeKey{}, rt)
}

// RouteFromContext returns the dispatched route, or nil before dispatch.
func RouteFromContext(ctx context.Context) *routes.Route {
	if rt, ok := ctx.Value(routeKey{}).(*routes.Route); ok {
		return rt
	}
	return nil
}

type pathParamsKey struct{}

// WithPathParams stores the captures extracted by the dispatcher.
func WithPathParams(ctx context.Context, params map[string]string) context.Context {
	return context.WithValue(ctx, pathParamsKey{}, params)
}

// PathParamsFromContext returns the dispatcher's path captures, or nil.
func PathParamsFromContext(ctx context.Context) map[string]string {
	if p, ok := ctx.Value(pathParamsKey{}).(map[string]string); ok {
		return p
	}
	return nil
}

type paramsKey struct{}

// WithParams stores the validated, sanitized parameter mapping produced
// by the input validator.
func WithParams(ctx context.Context, params map[string]interface{}) context.Context {
	return context.WithValue(ctx, paramsKey{}, params)
}

// ParamsFromContext returns the sanitized parameters, or nil when the
// validator did not run.
func ParamsFromContext(ctx context.Context) map[string]interface{} {
	if p, ok := ctx.Value(paramsKey{}).(map[string]interface{}); ok {
		return p
	}
	return nil
}
