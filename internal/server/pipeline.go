package server

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/courier-http/courier/internal/auth"
	"github.com/courier-http/courier/internal/errors"
	"github.com/courier-http/courier/internal/handler"
	"github.com/courier-http/courier/internal/logging"
	"github.com/courier-http/courier/internal/middleware"
	"github.com/courier-http/courier/internal/respond"
	"github.com/courier-http/courier/internal/router"
	"github.com/courier-http/courier/internal/routes"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// buildChain composes the outer and route-scoped middleware exactly
// once, as a freeze hook. The outer chain runs before dispatch; the
// route chain (CSRF, validation, user middlewares) runs with the
// matched route in context.
func (s *Server) buildChain() {
	outer := middleware.NewBuilder()
	outer.Use("requestid", middleware.RequestID())
	outer.Use("recovery", middleware.RecoveryWithConfig(middleware.RecoveryConfig{
		PrintStack:   true,
		ExposeDetail: s.cfg.Development,
	}))
	outer.Use("securityheaders", s.headers.Middleware())
	outer.Use("privacy", s.privacy.Middleware())
	if len(s.cfg.Security.HeaderMap) > 0 {
		outer.Use("headermap", middleware.HeaderMap(s.cfg.Security.HeaderMap))
	}
	if s.limiter != nil {
		outer.Use("ratelimit", s.limiter.Middleware())
	}

	route := middleware.NewBuilder()
	if s.protector != nil {
		route.Use("csrf", s.protector.Middleware())
	}
	if s.validator != nil {
		route.Use("validation", s.validator.Middleware())
	}
	// User-added middlewares run after the built-in security stages.
	userChain := s.builder.Build()
	route.Use("user", func(next http.Handler) http.Handler {
		return userChain.Then(next)
	})
	routeChain := route.Handler(http.HandlerFunc(s.invoke))

	terminal := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, routeChain)
	})
	s.chain = outer.Handler(terminal)
}

// statusRecorder captures the terminal status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}

// dispatch normalizes the path, selects the route or static mount and
// hands matched routes to the route-scoped chain.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, routeChain http.Handler) {
	start := time.Now()
	done := s.collector.RequestStarted()
	defer done()

	rec := &statusRecorder{ResponseWriter: w}
	label := r.URL.Path

	defer func() {
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		s.collector.RecordRequest(label, r.Method, status, time.Since(start))
	}()

	path, ok := router.NormalizePath(r.URL.Path)
	if !ok {
		respond.WriteError(rec, r, nil, errors.ErrBadRequest.WithDetails("malformed request path"))
		return
	}

	match, found := s.router.Lookup(r.Method, path)
	if !found {
		if s.router.MethodAllowed(r.Method, path) {
			respond.WriteError(rec, r, nil, errors.ErrMethodNotAllowed)
			return
		}
		s.notFound(rec, r)
		return
	}

	if match.Mount != nil {
		match.Mount.ServeHTTP(rec, r)
		return
	}

	label = match.Route.Path
	ctx := middleware.WithRoute(r.Context(), match.Route)
	ctx = middleware.WithPathParams(ctx, match.Params)
	routeChain.ServeHTTP(rec, r.WithContext(ctx))
}

// notFound consults the manifest's /404 interceptor before the
// built-in fallback.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if rt := s.router.ErrorRoute(http.StatusNotFound); rt != nil {
		s.invokeErrorRoute(w, r, rt, http.StatusNotFound)
		return
	}
	respond.WriteError(w, r, nil, errors.ErrNotFound)
}

// invoke runs auth resolution and the handler for the matched route.
func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	rt := middleware.RouteFromContext(r.Context())
	if rt == nil {
		respond.WriteError(w, r, nil, errors.ErrInternalServer)
		return
	}
	pathParams := middleware.PathParamsFromContext(r.Context())

	authCtx := &auth.Context{
		Request:    r,
		SessionID:  s.sessionID(r),
		Store:      s.store,
		PathParams: pathParams,
	}

	result, rejection := s.resolver.Resolve(rt, authCtx)
	if rejection != nil {
		s.collector.RecordAuth("none", "rejected")
		s.rejectAuth(w, r, rt)
		return
	}
	s.collector.RecordAuth(result.Method(), "accepted")

	s.installSession(r.Context(), authCtx.SessionID, result.Session())

	params := s.mergeParams(r, pathParams)
	hctx := &handler.Context{
		Request: r,
		Route:   rt,
		Params:  params,
		Auth:    result,
		Locale:  resolveLocale(r),
	}

	s.mu.Lock()
	inv := s.invokers[rt]
	s.mu.Unlock()
	if inv == nil {
		respond.WriteError(w, r, rt, errors.ErrInternalServer)
		return
	}

	value, err := safeInvoke(inv, hctx)
	if err != nil {
		s.handlerError(w, r, rt, err)
		return
	}
	respond.Write(w, r, rt, value)
}

// safeInvoke converts a handler panic into an error so the full error
// path applies to panics too: /500 interception, correlation id, the
// route's declared response mode. The outer recovery middleware stays
// as a backstop for panics elsewhere in the chain.
func safeInvoke(inv handler.Invoker, hctx *handler.Context) (value interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			logging.Error("handler panic",
				zap.Any("panic", p),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return inv(hctx)
}

// rejectAuth answers an exhausted requirement list: 302 to the login
// page for browser-facing routes, otherwise 401.
func (s *Server) rejectAuth(w http.ResponseWriter, r *http.Request, rt *routes.Route) {
	mode := rt.ResponseMode()
	browserFacing := mode == "view" || mode == "redirect"
	if browserFacing && s.cfg.Auth.LoginPath != "" {
		http.Redirect(w, r, s.cfg.Auth.LoginPath, http.StatusFound)
		return
	}
	courierErr := errors.ErrUnauthorized
	if reqID := middleware.RequestIDFromContext(r.Context()); reqID != "" {
		courierErr = courierErr.WithRequestID(reqID)
	}
	respond.WriteError(w, r, rt, courierErr)
}

// handlerError maps an uncaught handler error to a 500 with a
// correlation id. Full detail stays in the logs; the client sees a
// generic message unless development mode is active.
func (s *Server) handlerError(w http.ResponseWriter, r *http.Request, rt *routes.Route, err error) {
	if courierErr, ok := errors.IsCourierError(err); ok {
		respond.WriteError(w, r, rt, courierErr)
		return
	}

	correlationID := uuid.New().String()
	logging.Error("handler error",
		zap.String("correlation_id", correlationID),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)

	if rt500 := s.router.ErrorRoute(http.StatusInternalServerError); rt500 != nil && rt500 != rt {
		s.invokeErrorRoute(w, r, rt500, http.StatusInternalServerError)
		return
	}

	courierErr := errors.ErrInternalServer.WithRequestID(correlationID)
	if s.cfg.Development {
		courierErr = courierErr.WithDetails(err.Error())
	}
	respond.WriteError(w, r, rt, courierErr)
}

// invokeErrorRoute runs a manifest /404 or /500 route's handler with
// the interception status.
func (s *Server) invokeErrorRoute(w http.ResponseWriter, r *http.Request, rt *routes.Route, status int) {
	s.mu.Lock()
	inv := s.invokers[rt]
	s.mu.Unlock()
	if inv == nil {
		respond.WriteError(w, r, nil, errors.New(status, http.StatusText(status)))
		return
	}

	value, err := inv(&handler.Context{
		Request: r,
		Route:   rt,
		Params:  handler.Params{},
		Auth:    auth.Anonymous(),
		Locale:  resolveLocale(r),
	})
	if err != nil {
		respond.WriteError(w, r, rt, errors.New(status, http.StatusText(status)))
		return
	}
	if resp, ok := value.(*respond.Response); ok {
		if resp.Status == 0 {
			resp.Status = status
		}
		respond.Write(w, r, rt, resp)
		return
	}
	respond.Write(w, r, rt, &respond.Response{Status: status, Body: value})
}

// mergeParams folds path captures over the validator's sanitized
// parameter mapping. Path captures win on collision.
func (s *Server) mergeParams(r *http.Request, pathParams map[string]string) handler.Params {
	params := handler.Params{}
	for k, v := range middleware.ParamsFromContext(r.Context()) {
		params[k] = v
	}
	if s.validator == nil {
		for k, vals := range r.URL.Query() {
			if len(vals) == 1 {
				params[k] = vals[0]
			} else {
				params[k] = vals
			}
		}
	}
	for k, v := range pathParams {
		params[k] = v
	}
	return params
}

// resolveLocale picks the first Accept-Language tag, defaulting to en.
func resolveLocale(r *http.Request) string {
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return "en"
	}
	for i := 0; i < len(accept); i++ {
		if accept[i] == ',' || accept[i] == ';' {
			return accept[:i]
		}
	}
	return accept
}
