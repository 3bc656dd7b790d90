// Package csrf implements session-bound request forgery protection.
// Safe methods receive a freshly generated token injected into HTML
// responses; unsafe methods must present a valid token bound to the
// same session that will verify it.
package csrf

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/courier-http/courier/internal/config"
	"github.com/courier-http/courier/internal/errors"
	"github.com/courier-http/courier/internal/logging"
	"github.com/courier-http/courier/internal/middleware"
	"github.com/courier-http/courier/internal/session"
	"go.uber.org/zap"
)

// maxFormPeek bounds how much of a urlencoded body is read while
// looking for the token parameter. The body is restored afterwards.
const maxFormPeek = 1 << 20

var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// Protector is the compiled CSRF middleware created once during setup.
type Protector struct {
	secret        []byte
	paramName     string
	headerName    string
	altHeader     string
	cookieName    string
	sessionCookie string
	cookieSecure  bool
	metrics       Metrics
	onRejected    func()
}

// New builds a Protector from the security configuration.
func New(cfg config.CSRFConfig, sessionCookie string, cookieSecure bool) *Protector {
	paramName := cfg.ParamName
	if paramName == "" {
		paramName = "csrf_token"
	}
	headerName := cfg.HeaderName
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}
	altHeader := cfg.AltHeader
	if altHeader == "" {
		altHeader = "X-XSRF-Token"
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "_courier_csrf"
	}
	if sessionCookie == "" {
		sessionCookie = "_courier_session"
	}
	return &Protector{
		secret:        []byte(cfg.Secret),
		paramName:     paramName,
		headerName:    headerName,
		altHeader:     altHeader,
		cookieName:    cookieName,
		sessionCookie: sessionCookie,
		cookieSecure:  cookieSecure,
	}
}

// ParamName returns the form/query parameter name carrying the token.
func (p *Protector) ParamName() string { return p.paramName }

// OnRejection registers a callback invoked once per rejected request.
func (p *Protector) OnRejection(fn func()) { p.onRejected = fn }

// Middleware returns the chainable protection stage.
func (p *Protector) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rt := middleware.RouteFromContext(r.Context()); rt != nil && rt.CSRFExempt() {
				next.ServeHTTP(w, r)
				return
			}

			if safeMethods[r.Method] {
				p.serveSafe(w, r, next)
				return
			}

			sessionID := session.IDFromRequest(r, p.sessionCookie)
			token := p.extractToken(r)
			if !p.Verify(token, sessionID) {
				p.metrics.ValidationFailed.Add(1)
				if p.onRejected != nil {
					p.onRejected()
				}
				logging.Warn("CSRF rejection",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Bool("token_present", token != ""),
				)
				courierErr := errors.ErrForbidden.WithDetails("CSRF token missing or invalid")
				if reqID := middleware.RequestIDFromContext(r.Context()); reqID != "" {
					courierErr = courierErr.WithRequestID(reqID)
				}
				courierErr.WriteJSON(w)
				return
			}

			p.metrics.ValidationSuccess.Add(1)
			next.ServeHTTP(w, r)
		})
	}
}

// serveSafe generates a token for the session and injects it into HTML
// responses so subsequent form submissions can present it.
func (p *Protector) serveSafe(w http.ResponseWriter, r *http.Request, next http.Handler) {
	sessionID := session.IDFromRequest(r, p.sessionCookie)
	if sessionID == "" {
		sessionID = session.NewID()
		session.SetCookie(w, p.sessionCookie, sessionID, 24*time.Hour, p.cookieSecure)
	}
	token := p.Generate(sessionID)

	http.SetCookie(w, &http.Cookie{
		Name:     p.cookieName,
		Value:    token,
		Path:     "/",
		Secure:   p.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	inj := newInjector(w, token, p.paramName)
	next.ServeHTTP(inj, r)
	inj.flush()
}

// extractToken looks for the token in the request parameter first, then
// the primary header, then the AJAX-style alternate header.
func (p *Protector) extractToken(r *http.Request) string {
	if v := r.URL.Query().Get(p.paramName); v != "" {
		return v
	}
	if v := p.formToken(r); v != "" {
		return v
	}
	if v := r.Header.Get(p.headerName); v != "" {
		return v
	}
	return r.Header.Get(p.altHeader)
}

// formToken peeks into a urlencoded body for the token parameter and
// restores the body for downstream readers.
func (p *Protector) formToken(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "application/x-www-form-urlencoded") || r.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFormPeek))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return ""
	}
	return values.Get(p.paramName)
}
