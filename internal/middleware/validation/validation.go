// Package validation enforces request size, structure and content
// ceilings before any handler runs. Rejection and sanitization are
// separate phases: anything matching an injection heuristic is
// rejected, everything that passes is additionally cleaned.
package validation

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/courier-http/courier/internal/config"
	"github.com/courier-http/courier/internal/errors"
	"github.com/courier-http/courier/internal/logging"
	"github.com/courier-http/courier/internal/middleware"
	"go.uber.org/zap"
)

// Metrics tracks validator counters.
type Metrics struct {
	Validated atomic.Int64
	Rejected  atomic.Int64
}

// violation carries the rejection status and reason up the walk.
type violation struct {
	status int
	reason string
}

func (v *violation) Error() string { return v.reason }

func reject(reason string) *violation {
	return &violation{status: http.StatusBadRequest, reason: reason}
}

// Validator is the compiled input validator created once during setup.
type Validator struct {
	cfg        config.ValidationConfig
	denied     map[string]bool
	metrics    Metrics
	onRejected func(status int)
}

// New builds a Validator from the security configuration.
func New(cfg config.ValidationConfig) *Validator {
	denied := make(map[string]bool, len(cfg.DeniedTypes))
	for _, t := range cfg.DeniedTypes {
		denied[strings.ToLower(t)] = true
	}
	return &Validator{cfg: cfg, denied: denied}
}

// Stats returns a snapshot of the validator's counters.
func (v *Validator) Stats() (validated, rejected int64) {
	return v.metrics.Validated.Load(), v.metrics.Rejected.Load()
}

// OnRejection registers a callback invoked with the rejection status
// once per rejected request.
func (v *Validator) OnRejection(fn func(status int)) { v.onRejected = fn }

// Middleware returns the chainable validation stage.
func (v *Validator) Middleware() middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > v.cfg.MaxRequestBytes {
				v.fail(w, r, &violation{
					status: http.StatusRequestEntityTooLarge,
					reason: fmt.Sprintf("request body exceeds %d bytes", v.cfg.MaxRequestBytes),
				})
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, v.cfg.MaxRequestBytes)
			}

			if ct := contentType(r); ct != "" && v.denied[ct] {
				v.fail(w, r, reject("content type not accepted: "+ct))
				return
			}

			params, err := v.collect(r)
			if err != nil {
				v.fail(w, r, err)
				return
			}
			if err := v.checkStructure(params); err != nil {
				v.fail(w, r, err)
				return
			}
			clean, err := v.checkContent(params)
			if err != nil {
				v.fail(w, r, err)
				return
			}
			sanitized := clean.(map[string]interface{})

			v.metrics.Validated.Add(1)
			next.ServeHTTP(w, r.WithContext(middleware.WithParams(r.Context(), sanitized)))
		})
	}
}

func (v *Validator) fail(w http.ResponseWriter, r *http.Request, viol *violation) {
	v.metrics.Rejected.Add(1)
	if v.onRejected != nil {
		v.onRejected(viol.status)
	}
	logging.Warn("request rejected by validator",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", viol.status),
		zap.String("reason", viol.reason),
	)

	var courierErr *errors.CourierError
	switch viol.status {
	case http.StatusRequestEntityTooLarge:
		courierErr = errors.ErrRequestEntityTooLarge
	default:
		courierErr = errors.ErrBadRequest.WithDetails(viol.reason)
	}
	if reqID := middleware.RequestIDFromContext(r.Context()); reqID != "" {
		courierErr = courierErr.WithRequestID(reqID)
	}
	courierErr.WriteJSON(w)
}

func contentType(r *http.Request) string {
	raw := r.Header.Get("Content-Type")
	if raw == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mt
}

// collect merges query parameters with form or JSON body parameters
// into one nested mapping.
func (v *Validator) collect(r *http.Request) (map[string]interface{}, *violation) {
	params := ParseNested(r.URL.Query())

	switch contentType(r) {
	case "application/x-www-form-urlencoded":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, &violation{status: http.StatusRequestEntityTooLarge, reason: "request body too large"}
		}
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, reject("malformed form body")
		}
		merge(params, ParseNested(values))

	case "application/json":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, &violation{status: http.StatusRequestEntityTooLarge, reason: "request body too large"}
		}
		if len(body) > 0 {
			var decoded interface{}
			if err := json.Unmarshal(body, &decoded); err != nil {
				return nil, reject("malformed JSON body")
			}
			if obj, ok := decoded.(map[string]interface{}); ok {
				merge(params, obj)
			}
		}
	}

	return params, nil
}

func merge(dst, src map[string]interface{}) {
	for k, v := range src {
		dst[k] = v
	}
}

// checkStructure walks the parameter tree enforcing depth, key count,
// array length and key shape ceilings.
func (v *Validator) checkStructure(params map[string]interface{}) *violation {
	keys := 0
	return v.walkStructure(params, 1, &keys)
}

// walkStructure descends container nodes only; scalars do not add a
// nesting level.
func (v *Validator) walkStructure(node interface{}, depth int, keys *int) *violation {
	switch node.(type) {
	case map[string]interface{}, []interface{}:
		if depth > v.cfg.MaxParamDepth {
			return reject(fmt.Sprintf("parameter nesting exceeds depth %d", v.cfg.MaxParamDepth))
		}
	default:
		return nil
	}

	switch n := node.(type) {
	case map[string]interface{}:
		for key, child := range n {
			*keys++
			if *keys > v.cfg.MaxParamKeys {
				return reject(fmt.Sprintf("parameter count exceeds %d", v.cfg.MaxParamKeys))
			}
			if len(key) > v.cfg.MaxKeyLength {
				return reject(fmt.Sprintf("parameter key exceeds %d bytes", v.cfg.MaxKeyLength))
			}
			if hasControlBytes(key) {
				return reject("parameter key contains control characters")
			}
			if err := v.walkStructure(child, depth+1, keys); err != nil {
				return err
			}
		}
	case []interface{}:
		if len(n) > v.cfg.MaxArrayLength {
			return reject(fmt.Sprintf("array length exceeds %d", v.cfg.MaxArrayLength))
		}
		for _, child := range n {
			if err := v.walkStructure(child, depth+1, keys); err != nil {
				return err
			}
		}
	}
	return nil
}

func hasControlBytes(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return true
		}
	}
	return false
}

// checkContent validates every scalar and returns a sanitized copy of
// the tree. The input tree is never mutated.
func (v *Validator) checkContent(node interface{}) (interface{}, *violation) {
	switch n := node.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(n))
		for key, child := range n {
			clean, err := v.checkContent(child)
			if err != nil {
				return nil, err
			}
			out[key] = clean
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(n))
		for i, child := range n {
			clean, err := v.checkContent(child)
			if err != nil {
				return nil, err
			}
			out[i] = clean
		}
		return out, nil
	case string:
		if strings.ContainsRune(n, 0) {
			return nil, reject("parameter value contains null bytes")
		}
		if len(n) > v.cfg.MaxValueLength {
			return nil, reject(fmt.Sprintf("parameter value exceeds %d bytes", v.cfg.MaxValueLength))
		}
		if reason := injectionReason(n); reason != "" {
			return nil, reject("parameter value matches " + reason + " pattern")
		}
		return Sanitize(n), nil
	default:
		// Non-string scalars from JSON bodies pass through.
		return n, nil
	}
}
