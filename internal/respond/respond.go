// Package respond turns a handler's return value into a concrete HTTP
// response according to the route's declared response option.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/courier-http/courier/internal/errors"
	"github.com/courier-http/courier/internal/logging"
	"github.com/courier-http/courier/internal/routes"
	"go.uber.org/zap"
)

// Response lets a handler control status and headers explicitly.
// Plain return values are written with status 200.
type Response struct {
	Status  int
	Headers map[string]string
	Body    interface{}
}

// Write formats value per the route's response mode. A nil route means
// no declared mode; negotiation falls back to the Accept header.
func Write(w http.ResponseWriter, r *http.Request, rt *routes.Route, value interface{}) {
	status := http.StatusOK
	if resp, ok := value.(*Response); ok {
		if resp.Status != 0 {
			status = resp.Status
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		value = resp.Body
	}

	mode := ""
	if rt != nil {
		mode = rt.ResponseMode()
	}

	switch mode {
	case "json":
		writeJSON(w, status, value)
	case "redirect":
		location, ok := value.(string)
		if !ok {
			logging.Error("redirect route handler returned a non-string",
				zap.String("path", r.URL.Path),
			)
			errors.ErrInternalServer.WriteJSON(w)
			return
		}
		if status == http.StatusOK {
			status = http.StatusFound
		}
		http.Redirect(w, r, location, status)
	case "view":
		writeHTML(w, status, value)
	case "auto":
		if acceptsJSON(r) {
			writeJSON(w, status, value)
		} else {
			writeHTML(w, status, value)
		}
	default:
		// No declared mode: strings and bytes pass through as HTML or
		// raw, anything structured becomes JSON.
		switch v := value.(type) {
		case nil:
			w.WriteHeader(status)
		case []byte:
			w.WriteHeader(status)
			w.Write(v)
		case string:
			writeHTML(w, status, v)
		default:
			writeJSON(w, status, value)
		}
	}
}

// WriteError formats a pipeline error. The route's declared response
// type is consulted before the client's Accept header.
func WriteError(w http.ResponseWriter, r *http.Request, rt *routes.Route, courierErr *errors.CourierError) {
	mode := ""
	if rt != nil {
		mode = rt.ResponseMode()
	}

	wantJSON := false
	switch mode {
	case "json":
		wantJSON = true
	case "view", "redirect":
		wantJSON = false
	default:
		wantJSON = acceptsJSON(r)
	}

	if wantJSON {
		courierErr.WriteJSON(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(courierErr.Code)
	fmt.Fprintf(w, "<html><body><h1>%d %s</h1></body></html>",
		courierErr.Code, courierErr.Message)
}

func writeJSON(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if value == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(value); err != nil {
		logging.Error("response encoding failed", zap.Error(err))
	}
}

func writeHTML(w http.ResponseWriter, status int, value interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	switch v := value.(type) {
	case nil:
	case string:
		w.Write([]byte(v))
	case []byte:
		w.Write(v)
	default:
		fmt.Fprintf(w, "%v", v)
	}
}

func acceptsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if accept == "" {
		return false
	}
	for _, part := range strings.Split(accept, ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mt == "application/json" || strings.HasSuffix(mt, "+json") {
			return true
		}
		if mt == "text/html" {
			return false
		}
	}
	return false
}
