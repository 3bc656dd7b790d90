package middleware

import "net/http"

// HeaderMap canonicalizes inbound header names before dispatch, e.g.
// mapping a legacy "X-Auth" onto "Authorization". The destination is
// only written when absent so clients sending the canonical header win.
func HeaderMap(mapping map[string]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for from, to := range mapping {
				if v := r.Header.Get(from); v != "" && r.Header.Get(to) == "" {
					r.Header.Set(to, v)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
