package middleware

import (
	"net/http"
	"strings"
)

// DefaultAllowedHeaders are accepted on cross-origin requests. The tenant header must be
// listed or browsers drop it from preflighted requests.
var DefaultAllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-Id", "X-Tenant-ID"}

// DefaultCORS allows any origin. extraHeaders are appended to DefaultAllowedHeaders.
func DefaultCORS(extraHeaders ...string) func(http.Handler) http.Handler {
	// Keep it simple; tighten for prod
	headers := strings.Join(append(append([]string{}, DefaultAllowedHeaders...), extraHeaders...), ",")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", headers)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
