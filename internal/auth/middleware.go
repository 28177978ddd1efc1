// Package auth provides API key authentication middleware for the
// flarewatch HTTP surface.
//
// Middleware(mode, header, key) wraps an http.Handler and validates the API
// key read from the named header. When mode != "apikey" or key == "", all
// requests pass through (useful for local development with auth disabled).
// A missing or incorrect key is rejected with 401 before the wrapped
// handler runs.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// Middleware returns an http.Handler wrapper enforcing API key
// authentication on every request.
func Middleware(mode, header, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Non-apikey modes or unconfigured key → allow everything.
			if mode != "apikey" || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			got := r.Header.Get(header)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
