// Package adminauth gates the admin HTTP surface behind a shared-secret
// token compared in constant time.
package adminauth

import (
	"crypto/subtle"
	"net/http"
)

const headerName = "X-Admin-Token"

// Middleware returns a chi-compatible middleware that rejects any request
// missing or mismatching token with 401, leaking no timing signal about how
// much of the token matched (spec §4.8).
func Middleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !valid(token, r.Header.Get(headerName)) {
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func valid(expected, got string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
