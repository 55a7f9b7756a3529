// Package auth guards the status API with an optional bearer token.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration. An empty Token disables auth.
type Config struct {
	Token string `yaml:"token"`
}

// Enabled reports whether a token is required.
func (c Config) Enabled() bool {
	return c.Token != ""
}

// protectedPrefix is the only path tree that needs a token. Probes and
// metrics stay public.
const protectedPrefix = "/api/"

// Middleware returns an HTTP middleware that enforces Bearer token auth on
// /api/ paths when a token is configured. EventSource cannot set headers,
// so a ?token= query parameter is accepted too.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled() || !strings.HasPrefix(r.URL.Path, protectedPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				token = r.URL.Query().Get("token")
			}
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
