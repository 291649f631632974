package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/hupe1980/reactmesh/logging"
)

// bearerAuth rejects requests without the expected bearer token.
func bearerAuth(token string, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && constantTimeEqual(got, token) {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("server.auth.denied", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
