// Package auth provides API-key protection for the REST surface. Keys are
// static, supplied via config or environment; there are no users or roles.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/sameermankotia/AptosAI/pkg/logger"
)

// Service validates API keys. A disabled service passes every request.
type Service struct {
	enabled bool
	keys    []string
}

// NewService builds a Service from the configured key set. With no keys the
// service is disabled even when enabled is requested.
func NewService(enabled bool, keys []string) *Service {
	cleaned := make([]string, 0, len(keys))
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return &Service{enabled: enabled && len(cleaned) > 0, keys: cleaned}
}

// Enabled reports whether requests are actually checked.
func (s *Service) Enabled() bool { return s != nil && s.enabled }

// Authenticate checks the presented key against the configured set.
func (s *Service) Authenticate(presented string) bool {
	if !s.Enabled() {
		return true
	}
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return false
	}
	ok := false
	for _, key := range s.keys {
		// Compare every key so timing does not leak which one matched.
		if subtle.ConstantTimeCompare([]byte(key), []byte(presented)) == 1 {
			ok = true
		}
	}
	return ok
}

// Middleware rejects requests without a valid key. The key is read from the
// X-API-Key header or an Authorization: Bearer token.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		presented := r.Header.Get("X-API-Key")
		if presented == "" {
			if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
				presented = strings.TrimPrefix(bearer, "Bearer ")
			}
		}
		if !s.Authenticate(presented) {
			logger.Audit().Warn("access_denied",
				"path", r.URL.Path,
				"method", r.Method,
				"remote", r.RemoteAddr,
				"time", time.Now().UTC().Format(time.RFC3339))
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
