package gateway

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/arenvik/warden/internal/security"
)

// authMiddleware returns a chi-compatible middleware that validates Bearer
// token or Basic auth credentials using constant-time comparison.
// If a RateLimiter is provided, auth attempts are rate-limited using the
// "auth" bucket. Failures are logged with the caller's address so repeated
// guessing is visible in the logs.
func authMiddleware(cfg AuthConfig, rateLimiter *security.RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rateLimiter != nil {
				if err := rateLimiter.Allow(security.BucketAuth); err != nil {
					http.Error(w, "too many requests", http.StatusTooManyRequests)
					return
				}
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				logAuthFailure(logger, r, "missing authorization header")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			// Try Bearer token first.
			if cfg.BearerToken != "" {
				if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
					if constantTimeEqual(after, cfg.BearerToken) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}

			// Try Basic auth.
			if cfg.BasicUser != "" && cfg.BasicPass != "" {
				user, pass, ok := r.BasicAuth()
				if ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass) {
					next.ServeHTTP(w, r)
					return
				}
			}

			logAuthFailure(logger, r, "invalid credentials")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

func logAuthFailure(logger *slog.Logger, r *http.Request, detail string) {
	if logger == nil {
		return
	}
	logger.Warn("auth failure",
		"detail", detail,
		"remote_addr", r.RemoteAddr,
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
