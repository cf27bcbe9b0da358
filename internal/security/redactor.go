// Package security provides the ambient safety pieces shared across warden:
// secret redaction for logs and a sliding-window rate limiter guarding the
// gate and the HTTP auth surface.
package security

import (
	"regexp"
	"strings"
	"sync"
)

// RedactPlaceholder is the replacement string for redacted secrets.
const RedactPlaceholder = "***REDACTED***"

// Redactor replaces secret values in strings with a placeholder. It matches
// both known API-key shapes and literal values registered at runtime (bot
// tokens, bearer tokens from config). Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor creates a Redactor pre-loaded with patterns for common
// API key formats.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []*regexp.Regexp{
			// OpenAI / Anthropic style keys.
			regexp.MustCompile(`sk-[a-zA-Z0-9\-]{20,}`),
			// GitHub tokens.
			regexp.MustCompile(`(ghp_|gho_|ghs_|github_pat_)[a-zA-Z0-9_]{20,}`),
			// Telegram bot tokens: <digits>:<35 url-safe chars>.
			regexp.MustCompile(`\b\d{8,10}:[A-Za-z0-9_-]{35}\b`),
			// AWS access key IDs.
			regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
		},
	}
}

// AddLiteral registers a literal secret value to redact on sight.
// Empty strings are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = append(r.literals, secret)
}

// Redact replaces all known secret patterns and literal values in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns := r.patterns
	literals := r.literals
	r.mu.RUnlock()

	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	for _, lit := range literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, RedactPlaceholder)
		}
	}
	return s
}
