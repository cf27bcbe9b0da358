package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// WebhookHandler processes a validated webhook payload. Channel modules
// register one per source so decisions arriving over chat (Telegram updates,
// for example) reach the dispatcher without the gateway knowing the wire
// format.
type WebhookHandler interface {
	HandleWebhook(ctx context.Context, source string, body []byte, headers http.Header) error
}

type webhookEntry struct {
	handler WebhookHandler
	secret  string
}

// WebhookDispatcher routes incoming webhooks to registered handlers with
// HMAC validation. It is registered as the "gateway.webhook_dispatcher"
// service so channel modules can attach handlers during Start.
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers map[string]webhookEntry
	secrets  map[string]string
	logger   *slog.Logger
}

// NewWebhookDispatcher creates a ready-to-use dispatcher.
func NewWebhookDispatcher(logger *slog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		handlers: make(map[string]webhookEntry),
		secrets:  make(map[string]string),
		logger:   logger,
	}
}

// Register adds a handler for the given source with an optional HMAC secret.
// An empty secret falls back to any secret configured for the source.
func (d *WebhookDispatcher) Register(source string, h WebhookHandler, secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[source] = webhookEntry{handler: h, secret: secret}
}

// SetSecret records a config-level secret for a source. It applies when the
// handler registered without one, so operators can enforce signing without
// module cooperation.
func (d *WebhookDispatcher) SetSecret(source, secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.secrets[source] = secret
}

// ServeHTTP implements http.Handler. It extracts the source from the chi URL
// param, validates HMAC if a secret is configured, and dispatches to the
// registered handler.
func (d *WebhookDispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	source := chi.URLParam(r, "source")
	if source == "" {
		http.Error(w, "missing source", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	d.mu.RLock()
	entry, ok := d.handlers[source]
	fallbackSecret := d.secrets[source]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("webhook received for unregistered source", "source", source)
		http.Error(w, "unknown source", http.StatusNotFound)
		return
	}

	secret := entry.secret
	if secret == "" {
		secret = fallbackSecret
	}
	if secret != "" {
		sig := r.Header.Get("X-Signature-256")
		if !validateHMAC(body, sig, secret) {
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	if err := entry.handler.HandleWebhook(r.Context(), source, body, r.Header); err != nil {
		d.logger.Error("webhook handler failed", "source", source, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

// validateHMAC checks HMAC-SHA256 signature in constant time.
func validateHMAC(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
