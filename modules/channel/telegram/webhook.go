package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// WebhookReceiver processes incoming Telegram webhook payloads.
// It implements gateway.WebhookHandler.
type WebhookReceiver struct {
	handler *commandHandler
	logger  *slog.Logger
	secret  string
}

// NewWebhookReceiver creates a new WebhookReceiver.
func NewWebhookReceiver(handler *commandHandler, logger *slog.Logger, secret string) *WebhookReceiver {
	return &WebhookReceiver{
		handler: handler,
		logger:  logger,
		secret:  secret,
	}
}

// HandleWebhook processes a webhook payload from the gateway dispatcher.
// It validates the Telegram-specific secret token header, parses the update,
// and hands it to the command handler.
func (w *WebhookReceiver) HandleWebhook(ctx context.Context, _ string, body []byte, headers http.Header) error {
	// Telegram signs with its own header rather than HMAC-SHA256.
	if w.secret != "" {
		token := headers.Get("X-Telegram-Bot-Api-Secret-Token")
		if subtle.ConstantTimeCompare([]byte(w.secret), []byte(token)) != 1 {
			return errors.New("telegram: invalid webhook secret token")
		}
	}

	var update Update
	if err := json.Unmarshal(body, &update); err != nil {
		return errors.New("telegram: invalid update JSON: " + err.Error())
	}

	w.handler.handleUpdate(ctx, &update)
	return nil
}
