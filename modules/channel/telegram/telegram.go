package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/arenvik/warden/internal/core"
	"github.com/arenvik/warden/internal/dispatch"
	"github.com/arenvik/warden/internal/gate"
	"github.com/arenvik/warden/internal/gateway"
	"github.com/arenvik/warden/internal/notify"
)

func init() {
	core.RegisterModule(&Telegram{})
}

// Compile-time interface guards.
var (
	_ notify.Notifier   = (*Telegram)(nil)
	_ notify.Messenger  = (*Telegram)(nil)
	_ core.Configurable = (*Telegram)(nil)
	_ core.Provisioner  = (*Telegram)(nil)
	_ core.Validator    = (*Telegram)(nil)
	_ core.Starter      = (*Telegram)(nil)
	_ core.Stopper      = (*Telegram)(nil)
)

// Telegram implements the Telegram approval channel for warden.
type Telegram struct {
	config  Config
	client  *Client
	logger  *slog.Logger
	appCtx  *core.AppContext
	botUser *User

	// Set during Start() depending on mode.
	handler         *commandHandler
	poller          *Poller
	webhookReceiver *WebhookReceiver
}

// ModuleInfo implements core.Module.
func (t *Telegram) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.telegram",
		New: func() core.Module { return &Telegram{} },
	}
}

// Configure implements core.Configurable.
func (t *Telegram) Configure(node *yaml.Node) error {
	if err := node.Decode(&t.config); err != nil {
		return fmt.Errorf("telegram: decode config: %w", err)
	}
	t.config.defaults()
	return nil
}

// Provision implements core.Provisioner. It registers this channel as a
// notifier so the gate's fanout can reach it before Start ordering matters.
func (t *Telegram) Provision(ctx *core.AppContext) error {
	t.appCtx = ctx
	t.logger = ctx.Logger
	t.client = NewClient(t.config.Token, t.config.APIURL)

	if svc, ok := ctx.Service("notify.fanout"); ok {
		if fanout, ok := svc.(*notify.Fanout); ok {
			fanout.Add(t)
		}
	}
	ctx.RegisterService("notify.messenger", t)

	return nil
}

// Validate implements core.Validator.
func (t *Telegram) Validate() error {
	if t.config.Token == "" {
		return errors.New("telegram: token is required")
	}
	switch t.config.Mode {
	case "polling", "webhook":
	default:
		return fmt.Errorf("telegram: invalid mode %q (must be \"polling\" or \"webhook\")", t.config.Mode)
	}
	if t.config.Mode == "webhook" && t.config.WebhookURL == "" {
		return errors.New("telegram: webhook_url is required when mode is \"webhook\"")
	}
	return t.config.validate()
}

// Start implements core.Starter. It validates the bot token, wires the
// command handler against the approval services, then starts either polling
// or webhook mode.
func (t *Telegram) Start() error {
	handler, err := t.buildHandler()
	if err != nil {
		return err
	}
	t.handler = handler

	user, err := t.client.GetMe(context.Background())
	if err != nil {
		return fmt.Errorf("telegram: getMe failed (check token): %w", err)
	}
	t.botUser = user
	t.logger.Info("telegram bot authenticated",
		"id", user.ID,
		"username", user.Username,
	)

	switch t.config.Mode {
	case "polling":
		t.poller = NewPoller(t.client, t.handler, t.logger, t.config)
		t.poller.Start()
		t.logger.Info("telegram polling started",
			"timeout", t.config.PollingTimeout,
		)

	case "webhook":
		if t.config.WebhookSecret == "" {
			t.logger.Warn("telegram webhook running without secret_token; " +
				"set webhook_secret for production deployments")
		}
		t.webhookReceiver = NewWebhookReceiver(t.handler, t.logger, t.config.WebhookSecret)

		if err := t.registerWebhook(); err != nil {
			return err
		}

		if err := t.client.SetWebhook(context.Background(), SetWebhookRequest{
			URL:         t.config.WebhookURL,
			SecretToken: t.config.WebhookSecret,
		}); err != nil {
			return fmt.Errorf("telegram: setWebhook failed: %w", err)
		}
		t.logger.Info("telegram webhook configured",
			"url", t.config.WebhookURL,
		)
	}

	return nil
}

// buildHandler resolves the approval services and assembles the command
// handler. Decisions typed in chat need both the dispatcher (to resolve) and
// the gate (to list).
func (t *Telegram) buildHandler() (*commandHandler, error) {
	svc, ok := t.appCtx.Service("approval.dispatcher")
	if !ok {
		return nil, errors.New("telegram: approval.dispatcher service not found")
	}
	dispatcher, ok := svc.(*dispatch.Dispatcher)
	if !ok {
		return nil, errors.New("telegram: approval.dispatcher is not a *dispatch.Dispatcher")
	}

	svc, ok = t.appCtx.Service("approval.gate")
	if !ok {
		return nil, errors.New("telegram: approval.gate service not found")
	}
	g, ok := svc.(*gate.Gate)
	if !ok {
		return nil, errors.New("telegram: approval.gate is not a *gate.Gate")
	}

	return &commandHandler{
		config:    t.config,
		approvals: dispatcher,
		pending:   g,
		sender:    t.client,
		logger:    t.logger,
	}, nil
}

// registerWebhook resolves the gateway webhook dispatcher from the service
// registry and registers the WebhookReceiver as a handler.
func (t *Telegram) registerWebhook() error {
	svc, ok := t.appCtx.Service("gateway.webhook_dispatcher")
	if !ok {
		return errors.New("telegram: gateway.webhook_dispatcher service not found (is the gateway module loaded?)")
	}

	dispatcher, ok := svc.(*gateway.WebhookDispatcher)
	if !ok {
		return errors.New("telegram: gateway.webhook_dispatcher is not a *gateway.WebhookDispatcher")
	}

	// Empty HMAC secret: Telegram uses its own
	// X-Telegram-Bot-Api-Secret-Token header, validated in HandleWebhook.
	dispatcher.Register("telegram", t.webhookReceiver, "")
	return nil
}

// Stop implements core.Stopper.
func (t *Telegram) Stop(ctx context.Context) error {
	t.logger.Info("telegram channel stopping")

	switch t.config.Mode {
	case "polling":
		if t.poller != nil {
			t.poller.Stop()
		}
	case "webhook":
		if err := t.client.DeleteWebhook(ctx); err != nil {
			t.logger.Warn("telegram: failed to delete webhook on shutdown", "error", err)
		}
	}

	return nil
}
