package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/arenvik/warden/internal/audit"
	"github.com/arenvik/warden/internal/core"
	"github.com/arenvik/warden/internal/dispatch"
	"github.com/arenvik/warden/internal/gate"
	"github.com/arenvik/warden/internal/policy"
	"github.com/arenvik/warden/internal/security"
	"github.com/arenvik/warden/internal/tool"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Gateway is the HTTP gateway module. It exposes the approval API, health,
// status, metrics, and webhook endpoints. It is a leaf module; nothing
// imports it.
type Gateway struct {
	config     Config
	appCtx     *core.AppContext
	logger     *slog.Logger
	server     *http.Server
	dispatcher *WebhookDispatcher
	startedAt  time.Time

	// Resolved lazily at Start() via the service registry.
	gate      *gate.Gate
	approvals *dispatch.Dispatcher
	trail     audit.Trail
	policies  *policy.Resolver
	registry  *tool.Registry
	limiter   *security.RateLimiter
	gatherer  prometheus.Gatherer
	events    http.Handler
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.dispatcher = NewWebhookDispatcher(g.logger)

	// Register for cross-module discovery: channel modules attach their
	// webhook handlers here during Start.
	ctx.RegisterService("gateway.webhook_dispatcher", g.dispatcher)

	for source, cfg := range g.config.Webhooks {
		if cfg.Secret != "" {
			g.dispatcher.SetSecret(source, cfg.Secret)
			g.logger.Info("webhook source configured", "source", source)
		}
	}

	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start implements core.Starter. It resolves dependencies from the service
// registry (lazy binding) and starts the HTTP server.
func (g *Gateway) Start() error {
	g.resolveServices()
	g.startedAt = time.Now()

	mux := g.buildRouter()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      mux,
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// resolveServices binds the approval plumbing from the service registry.
// Missing services degrade the corresponding routes rather than failing
// startup; /health reports the gap.
func (g *Gateway) resolveServices() {
	if svc, ok := g.appCtx.Service("approval.gate"); ok {
		if v, ok := svc.(*gate.Gate); ok {
			g.gate = v
		}
	}
	if svc, ok := g.appCtx.Service("approval.dispatcher"); ok {
		if v, ok := svc.(*dispatch.Dispatcher); ok {
			g.approvals = v
		}
	}
	if svc, ok := g.appCtx.Service("audit.trail"); ok {
		if v, ok := svc.(audit.Trail); ok {
			g.trail = v
		}
	}
	if svc, ok := g.appCtx.Service("policy.resolver"); ok {
		if v, ok := svc.(*policy.Resolver); ok {
			g.policies = v
		}
	}
	if svc, ok := g.appCtx.Service("tool.registry"); ok {
		if v, ok := svc.(*tool.Registry); ok {
			g.registry = v
		}
	}
	if svc, ok := g.appCtx.Service("security.ratelimiter"); ok {
		if v, ok := svc.(*security.RateLimiter); ok {
			g.limiter = v
		}
	}
	if svc, ok := g.appCtx.Service("metrics.gatherer"); ok {
		if v, ok := svc.(prometheus.Gatherer); ok {
			g.gatherer = v
		}
	}
	if svc, ok := g.appCtx.Service("events.handler"); ok {
		if v, ok := svc.(http.Handler); ok {
			g.events = v
		}
	}
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
