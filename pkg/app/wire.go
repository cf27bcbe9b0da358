package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arenvik/warden/internal/audit"
	"github.com/arenvik/warden/internal/config"
	"github.com/arenvik/warden/internal/conversation"
	"github.com/arenvik/warden/internal/core"
	"github.com/arenvik/warden/internal/cron"
	"github.com/arenvik/warden/internal/dispatch"
	"github.com/arenvik/warden/internal/gate"
	"github.com/arenvik/warden/internal/heartbeat"
	"github.com/arenvik/warden/internal/ledger"
	"github.com/arenvik/warden/internal/metrics"
	"github.com/arenvik/warden/internal/notify"
	"github.com/arenvik/warden/internal/policy"
	"github.com/arenvik/warden/internal/security"
	"github.com/arenvik/warden/internal/tool"
)

// Approvals bundles the wired approval core for entry points that talk to it
// directly (the MCP server) rather than through the service registry.
type Approvals struct {
	Gate       *gate.Gate
	Dispatcher *dispatch.Dispatcher
	Resolver   *policy.Resolver
	Tools      *tool.Registry
}

type wireDeps struct {
	tools     *tool.Registry
	fanout    *notify.Fanout
	scheduler *cron.Scheduler
	limiter   *security.RateLimiter
	registry  prometheus.Registerer
	logger    *slog.Logger
}

// wireApprovals assembles the gate, dispatcher, policy resolver, and
// background tasks from the stores the storage module registered during
// Provision. Must run after LoadModules and before Start: it seals the tool
// registry and registers the approval services the channel and gateway
// modules resolve at Start.
func wireApprovals(app *core.App, appCtx *core.AppContext, cfg *config.Config, deps wireDeps) (*Approvals, error) {
	ledgerStore, err := resolveAs[ledger.Store](appCtx, "ledger.store")
	if err != nil {
		return nil, err
	}
	policyStore, err := resolveAs[policy.Store](appCtx, "policy.store")
	if err != nil {
		return nil, err
	}
	trail, err := resolveAs[audit.Trail](appCtx, "audit.trail")
	if err != nil {
		return nil, err
	}

	// Optional: the storage module registers a transcript sink; without one
	// the dispatcher simply skips conversation follow-ups.
	var sink conversation.Sink
	if svc, ok := appCtx.Service("conversation.sink"); ok {
		sink, _ = svc.(conversation.Sink)
	}

	deps.tools.Seal()

	m := metrics.New(deps.registry)

	resolver := policy.NewResolver(deps.tools, policyStore, policy.ResolverConfig{
		CacheCapacity: cfg.Approval.PolicyCacheCapacity,
		CacheTTL:      cfg.Approval.PolicyCacheTTL,
	})

	g := gate.New(deps.tools, resolver, ledgerStore, trail, deps.fanout, gate.Config{
		TTL:     cfg.Approval.TTL,
		Logger:  deps.logger,
		Limiter: deps.limiter,
		Metrics: m,
	})

	d := dispatch.New(deps.tools, ledgerStore, trail, deps.fanout, sink, dispatch.Config{
		Logger:  deps.logger,
		Metrics: m,
	})

	appCtx.RegisterService("approval.gate", g)
	appCtx.RegisterService("approval.dispatcher", d)
	appCtx.RegisterService("policy.resolver", resolver)

	if err := deps.scheduler.RegisterJob(&cron.ExpirySweepJob{
		Sweeper:      d,
		Logger:       deps.logger,
		ScheduleExpr: cfg.Approval.SweepSchedule,
	}); err != nil {
		return nil, err
	}
	if pruner, ok := trail.(cron.AuditPruner); ok {
		if err := deps.scheduler.RegisterJob(&cron.AuditRetentionJob{
			Pruner: pruner,
			Logger: deps.logger,
		}); err != nil {
			return nil, err
		}
	}
	app.AppendModule("cron.scheduler", &schedulerModule{scheduler: deps.scheduler})

	if err := wireHeartbeat(app, cfg.Heartbeat, ledgerStore, deps.fanout, deps.logger); err != nil {
		return nil, err
	}

	return &Approvals{
		Gate:       g,
		Dispatcher: d,
		Resolver:   resolver,
		Tools:      deps.tools,
	}, nil
}

// wireHeartbeat appends the stale-approval nudger when enabled. The ledger
// store must be able to enumerate open entries across users.
func wireHeartbeat(app *core.App, hc *config.HeartbeatConfig, store ledger.Store, nudger heartbeat.Nudger, logger *slog.Logger) error {
	if hc == nil || !hc.Enabled {
		return nil
	}

	source, ok := store.(heartbeat.PendingSource)
	if !ok {
		return errors.New("app: heartbeat enabled but the ledger store cannot list open entries")
	}

	hbCfg := heartbeat.Config{
		Interval: hc.Interval,
		MinAge:   hc.MinAge,
		Logger:   logger,
	}
	if hc.QuietHours != "" {
		q, err := heartbeat.ParseQuietHours(hc.QuietHours)
		if err != nil {
			return err
		}
		hbCfg.QuietHours = &q
	}
	if hc.Timezone != "" {
		loc, err := time.LoadLocation(hc.Timezone)
		if err != nil {
			return err
		}
		hbCfg.Timezone = loc
	}

	hb, err := heartbeat.New(hbCfg, source, nudger)
	if err != nil {
		return err
	}
	app.AppendModule("heartbeat", &heartbeatModule{heartbeat: hb})
	return nil
}

// resolveAs fetches a named service and type-asserts it.
func resolveAs[T any](appCtx *core.AppContext, name string) (T, error) {
	var zero T
	svc, ok := appCtx.Service(name)
	if !ok {
		return zero, errors.New("app: required service " + name + " not found (is the storage module configured?)")
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, errors.New("app: service " + name + " has an unexpected type")
	}
	return typed, nil
}

// schedulerModule adapts the cron scheduler to the app lifecycle.
type schedulerModule struct {
	scheduler *cron.Scheduler
}

func (m *schedulerModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "cron.scheduler"}
}

func (m *schedulerModule) Start() error { return m.scheduler.Start() }

func (m *schedulerModule) Stop(ctx context.Context) error { return m.scheduler.Stop(ctx) }

// heartbeatModule adapts the heartbeat to the app lifecycle.
type heartbeatModule struct {
	heartbeat *heartbeat.Heartbeat
}

func (m *heartbeatModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "heartbeat"}
}

func (m *heartbeatModule) Start() error { return m.heartbeat.Start(context.Background()) }

func (m *heartbeatModule) Stop(ctx context.Context) error { return m.heartbeat.Stop(ctx) }
