// Package app provides the shared entry point for the warden binary: config
// loading, logger construction, module wiring, and the run loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arenvik/warden/internal/config"
	"github.com/arenvik/warden/internal/core"
	"github.com/arenvik/warden/internal/cron"
	"github.com/arenvik/warden/internal/notify"
	"github.com/arenvik/warden/internal/security"
	"github.com/arenvik/warden/internal/telemetry"
	"github.com/arenvik/warden/internal/tool"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string
}

// Run loads configuration, starts all modules, and blocks until a shutdown
// signal is received.
func Run(params RunParams) error {
	env, err := Build(params, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	return env.App.Run()
}

// Env is the wired approval core. Entry points that cannot use Run (the
// stdio MCP server) build one, start the app themselves, and Close it when
// done.
type Env struct {
	App    *core.App
	Ctx    *core.AppContext
	Config *config.Config
	Logger *slog.Logger

	Approvals *Approvals

	telemetryShutdown telemetry.ShutdownFunc
}

// Close flushes telemetry. Idempotent.
func (e *Env) Close() {
	if e.telemetryShutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.telemetryShutdown(ctx); err != nil {
		e.Logger.Warn("telemetry shutdown failed", "error", err)
	}
	e.telemetryShutdown = nil
}

// Build loads configuration and modules and wires the approval core. When
// keep is non-nil, only module IDs it accepts are loaded; the rest of the
// config is ignored (used by `warden mcp serve` to share the storage layer
// without binding the daemon's network surfaces).
func Build(params RunParams, keep func(moduleID string) bool) (*Env, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	redactor := security.NewRedactor()
	logger := buildLogger(cfg.Log, redactor)

	telemetryShutdown, err := telemetry.Setup(context.Background(), cfg.Telemetry, params.Version)
	if err != nil {
		return nil, fmt.Errorf("telemetry setup: %w", err)
	}

	var rlCfg security.RateLimitConfig
	if cfg.Security != nil {
		rlCfg = security.RateLimitConfig{
			GateCallsPerMin:    cfg.Security.GateCallsPerMin,
			AuthAttemptsPerMin: cfg.Security.AuthAttemptsPerMin,
		}
	}
	rateLimiter := security.NewRateLimiter(rlCfg)

	promRegistry := prometheus.NewRegistry()
	tools := tool.NewRegistry()
	fanout := notify.NewFanout(logger)
	scheduler := cron.NewScheduler(logger)

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService("security.ratelimiter", rateLimiter)
	appCtx.RegisterService("security.redactor", redactor)
	appCtx.RegisterService("metrics.gatherer", prometheus.Gatherer(promRegistry))
	appCtx.RegisterService("tool.registry", tools)
	appCtx.RegisterService("notify.fanout", fanout)
	appCtx.RegisterService("cron.scheduler", scheduler)
	appCtx.RegisterService("config.path", cfgPath)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if keep != nil {
		filtered := ids[:0]
		for _, id := range ids {
			if keep(id) {
				filtered = append(filtered, id)
			}
		}
		ids = filtered
	}
	if err := application.LoadModules(ids); err != nil {
		return nil, err
	}

	approvals, err := wireApprovals(application, appCtx, cfg, wireDeps{
		tools:     tools,
		fanout:    fanout,
		scheduler: scheduler,
		limiter:   rateLimiter,
		registry:  promRegistry,
		logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &Env{
		App:               application,
		Ctx:               appCtx,
		Config:            cfg,
		Logger:            logger,
		Approvals:         approvals,
		telemetryShutdown: telemetryShutdown,
	}, nil
}

// buildLogger constructs the process logger from config: level and format,
// wrapped in the redacting handler so secrets never reach the log stream.
func buildLogger(lc config.LogConfig, redactor *security.Redactor) *slog.Logger {
	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var inner slog.Handler
	if lc.Format == "json" {
		inner = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		inner = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/warden/warden.yaml →
// ~/.config/warden/warden.yaml → ./warden.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "warden", "warden.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "warden", "warden.yaml"))
	}

	candidates = append(candidates, "warden.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/warden if set, otherwise ~/.local/share/warden.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "warden")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "warden")
}
