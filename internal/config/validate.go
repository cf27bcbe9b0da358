package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/arenvik/warden/internal/core"
	"github.com/arenvik/warden/internal/heartbeat"
)

// Validate checks the structural validity of a Config.
// It verifies the version field, ensures modules are present, checks that
// all referenced module IDs exist in the registry, enforces that
// Configurable modules have a config entry, and validates the approval,
// telemetry, and log sections.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	// Strict check: registered Configurable modules must have a config entry.
	for _, info := range core.GetModules() {
		mod := info.New()
		if _, ok := mod.(core.Configurable); ok {
			if _, exists := cfg.Modules[string(info.ID)]; !exists {
				errs = append(errs, fmt.Errorf("config: module %q requires configuration but has no entry", info.ID))
			}
		}
	}

	errs = append(errs, validateApproval(&cfg.Approval)...)
	errs = append(errs, validateHeartbeat(cfg.Heartbeat)...)
	errs = append(errs, validateTelemetry(cfg.Telemetry)...)
	errs = append(errs, validateLog(&cfg.Log)...)

	return errors.Join(errs...)
}

func validateApproval(ac *ApprovalConfig) []error {
	var errs []error

	if ac.TTL < 0 {
		errs = append(errs, fmt.Errorf("config: approval.ttl must not be negative, got %s", ac.TTL))
	}
	if ac.PolicyCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("config: approval.policy_cache_ttl must not be negative, got %s", ac.PolicyCacheTTL))
	}
	if ac.PolicyCacheCapacity < 0 {
		errs = append(errs, fmt.Errorf("config: approval.policy_cache_capacity must not be negative, got %d", ac.PolicyCacheCapacity))
	}
	if ac.SweepSchedule != "" {
		if _, err := cron.ParseStandard(ac.SweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("config: approval.sweep_schedule: %w", err))
		}
	}

	return errs
}

func validateHeartbeat(hc *HeartbeatConfig) []error {
	if hc == nil || !hc.Enabled {
		return nil
	}
	var errs []error

	if hc.Interval < 0 {
		errs = append(errs, fmt.Errorf("config: heartbeat.interval must not be negative, got %s", hc.Interval))
	}
	if hc.MinAge < 0 {
		errs = append(errs, fmt.Errorf("config: heartbeat.min_age must not be negative, got %s", hc.MinAge))
	}
	if hc.QuietHours != "" {
		if _, err := heartbeat.ParseQuietHours(hc.QuietHours); err != nil {
			errs = append(errs, fmt.Errorf("config: heartbeat.quiet_hours: %w", err))
		}
	}
	if hc.Timezone != "" {
		if _, err := time.LoadLocation(hc.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("config: heartbeat.timezone: %w", err))
		}
	}

	return errs
}

func validateTelemetry(tc *TelemetryConfig) []error {
	if tc == nil || !tc.Enabled {
		return nil
	}
	var errs []error
	if tc.Endpoint == "" {
		errs = append(errs, errors.New("config: telemetry.endpoint is required when telemetry is enabled"))
	}
	return errs
}

func validateLog(lc *LogConfig) []error {
	var errs []error

	if lc.Level != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, lc.Level) {
		errs = append(errs, fmt.Errorf("config: log.level must be one of debug, info, warn, error; got %q", lc.Level))
	}
	if lc.Format != "" && lc.Format != "text" && lc.Format != "json" {
		errs = append(errs, fmt.Errorf("config: log.format must be \"text\" or \"json\", got %q", lc.Format))
	}

	return errs
}
