// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for warden.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`

	// Approval tunes the pending-action lifecycle.
	Approval ApprovalConfig `yaml:"approval,omitempty"`

	// Security holds rate-limit settings.
	Security *SecurityConfig `yaml:"security,omitempty"`

	// Heartbeat configures re-notification of stale pending actions.
	Heartbeat *HeartbeatConfig `yaml:"heartbeat,omitempty"`

	// Telemetry configures the OTLP trace exporter.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log,omitempty"`
}

// ApprovalConfig tunes the approval gate and the expiry sweep.
type ApprovalConfig struct {
	// TTL is how long a queued action waits for a decision.
	// Defaults to 24h.
	TTL time.Duration `yaml:"ttl,omitempty"`

	// SweepSchedule is a standard 5-field cron expression for the expiry
	// sweep. Defaults to "* * * * *" (every minute).
	SweepSchedule string `yaml:"sweep_schedule,omitempty"`

	// PolicyCacheTTL bounds how stale a cached effective tier may be.
	// Defaults to 30s.
	PolicyCacheTTL time.Duration `yaml:"policy_cache_ttl,omitempty"`

	// PolicyCacheCapacity bounds the tier cache size. Defaults to 4096.
	PolicyCacheCapacity int `yaml:"policy_cache_capacity,omitempty"`
}

// SecurityConfig holds rate-limit settings. Zero values take defaults;
// negative values disable the bucket.
type SecurityConfig struct {
	GateCallsPerMin    int `yaml:"gate_calls_per_min,omitempty"`
	AuthAttemptsPerMin int `yaml:"auth_attempts_per_min,omitempty"`
}

// HeartbeatConfig configures the stale-approval nudger.
type HeartbeatConfig struct {
	// Enabled turns the heartbeat on.
	Enabled bool `yaml:"enabled"`

	// Interval between sweeps. Defaults to 30m.
	Interval time.Duration `yaml:"interval,omitempty"`

	// MinAge is how long an entry must have been pending before it is
	// nudged again. Defaults to 1h.
	MinAge time.Duration `yaml:"min_age,omitempty"`

	// QuietHours suppresses nudges inside a daily window, "HH:MM-HH:MM"
	// (may wrap midnight). Empty means no quiet hours.
	QuietHours string `yaml:"quiet_hours,omitempty"`

	// Timezone interprets QuietHours, IANA name. Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	// Enabled turns trace export on. When false no exporter is installed
	// and spans are no-ops.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/HTTP collector endpoint, host:port.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure,omitempty"`

	// ServiceName defaults to "warden".
	ServiceName string `yaml:"service_name,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level,omitempty"`

	// Format is "text" or "json". Defaults to text.
	Format string `yaml:"format,omitempty"`
}
