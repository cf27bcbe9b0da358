package security

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a request exceeds the configured limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// Rate-limit bucket kinds.
const (
	BucketGate = "gate"
	BucketAuth = "auth"
)

// RateLimitConfig holds configurable per-minute limits. Zero values take
// defaults; a negative value disables the bucket.
type RateLimitConfig struct {
	GateCallsPerMin    int `yaml:"gate_calls_per_min"`
	AuthAttemptsPerMin int `yaml:"auth_attempts_per_min"`
}

// RateLimiter implements sliding-window rate limiting. Each bucket tracks
// timestamps of recent events inside its window.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	window time.Duration
	limit  int
	events []time.Time
}

// NewRateLimiter creates a limiter with the given config.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.GateCallsPerMin == 0 {
		cfg.GateCallsPerMin = 600
	}
	if cfg.AuthAttemptsPerMin == 0 {
		cfg.AuthAttemptsPerMin = 60
	}

	buckets := make(map[string]*bucket)
	if cfg.GateCallsPerMin > 0 {
		buckets[BucketGate] = &bucket{window: time.Minute, limit: cfg.GateCallsPerMin}
	}
	if cfg.AuthAttemptsPerMin > 0 {
		buckets[BucketAuth] = &bucket{window: time.Minute, limit: cfg.AuthAttemptsPerMin}
	}

	return &RateLimiter{
		buckets: buckets,
		now:     time.Now,
	}
}

// Allow reports whether one event of the given kind is permitted now.
// Unknown kinds have no limit configured and are always allowed.
func (rl *RateLimiter) Allow(kind string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[kind]
	if !ok {
		return nil
	}

	now := rl.now()
	b.evict(now)

	if len(b.events) >= b.limit {
		return ErrRateLimited
	}
	b.events = append(b.events, now)
	return nil
}

// evict drops events outside the sliding window. Events are appended in
// chronological order, so a prefix scan suffices.
func (b *bucket) evict(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for i < len(b.events) && b.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		b.events = b.events[i:]
	}
}
