package security

import (
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_AllowWithinLimit(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{GateCallsPerMin: 3})
	for i := range 3 {
		if err := rl.Allow(BucketGate); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if err := rl.Allow(BucketGate); !errors.Is(err, ErrRateLimited) {
		t.Errorf("fourth call: err = %v, want ErrRateLimited", err)
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{AuthAttemptsPerMin: 2})
	rl.now = func() time.Time { return now }

	if err := rl.Allow(BucketAuth); err != nil {
		t.Fatal(err)
	}
	if err := rl.Allow(BucketAuth); err != nil {
		t.Fatal(err)
	}
	if err := rl.Allow(BucketAuth); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}

	// Once the first events fall out of the window, capacity returns.
	now = now.Add(61 * time.Second)
	if err := rl.Allow(BucketAuth); err != nil {
		t.Errorf("after window slide: %v", err)
	}
}

func TestRateLimiter_BucketsAreIndependent(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{GateCallsPerMin: 1, AuthAttemptsPerMin: 1})
	if err := rl.Allow(BucketGate); err != nil {
		t.Fatal(err)
	}
	if err := rl.Allow(BucketAuth); err != nil {
		t.Errorf("auth bucket should not be drained by gate calls: %v", err)
	}
}

func TestRateLimiter_NegativeDisables(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{GateCallsPerMin: -1})
	for range 100 {
		if err := rl.Allow(BucketGate); err != nil {
			t.Fatalf("disabled bucket should always allow: %v", err)
		}
	}
}

func TestRateLimiter_UnknownKindAllowed(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimitConfig{})
	if err := rl.Allow("no-such-bucket"); err != nil {
		t.Errorf("unknown kind: %v", err)
	}
}
