package heartbeat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arenvik/warden/internal/ledger"
)

// mockSource implements PendingSource for testing.
type mockSource struct {
	actions []*ledger.PendingAction
	err     error
}

func (m *mockSource) ListOpen(context.Context) ([]*ledger.PendingAction, error) {
	return m.actions, m.err
}

// mockNudger implements Nudger for testing.
type mockNudger struct {
	mu     sync.Mutex
	nudged []string
	err    error
}

func (m *mockNudger) NotifyPending(_ context.Context, action *ledger.PendingAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nudged = append(m.nudged, action.ID)
	return m.err
}

func (m *mockNudger) nudgedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	dst := make([]string, len(m.nudged))
	copy(dst, m.nudged)
	return dst
}

func pendingAt(id string, createdAt time.Time) *ledger.PendingAction {
	return &ledger.PendingAction{
		ID:        id,
		ToolName:  "send_email",
		SessionID: "s1",
		UserID:    "u1",
		Status:    ledger.StatusPending,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(24 * time.Hour),
	}
}

func TestParseQuietHours_Valid(t *testing.T) {
	t.Parallel()

	qh, err := ParseQuietHours("02:00-06:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qh.Start != 2*time.Hour {
		t.Errorf("Start = %v, want %v", qh.Start, 2*time.Hour)
	}
	if qh.End != 6*time.Hour {
		t.Errorf("End = %v, want %v", qh.End, 6*time.Hour)
	}
}

func TestParseQuietHours_MidnightWrap(t *testing.T) {
	t.Parallel()

	qh, err := ParseQuietHours("23:00-07:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qh.Start != 23*time.Hour {
		t.Errorf("Start = %v, want %v", qh.Start, 23*time.Hour)
	}
	if qh.End != 7*time.Hour {
		t.Errorf("End = %v, want %v", qh.End, 7*time.Hour)
	}
}

func TestParseQuietHours_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{name: "missing dash", input: "0200 0600"},
		{name: "bad start format", input: "xx:00-06:00"},
		{name: "bad end format", input: "02:00-yy:00"},
		{name: "hour out of range", input: "25:00-06:00"},
		{name: "minute out of range", input: "02:60-06:00"},
		{name: "no colon in start", input: "0200-06:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseQuietHours(tt.input)
			if err == nil {
				t.Fatalf("expected error for input %q, got nil", tt.input)
			}
			if !errors.Is(err, ErrInvalidQuiet) {
				t.Errorf("expected ErrInvalidQuiet, got: %v", err)
			}
		})
	}
}

func TestQuietHours_IsQuiet_Normal(t *testing.T) {
	t.Parallel()

	qh := QuietHours{Start: 2 * time.Hour, End: 6 * time.Hour}

	// 03:00 should be quiet.
	quiet := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	if !qh.IsQuiet(quiet) {
		t.Error("03:00 should be quiet in 02:00-06:00")
	}

	// 08:00 should not be quiet.
	notQuiet := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	if qh.IsQuiet(notQuiet) {
		t.Error("08:00 should not be quiet in 02:00-06:00")
	}

	// 02:00 (boundary start) should be quiet.
	boundary := time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC)
	if !qh.IsQuiet(boundary) {
		t.Error("02:00 should be quiet (inclusive start)")
	}

	// 06:00 (boundary end) should NOT be quiet.
	boundaryEnd := time.Date(2026, 1, 1, 6, 0, 0, 0, time.UTC)
	if qh.IsQuiet(boundaryEnd) {
		t.Error("06:00 should not be quiet (exclusive end)")
	}
}

func TestQuietHours_IsQuiet_MidnightWrap(t *testing.T) {
	t.Parallel()

	qh := QuietHours{Start: 23 * time.Hour, End: 7 * time.Hour}

	// 23:30 should be quiet.
	if !qh.IsQuiet(time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC)) {
		t.Error("23:30 should be quiet in 23:00-07:00")
	}

	// 01:00 should be quiet.
	if !qh.IsQuiet(time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)) {
		t.Error("01:00 should be quiet in 23:00-07:00")
	}

	// 12:00 should not be quiet.
	if qh.IsQuiet(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Error("12:00 should not be quiet in 23:00-07:00")
	}
}

func TestHeartbeat_StartStop(t *testing.T) {
	t.Parallel()

	hb, err := New(Config{Interval: time.Hour}, &mockSource{}, &mockNudger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := hb.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := hb.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestHeartbeat_AlreadyStarted(t *testing.T) {
	t.Parallel()

	hb, err := New(Config{Interval: time.Hour}, &mockSource{}, &mockNudger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := hb.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = hb.Stop(ctx) })

	if err := hb.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestHeartbeat_StopNotStarted(t *testing.T) {
	t.Parallel()

	hb, err := New(Config{Interval: time.Hour}, &mockSource{}, &mockNudger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := hb.Stop(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop before Start = %v, want ErrNotStarted", err)
	}
}

func TestHeartbeat_Tick_NudgesStaleActions(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	source := &mockSource{
		actions: []*ledger.PendingAction{
			pendingAt("a1", now.Add(-3*time.Hour)),
			pendingAt("a2", now.Add(-2*time.Hour)),
		},
	}
	nudger := &mockNudger{}

	hb, err := New(Config{
		Interval: time.Hour,
		MinAge:   time.Hour,
		Now:      func() time.Time { return now },
	}, source, nudger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Drive the tick directly instead of waiting for the ticker.
	hb.Tick(context.Background())

	nudged := nudger.nudgedIDs()
	if len(nudged) != 2 {
		t.Fatalf("nudged %d actions, want 2", len(nudged))
	}
	if nudged[0] != "a1" || nudged[1] != "a2" {
		t.Errorf("nudged = %v", nudged)
	}
}

func TestHeartbeat_Tick_SkipsQuietHours(t *testing.T) {
	t.Parallel()

	// Set now to 03:00, quiet hours 02:00-06:00.
	now := time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC)
	qh := QuietHours{Start: 2 * time.Hour, End: 6 * time.Hour}

	source := &mockSource{
		actions: []*ledger.PendingAction{pendingAt("a1", now.Add(-2 * time.Hour))},
	}
	nudger := &mockNudger{}

	hb, err := New(Config{
		Interval:   time.Hour,
		QuietHours: &qh,
		Now:        func() time.Time { return now },
	}, source, nudger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	hb.Tick(context.Background())

	if nudged := nudger.nudgedIDs(); len(nudged) != 0 {
		t.Errorf("nudged %d actions during quiet hours, want 0", len(nudged))
	}
}

func TestHeartbeat_Tick_SkipsFreshActions(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	source := &mockSource{
		actions: []*ledger.PendingAction{
			pendingAt("stale", now.Add(-2*time.Hour)),
			pendingAt("fresh", now.Add(-10*time.Minute)),
		},
	}
	nudger := &mockNudger{}

	hb, err := New(Config{
		Interval: time.Hour,
		MinAge:   time.Hour,
		Now:      func() time.Time { return now },
	}, source, nudger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	hb.Tick(context.Background())

	nudged := nudger.nudgedIDs()
	if len(nudged) != 1 {
		t.Fatalf("nudged %d actions, want 1", len(nudged))
	}
	if nudged[0] != "stale" {
		t.Errorf("nudged[0] = %q, want %q", nudged[0], "stale")
	}
}

func TestNew_NilSource(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, &mockNudger{})
	if err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestNew_NilNudger(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, &mockSource{}, nil)
	if err == nil {
		t.Fatal("expected error for nil nudger")
	}
}
