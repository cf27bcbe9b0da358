package reminders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arenvik/warden/internal/core"
	"github.com/arenvik/warden/internal/reminder"
	"github.com/arenvik/warden/internal/tool"
)

// fakeStore is an in-memory reminder.Store for tests.
type fakeStore struct {
	mu        sync.Mutex
	reminders []*reminder.Reminder
	createErr error
	listErr   error
}

func (s *fakeStore) Create(_ context.Context, r *reminder.Reminder) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *r
	s.reminders = append(s.reminders, &clone)
	return nil
}

func (s *fakeStore) ListUpcoming(_ context.Context, userID string, limit int) ([]*reminder.Reminder, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*reminder.Reminder
	for _, r := range s.reminders {
		if r.UserID == userID && !r.Fired {
			out = append(out, r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) ListDue(_ context.Context, asOf time.Time) ([]*reminder.Reminder, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*reminder.Reminder
	for _, r := range s.reminders {
		if !r.Fired && !r.DueAt.After(asOf) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkFired(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reminders {
		if r.ID == id {
			r.Fired = true
			return nil
		}
	}
	return reminder.ErrNotFound
}

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newModule(store *fakeStore) *Reminders {
	seq := 0
	return &Reminders{
		config: Config{ListLimit: 10},
		logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		store:  store,
		now:    func() time.Time { return testNow },
		newID: func() string {
			seq++
			return fmt.Sprintf("rem-%d", seq)
		},
	}
}

func mustArgs(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestCreateReminder(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	create := &createReminderTool{module: newModule(store)}

	args := mustArgs(t, map[string]string{
		"user_id": "alice",
		"text":    "  water the plants  ",
		"due_at":  "2026-03-15T09:00:00Z",
	})
	out, err := create.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.IsError {
		t.Fatalf("unexpected error output: %s", out.Content)
	}

	if len(store.reminders) != 1 {
		t.Fatalf("stored = %d reminders, want 1", len(store.reminders))
	}
	r := store.reminders[0]
	if r.ID != "rem-1" {
		t.Errorf("id = %q, want rem-1", r.ID)
	}
	if r.UserID != "alice" {
		t.Errorf("user = %q, want alice", r.UserID)
	}
	if r.Text != "water the plants" {
		t.Errorf("text = %q, want trimmed", r.Text)
	}
	if want := time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC); !r.DueAt.Equal(want) {
		t.Errorf("due_at = %v, want %v", r.DueAt, want)
	}
	if !r.CreatedAt.Equal(testNow) {
		t.Errorf("created_at = %v, want %v", r.CreatedAt, testNow)
	}
	if !strings.Contains(out.Content, "rem-1") {
		t.Errorf("output %q should name the reminder id", out.Content)
	}
}

func TestCreateReminder_RejectsPastDue(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	create := &createReminderTool{module: newModule(store)}

	args := mustArgs(t, map[string]string{
		"user_id": "alice",
		"text":    "too late",
		"due_at":  "2026-03-13T09:00:00Z",
	})
	out, err := create.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.IsError {
		t.Error("past due_at should produce an error output")
	}
	if len(store.reminders) != 0 {
		t.Errorf("stored = %d reminders, want 0", len(store.reminders))
	}
}

func TestCreateReminder_RejectsBadTimestamp(t *testing.T) {
	t.Parallel()

	create := &createReminderTool{module: newModule(&fakeStore{})}
	args := mustArgs(t, map[string]string{
		"user_id": "alice",
		"text":    "x",
		"due_at":  "tomorrow at nine",
	})
	out, err := create.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.IsError {
		t.Error("unparseable due_at should produce an error output")
	}
}

func TestCreateReminder_RejectsEmptyText(t *testing.T) {
	t.Parallel()

	create := &createReminderTool{module: newModule(&fakeStore{})}
	args := mustArgs(t, map[string]string{
		"user_id": "alice",
		"text":    "   ",
		"due_at":  "2026-03-15T09:00:00Z",
	})
	out, err := create.Execute(context.Background(), args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.IsError {
		t.Error("blank text should produce an error output")
	}
}

func TestCreateReminder_StoreFailure(t *testing.T) {
	t.Parallel()

	create := &createReminderTool{module: newModule(&fakeStore{createErr: errors.New("disk full")})}
	args := mustArgs(t, map[string]string{
		"user_id": "alice",
		"text":    "x",
		"due_at":  "2026-03-15T09:00:00Z",
	})
	if _, err := create.Execute(context.Background(), args); err == nil {
		t.Error("store failure should surface as an execution error")
	}
}

func TestListReminders(t *testing.T) {
	t.Parallel()

	store := &fakeStore{reminders: []*reminder.Reminder{
		{ID: "a", UserID: "alice", Text: "water the plants", DueAt: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)},
		{ID: "b", UserID: "alice", Text: "renew passport", DueAt: time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)},
		{ID: "c", UserID: "bob", Text: "bob's errand", DueAt: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)},
	}}
	list := &listRemindersTool{module: newModule(store)}

	out, err := list.Execute(context.Background(), mustArgs(t, map[string]string{"user_id": "alice"}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.IsError {
		t.Fatalf("unexpected error output: %s", out.Content)
	}

	lines := strings.Split(out.Content, "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), out.Content)
	}
	if !strings.Contains(lines[0], "water the plants") {
		t.Errorf("line 1 = %q, want the soonest reminder first", lines[0])
	}
	if strings.Contains(out.Content, "bob's errand") {
		t.Error("listing must not leak another user's reminders")
	}
}

func TestListReminders_Empty(t *testing.T) {
	t.Parallel()

	list := &listRemindersTool{module: newModule(&fakeStore{})}
	out, err := list.Execute(context.Background(), mustArgs(t, map[string]string{"user_id": "alice"}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Content != "No upcoming reminders." {
		t.Errorf("content = %q", out.Content)
	}
}

func TestToolSchemas(t *testing.T) {
	t.Parallel()

	m := newModule(&fakeStore{})
	create := &createReminderTool{module: m}
	list := &listRemindersTool{module: m}

	if got := create.DefaultTier(); got != tool.TierUserConfigurable {
		t.Errorf("create_reminder tier = %q, want user_configurable", got)
	}
	if got := list.DefaultTier(); got != tool.TierAutoApprove {
		t.Errorf("list_reminders tier = %q, want auto_approve", got)
	}

	valid := mustArgs(t, map[string]string{
		"user_id": "alice", "text": "x", "due_at": "2026-03-15T09:00:00Z",
	})
	if err := tool.ValidateArguments(create.Schema(), valid); err != nil {
		t.Errorf("valid create args rejected: %v", err)
	}
	if err := tool.ValidateArguments(create.Schema(), mustArgs(t, map[string]string{"text": "x"})); err == nil {
		t.Error("create args missing user_id should fail schema validation")
	}
	if err := tool.ValidateArguments(list.Schema(), mustArgs(t, map[string]string{"user_id": "alice", "extra": "y"})); err == nil {
		t.Error("list args with unexpected property should fail schema validation")
	}
}

func TestModule_ProvisionRegistersTools(t *testing.T) {
	t.Parallel()

	registry := tool.NewRegistry()
	ctx := core.NewAppContext(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), t.TempDir())
	ctx.RegisterService("tool.registry", registry)

	m := &Reminders{config: Config{ListLimit: 10}}
	if err := m.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	names := registry.Names()
	want := []string{"create_reminder", "list_reminders"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("registered tools = %v, want %v", names, want)
	}
}

func TestModule_ValidateListLimit(t *testing.T) {
	t.Parallel()

	m := &Reminders{config: Config{ListLimit: 101}}
	if err := m.Validate(); err == nil {
		t.Error("list_limit over 100 should fail validation")
	}

	m.config.ListLimit = 10
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
