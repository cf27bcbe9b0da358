package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arenvik/warden/internal/ledger"
)

func newNotifierFixture(t *testing.T) (*Telegram, *[]SendMessageRequest) {
	t.Helper()

	var sent []SendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		sent = append(sent, req)
		_ = json.NewEncoder(w).Encode(APIResponse[Message]{OK: true, Result: Message{MessageID: 1}})
	}))
	t.Cleanup(srv.Close)

	tg := &Telegram{
		config: testConfig(),
		client: NewClient("12345:token", srv.URL),
		logger: quietLogger(),
	}
	return tg, &sent
}

func TestNotifyPending(t *testing.T) {
	t.Parallel()
	tg, sent := newNotifierFixture(t)

	action := &ledger.PendingAction{
		ID:        "abc",
		ToolName:  "send_email",
		Arguments: json.RawMessage(`{"to":"x@example.com"}`),
		UserID:    "alice",
		Status:    ledger.StatusPending,
		ExpiresAt: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
	}

	if err := tg.NotifyPending(context.Background(), action); err != nil {
		t.Fatalf("NotifyPending: %v", err)
	}

	if len(*sent) != 1 {
		t.Fatalf("sent = %d messages, want 1", len(*sent))
	}
	msg := (*sent)[0]
	if msg.ChatID != 100 {
		t.Errorf("chat_id = %d, want 100 (alice's chat)", msg.ChatID)
	}
	for _, want := range []string{"send_email", "approve abc", "reject abc", `x@example.com`} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("prompt missing %q:\n%s", want, msg.Text)
		}
	}
}

func TestNotifyPending_UnmappedUser(t *testing.T) {
	t.Parallel()
	tg, sent := newNotifierFixture(t)

	err := tg.NotifyPending(context.Background(), &ledger.PendingAction{
		ID: "abc", ToolName: "send_email", UserID: "stranger",
	})
	if err == nil {
		t.Fatal("expected error for unmapped user")
	}
	if len(*sent) != 0 {
		t.Errorf("sent = %d messages, want 0", len(*sent))
	}
}

func TestNotifyResolution(t *testing.T) {
	t.Parallel()
	tg, sent := newNotifierFixture(t)

	action := &ledger.PendingAction{
		ID:            "abc",
		ToolName:      "send_email",
		UserID:        "bob",
		Status:        ledger.StatusFailed,
		FailureReason: "smtp timeout",
	}
	if err := tg.NotifyResolution(context.Background(), action); err != nil {
		t.Fatalf("NotifyResolution: %v", err)
	}

	msg := (*sent)[0]
	if msg.ChatID != 200 {
		t.Errorf("chat_id = %d, want 200 (bob's chat)", msg.ChatID)
	}
	if !msg.DisableNotification {
		t.Error("resolution pushes should be silent")
	}
	if !strings.Contains(msg.Text, "smtp timeout") {
		t.Errorf("text = %q, want failure reason", msg.Text)
	}
}

func TestResolutionText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		action ledger.PendingAction
		want   string
	}{
		{"executed", ledger.PendingAction{ToolName: "t", Status: ledger.StatusExecuted, ExecutionResult: "ok"}, "t executed: ok"},
		{"rejected", ledger.PendingAction{ToolName: "t", Status: ledger.StatusRejected}, "t was rejected."},
		{"expired", ledger.PendingAction{ToolName: "t", Status: ledger.StatusExpired}, "t expired unanswered."},
		{"failed", ledger.PendingAction{ToolName: "t", Status: ledger.StatusFailed, FailureReason: "boom"}, "t was approved but failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := resolutionText(&tt.action); got != tt.want {
				t.Errorf("resolutionText() = %q, want %q", got, tt.want)
			}
		})
	}
}
