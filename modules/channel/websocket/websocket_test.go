package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/arenvik/warden/internal/ledger"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	h := &Hub{
		config:  Config{Tokens: []string{"stream-token"}, SendBuffer: 16},
		logger:  slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		tokens:  map[string]struct{}{"stream-token": {}},
		now:     func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) },
		clients: make(map[*client]struct{}),
	}

	srv := httptest.NewServer(http.HandlerFunc(h.handleWS))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = h.Stop(context.Background()) })
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + srv.URL[len("http"):] + "?token=" + token
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return ev
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		n := len(h.clients)
		h.mu.Unlock()
		if n == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d clients", want)
}

func TestHub_RejectsBadToken(t *testing.T) {
	t.Parallel()
	_, srv := newTestHub(t)

	resp, err := http.Get(srv.URL + "?token=wrong")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestHub_RejectsMissingToken(t *testing.T) {
	t.Parallel()
	_, srv := newTestHub(t)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestHub_BroadcastsPendingEvent(t *testing.T) {
	t.Parallel()
	h, srv := newTestHub(t)

	conn := dial(t, srv, "stream-token")
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	waitForClients(t, h, 1)

	action := &ledger.PendingAction{
		ID:       "abc",
		ToolName: "send_email",
		UserID:   "alice",
		Status:   ledger.StatusPending,
	}
	if err := h.NotifyPending(context.Background(), action); err != nil {
		t.Fatalf("NotifyPending: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Type != EventPending {
		t.Errorf("type = %q, want pending", ev.Type)
	}
	if ev.Action == nil || ev.Action.ID != "abc" {
		t.Errorf("action = %+v, want id abc", ev.Action)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	t.Parallel()
	h, srv := newTestHub(t)

	c1 := dial(t, srv, "stream-token")
	defer func() { _ = c1.Close(websocket.StatusNormalClosure, "") }()
	c2 := dial(t, srv, "stream-token")
	defer func() { _ = c2.Close(websocket.StatusNormalClosure, "") }()
	waitForClients(t, h, 2)

	action := &ledger.PendingAction{ID: "xyz", ToolName: "send_email", Status: ledger.StatusRejected}
	if err := h.NotifyResolution(context.Background(), action); err != nil {
		t.Fatalf("NotifyResolution: %v", err)
	}

	for _, conn := range []*websocket.Conn{c1, c2} {
		ev := readEvent(t, conn)
		if ev.Type != EventResolution {
			t.Errorf("type = %q, want resolution", ev.Type)
		}
		if ev.Action.ID != "xyz" {
			t.Errorf("action id = %q, want xyz", ev.Action.ID)
		}
	}
}

func TestHub_DropsDisconnectedClient(t *testing.T) {
	t.Parallel()
	h, srv := newTestHub(t)

	conn := dial(t, srv, "stream-token")
	waitForClients(t, h, 1)

	_ = conn.Close(websocket.StatusNormalClosure, "done")
	waitForClients(t, h, 0)
}

func TestHub_ValidateRequiresToken(t *testing.T) {
	t.Parallel()

	h := &Hub{tokens: map[string]struct{}{}}
	if err := h.Validate(); err == nil {
		t.Error("expected error with no tokens")
	}

	h.tokens["x"] = struct{}{}
	if err := h.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
