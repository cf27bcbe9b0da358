// Package websocket implements the event-stream channel: connected clients
// (desktop tray apps, dashboards) receive approval lifecycle events as JSON
// frames the moment they happen. Delivery is best-effort; the ledger remains
// the source of truth and slow consumers are dropped rather than buffered
// without bound.
package websocket

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"gopkg.in/yaml.v3"

	"github.com/arenvik/warden/internal/core"
	"github.com/arenvik/warden/internal/ledger"
	"github.com/arenvik/warden/internal/notify"
)

func init() {
	core.RegisterModule(&Hub{})
}

// Compile-time interface guards.
var (
	_ notify.Notifier   = (*Hub)(nil)
	_ core.Configurable = (*Hub)(nil)
	_ core.Provisioner  = (*Hub)(nil)
	_ core.Validator    = (*Hub)(nil)
	_ core.Stopper      = (*Hub)(nil)
)

// Event types pushed over the stream.
const (
	EventPending    = "pending"
	EventResolution = "resolution"
)

// Event is one frame on the wire.
type Event struct {
	Type   string                `json:"type"`
	Action *ledger.PendingAction `json:"action"`
	At     time.Time             `json:"at"`
}

// Config holds the event-stream channel configuration.
type Config struct {
	// Tokens authorize connecting clients. At least one is required.
	Tokens []string `yaml:"tokens"`

	// SendBuffer is the per-client frame buffer. A client that falls this
	// many frames behind is disconnected. Defaults to 16.
	SendBuffer int `yaml:"send_buffer"`
}

func (c *Config) defaults() {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 16
	}
}

// Hub is the WebSocket event-stream module. The gateway mounts its handler
// at /ws/events.
type Hub struct {
	config Config
	logger *slog.Logger
	tokens map[string]struct{}
	now    func() time.Time

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// ModuleInfo implements core.Module.
func (h *Hub) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "channel.websocket",
		New: func() core.Module { return &Hub{} },
	}
}

// Configure implements core.Configurable.
func (h *Hub) Configure(node *yaml.Node) error {
	if err := node.Decode(&h.config); err != nil {
		return err
	}
	h.config.defaults()
	return nil
}

// Provision implements core.Provisioner. It registers the HTTP handler for
// the gateway and joins the notification fanout.
func (h *Hub) Provision(ctx *core.AppContext) error {
	h.logger = ctx.Logger
	h.clients = make(map[*client]struct{})
	h.now = time.Now

	h.tokens = make(map[string]struct{}, len(h.config.Tokens))
	for _, t := range h.config.Tokens {
		h.tokens[t] = struct{}{}
	}

	ctx.RegisterService("events.handler", http.HandlerFunc(h.handleWS))

	if svc, ok := ctx.Service("notify.fanout"); ok {
		if fanout, ok := svc.(*notify.Fanout); ok {
			fanout.Add(h)
		}
	}

	return nil
}

// Validate implements core.Validator.
func (h *Hub) Validate() error {
	if len(h.tokens) == 0 {
		return errors.New("websocket: at least one token is required")
	}
	return nil
}

// Stop implements core.Stopper. It disconnects every client.
func (h *Hub) Stop(context.Context) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		close(c.send)
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	return nil
}

// NotifyPending implements notify.Notifier.
func (h *Hub) NotifyPending(_ context.Context, action *ledger.PendingAction) error {
	return h.broadcast(Event{Type: EventPending, Action: action, At: h.now()})
}

// NotifyResolution implements notify.Notifier.
func (h *Hub) NotifyResolution(_ context.Context, action *ledger.PendingAction) error {
	return h.broadcast(Event{Type: EventResolution, Action: action, At: h.now()})
}

// broadcast fans one event to every connected client. Clients whose buffer
// is full are disconnected; they can reconnect and recover state via the
// pending list.
func (h *Hub) broadcast(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	var slow []*client
	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
			delete(h.clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		close(c.send)
		_ = c.conn.Close(websocket.StatusPolicyViolation, "slow consumer")
		h.logger.Warn("event-stream client dropped", "reason", "slow consumer")
	}
	return nil
}

// handleWS upgrades the connection after token auth and pumps events until
// the client goes away.
func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("event-stream client connected", "clients", n)

	go h.writePump(c)
	h.readLoop(r.Context(), c)
}

// authorized checks the token from the Authorization header or the "token"
// query parameter in constant time.
func (h *Hub) authorized(r *http.Request) bool {
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return false
	}
	for t := range h.tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			return true
		}
	}
	return false
}

// writePump drains the client's send buffer onto the wire.
func (h *Hub) writePump(c *client) {
	for data := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			h.drop(c)
			return
		}
	}
}

// readLoop discards inbound frames; it exists to observe the close.
func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			h.drop(c)
			return
		}
	}
}

// drop removes the client; only the first caller closes the channel.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, present := h.clients[c]
	if present {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if present {
		close(c.send)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
		h.logger.Info("event-stream client disconnected")
	}
}
