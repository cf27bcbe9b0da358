package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arenvik/warden/internal/audit/audittest"
	"github.com/arenvik/warden/internal/dispatch"
	"github.com/arenvik/warden/internal/gate"
	"github.com/arenvik/warden/internal/ledger/ledgertest"
	"github.com/arenvik/warden/internal/policy"
	"github.com/arenvik/warden/internal/policy/policytest"
	"github.com/arenvik/warden/internal/tool"
	"github.com/arenvik/warden/internal/tool/tooltest"
)

const testToken = "test-token"

// fixture holds a gateway wired against in-memory stores, plus the
// collaborators tests poke at directly.
type fixture struct {
	gw      *Gateway
	handler http.Handler
	store   *ledgertest.MemoryStore
	trail   *audittest.MemoryTrail
	echo    *tooltest.Mock
	risky   *tooltest.Mock
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// newFixture builds a gateway with two registered tools: "echo"
// (auto-approve) and "send_email" (requires approval).
func newFixture(t *testing.T) *fixture {
	t.Helper()

	echo := &tooltest.Mock{
		ToolName: "echo",
		Tier:     tool.TierAutoApprove,
		Output:   tool.Output{Content: "echoed"},
	}
	risky := &tooltest.Mock{
		ToolName: "send_email",
		Tier:     tool.TierRequiresApproval,
		Output:   tool.Output{Content: "sent"},
	}
	draft := &tooltest.Mock{
		ToolName: "draft_reply",
		Tier:     tool.TierUserConfigurable,
		Output:   tool.Output{Content: "drafted"},
	}

	registry := tool.NewRegistry()
	for _, m := range []*tooltest.Mock{echo, risky, draft} {
		if err := registry.Register(m); err != nil {
			t.Fatalf("Register(%s): %v", m.ToolName, err)
		}
	}
	registry.Seal()

	store := ledgertest.NewMemoryStore()
	trail := audittest.NewMemoryTrail()
	policies := policytest.NewMemoryStore()
	resolver := policy.NewResolver(registry, policies, policy.ResolverConfig{})

	now := func() time.Time {
		return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	}

	g := gate.New(registry, resolver, store, trail, nil, gate.Config{
		Logger: testLogger(),
		Now:    now,
	})
	d := dispatch.New(registry, store, trail, nil, nil, dispatch.Config{
		Logger: testLogger(),
		Now:    now,
	})

	gw := &Gateway{
		config: Config{
			Auth: AuthConfig{BearerToken: testToken},
		},
		logger:     testLogger(),
		dispatcher: NewWebhookDispatcher(testLogger()),
		gate:       g,
		approvals:  d,
		trail:      trail,
		policies:   resolver,
		registry:   registry,
	}
	gw.config.defaults()

	return &fixture{
		gw:      gw,
		handler: gw.buildRouter(),
		store:   store,
		trail:   trail,
		echo:    echo,
		risky:   risky,
	}
}

// do issues an authenticated request against the fixture's router and
// returns the recorder.
func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

// decode unmarshals a recorder's JSON body into out.
func decode(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

// queue pushes one deferred call through the gate and returns its pending ID.
func (f *fixture) queue(t *testing.T, toolName string) string {
	t.Helper()

	rr := f.do(t, http.MethodPost, "/api/invoke", invokeRequest{
		UserID:    "u1",
		SessionID: "s1",
		Tool:      toolName,
		Arguments: json.RawMessage(`{"to":"alice@example.com"}`),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("invoke %s: status = %d, body = %s", toolName, rr.Code, rr.Body.String())
	}

	var result gate.Result
	decode(t, rr, &result)
	if result.Kind != gate.KindDeferred {
		t.Fatalf("invoke %s: kind = %q, want deferred", toolName, result.Kind)
	}
	return result.PendingID
}
