package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arenvik/warden/internal/audit"
	"github.com/arenvik/warden/internal/gate"
	"github.com/arenvik/warden/internal/ledger"
	"github.com/arenvik/warden/internal/tool"
)

func TestInvoke_AutoApproveExecutes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/invoke", invokeRequest{
		UserID:    "u1",
		SessionID: "s1",
		Tool:      "echo",
		Arguments: json.RawMessage(`{}`),
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var result gate.Result
	decode(t, rr, &result)
	if result.Kind != gate.KindExecuted {
		t.Errorf("kind = %q, want executed", result.Kind)
	}
	if result.Output.Content != "echoed" {
		t.Errorf("output = %q, want %q", result.Output.Content, "echoed")
	}
	if f.echo.CallCount() != 1 {
		t.Errorf("echo calls = %d, want 1", f.echo.CallCount())
	}
}

func TestInvoke_RequiresApprovalDefers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.queue(t, "send_email")
	if id == "" {
		t.Fatal("expected non-empty pending id")
	}
	if f.risky.CallCount() != 0 {
		t.Errorf("tool ran before approval: calls = %d", f.risky.CallCount())
	}
}

func TestInvoke_UnknownTool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/invoke", invokeRequest{
		UserID: "u1", Tool: "nope", Arguments: json.RawMessage(`{}`),
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestInvoke_MissingFields(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/invoke", invokeRequest{Tool: "echo"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestListPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.queue(t, "send_email")

	rr := f.do(t, http.MethodGet, "/api/pending?user=u1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var actions []*ledger.PendingAction
	decode(t, rr, &actions)
	if len(actions) != 1 {
		t.Fatalf("len(actions) = %d, want 1", len(actions))
	}
	if actions[0].ID != id {
		t.Errorf("id = %q, want %q", actions[0].ID, id)
	}
	if actions[0].Status != ledger.StatusPending {
		t.Errorf("status = %q, want pending", actions[0].Status)
	}
}

func TestListPending_OtherUserEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.queue(t, "send_email")

	rr := f.do(t, http.MethodGet, "/api/pending?user=u2", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var actions []*ledger.PendingAction
	decode(t, rr, &actions)
	if len(actions) != 0 {
		t.Errorf("len(actions) = %d, want 0", len(actions))
	}
}

func TestListPending_MissingUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/api/pending", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestResolve_ApproveExecutes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.queue(t, "send_email")

	rr := f.do(t, http.MethodPost, "/api/pending/"+id+"/resolve", resolveRequest{
		Decision: "approve",
		Actor:    "user:u1",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var action ledger.PendingAction
	decode(t, rr, &action)
	if action.Status != ledger.StatusExecuted {
		t.Errorf("status = %q, want executed", action.Status)
	}
	if action.ExecutionResult != "sent" {
		t.Errorf("execution_result = %q, want %q", action.ExecutionResult, "sent")
	}
	if f.risky.CallCount() != 1 {
		t.Errorf("tool calls = %d, want 1", f.risky.CallCount())
	}
}

func TestResolve_Reject(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.queue(t, "send_email")

	rr := f.do(t, http.MethodPost, "/api/pending/"+id+"/resolve", resolveRequest{
		Decision: "reject",
		Actor:    "user:u1",
		Reason:   "wrong recipient",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var action ledger.PendingAction
	decode(t, rr, &action)
	if action.Status != ledger.StatusRejected {
		t.Errorf("status = %q, want rejected", action.Status)
	}
	if f.risky.CallCount() != 0 {
		t.Errorf("rejected tool was executed: calls = %d", f.risky.CallCount())
	}
}

func TestResolve_TwiceConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.queue(t, "send_email")

	first := f.do(t, http.MethodPost, "/api/pending/"+id+"/resolve", resolveRequest{Decision: "approve"})
	if first.Code != http.StatusOK {
		t.Fatalf("first resolve: status = %d", first.Code)
	}

	second := f.do(t, http.MethodPost, "/api/pending/"+id+"/resolve", resolveRequest{Decision: "approve"})
	if second.Code != http.StatusConflict {
		t.Errorf("second resolve: status = %d, want %d", second.Code, http.StatusConflict)
	}
	if f.risky.CallCount() != 1 {
		t.Errorf("tool calls = %d, want exactly 1", f.risky.CallCount())
	}
}

func TestResolve_UnknownID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(t, http.MethodPost, "/api/pending/no-such-id/resolve", resolveRequest{Decision: "approve"})
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestResolve_UnknownDecision(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.queue(t, "send_email")

	rr := f.do(t, http.MethodPost, "/api/pending/"+id+"/resolve", resolveRequest{Decision: "maybe"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestAudit_FilterByPendingID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	id := f.queue(t, "send_email")
	f.do(t, http.MethodPost, "/api/pending/"+id+"/resolve", resolveRequest{Decision: "reject", Actor: "user:u1"})

	rr := f.do(t, http.MethodGet, "/api/audit?pending_id="+id, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var records []audit.Record
	decode(t, rr, &records)
	// Creation plus rejection.
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[1].ToStatus != ledger.StatusRejected {
		t.Errorf("final to_status = %q, want rejected", records[1].ToStatus)
	}
	if records[1].Actor != "user:u1" {
		t.Errorf("actor = %q, want user:u1", records[1].Actor)
	}
}

func TestAudit_BadSince(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/api/audit?since=yesterday", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestListTools(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(t, http.MethodGet, "/api/tools", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var descs []tool.Descriptor
	decode(t, rr, &descs)
	if len(descs) != 3 {
		t.Fatalf("len(descs) = %d, want 3", len(descs))
	}
	// Sorted by name.
	if descs[0].Name != "draft_reply" || descs[1].Name != "echo" || descs[2].Name != "send_email" {
		t.Errorf("unexpected order: %v, %v, %v", descs[0].Name, descs[1].Name, descs[2].Name)
	}
	if descs[2].DefaultTier != tool.TierRequiresApproval {
		t.Errorf("send_email tier = %q, want requires_approval", descs[2].DefaultTier)
	}
}

func TestPolicy_GetAndSet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	put := f.do(t, http.MethodPut, "/api/policy/u1", policyRequest{
		Tool: "draft_reply",
		Tier: string(tool.TierAutoApprove),
	})
	if put.Code != http.StatusNoContent {
		t.Fatalf("put: status = %d, body = %s", put.Code, put.Body.String())
	}

	get := f.do(t, http.MethodGet, "/api/policy/u1", nil)
	if get.Code != http.StatusOK {
		t.Fatalf("get: status = %d", get.Code)
	}
	var tiers map[string]tool.RiskTier
	decode(t, get, &tiers)
	if tiers["draft_reply"] != tool.TierAutoApprove {
		t.Errorf("draft_reply tier = %q, want auto_approve", tiers["draft_reply"])
	}
	if tiers["send_email"] != tool.TierRequiresApproval {
		t.Errorf("send_email tier = %q, want requires_approval", tiers["send_email"])
	}
}

func TestPolicy_CannotPromoteApprovalFloor(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(t, http.MethodPut, "/api/policy/u1", policyRequest{
		Tool: "send_email",
		Tier: string(tool.TierAutoApprove),
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}

func TestPolicy_UnknownTool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	rr := f.do(t, http.MethodPut, "/api/policy/u1", policyRequest{
		Tool: "nope",
		Tier: string(tool.TierAutoApprove),
	})
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestAPI_RequiresAuth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
