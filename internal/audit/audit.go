// Package audit defines the append-only trail of gate decisions and ledger
// transitions. Records are derived from pending-action state changes and are
// never mutated or deleted.
package audit

import (
	"context"
	"time"

	"github.com/arenvik/warden/internal/ledger"
)

// Well-known actor values. Human decisions carry the deciding user's ID.
const (
	ActorSystem = "system"
	ActorSweep  = "expiry-sweep"
)

// Record is one state transition of a pending action, including its creation
// (FromStatus empty, ToStatus pending). Records are total-ordered by At
// within a given PendingActionID.
type Record struct {
	PendingActionID string        `json:"pending_action_id"`
	UserID          string        `json:"user_id"`
	ToolName        string        `json:"tool_name"`
	FromStatus      ledger.Status `json:"from_status,omitempty"`
	ToStatus        ledger.Status `json:"to_status"`
	Actor           string        `json:"actor"`
	Detail          string        `json:"detail,omitempty"`
	At              time.Time     `json:"at"`
}

// Filter narrows History queries. Zero-value fields match everything.
type Filter struct {
	PendingActionID string
	UserID          string
	Since           time.Time
	Limit           int
}

// Trail is the persistence contract for audit records. Append is called only
// by the gate and the dispatcher; History serves inspection tooling.
type Trail interface {
	Append(ctx context.Context, record Record) error
	History(ctx context.Context, filter Filter) ([]Record, error)
}
