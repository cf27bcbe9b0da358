// Package ledger defines the pending-action ledger: the durable system of
// record for every gated tool invocation awaiting a human decision. Entries
// are created by the approval gate, transitioned only by the resolution
// dispatcher, and never deleted. Terminal entries persist for audit.
package ledger

import (
	"context"
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a pending action. Transitions are
// monotonic and one-directional:
//
//	Pending → Approved | Rejected | Expired
//	Approved → Executed | Failed
//
// Rejected, Expired, Executed, and Failed are terminal.
type Status string

// Status values for the pending-action state machine.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired, StatusExecuted, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusExecuted, StatusFailed:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from → to is a legal state-machine edge.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected || to == StatusExpired
	case StatusApproved:
		return to == StatusExecuted || to == StatusFailed
	default:
		return false
	}
}

// PendingAction is one gated tool invocation. Repeated identical calls create
// separate entries; there is no dedup across invocations.
type PendingAction struct {
	ID        string          `json:"id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments"`
	SessionID string          `json:"session_id"`
	UserID    string          `json:"user_id"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`

	// ResolvedAt is set on the first transition out of Pending.
	ResolvedAt time.Time `json:"resolved_at,omitzero"`

	// ExecutionResult is populated only when Status is Executed.
	// FailureReason is populated only when Status is Failed.
	// The two are mutually exclusive.
	ExecutionResult string `json:"execution_result,omitempty"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

// Expired reports whether the action's TTL has elapsed as of now.
func (p *PendingAction) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Fields carries the mutable columns written alongside a status transition.
type Fields struct {
	ResolvedAt      time.Time
	ExecutionResult string
	FailureReason   string
}

// Store is the persistence contract for pending actions. Transition is the
// compare-and-swap primitive: it must atomically move the entry from `from`
// to `to` and return ErrAlreadyResolved when the entry is not in `from`, so a
// race between a human decision and the expiry sweep produces exactly one
// winner.
type Store interface {
	Create(ctx context.Context, action *PendingAction) error
	Get(ctx context.Context, id string) (*PendingAction, error)

	// ListPending returns all Pending entries for a user, oldest first.
	ListPending(ctx context.Context, userID string) ([]*PendingAction, error)

	// ListExpired returns Pending entries whose ExpiresAt is before asOf.
	ListExpired(ctx context.Context, asOf time.Time) ([]*PendingAction, error)

	// Transition performs the CAS described above and returns the updated
	// entry on success.
	Transition(ctx context.Context, id string, from, to Status, fields Fields) (*PendingAction, error)
}
