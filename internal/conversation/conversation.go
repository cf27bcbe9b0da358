// Package conversation defines the sink the dispatcher writes into when it
// resumes a stalled conversation after a decision or expiry. The synthesized
// follow-up is a distinct system-authored message, not a retroactive edit of
// agent output, so the agent resumes with full context.
package conversation

import "context"

// Sink appends a system-authored message to a session's transcript.
// Temporary sink unavailability must not fail a resolution: the ledger
// transition is the source of truth and the message is best-effort UX.
type Sink interface {
	AppendSystemMessage(ctx context.Context, sessionID, text string) error
}

// Message is one transcript entry as stored by the storage module.
type Message struct {
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// Message kinds. KindSystem marks dispatcher-synthesized follow-ups.
const (
	KindSystem = "system"
	KindAgent  = "agent"
	KindUser   = "user"
)
