// Package policy implements the per-user trust-policy layer: overrides that
// promote a user-configurable tool to auto-approve. Overrides can only weaken
// UserConfigurable upward; RequiresApproval is a hard floor that no override
// reaches.
package policy

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidPromotion is returned when an override would set a tier the
	// tool's default does not permit.
	ErrInvalidPromotion = errors.New("invalid trust promotion")

	// ErrOverrideNotFound is returned by Store.Get when no override exists
	// for the (user, tool) pair.
	ErrOverrideNotFound = errors.New("trust override not found")
)

// Override is a per-(user, tool) promotion of the tool's effective tier.
// Overrides are superseded in place, never deleted.
type Override struct {
	UserID    string    `json:"user_id"`
	ToolName  string    `json:"tool_name"`
	Tier      string    `json:"tier"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the persistence contract for trust overrides. It is read on every
// gate decision (behind a TTL cache) and written only on explicit user
// action, so eventual consistency on the read path is acceptable.
type Store interface {
	Get(ctx context.Context, userID, toolName string) (*Override, error)
	Set(ctx context.Context, override Override) error
	ListForUser(ctx context.Context, userID string) ([]Override, error)
}
