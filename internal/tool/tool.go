// Package tool defines the tool interface, risk tiers, and the static
// registry for warden. Tools are the platform's safety boundary: every action
// an agent takes goes through a registered tool and the approval gate.
package tool

import (
	"context"
	"encoding/json"
)

// RiskTier classifies a tool's default execution policy.
type RiskTier string

// RiskTier values, ordered from least to most restrictive.
const (
	// TierAutoApprove executes without human confirmation.
	TierAutoApprove RiskTier = "auto_approve"

	// TierUserConfigurable defers to human approval by default, but a user
	// may promote the tool to auto-approve via a trust override.
	TierUserConfigurable RiskTier = "user_configurable"

	// TierRequiresApproval always defers to human approval. This is a hard
	// floor: no override can weaken it.
	TierRequiresApproval RiskTier = "requires_approval"
)

// Valid reports whether t is a known risk tier.
func (t RiskTier) Valid() bool {
	switch t {
	case TierAutoApprove, TierUserConfigurable, TierRequiresApproval:
		return true
	default:
		return false
	}
}

// Tool is the interface all warden tools implement. Execute is an opaque,
// potentially side-effecting, synchronous call with no retry contract.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Schema returns a JSON Schema describing the tool's arguments.
	Schema() json.RawMessage

	// DefaultTier returns the tool's default risk tier when no trust
	// override is configured.
	DefaultTier() RiskTier

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args json.RawMessage) (Output, error)
}

// Output is the result of a tool execution.
type Output struct {
	// Content is the output text from the tool.
	Content string

	// IsError indicates whether the output represents an error condition.
	IsError bool
}

// Func adapts a plain function into a Tool. Hosts use it to register
// integration handlers without defining a type per tool.
type Func struct {
	ToolName  string
	Desc      string
	ArgSchema json.RawMessage
	Tier      RiskTier
	Fn        func(ctx context.Context, args json.RawMessage) (Output, error)
}

// Name implements Tool.
func (f Func) Name() string { return f.ToolName }

// Description implements Tool.
func (f Func) Description() string { return f.Desc }

// Schema implements Tool.
func (f Func) Schema() json.RawMessage { return f.ArgSchema }

// DefaultTier implements Tool.
func (f Func) DefaultTier() RiskTier { return f.Tier }

// Execute implements Tool.
func (f Func) Execute(ctx context.Context, args json.RawMessage) (Output, error) {
	return f.Fn(ctx, args)
}
