// Package tooltest provides a scriptable Tool mock for tests.
package tooltest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/arenvik/warden/internal/tool"
)

// Mock is a scriptable tool. Zero value is usable: it reports its configured
// name and tier and returns Output unchanged.
type Mock struct {
	ToolName  string
	Desc      string
	ArgSchema json.RawMessage
	Tier      tool.RiskTier

	// Output and Err are returned by Execute unless ExecuteFn is set.
	Output tool.Output
	Err    error

	// ExecuteFn overrides the canned Output/Err when non-nil.
	ExecuteFn func(ctx context.Context, args json.RawMessage) (tool.Output, error)

	mu    sync.Mutex
	calls []json.RawMessage
}

// Name implements tool.Tool.
func (m *Mock) Name() string { return m.ToolName }

// Description implements tool.Tool.
func (m *Mock) Description() string {
	if m.Desc == "" {
		return "mock tool"
	}
	return m.Desc
}

// Schema implements tool.Tool.
func (m *Mock) Schema() json.RawMessage {
	if len(m.ArgSchema) == 0 {
		return json.RawMessage(`{"type":"object"}`)
	}
	return m.ArgSchema
}

// DefaultTier implements tool.Tool.
func (m *Mock) DefaultTier() tool.RiskTier {
	if m.Tier == "" {
		return tool.TierRequiresApproval
	}
	return m.Tier
}

// Execute implements tool.Tool and records the call.
func (m *Mock) Execute(ctx context.Context, args json.RawMessage) (tool.Output, error) {
	m.mu.Lock()
	cp := make(json.RawMessage, len(args))
	copy(cp, args)
	m.calls = append(m.calls, cp)
	m.mu.Unlock()

	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, args)
	}
	return m.Output, m.Err
}

// Calls returns a copy of the recorded argument payloads.
func (m *Mock) Calls() []json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]json.RawMessage, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Execute was invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
