package tool

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Descriptor is the static view of a registered tool: its name, schema, and
// default risk tier. Returned by Registry.Descriptors for listing surfaces.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
	DefaultTier RiskTier        `json:"default_tier"`
}

// Registry holds registered tools. It is populated once at process start and
// sealed before serving; lookups after Seal need no locking discipline from
// callers. Instance-based (not global) for testability.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	sealed bool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry. It returns ErrRegistrySealed after
// Seal, ErrEmptyToolName, ErrInvalidTier, or ErrDuplicateTool as appropriate.
func (r *Registry) Register(t Tool) error {
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return ErrEmptyToolName
	}
	if !t.DefaultTier().Valid() {
		return fmt.Errorf("%w: %s declares %q", ErrInvalidTier, name, t.DefaultTier())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %s", ErrRegistrySealed, name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = t
	return nil
}

// Seal marks the registry immutable. Called once after all modules have
// registered their tools, before any gate decision is served.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Lookup returns the tool with the given name, or ErrUnknownTool.
func (r *Registry) Lookup(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// Descriptors returns the static descriptors of all registered tools,
// sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.tools))
	for name, t := range r.tools {
		out = append(out, Descriptor{
			Name:        name,
			Description: t.Description(),
			Schema:      t.Schema(),
			DefaultTier: t.DefaultTier(),
		})
	}
	slices.SortFunc(out, func(a, b Descriptor) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

// Names returns all registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
