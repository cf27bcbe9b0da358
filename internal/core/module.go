package core

// ModuleID uniquely identifies a module, namespaced by dots,
// e.g. "storage.sqlite" or "channel.telegram".
type ModuleID string

// Namespace returns the portion of the ID before the last dot, or the whole
// ID when it has no namespace.
func (id ModuleID) Namespace() string {
	s := string(id)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[:i]
		}
	}
	return s
}

// Name returns the portion of the ID after the last dot, or the whole ID
// when it has no namespace.
func (id ModuleID) Name() string {
	s := string(id)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[i+1:]
		}
	}
	return s
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	// ID is the module's unique dotted identifier.
	ID ModuleID

	// New returns a fresh, unconfigured instance of the module.
	New func() Module
}

// Module is the minimal interface all modules implement. Lifecycle behavior
// is added via the optional interfaces in lifecycle.go.
type Module interface {
	ModuleInfo() ModuleInfo
}
