package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]ModuleInfo{}
)

// RegisterModule records a module's ModuleInfo in the global registry.
// Call it from the module package's init(); a blank import of the package
// in the main binary is what makes the module available. Panics on a
// duplicate ID or incomplete info, since both are programmer errors that
// should fail at startup.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("module ID must not be empty")
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[string(info.ID)]; dup {
		panic(fmt.Sprintf("module already registered: %s", info.ID))
	}
	registry[string(info.ID)] = info
}

// GetModule returns the ModuleInfo for the given ID, or false if not found.
func GetModule(id string) (ModuleInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := registry[id]
	return info, ok
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]ModuleInfo, 0, len(registry))
	for _, info := range registry {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]ModuleInfo{}
}
