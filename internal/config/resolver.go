package config

import "slices"

// Resolve lists the module IDs declared under modules:, sorted so module
// loading is deterministic across runs.
func Resolve(cfg *Config) []string {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
