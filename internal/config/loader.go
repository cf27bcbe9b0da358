package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envExpr matches ${VAR} and ${VAR:-default}.
var envExpr = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the YAML configuration at path, substitutes environment
// variables, and decodes it. Tokens and webhook secrets are expected to
// arrive through ${VAR} references rather than being written into the file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	substituted, err := substituteEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	cfg := new(Config)
	if err := yaml.Unmarshal(substituted, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// substituteEnv replaces ${VAR} and ${VAR:-default} in the raw YAML. A
// variable that is unset and has no default is collected into a joined
// error so the operator sees every missing variable at once.
func substituteEnv(raw []byte) ([]byte, error) {
	var missing []error

	out := envExpr.ReplaceAllFunc(raw, func(match []byte) []byte {
		groups := envExpr.FindSubmatch(match)
		name := string(groups[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if groups[2] != nil {
			return groups[2]
		}

		missing = append(missing, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return out, errors.Join(missing...)
}
