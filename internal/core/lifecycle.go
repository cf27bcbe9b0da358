package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// Modules opt into lifecycle phases by implementing the interfaces below.
// The app drives them in order: Configure, Provision, Validate, then Start
// once every module is loaded, and Stop in reverse order at shutdown.

// Configurable receives the module's raw YAML section before Provision.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner sets defaults, resolves services from the AppContext, and
// registers anything other modules will need. No I/O should happen here.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator checks that configuration is complete. Runs after Provision
// and must be free of side effects.
type Validator interface {
	Validate() error
}

// Starter begins background work: listeners, goroutines, connections.
// Runs after every module has been provisioned and validated.
type Starter interface {
	Start() error
}

// Stopper releases resources. Runs at shutdown in reverse Start order.
type Stopper interface {
	Stop(ctx context.Context) error
}
