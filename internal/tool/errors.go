package tool

import "errors"

var (
	// ErrUnknownTool is returned when a tool name is not registered.
	// Calling the gate with an unregistered tool is a configuration error,
	// never a silent auto-approve.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArguments is returned when arguments do not match the
	// tool's declared schema.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrEmptyToolName is returned when registering a tool with an empty name.
	ErrEmptyToolName = errors.New("tool name must not be empty")

	// ErrDuplicateTool is returned when registering a tool with a name that
	// already exists in the registry.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrInvalidTier is returned when a tool declares an unknown risk tier.
	ErrInvalidTier = errors.New("invalid risk tier")

	// ErrRegistrySealed is returned when registering after the registry has
	// been sealed at startup.
	ErrRegistrySealed = errors.New("tool registry is sealed")
)
