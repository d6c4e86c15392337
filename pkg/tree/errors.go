package tree

import "errors"

var (
	// ErrConfigUnreadable means the configuration source could not be read or
	// is not well-formed YAML/JSON.
	ErrConfigUnreadable = errors.New("configuration unreadable")

	// ErrConfigInvalid means the configuration was readable but describes a
	// graph that cannot be built: missing or bad fields, duplicate names,
	// unknown rules, or dependencies that never resolve.
	ErrConfigInvalid = errors.New("configuration invalid")

	// ErrUnknownNode means an operation named a node that is not in the graph.
	ErrUnknownNode = errors.New("node not found")
)
