package tree

import (
	"fmt"

	"github.com/obsidianstack/statusroll/pkg/rollup"
	"github.com/obsidianstack/statusroll/pkg/status"
)

// Kind distinguishes leaves from derived nodes. It is fixed at creation.
type Kind uint8

const (
	// Imported nodes hold a status supplied by the caller.
	Imported Kind = iota
	// Derived nodes hold a status computed from their dependencies.
	Derived
)

func (k Kind) String() string {
	switch k {
	case Imported:
		return "imported"
	case Derived:
		return "derived"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "imported":
		*k = Imported
	case "derived":
		*k = Derived
	default:
		return fmt.Errorf("tree: invalid kind %q", text)
	}
	return nil
}

// node is one arena entry. deps index into the owning graph's nodes slice and
// always point at nodes created in an earlier round.
type node struct {
	name   string
	kind   Kind
	rule   rollup.Rule
	deps   []int
	status status.Status
}

// NodeView is a read-only copy of a node for callers outside the package.
type NodeView struct {
	Name         string        `json:"name"`
	Kind         Kind          `json:"kind"`
	Rule         string        `json:"rule,omitempty"`
	Dependencies []string      `json:"dependencies,omitempty"`
	Status       status.Status `json:"status"`
}
