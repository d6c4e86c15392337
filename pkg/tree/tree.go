package tree

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/obsidianstack/statusroll/pkg/status"
)

// Tree owns a status graph and evaluates it on demand.
type Tree struct {
	g       *graph
	workers int
	logger  *slog.Logger
}

// Option configures a Tree.
type Option func(*Tree)

// WithWorkers bounds the goroutines Compute may use for one evaluation level.
// Values below 2 keep evaluation on the calling goroutine.
func WithWorkers(n int) Option {
	return func(t *Tree) { t.workers = n }
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.logger = l
		}
	}
}

// New returns an empty Tree. Every lookup fails until a configuration is loaded.
func New(opts ...Option) *Tree {
	t := &Tree{g: newGraph(), workers: 1, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LoadFile reads the configuration at path and loads it.
func (t *Tree) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfigUnreadable, err)
	}
	defer f.Close()
	return t.Load(f)
}

// Load decodes a configuration from r and loads it.
func (t *Tree) Load(r io.Reader) error {
	cfg, err := Decode(r)
	if err != nil {
		return err
	}
	return t.LoadConfig(cfg)
}

// LoadConfig builds the graph described by cfg and replaces the current one.
// On error the current graph is left untouched.
func (t *Tree) LoadConfig(cfg *Config) error {
	g, err := build(cfg)
	if err != nil {
		return err
	}
	t.g = g
	t.logger.Debug("tree: graph built",
		"nodes", len(g.nodes),
		"leaves", len(g.nodes)-g.derivedCount(),
		"levels", len(g.levels),
	)
	return nil
}

// SetStatus stores s on the named node. Derived nodes accept the value but it
// is overwritten by the next Compute.
func (t *Tree) SetStatus(name string, s status.Status) error {
	i, ok := t.g.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	t.g.nodes[i].status = s
	return nil
}

// Status returns the current value of the named node, and false if no such
// node exists.
func (t *Tree) Status(name string) (status.Status, bool) {
	i, ok := t.g.index[name]
	if !ok {
		return status.Unknown, false
	}
	return t.g.nodes[i].status, true
}

// Node returns a view of the named node.
func (t *Tree) Node(name string) (NodeView, bool) {
	i, ok := t.g.index[name]
	if !ok {
		return NodeView{}, false
	}
	return t.g.view(i), true
}

// Nodes returns views of every node, sorted by name.
func (t *Tree) Nodes() []NodeView {
	out := make([]NodeView, 0, len(t.g.nodes))
	for i := range t.g.nodes {
		out = append(out, t.g.view(i))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Leaves returns the names of all imported nodes, sorted.
func (t *Tree) Leaves() []string {
	return t.g.names(t.g.sortedByName(Imported))
}

// Roots returns the names of derived nodes that no derived node depends on,
// sorted.
func (t *Tree) Roots() []string {
	return t.g.names(t.g.roots())
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.g.nodes) }

// Levels returns the number of derived evaluation levels.
func (t *Tree) Levels() int { return len(t.g.levels) }

// Affected returns every derived node whose status can change when the named
// node changes, sorted. It returns ErrUnknownNode for unknown names.
func (t *Tree) Affected(name string) ([]string, error) {
	start, ok := t.g.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}

	dependents := make(map[int][]int)
	for i, n := range t.g.nodes {
		for _, d := range n.deps {
			dependents[d] = append(dependents[d], i)
		}
	}

	seen := map[int]bool{start: true}
	queue := []int{start}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range dependents[cur] {
			if seen[next] {
				continue
			}
			seen[next] = true
			out = append(out, t.g.nodes[next].name)
			queue = append(queue, next)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Snapshot returns the current status of every node.
func (t *Tree) Snapshot() map[string]status.Status {
	out := make(map[string]status.Status, len(t.g.nodes))
	for _, n := range t.g.nodes {
		out[n.name] = n.status
	}
	return out
}

// Restore copies statuses from prev onto imported nodes with the same name
// and returns how many were restored. Derived and unknown names are skipped.
func (t *Tree) Restore(prev map[string]status.Status) int {
	restored := 0
	for name, s := range prev {
		i, ok := t.g.index[name]
		if !ok || t.g.nodes[i].kind != Imported {
			continue
		}
		t.g.nodes[i].status = s
		restored++
	}
	return restored
}

func (g *graph) derivedCount() int {
	n := 0
	for _, level := range g.levels {
		n += len(level)
	}
	return n
}
