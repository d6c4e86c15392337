package tree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/obsidianstack/statusroll/pkg/rollup"
	"github.com/obsidianstack/statusroll/pkg/status"
)

// graph owns every node of a loaded configuration.
type graph struct {
	nodes []*node
	index map[string]int

	// levels holds derived node indices grouped by materialization round.
	// Nodes in levels[k] depend only on leaves and nodes in levels[<k].
	levels [][]int
}

func newGraph() *graph {
	return &graph{index: make(map[string]int)}
}

// build materializes cfg. Imported nodes are created first; derived nodes are
// then created in rounds, each round taking every pending spec whose
// dependencies all existed when the round started. Specs still pending when a
// round makes no progress reference a missing node or sit on a cycle.
func build(cfg *Config) (*graph, error) {
	g := newGraph()

	seen := make(map[string]struct{}, len(cfg.Nodes))
	var pending []NodeSpec
	for _, spec := range cfg.Nodes {
		if spec.Name == "" {
			return nil, fmt.Errorf("%w: empty node name", ErrConfigInvalid)
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate node name %q", ErrConfigInvalid, spec.Name)
		}
		seen[spec.Name] = struct{}{}

		switch spec.Kind {
		case Imported:
			g.add(&node{name: spec.Name, kind: Imported, status: status.Unknown})
		case Derived:
			pending = append(pending, spec)
		default:
			return nil, fmt.Errorf("%w: node %q: unknown kind %v", ErrConfigInvalid, spec.Name, spec.Kind)
		}
	}

	for len(pending) > 0 {
		var ready, rest []NodeSpec
		for _, spec := range pending {
			if g.hasAll(spec.Dependencies) {
				ready = append(ready, spec)
			} else {
				rest = append(rest, spec)
			}
		}
		if len(ready) == 0 {
			break
		}

		level := make([]int, 0, len(ready))
		for _, spec := range ready {
			rule, err := rollup.New(spec.Rule, spec.Params)
			if err != nil {
				return nil, fmt.Errorf("%w: node %q: %w", ErrConfigInvalid, spec.Name, err)
			}
			deps := make([]int, len(spec.Dependencies))
			for i, dep := range spec.Dependencies {
				deps[i] = g.index[dep]
			}
			level = append(level, g.add(&node{
				name:   spec.Name,
				kind:   Derived,
				rule:   rule,
				deps:   deps,
				status: status.Unknown,
			}))
		}
		g.levels = append(g.levels, level)
		pending = rest
	}

	if len(pending) > 0 {
		return nil, fmt.Errorf("%w: unresolved dependencies (missing node or cycle): %s",
			ErrConfigInvalid, g.describeUnresolved(pending))
	}
	return g, nil
}

func (g *graph) add(n *node) int {
	i := len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.index[n.name] = i
	return i
}

func (g *graph) hasAll(names []string) bool {
	for _, name := range names {
		if _, ok := g.index[name]; !ok {
			return false
		}
	}
	return true
}

// describeUnresolved lists each stuck node with the dependencies it is still
// waiting on, sorted by node name.
func (g *graph) describeUnresolved(specs []NodeSpec) string {
	sorted := make([]NodeSpec, len(specs))
	copy(sorted, specs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	parts := make([]string, 0, len(sorted))
	for _, spec := range sorted {
		var waiting []string
		for _, dep := range spec.Dependencies {
			if _, ok := g.index[dep]; !ok {
				waiting = append(waiting, dep)
			}
		}
		parts = append(parts, fmt.Sprintf("%s (needs %s)", spec.Name, strings.Join(waiting, ", ")))
	}
	return strings.Join(parts, "; ")
}

// view copies node i for external consumption.
func (g *graph) view(i int) NodeView {
	n := g.nodes[i]
	v := NodeView{Name: n.name, Kind: n.kind, Status: n.status}
	if n.kind == Derived {
		v.Rule = n.rule.Name()
		v.Dependencies = g.names(n.deps)
	}
	return v
}

func (g *graph) names(idx []int) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = g.nodes[i].name
	}
	return out
}

// sortedByName returns the indices of nodes of the given kind, ordered by name.
func (g *graph) sortedByName(kind Kind) []int {
	var out []int
	for i, n := range g.nodes {
		if n.kind == kind {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return g.nodes[out[a]].name < g.nodes[out[b]].name })
	return out
}

// roots returns derived nodes that no derived node depends on, by name.
func (g *graph) roots() []int {
	referenced := make(map[int]bool)
	for _, n := range g.nodes {
		if n.kind != Derived {
			continue
		}
		for _, d := range n.deps {
			referenced[d] = true
		}
	}
	var out []int
	for _, i := range g.sortedByName(Derived) {
		if !referenced[i] {
			out = append(out, i)
		}
	}
	return out
}
