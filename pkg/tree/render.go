package tree

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Render writes the two-section tree view to w.
//
// Imported nodes are listed alphabetically. Derived nodes are printed
// depth-first from each root (derived nodes nothing else depends on), roots in
// name order and separated by a blank line. Each line carries the node's
// status and its literal dependency list, indented with one tab per level of
// BFS depth from the root. Children are visited alphabetically and only
// derived dependencies are descended into.
func (t *Tree) Render(w io.Writer) error {
	var b strings.Builder
	g := t.g

	b.WriteString("LEAF NODES (Imported):\n")
	b.WriteString("----------------------\n")
	for _, i := range g.sortedByName(Imported) {
		n := g.nodes[i]
		fmt.Fprintf(&b, "  %s: %s\n", n.name, n.status)
	}

	b.WriteString("\nDERIVED NODES (Computed):\n")
	b.WriteString("-------------------------\n")
	for k, root := range g.roots() {
		if k > 0 {
			b.WriteByte('\n')
		}
		g.renderFrom(&b, root)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// String returns the rendered view.
func (t *Tree) String() string {
	var b strings.Builder
	_ = t.Render(&b)
	return b.String()
}

func (g *graph) renderFrom(b *strings.Builder, root int) {
	depth := g.depths(root)
	visited := make(map[int]bool)

	var walk func(i int)
	walk = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true

		n := g.nodes[i]
		b.WriteString(strings.Repeat("\t", depth[i]))
		fmt.Fprintf(b, "%s: %s", n.name, n.status)
		if len(n.deps) > 0 {
			fmt.Fprintf(b, " <- [%s]", strings.Join(g.names(n.deps), ", "))
		}
		b.WriteByte('\n')

		for _, c := range g.derivedChildren(i) {
			walk(c)
		}
	}
	walk(root)
}

// depths returns the BFS distance from root to every derived node reachable
// through derived dependencies.
func (g *graph) depths(root int) map[int]int {
	depth := map[int]int{root: 0}
	queue := []int{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range g.derivedChildren(cur) {
			if _, ok := depth[c]; !ok {
				depth[c] = depth[cur] + 1
				queue = append(queue, c)
			}
		}
	}
	return depth
}

// derivedChildren returns the distinct derived dependencies of i by name.
func (g *graph) derivedChildren(i int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, d := range g.nodes[i].deps {
		if g.nodes[d].kind == Derived && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(a, b int) bool { return g.nodes[out[a]].name < g.nodes[out[b]].name })
	return out
}
