package tree

import (
	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/statusroll/pkg/status"
)

// minParallelLevel is the narrowest level worth fanning out to goroutines.
const minParallelLevel = 32

// Compute re-evaluates every derived node exactly once, level by level, so
// each node sees up-to-date inputs. Imported nodes are not touched.
//
// Nodes within a level never depend on one another, so a level may be split
// across up to workers goroutines; each goroutine writes only the status of
// the node it evaluates.
func (t *Tree) Compute() {
	for _, level := range t.g.levels {
		if t.workers < 2 || len(level) < minParallelLevel {
			for _, i := range level {
				t.g.eval(i)
			}
			continue
		}

		var eg errgroup.Group
		eg.SetLimit(t.workers)
		for _, i := range level {
			i := i
			eg.Go(func() error {
				t.g.eval(i)
				return nil
			})
		}
		_ = eg.Wait() // eval cannot fail
	}
}

func (g *graph) eval(i int) {
	n := g.nodes[i]
	inputs := make([]status.Status, len(n.deps))
	for k, d := range n.deps {
		inputs[k] = g.nodes[d].status
	}
	n.status = n.rule.Compute(inputs)
}
