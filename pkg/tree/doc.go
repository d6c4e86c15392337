// Package tree builds and evaluates a status tree: a dependency graph whose
// imported (leaf) nodes are set by the caller and whose derived nodes are
// recomputed from their dependencies with a rollup rule.
//
// Lifecycle:
//
//	t := tree.New(tree.WithWorkers(4))
//	if err := t.LoadFile("tree.yaml"); err != nil { ... }   // ErrConfigUnreadable / ErrConfigInvalid
//	_ = t.SetStatus("db_primary", status.Red)                // ErrUnknownNode for unknown names
//	t.Compute()                                              // total recomputation, never fails
//	s, ok := t.Status("overall_system_health")
//	_ = t.Render(os.Stdout)
//
// Configuration is a document with a single "nodes" mapping from node name to
// spec. JSON and YAML are both accepted (yaml.v3 reads either). Derived nodes
// may be declared in any order; the builder materializes them in fixed-point
// rounds and each round becomes one evaluation level for Compute.
//
// The graph is stored as an arena of nodes with integer dependency edges.
// A Tree is not safe for concurrent mutation; callers that share one across
// goroutines must serialize access themselves.
package tree
