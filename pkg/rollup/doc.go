// Package rollup implements the rules that reduce a node's child statuses to a
// single status.
//
// Three rules are built in and selected by name from configuration:
//
//	worst_status      the most severe input; Unknown inputs are ignored
//	threshold_rollup  counts reds and yellows against configured thresholds
//	majority_vote     the most frequent colour; Unknown votes are dropped
//
// Every rule returns Unknown for an empty input. Rules are immutable and safe
// for concurrent use once constructed.
//
// New(name, params) is the factory used by the graph builder. Parameter maps
// arrive untyped (decoded from YAML or JSON), so numeric values are accepted as
// any Go integer kind or as an integral float.
package rollup
