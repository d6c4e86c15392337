// Package metrics exposes the server's Prometheus metrics on a private
// registry served at /metrics.
//
//	statusroll_node_status{node,kind}           0=green 1=yellow 2=red 3=unknown
//	statusroll_reports_total{result}            report outcomes
//	statusroll_compute_duration_seconds         recompute latency
//	statusroll_stale_evictions_total            leaves expired by the TTL
//	statusroll_tree_reloads_total{result}       tree config reloads
package metrics
