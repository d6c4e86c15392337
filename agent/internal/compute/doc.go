// Package compute turns raw probe observations into the statuses the agent
// reports.
//
// damp.go holds the pure Damp function: a red observation is reported as
// yellow until failure_threshold consecutive reds have been seen.
//
// engine.go provides the stateful Engine that tracks consecutive failures,
// uptime over the last 20 observations and what was last shipped per node.
// Changed statuses ship immediately; unchanged ones are re-shipped once per
// heartbeat so the server does not expire them. Engine.Process accepts an
// injectable time.Time so tests are deterministic.
package compute
