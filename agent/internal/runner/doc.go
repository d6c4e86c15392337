// Package runner schedules the agent's probes: every probe_interval it runs
// all probes concurrently (bounded by an errgroup limit), folds each
// observation through the compute engine and hands due results to the
// shipper. Apply swaps the probe set on config reload.
package runner
