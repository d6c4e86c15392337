// Package scraper runs the agent's health probes. Each probe observes one
// leaf node of the server's status tree and returns an Observation carrying
// the status to report.
//
// Probe types: http (http.go), prometheus exposition thresholds
// (prometheus.go) and TLS certificate expiry (cert.go). Factory:
// New(config.Probe) returns the correct Prober.
//
// Authentication (mTLS, API key, bearer token, basic) is handled by the shared
// authRoundTripper in base.go; HTTP-based probes receive a pre-configured
// *http.Client from New().
package scraper
