package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/obsidianstack/statusroll/pkg/tree"
	"github.com/obsidianstack/statusroll/server/internal/store"
)

const namespace = "statusroll"

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	// nodeStatus is 0=green 1=yellow 2=red 3=unknown.
	// Labels: node, kind
	nodeStatus *prometheus.GaugeVec

	// reports counts agent and REST reports.
	// Labels: result (accepted, unknown_node, not_leaf)
	reports *prometheus.CounterVec

	computeDuration prometheus.Histogram

	// staleEvictions counts leaves reset to unknown after the TTL.
	staleEvictions prometheus.Counter

	// reloads counts tree config reloads.
	// Labels: result (ok, error)
	reloads *prometheus.CounterVec
}

// New registers all collectors, plus the Go and process collectors, on a new
// registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		nodeStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "node_status",
			Help:      "Current node status (0=green, 1=yellow, 2=red, 3=unknown)",
		}, []string{"node", "kind"}),
		reports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Leaf status reports by outcome",
		}, []string{"result"}),
		computeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_duration_seconds",
			Help:      "Time spent recomputing the status tree",
			Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		staleEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_evictions_total",
			Help:      "Leaves reset to unknown because their reports stopped",
		}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tree",
			Name:      "reloads_total",
			Help:      "Tree config reloads by outcome",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveReport counts one report outcome.
func (m *Metrics) ObserveReport(result string) {
	m.reports.WithLabelValues(result).Inc()
}

// ObserveCompute records one recompute duration.
func (m *Metrics) ObserveCompute(d time.Duration) {
	m.computeDuration.Observe(d.Seconds())
}

// ObserveReload counts one tree reload.
func (m *Metrics) ObserveReload(err error) {
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
}

// ObserveChanges updates node gauges from a change set and counts stale
// evictions. Reload change sets are skipped; call Sync after a reload so that
// removed nodes lose their series.
func (m *Metrics) ObserveChanges(changes []store.Change) {
	for _, c := range changes {
		if c.Cause == store.CauseReload {
			continue
		}
		m.nodeStatus.WithLabelValues(c.Node, c.Kind.String()).Set(float64(c.To))
		if c.Cause == store.CauseStale && c.Kind == tree.Imported {
			m.staleEvictions.Inc()
		}
	}
}

// Sync replaces every node gauge with the values in snap.
func (m *Metrics) Sync(snap store.Snapshot) {
	m.nodeStatus.Reset()
	for _, n := range snap.Nodes {
		m.nodeStatus.WithLabelValues(n.Name, n.Kind.String()).Set(float64(n.Status))
	}
}
