package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/obsidianstack/statusroll/agent/internal/config"
	"github.com/obsidianstack/statusroll/pkg/status"
)

type promProbe struct {
	probe  config.Probe
	client *http.Client
}

// Probe scrapes the exposition endpoint and classifies the sum of the
// configured metric family against yellow_above and red_above.
//
// A failed scrape or an absent metric is unknown: the measurement is missing,
// not the service it describes.
func (p *promProbe) Probe(ctx context.Context) *Observation {
	obs := newObservation(p.probe.Node)

	start := time.Now()
	mfs, err := fetchMetrics(ctx, p.client, p.probe.Endpoint)
	obs.Latency = time.Since(start)
	if err != nil {
		obs.Err = fmt.Errorf("prometheus probe %q: %w", p.probe.Node, err)
		obs.Detail = "scrape failed"
		slog.Warn("scraper: prometheus fetch failed", "node", p.probe.Node, "err", err)
		return obs
	}

	value, ok := sumFamily(mfs[p.probe.Metric])
	if !ok {
		obs.Detail = fmt.Sprintf("metric %s not exposed", p.probe.Metric)
		return obs
	}

	obs.Status = classify(value, p.probe.YellowAbove, p.probe.RedAbove)
	obs.Detail = fmt.Sprintf("%s=%g", p.probe.Metric, value)
	return obs
}

func classify(v float64, yellowAbove, redAbove *float64) status.Status {
	switch {
	case redAbove != nil && v > *redAbove:
		return status.Red
	case yellowAbove != nil && v > *yellowAbove:
		return status.Yellow
	default:
		return status.Green
	}
}
