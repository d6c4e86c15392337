package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/obsidianstack/statusroll/agent/internal/config"
	"github.com/obsidianstack/statusroll/pkg/status"
)

type httpProbe struct {
	probe  config.Probe
	client *http.Client
}

// Probe issues a GET to the endpoint. 2xx is green (yellow when slower than
// latency_warn); any other response or a transport failure is red.
func (p *httpProbe) Probe(ctx context.Context) *Observation {
	obs := newObservation(p.probe.Node)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.probe.Endpoint, nil)
	if err != nil {
		obs.Err = fmt.Errorf("build request: %w", err)
		obs.Detail = obs.Err.Error()
		return obs
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	obs.Latency = time.Since(start)
	if err != nil {
		obs.Status = status.Red
		obs.Err = fmt.Errorf("http probe %q: %w", p.probe.Node, err)
		obs.Detail = "unreachable"
		slog.Warn("scraper: http probe failed", "node", p.probe.Node, "err", err)
		return obs
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		obs.Status = status.Red
		obs.Detail = fmt.Sprintf("http %d", resp.StatusCode)
	case p.probe.LatencyWarn > 0 && obs.Latency > p.probe.LatencyWarn:
		obs.Status = status.Yellow
		obs.Detail = fmt.Sprintf("http %d in %s (warn above %s)", resp.StatusCode,
			obs.Latency.Round(time.Millisecond), p.probe.LatencyWarn)
	default:
		obs.Status = status.Green
		obs.Detail = fmt.Sprintf("http %d", resp.StatusCode)
	}
	return obs
}
