package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/obsidianstack/statusroll/agent/internal/compute"
	"github.com/obsidianstack/statusroll/agent/internal/config"
	"github.com/obsidianstack/statusroll/agent/internal/scraper"
)

// maxConcurrentProbes bounds how many probes run at once in a cycle.
const maxConcurrentProbes = 16

// Sink receives results that are due for shipping.
type Sink interface {
	Ship(*compute.Result)
}

type target struct {
	probe  config.Probe
	prober scraper.Prober
}

// Runner owns the probe set and runs it on a fixed interval.
// Apply may be called concurrently with Run.
type Runner struct {
	engine *compute.Engine
	sink   Sink
	build  func(config.Probe) (scraper.Prober, error)

	mu      sync.Mutex
	targets []target
}

// New returns a Runner with no probes. Call Apply to install them.
func New(engine *compute.Engine, sink Sink) *Runner {
	return &Runner{engine: engine, sink: sink, build: scraper.New}
}

// Apply replaces the probe set. Probes that fail to build are skipped and
// reported in the returned error; the others are installed.
func (r *Runner) Apply(probes []config.Probe) error {
	var (
		targets []target
		failed  []string
	)
	keep := make(map[string]bool, len(probes))
	for _, p := range probes {
		pr, err := r.build(p)
		if err != nil {
			slog.Error("runner: skipping probe", "node", p.Node, "err", err)
			failed = append(failed, p.Node)
			continue
		}
		targets = append(targets, target{probe: p, prober: pr})
		keep[p.Node] = true
		slog.Info("runner: registered probe", "node", p.Node, "type", p.Type, "endpoint", p.Endpoint)
	}

	r.mu.Lock()
	r.targets = targets
	r.mu.Unlock()
	r.engine.Forget(keep)

	if len(failed) > 0 {
		return fmt.Errorf("runner: %d probe(s) failed to build: %v", len(failed), failed)
	}
	return nil
}

// Len returns the number of installed probes.
func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets)
}

// Run probes every interval until ctx is cancelled. The first cycle starts
// immediately.
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r.Cycle(ctx, time.Now())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Cycle runs every probe once, concurrently, and ships the results that are
// due.
func (r *Runner) Cycle(ctx context.Context, now time.Time) {
	r.mu.Lock()
	targets := r.targets
	r.mu.Unlock()

	var eg errgroup.Group
	eg.SetLimit(maxConcurrentProbes)
	for _, t := range targets {
		t := t
		eg.Go(func() error {
			obs := t.prober.Probe(ctx)
			res := r.engine.Process(obs, t.probe.FailureThreshold, now)
			if res.Ship {
				r.sink.Ship(res)
				slog.Debug("runner: queued report", "node", res.Node, "status", res.Status)
			}
			return nil
		})
	}
	_ = eg.Wait()
}
