package compute

import (
	"log/slog"
	"sync"
	"time"

	"github.com/obsidianstack/statusroll/agent/internal/scraper"
	"github.com/obsidianstack/statusroll/pkg/status"
)

// uptimeWindow is the number of recent observations tracked for uptime %.
const uptimeWindow = 20

// Result is the damped verdict for one node, ready for the shipper.
type Result struct {
	Node      string
	Status    status.Status // reported status, after damping
	Observed  status.Status // raw probe status
	Detail    string
	Timestamp time.Time

	ConsecutiveReds int
	UptimePct       float64

	// Ship is true when the reported status changed or the heartbeat
	// interval elapsed since the node was last shipped.
	Ship bool
}

// Engine keeps per-node state across probe cycles.
//
// All exported methods are safe for concurrent use.
type Engine struct {
	mu        sync.Mutex
	heartbeat time.Duration
	states    map[string]*nodeState
}

// NewEngine returns an Engine that re-ships an unchanged status once per
// heartbeat. A zero heartbeat ships every result.
func NewEngine(heartbeat time.Duration) *Engine {
	return &Engine{heartbeat: heartbeat, states: make(map[string]*nodeState)}
}

// Process folds an observation into the node's history and returns the
// status to report.
//
// now is passed explicitly so tests control the clock without sleeping.
func (e *Engine) Process(obs *scraper.Observation, failureThreshold int, now time.Time) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.stateFor(obs.Node)
	if obs.Status == status.Red {
		st.consecutiveReds++
	} else {
		st.consecutiveReds = 0
	}
	st.record(obs.Status == status.Green || obs.Status == status.Yellow)

	out := &Result{
		Node:            obs.Node,
		Observed:        obs.Status,
		Status:          Damp(obs.Status, st.consecutiveReds, failureThreshold),
		Detail:          obs.Detail,
		Timestamp:       now,
		ConsecutiveReds: st.consecutiveReds,
		UptimePct:       st.uptimePct(),
	}

	if out.Status != out.Observed {
		slog.Info("compute: damping red observation",
			"node", obs.Node,
			"consecutive_reds", st.consecutiveReds,
			"failure_threshold", failureThreshold,
		)
	}

	changed := !st.shipped || st.lastStatus != out.Status
	due := e.heartbeat == 0 || now.Sub(st.lastShip) >= e.heartbeat
	if changed || due {
		out.Ship = true
		st.shipped = true
		st.lastStatus = out.Status
		st.lastShip = now
	}
	return out
}

// Forget drops the state of nodes not in keep. Called after a config reload
// removes probes.
func (e *Engine) Forget(keep map[string]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for node := range e.states {
		if !keep[node] {
			delete(e.states, node)
		}
	}
}

type nodeState struct {
	consecutiveReds int
	history         []bool // newest last

	shipped    bool
	lastStatus status.Status
	lastShip   time.Time
}

func (e *Engine) stateFor(node string) *nodeState {
	if st, ok := e.states[node]; ok {
		return st
	}
	st := &nodeState{}
	e.states[node] = st
	return st
}

func (st *nodeState) record(up bool) {
	if len(st.history) >= uptimeWindow {
		st.history = st.history[1:]
	}
	st.history = append(st.history, up)
}

func (st *nodeState) uptimePct() float64 {
	if len(st.history) == 0 {
		return 100
	}
	var ok int
	for _, up := range st.history {
		if up {
			ok++
		}
	}
	return float64(ok) / float64(len(st.history)) * 100
}
