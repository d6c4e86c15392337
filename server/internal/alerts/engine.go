package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianstack/statusroll/pkg/status"
	"github.com/obsidianstack/statusroll/server/internal/config"
	"github.com/obsidianstack/statusroll/server/internal/store"
)

const (
	maxHistoryLen      = 200
	recentWindowHours  = 1
	webhookHTTPTimeout = 10 * time.Second
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string        `json:"id"`
	RuleName   string        `json:"rule_name"`
	Node       string        `json:"node"`
	Severity   string        `json:"severity"`
	Message    string        `json:"message"`
	Status     status.Status `json:"status"`
	FiredAt    time.Time     `json:"fired_at"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
	State      string        `json:"state"`
}

type rule struct {
	config.AlertRule
	cond condition
}

// Engine evaluates alert rules against node status changes and delivers
// webhook notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules     map[string][]rule // keyed by node
	webhooks  []config.WebhookConfig
	client    *http.Client
	now       func() time.Time
	deliverFn func(*Alert)

	mu       sync.Mutex
	active   map[string]*Alert    // key: rule name
	lastFire map[string]time.Time // for cooldown
	history  []*Alert             // recently resolved alerts
}

// New creates an Engine from the server alert configuration. It fails when a
// rule's condition cannot be parsed. An Engine with no rules is valid.
func New(cfg config.AlertsConfig) (*Engine, error) {
	e := &Engine{
		rules:    make(map[string][]rule),
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: webhookHTTPTimeout},
		now:      time.Now,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
	}
	e.deliverFn = func(a *Alert) { go e.deliver(a) }

	for _, r := range cfg.Rules {
		c, err := parseCondition(r.Condition)
		if err != nil {
			return nil, fmt.Errorf("alerts: rule %q: %w", r.Name, err)
		}
		e.rules[r.Node] = append(e.rules[r.Node], rule{AlertRule: r, cond: c})
	}
	return e, nil
}

// Prime evaluates every rule once against the current statuses, so that
// nodes already matching at startup fire without waiting for a change.
func (e *Engine) Prime(snap store.Snapshot) {
	for _, n := range snap.Nodes {
		e.evaluate(n.Name, n.Status)
	}
}

// Evaluate tests the rules watching each changed node against its new status.
// Rules that start matching fire unless their cooldown is still running;
// firing rules that stop matching resolve.
func (e *Engine) Evaluate(changes []store.Change) {
	for _, c := range changes {
		e.evaluate(c.Node, c.To)
	}
}

func (e *Engine) evaluate(node string, s status.Status) {
	for _, r := range e.rules[node] {
		if r.cond.match(s) {
			e.fire(r, s)
		} else {
			e.resolve(r)
		}
	}
}

func (e *Engine) fire(r rule, s status.Status) {
	now := e.now()

	e.mu.Lock()
	if _, ok := e.active[r.Name]; ok {
		e.mu.Unlock()
		return
	}
	if last, ok := e.lastFire[r.Name]; ok && now.Sub(last) < r.Cooldown {
		e.mu.Unlock()
		return
	}
	a := &Alert{
		ID:       uuid.NewString(),
		RuleName: r.Name,
		Node:     r.Node,
		Severity: r.Severity,
		Status:   s,
		Message:  fmt.Sprintf("[%s] %s fired: %s is %s (%s)", r.Severity, r.Name, r.Node, s, r.cond),
		FiredAt:  now,
		State:    StateFiring,
	}
	e.active[r.Name] = a
	e.lastFire[r.Name] = now
	cp := *a
	e.mu.Unlock()

	slog.Warn("alert fired",
		"rule", r.Name,
		"node", r.Node,
		"status", s,
		"severity", r.Severity,
	)
	e.deliverFn(&cp)
}

func (e *Engine) resolve(r rule) {
	e.mu.Lock()
	a, ok := e.active[r.Name]
	if !ok {
		e.mu.Unlock()
		return
	}
	resolved := e.now()
	a.State = StateResolved
	a.ResolvedAt = &resolved
	delete(e.active, r.Name)

	e.history = append(e.history, a)
	if len(e.history) > maxHistoryLen {
		e.history = e.history[len(e.history)-maxHistoryLen:]
	}
	cp := *a
	e.mu.Unlock()

	slog.Info("alert resolved", "rule", r.Name, "node", r.Node)
	e.deliverFn(&cp)
}

// Active returns copies of all currently firing alerts plus any alerts
// resolved within the past hour, sorted newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindowHours * time.Hour)
	out := make([]*Alert, 0, len(e.active))

	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}

// Firing returns the number of currently firing alerts.
func (e *Engine) Firing() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}
