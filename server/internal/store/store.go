package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/obsidianstack/statusroll/pkg/report"
	"github.com/obsidianstack/statusroll/pkg/status"
	"github.com/obsidianstack/statusroll/pkg/tree"
)

var (
	// ErrNotLeaf is returned when a report targets a derived node.
	ErrNotLeaf = errors.New("store: node is not a leaf")
	// ErrSuperseded is returned when a report was observed before the one
	// already stored for its leaf.
	ErrSuperseded = errors.New("store: report superseded")
)

// Change causes.
const (
	CauseReport = "report"
	CauseStale  = "stale"
	CauseReload = "reload"
)

// Change records one node whose status moved during a mutation.
type Change struct {
	Node  string        `json:"node"`
	Kind  tree.Kind     `json:"kind"`
	From  status.Status `json:"from"`
	To    status.Status `json:"to"`
	Cause string        `json:"cause"`
}

// Entry is the last report accepted for a leaf.
type Entry struct {
	Source     string
	Detail     string
	ObservedAt time.Time // zero when the reporter sent none
	UpdatedAt  time.Time
}

// NodeState is a node view enriched with its last report, if any.
type NodeState struct {
	tree.NodeView
	Source    string     `json:"source,omitempty"`
	Detail    string     `json:"detail,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Snapshot is a consistent copy of the whole tree.
type Snapshot struct {
	Nodes      []NodeState   `json:"nodes"`
	Roots      []string      `json:"roots"`
	RootStatus status.Status `json:"root_status"`
	TakenAt    time.Time     `json:"taken_at"`
}

// Store owns the live status tree. Every mutation recomputes the tree and
// notifies subscribers with the resulting changes.
//
// A background goroutine (Run) resets leaves whose last report is older than
// the TTL back to unknown. A zero TTL disables expiry.
type Store struct {
	mu      sync.RWMutex
	tree    *tree.Tree
	reports map[string]*Entry
	ttl     time.Duration
	now     func() time.Time // injectable for deterministic tests

	subMu       sync.RWMutex
	subscribers []func([]Change)
	onCompute   func(time.Duration)

	// Change sets are delivered in mutation order: each mutation takes a
	// ticket under mu and waits for its turn before calling subscribers.
	issued uint64
	turnMu sync.Mutex
	turn   *sync.Cond
	served uint64
}

// New creates a Store around t, which must already be loaded. The initial
// compute runs here.
func New(t *tree.Tree, ttl time.Duration) *Store {
	t.Compute()
	s := &Store{
		tree:    t,
		reports: make(map[string]*Entry),
		ttl:     ttl,
		now:     time.Now,
	}
	s.turn = sync.NewCond(&s.turnMu)
	return s
}

// Subscribe registers fn to receive every non-empty change set. fn runs on
// the mutating goroutine after the store lock is released. Change sets reach
// fn in the order the mutations were applied. fn must not mutate the store.
func (s *Store) Subscribe(fn func([]Change)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// OnCompute registers fn to observe the duration of every recompute.
func (s *Store) OnCompute(fn func(time.Duration)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.onCompute = fn
}

// Report applies a leaf report. It returns tree.ErrUnknownNode for unknown
// names and ErrNotLeaf for derived nodes. A report whose ObservedAt is before
// that of the stored report for the same leaf is dropped with ErrSuperseded.
func (s *Store) Report(r *report.Report) ([]Change, error) {
	s.mu.Lock()
	view, ok := s.tree.Node(r.Node)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", tree.ErrUnknownNode, r.Node)
	}
	if view.Kind != tree.Imported {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrNotLeaf, r.Node)
	}
	if prev, ok := s.reports[r.Node]; ok && !r.ObservedAt.IsZero() && r.ObservedAt.Before(prev.ObservedAt) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q observed at %s, stored %s", ErrSuperseded, r.Node,
			r.ObservedAt.UTC().Format(time.RFC3339Nano), prev.ObservedAt.UTC().Format(time.RFC3339Nano))
	}

	before := s.tree.Snapshot()
	_ = s.tree.SetStatus(r.Node, r.Status)
	s.reports[r.Node] = &Entry{Source: r.Source, Detail: r.Detail, ObservedAt: r.ObservedAt, UpdatedAt: s.now()}
	changes := s.recomputeLocked(before, CauseReport)
	ticket := s.ticketLocked()
	s.mu.Unlock()

	s.deliver(ticket, changes)
	return changes, nil
}

// Status returns the current status of the named node.
func (s *Store) Status(name string) (status.Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Status(name)
}

// Node returns the state of the named node.
func (s *Store) Node(name string) (NodeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.tree.Node(name)
	if !ok {
		return NodeState{}, false
	}
	return s.stateLocked(v), true
}

// Affected returns the derived nodes that depend on name, transitively.
func (s *Store) Affected(name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Affected(name)
}

// Snapshot returns every node, sorted by name, together with the roots.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := s.tree.Nodes()
	out := Snapshot{
		Nodes:      make([]NodeState, 0, len(views)),
		Roots:      s.tree.Roots(),
		RootStatus: s.rootStatusLocked(),
		TakenAt:    s.now().UTC(),
	}
	for _, v := range views {
		out.Nodes = append(out.Nodes, s.stateLocked(v))
	}
	return out
}

// RootStatus returns the status of the first root by name, or unknown when
// the tree has no derived nodes.
func (s *Store) RootStatus() status.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rootStatusLocked()
}

// Render writes the tree view to w.
func (s *Store) Render(w io.Writer) error {
	s.mu.RLock()
	text := s.tree.String()
	s.mu.RUnlock()
	_, err := io.WriteString(w, text)
	return err
}

// Reload swaps in next, carrying over leaf statuses and report entries for
// leaves that still exist. next must already be loaded.
func (s *Store) Reload(next *tree.Tree) []Change {
	s.mu.Lock()
	before := s.tree.Snapshot()
	restored := next.Restore(before)

	reports := make(map[string]*Entry, len(s.reports))
	for node, e := range s.reports {
		if v, ok := next.Node(node); ok && v.Kind == tree.Imported {
			reports[node] = e
		}
	}
	s.tree = next
	s.reports = reports
	changes := s.recomputeLocked(before, CauseReload)
	nodes := next.Len()
	ticket := s.ticketLocked()
	s.mu.Unlock()

	slog.Info("store: tree reloaded", "nodes", nodes, "restored_leaves", restored, "changes", len(changes))
	s.deliver(ticket, changes)
	return changes
}

// Evict resets leaves whose last report is older than now minus TTL to
// unknown and returns the resulting changes.
func (s *Store) Evict(now time.Time) []Change {
	if s.ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	cutoff := now.Add(-s.ttl)
	var stale []string
	for node, e := range s.reports {
		if !e.UpdatedAt.After(cutoff) {
			stale = append(stale, node)
		}
	}
	if len(stale) == 0 {
		s.mu.Unlock()
		return nil
	}

	before := s.tree.Snapshot()
	for _, node := range stale {
		_ = s.tree.SetStatus(node, status.Unknown)
		delete(s.reports, node)
	}
	changes := s.recomputeLocked(before, CauseStale)
	ticket := s.ticketLocked()
	s.mu.Unlock()

	slog.Info("store: expired stale leaves", "count", len(stale))
	s.deliver(ticket, changes)
	return changes
}

// Run starts the background expiry loop. It ticks at half the TTL (minimum
// one second) and blocks until ctx is cancelled. With a zero TTL it only
// waits for ctx.
func (s *Store) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Evict(s.now())
		}
	}
}

func (s *Store) recomputeLocked(before map[string]status.Status, cause string) []Change {
	start := time.Now()
	s.tree.Compute()
	elapsed := time.Since(start)

	s.subMu.RLock()
	observe := s.onCompute
	s.subMu.RUnlock()
	if observe != nil {
		observe(elapsed)
	}

	after := s.tree.Snapshot()
	var changes []Change
	for node, to := range after {
		from, ok := before[node]
		if !ok {
			from = status.Unknown
		}
		if from != to {
			v, _ := s.tree.Node(node)
			changes = append(changes, Change{Node: node, Kind: v.Kind, From: from, To: to, Cause: cause})
		}
	}
	for node, from := range before {
		if _, ok := after[node]; !ok && from != status.Unknown {
			changes = append(changes, Change{Node: node, From: from, To: status.Unknown, Cause: cause})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Node < changes[j].Node })
	return changes
}

func (s *Store) ticketLocked() uint64 {
	s.issued++
	return s.issued
}

// deliver waits until every earlier ticket has been served, notifies the
// subscribers and hands the turn to the next ticket. Tickets with no changes
// still take their turn so later ones are not held back.
func (s *Store) deliver(ticket uint64, changes []Change) {
	s.turnMu.Lock()
	for s.served+1 != ticket {
		s.turn.Wait()
	}
	s.turnMu.Unlock()

	s.notify(changes)

	s.turnMu.Lock()
	s.served = ticket
	s.turn.Broadcast()
	s.turnMu.Unlock()
}

func (s *Store) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}
	s.subMu.RLock()
	subs := make([]func([]Change), len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(changes)
	}
}

func (s *Store) stateLocked(v tree.NodeView) NodeState {
	ns := NodeState{NodeView: v}
	if e, ok := s.reports[v.Name]; ok {
		ns.Source = e.Source
		ns.Detail = e.Detail
		at := e.UpdatedAt.UTC()
		ns.UpdatedAt = &at
	}
	return ns
}

func (s *Store) rootStatusLocked() status.Status {
	roots := s.tree.Roots()
	if len(roots) == 0 {
		return status.Unknown
	}
	st, _ := s.tree.Status(roots[0])
	return st
}
