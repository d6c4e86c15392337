package store

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/obsidianstack/statusroll/pkg/report"
	"github.com/obsidianstack/statusroll/pkg/status"
	"github.com/obsidianstack/statusroll/pkg/tree"
)

const testTree = `
nodes:
  db: {type: imported}
  cache: {type: imported}
  cdn: {type: imported}
  data: {type: derived, rule: worst_status, dependencies: [db, cache]}
  overall: {type: derived, rule: worst_status, dependencies: [data, cdn]}
`

func loadTree(t *testing.T, doc string) *tree.Tree {
	t.Helper()
	tr := tree.New()
	if err := tr.Load(strings.NewReader(doc)); err != nil {
		t.Fatalf("load tree: %v", err)
	}
	return tr
}

// fixedClock returns a func() time.Time that always returns t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func rep(node string, s status.Status) *report.Report {
	return &report.Report{Node: node, Status: s, Source: "test"}
}

func greenStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	st := New(loadTree(t, testTree), ttl)
	for _, leaf := range []string{"db", "cache", "cdn"} {
		if _, err := st.Report(rep(leaf, status.Green)); err != nil {
			t.Fatalf("Report(%s): %v", leaf, err)
		}
	}
	return st
}

func TestReport_PropagatesAndReturnsChanges(t *testing.T) {
	st := greenStore(t, 0)

	changes, err := st.Report(rep("db", status.Red))
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	want := []Change{
		{Node: "data", Kind: tree.Derived, From: status.Green, To: status.Red, Cause: CauseReport},
		{Node: "db", Kind: tree.Imported, From: status.Green, To: status.Red, Cause: CauseReport},
		{Node: "overall", Kind: tree.Derived, From: status.Green, To: status.Red, Cause: CauseReport},
	}
	if len(changes) != len(want) {
		t.Fatalf("changes: got %+v, want %+v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d]: got %+v, want %+v", i, changes[i], want[i])
		}
	}
	if s, _ := st.Status("overall"); s != status.Red {
		t.Errorf("overall: got %v, want red", s)
	}
	if st.RootStatus() != status.Red {
		t.Errorf("RootStatus: got %v, want red", st.RootStatus())
	}
}

func TestReport_NoChangeIsEmpty(t *testing.T) {
	st := greenStore(t, 0)
	changes, err := st.Report(rep("db", status.Green))
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("changes: got %+v, want none", changes)
	}
}

func TestReport_Rejections(t *testing.T) {
	st := greenStore(t, 0)

	_, err := st.Report(rep("ghost", status.Red))
	if !errors.Is(err, tree.ErrUnknownNode) {
		t.Errorf("unknown node: got %v, want ErrUnknownNode", err)
	}
	_, err = st.Report(rep("data", status.Red))
	if !errors.Is(err, ErrNotLeaf) {
		t.Errorf("derived node: got %v, want ErrNotLeaf", err)
	}
	if s, _ := st.Status("data"); s != status.Green {
		t.Errorf("derived node changed after rejected report: %v", s)
	}
}

func TestNodeCarriesLastReport(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := New(loadTree(t, testTree), 0)
	st.now = fixedClock(base)

	if _, err := st.Report(&report.Report{Node: "db", Status: status.Yellow, Source: "agent-7", Detail: "lag 12s"}); err != nil {
		t.Fatalf("Report: %v", err)
	}
	ns, ok := st.Node("db")
	if !ok {
		t.Fatal("Node(db): not found")
	}
	if ns.Source != "agent-7" || ns.Detail != "lag 12s" {
		t.Errorf("report entry: got %q/%q", ns.Source, ns.Detail)
	}
	if ns.UpdatedAt == nil || !ns.UpdatedAt.Equal(base) {
		t.Errorf("UpdatedAt: got %v, want %v", ns.UpdatedAt, base)
	}

	derived, _ := st.Node("data")
	if derived.UpdatedAt != nil {
		t.Error("derived nodes carry no report entry")
	}
}

func TestSubscribersSeeChanges(t *testing.T) {
	st := greenStore(t, 0)
	var got [][]Change
	st.Subscribe(func(c []Change) { got = append(got, c) })

	var computes int
	st.OnCompute(func(time.Duration) { computes++ })

	_, _ = st.Report(rep("cdn", status.Yellow))
	_, _ = st.Report(rep("cdn", status.Yellow)) // no change, no notification

	if len(got) != 1 {
		t.Fatalf("notifications: got %d, want 1", len(got))
	}
	if computes != 2 {
		t.Errorf("compute observations: got %d, want 2", computes)
	}
}

func TestSubscribersSeeMutationOrder(t *testing.T) {
	st := greenStore(t, 0)

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []status.Status
	st.Subscribe(func(changes []Change) {
		for _, c := range changes {
			if c.Node != "overall" {
				continue
			}
			mu.Lock()
			seen = append(seen, c.To)
			first := len(seen) == 1
			mu.Unlock()
			if first {
				close(entered)
				<-release
			}
		}
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = st.Report(rep("db", status.Red))
	}()
	<-entered

	// The second report is applied while the first change set is still
	// being delivered.
	go func() {
		defer wg.Done()
		_, _ = st.Report(rep("db", status.Green))
	}()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if s, _ := st.Status("overall"); s == status.Green {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("second report was not applied")
		}
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != status.Red || seen[1] != status.Green {
		t.Fatalf("overall deliveries: got %v, want [red green]", seen)
	}
	if s, _ := st.Status("overall"); s != seen[len(seen)-1] {
		t.Errorf("last delivered %v, store holds %v", seen[len(seen)-1], s)
	}
}

func TestReport_DropsOlderObservation(t *testing.T) {
	st := greenStore(t, 0)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	newer := &report.Report{Node: "db", Status: status.Green, Source: "agent", ObservedAt: base}
	if _, err := st.Report(newer); err != nil {
		t.Fatalf("Report(newer): %v", err)
	}

	older := &report.Report{Node: "db", Status: status.Red, Source: "agent", ObservedAt: base.Add(-time.Second)}
	changes, err := st.Report(older)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Report(older): got %v, want ErrSuperseded", err)
	}
	if len(changes) != 0 {
		t.Errorf("superseded report produced changes: %+v", changes)
	}
	if s, _ := st.Status("db"); s != status.Green {
		t.Errorf("db: got %v, want green", s)
	}

	// Equal timestamps and reports without one are applied.
	if _, err := st.Report(&report.Report{Node: "db", Status: status.Yellow, ObservedAt: base}); err != nil {
		t.Fatalf("Report(same time): %v", err)
	}
	if _, err := st.Report(rep("db", status.Red)); err != nil {
		t.Fatalf("Report(no time): %v", err)
	}
	if s, _ := st.Status("db"); s != status.Red {
		t.Errorf("db: got %v, want red", s)
	}
}

func TestEvict_ResetsStaleLeaves(t *testing.T) {
	base := time.Now()
	st := New(loadTree(t, testTree), 5*time.Minute)

	st.now = fixedClock(base.Add(-10 * time.Minute))
	_, _ = st.Report(rep("db", status.Red))

	st.now = fixedClock(base)
	_, _ = st.Report(rep("cache", status.Green))
	_, _ = st.Report(rep("cdn", status.Green))

	changes := st.Evict(base)
	var leaves []string
	for _, c := range changes {
		if c.Cause != CauseStale {
			t.Errorf("cause: got %q, want stale", c.Cause)
		}
		if c.Kind == tree.Imported {
			leaves = append(leaves, c.Node)
		}
	}
	if len(leaves) != 1 || leaves[0] != "db" {
		t.Errorf("evicted leaves: got %v, want [db]", leaves)
	}
	if s, _ := st.Status("db"); s != status.Unknown {
		t.Errorf("db after evict: got %v, want unknown", s)
	}
	// worst_status ignores unknown inputs, so data falls back to cache's green.
	if s, _ := st.Status("data"); s != status.Green {
		t.Errorf("data after evict: got %v, want green", s)
	}

	if again := st.Evict(base); len(again) != 0 {
		t.Errorf("second Evict: got %+v, want none", again)
	}
}

func TestEvict_DisabledWithZeroTTL(t *testing.T) {
	st := greenStore(t, 0)
	if changes := st.Evict(time.Now().Add(24 * time.Hour)); changes != nil {
		t.Errorf("Evict with ttl=0: got %+v", changes)
	}
}

func TestReload_PreservesLeaves(t *testing.T) {
	st := greenStore(t, 0)
	_, _ = st.Report(rep("db", status.Red))

	next := loadTree(t, `
nodes:
  db: {type: imported}
  queue: {type: imported}
  backend: {type: derived, rule: majority_vote, dependencies: [db, queue]}
`)
	changes := st.Reload(next)

	if s, _ := st.Status("db"); s != status.Red {
		t.Errorf("db after reload: got %v, want red", s)
	}
	if s, _ := st.Status("backend"); s != status.Red {
		t.Errorf("backend after reload: got %v, want red", s)
	}
	if _, ok := st.Status("overall"); ok {
		t.Error("overall should be gone after reload")
	}
	if _, ok := st.Node("db"); !ok {
		t.Fatal("db missing")
	}
	if ns, _ := st.Node("db"); ns.Source != "test" {
		t.Errorf("db report entry lost on reload: %+v", ns)
	}

	byNode := map[string]Change{}
	for _, c := range changes {
		byNode[c.Node] = c
	}
	if c := byNode["overall"]; c.From != status.Red || c.To != status.Unknown {
		t.Errorf("removed root change: got %+v", c)
	}
	if c := byNode["backend"]; c.From != status.Unknown || c.To != status.Red {
		t.Errorf("new node change: got %+v", c)
	}
}

func TestSnapshotAndRender(t *testing.T) {
	st := greenStore(t, 0)
	snap := st.Snapshot()
	if len(snap.Nodes) != 5 {
		t.Errorf("snapshot nodes: got %d, want 5", len(snap.Nodes))
	}
	if len(snap.Roots) != 1 || snap.Roots[0] != "overall" {
		t.Errorf("roots: got %v", snap.Roots)
	}
	if snap.RootStatus != status.Green {
		t.Errorf("root status: got %v", snap.RootStatus)
	}

	var b strings.Builder
	if err := st.Render(&b); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(b.String(), "overall: green <- [data, cdn]") {
		t.Errorf("render missing root line:\n%s", b.String())
	}
}

func TestConcurrentMixedOps(t *testing.T) {
	st := greenStore(t, time.Minute)
	var wg sync.WaitGroup
	all := []status.Status{status.Green, status.Yellow, status.Red}

	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			_, _ = st.Report(rep("db", all[n%3]))
		}(i)
		go func() {
			defer wg.Done()
			st.Snapshot()
		}()
		go func() {
			defer wg.Done()
			st.Evict(time.Now())
		}()
	}
	wg.Wait()
}
