package tree

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/obsidianstack/statusroll/pkg/rollup"
	"github.com/obsidianstack/statusroll/pkg/status"
)

const sampleConfig = `
nodes:
  overall_system_health:
    type: derived
    rule: worst_status
    dependencies: [data_tier, edge_tier]
  data_tier:
    type: derived
    rule: threshold_rollup
    params: {red_threshold: 1, yellow_to_yellow: 1, yellow_to_red: 2}
    dependencies: [database, cache_cluster]
  database:
    type: derived
    rule: worst_status
    dependencies: [db_primary, db_replica]
  cache_cluster:
    type: derived
    rule: majority_vote
    dependencies: [cache_1, cache_2, cache_3]
  edge_tier:
    type: derived
    rule: majority_vote
    dependencies: [cdn_1, cdn_2]
  db_primary: {type: imported}
  db_replica: {type: imported}
  cache_1: {type: imported}
  cache_2: {type: imported}
  cache_3: {type: imported}
  cdn_1: {type: imported}
  cdn_2: {type: imported}
`

func loadTree(t *testing.T, doc string, opts ...Option) *Tree {
	t.Helper()
	tr := New(opts...)
	if err := tr.Load(strings.NewReader(doc)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return tr
}

func set(t *testing.T, tr *Tree, name string, s status.Status) {
	t.Helper()
	if err := tr.SetStatus(name, s); err != nil {
		t.Fatalf("SetStatus(%s, %v): %v", name, s, err)
	}
}

func setAll(t *testing.T, tr *Tree, s status.Status) {
	t.Helper()
	for _, leaf := range tr.Leaves() {
		set(t, tr, leaf, s)
	}
}

func mustStatus(t *testing.T, tr *Tree, name string) status.Status {
	t.Helper()
	s, ok := tr.Status(name)
	if !ok {
		t.Fatalf("node %q missing", name)
	}
	return s
}

func wantStatus(t *testing.T, tr *Tree, name string, want status.Status) {
	t.Helper()
	if got := mustStatus(t, tr, name); got != want {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

// wantConfigError checks that err wraps ErrConfigInvalid and mentions msg.
func wantConfigError(t *testing.T, err error, msg string) {
	t.Helper()
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("got %v, want ErrConfigInvalid", err)
	}
	if !strings.Contains(err.Error(), msg) {
		t.Errorf("error %q does not mention %q", err, msg)
	}
}

func TestScenario_WorstOfTwoLeaves(t *testing.T) {
	tr := loadTree(t, `
nodes:
  leaf1: {type: imported}
  leaf2: {type: imported}
  d1: {type: derived, rule: worst_status, dependencies: [leaf1, leaf2]}
`)
	set(t, tr, "leaf1", status.Green)
	set(t, tr, "leaf2", status.Yellow)
	tr.Compute()
	wantStatus(t, tr, "d1", status.Yellow)
}

func TestScenario_ThresholdInTree(t *testing.T) {
	doc := `
nodes:
  a: {type: imported}
  b: {type: imported}
  c: {type: imported}
  d: {type: imported}
  t:
    type: derived
    rule: threshold_rollup
    params: {red_threshold: 2, yellow_to_yellow: 1, yellow_to_red: 3}
    dependencies: [a, b, c, d]
`
	tests := []struct {
		name string
		in   [4]status.Status
		want status.Status
	}{
		{"three yellows", [4]status.Status{status.Yellow, status.Yellow, status.Yellow, status.Green}, status.Red},
		{"one red", [4]status.Status{status.Green, status.Red, status.Green, status.Green}, status.Green},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := loadTree(t, doc)
			for i, leaf := range []string{"a", "b", "c", "d"} {
				set(t, tr, leaf, tc.in[i])
			}
			tr.Compute()
			wantStatus(t, tr, "t", tc.want)
		})
	}
}

func TestScenario_MajorityTieKeepsEarliestColour(t *testing.T) {
	tr := loadTree(t, `
nodes:
  g: {type: imported}
  y: {type: imported}
  r: {type: imported}
  vote: {type: derived, rule: majority_vote, dependencies: [g, y, r]}
`)
	set(t, tr, "g", status.Green)
	set(t, tr, "y", status.Yellow)
	set(t, tr, "r", status.Red)
	tr.Compute()
	wantStatus(t, tr, "vote", status.Green)
}

func TestScenario_CycleRejected(t *testing.T) {
	err := New().Load(strings.NewReader(`
nodes:
  c: {type: derived, dependencies: [b]}
  b: {type: derived, dependencies: [a]}
  a: {type: derived, dependencies: [c]}
`))
	wantConfigError(t, err, "a (needs c); b (needs a); c (needs b)")
}

func TestScenario_StatusOfUnknownNodeIsAbsent(t *testing.T) {
	tr := loadTree(t, sampleConfig)
	if s, ok := tr.Status("nonexistent"); ok || s != status.Unknown {
		t.Errorf("Status(nonexistent) = %v, %v; want unknown, false", s, ok)
	}
	if _, ok := New().Status("anything"); ok {
		t.Error("empty tree reported a node")
	}
}

func TestLoad_RejectsBadGraphs(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{"missing dependency", "nodes:\n  a: {type: derived, dependencies: [ghost]}", "a (needs ghost)"},
		{"self dependency", "nodes:\n  a: {type: derived, dependencies: [a]}", "a (needs a)"},
		{"two cycle", "nodes:\n  a: {type: derived, dependencies: [b]}\n  b: {type: derived, dependencies: [a]}", "a (needs b); b (needs a)"},
		{"unknown rule", "nodes:\n  l: {type: imported}\n  a: {type: derived, rule: best_status, dependencies: [l]}", "best_status"},
		{"bad params", "nodes:\n  l: {type: imported}\n  a: {type: derived, rule: threshold_rollup, params: {red_threshold: -1}, dependencies: [l]}", "red_threshold"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wantConfigError(t, New().Load(strings.NewReader(tc.doc)), tc.wantMsg)
		})
	}
}

func TestLoad_UnknownRuleWrapsRollupError(t *testing.T) {
	err := New().Load(strings.NewReader("nodes:\n  l: {type: imported}\n  a: {type: derived, rule: nope, dependencies: [l]}"))
	if !errors.Is(err, ErrConfigInvalid) || !errors.Is(err, rollup.ErrUnknownRule) {
		t.Errorf("got %v, want ErrConfigInvalid wrapping rollup.ErrUnknownRule", err)
	}
}

func TestLoadConfig_DuplicateAcrossKinds(t *testing.T) {
	err := New().LoadConfig(&Config{Nodes: []NodeSpec{
		{Name: "x", Kind: Derived, Rule: rollup.NameWorstStatus},
		{Name: "x", Kind: Imported},
	}})
	wantConfigError(t, err, "duplicate")
}

func TestLoad_FailureKeepsPreviousGraph(t *testing.T) {
	tr := loadTree(t, sampleConfig)
	set(t, tr, "db_primary", status.Red)

	if err := tr.Load(strings.NewReader("nodes:\n  a: {type: derived, dependencies: [a]}")); err == nil {
		t.Fatal("Load: want error")
	}
	if tr.Len() != 12 {
		t.Errorf("Len = %d, want 12", tr.Len())
	}
	wantStatus(t, tr, "db_primary", status.Red)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	tr := New()
	if err := tr.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if tr.Len() != 12 {
		t.Errorf("Len = %d, want 12", tr.Len())
	}

	if err := tr.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrConfigUnreadable) {
		t.Errorf("LoadFile(missing): got %v, want ErrConfigUnreadable", err)
	}
}

func TestLoad_AnyDeclarationOrder(t *testing.T) {
	base, err := Parse([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	build := func(cfg *Config) *Tree {
		t.Helper()
		tr := New()
		if err := tr.LoadConfig(cfg); err != nil {
			t.Fatalf("LoadConfig: %v", err)
		}
		setAll(t, tr, status.Green)
		set(t, tr, "cache_2", status.Red)
		set(t, tr, "db_replica", status.Yellow)
		tr.Compute()
		return tr
	}

	ref := build(base)
	want := ref.Snapshot()
	wantRender := ref.String()

	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		shuffled := &Config{Nodes: append([]NodeSpec(nil), base.Nodes...)}
		rng.Shuffle(len(shuffled.Nodes), func(a, b int) {
			shuffled.Nodes[a], shuffled.Nodes[b] = shuffled.Nodes[b], shuffled.Nodes[a]
		})

		tr := build(shuffled)
		if got := tr.Snapshot(); !reflect.DeepEqual(got, want) {
			t.Fatalf("shuffle %d: snapshot %v, want %v", i, got, want)
		}
		if got := tr.String(); got != wantRender {
			t.Fatalf("shuffle %d: render\n%s\nwant\n%s", i, got, wantRender)
		}
		if tr.Levels() != 3 {
			t.Fatalf("shuffle %d: Levels = %d, want 3", i, tr.Levels())
		}
	}
}

func TestNewNodesStartUnknown(t *testing.T) {
	tr := loadTree(t, sampleConfig)
	for _, v := range tr.Nodes() {
		if v.Status != status.Unknown {
			t.Errorf("%s: got %v, want unknown", v.Name, v.Status)
		}
	}
}

func TestCompute_SampleTree(t *testing.T) {
	tr := loadTree(t, sampleConfig)
	setAll(t, tr, status.Green)
	tr.Compute()
	wantStatus(t, tr, "overall_system_health", status.Green)

	// One cache down is outvoted; the primary going yellow makes the data
	// tier yellow.
	set(t, tr, "cache_1", status.Red)
	set(t, tr, "db_primary", status.Yellow)
	tr.Compute()
	wantStatus(t, tr, "cache_cluster", status.Green)
	wantStatus(t, tr, "database", status.Yellow)
	wantStatus(t, tr, "data_tier", status.Yellow)
	wantStatus(t, tr, "overall_system_health", status.Yellow)

	set(t, tr, "db_replica", status.Red)
	tr.Compute()
	wantStatus(t, tr, "overall_system_health", status.Red)
}

func TestCompute_Idempotent(t *testing.T) {
	tr := loadTree(t, sampleConfig)
	setAll(t, tr, status.Yellow)
	set(t, tr, "cdn_1", status.Red)
	tr.Compute()
	first := tr.Snapshot()
	tr.Compute()
	if got := tr.Snapshot(); !reflect.DeepEqual(got, first) {
		t.Errorf("second compute changed statuses: %v, want %v", got, first)
	}
}

func TestCompute_DerivedOverrideIsOverwritten(t *testing.T) {
	tr := loadTree(t, sampleConfig)
	setAll(t, tr, status.Green)
	set(t, tr, "database", status.Red)
	wantStatus(t, tr, "database", status.Red)

	tr.Compute()
	wantStatus(t, tr, "database", status.Green)
}

func TestCompute_ZeroDependencyDerivedIsUnknown(t *testing.T) {
	tr := loadTree(t, "nodes:\n  lonely: {type: derived, dependencies: []}")
	tr.Compute()
	wantStatus(t, tr, "lonely", status.Unknown)
}

func TestCompute_LeafChangeOnlyTouchesDependents(t *testing.T) {
	tr := loadTree(t, sampleConfig)
	setAll(t, tr, status.Green)
	tr.Compute()
	before := tr.Snapshot()

	set(t, tr, "db_primary", status.Red)
	tr.Compute()
	after := tr.Snapshot()

	affected, err := tr.Affected("db_primary")
	if err != nil {
		t.Fatalf("Affected: %v", err)
	}
	if want := []string{"data_tier", "database", "overall_system_health"}; !reflect.DeepEqual(affected, want) {
		t.Errorf("Affected = %v, want %v", affected, want)
	}

	var changed []string
	for name, s := range after {
		if s != before[name] {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	if want := []string{"data_tier", "database", "db_primary", "overall_system_health"}; !reflect.DeepEqual(changed, want) {
		t.Errorf("changed = %v, want %v", changed, want)
	}
	if after["edge_tier"] != status.Green || after["cache_cluster"] != status.Green {
		t.Errorf("unrelated nodes moved: edge_tier=%v cache_cluster=%v", after["edge_tier"], after["cache_cluster"])
	}
}

func TestCompute_ParallelMatchesSequential(t *testing.T) {
	var b strings.Builder
	b.WriteString("nodes:\n")
	const leaves, groups = 400, 80
	for i := 0; i < leaves; i++ {
		fmt.Fprintf(&b, "  leaf_%03d: {type: imported}\n", i)
	}
	rules := []string{"worst_status", "threshold_rollup", "majority_vote"}
	var groupNames []string
	for gi := 0; gi < groups; gi++ {
		name := fmt.Sprintf("group_%02d", gi)
		groupNames = append(groupNames, name)
		deps := make([]string, 0, 5)
		for k := 0; k < 5; k++ {
			deps = append(deps, fmt.Sprintf("leaf_%03d", (gi*5+k)%leaves))
		}
		fmt.Fprintf(&b, "  %s: {type: derived, rule: %s, dependencies: [%s]}\n",
			name, rules[gi%len(rules)], strings.Join(deps, ", "))
	}
	fmt.Fprintf(&b, "  top: {type: derived, rule: majority_vote, dependencies: [%s]}\n", strings.Join(groupNames, ", "))
	doc := b.String()

	seq := loadTree(t, doc)
	par := loadTree(t, doc, WithWorkers(8))

	rng := rand.New(rand.NewSource(3))
	for round := 0; round < 20; round++ {
		for i := 0; i < leaves; i++ {
			s := status.All[rng.Intn(len(status.All))]
			name := fmt.Sprintf("leaf_%03d", i)
			set(t, seq, name, s)
			set(t, par, name, s)
		}
		seq.Compute()
		par.Compute()
		if !reflect.DeepEqual(seq.Snapshot(), par.Snapshot()) {
			t.Fatalf("round %d: parallel compute diverged from sequential", round)
		}
	}
}

func TestSetStatus_UnknownNode(t *testing.T) {
	tr := loadTree(t, sampleConfig)
	err := tr.SetStatus("ghost", status.Red)
	if !errors.Is(err, ErrUnknownNode) {
		t.Fatalf("got %v, want ErrUnknownNode", err)
	}
	if !strings.Contains(err.Error(), `"ghost"`) {
		t.Errorf("error %q does not name the node", err)
	}
}

func TestQueries(t *testing.T) {
	tr := loadTree(t, sampleConfig)

	if tr.Len() != 12 {
		t.Errorf("Len = %d, want 12", tr.Len())
	}
	wantLeaves := []string{"cache_1", "cache_2", "cache_3", "cdn_1", "cdn_2", "db_primary", "db_replica"}
	if got := tr.Leaves(); !reflect.DeepEqual(got, wantLeaves) {
		t.Errorf("Leaves = %v, want %v", got, wantLeaves)
	}
	if got := tr.Roots(); !reflect.DeepEqual(got, []string{"overall_system_health"}) {
		t.Errorf("Roots = %v", got)
	}

	v, ok := tr.Node("data_tier")
	if !ok {
		t.Fatal("data_tier missing")
	}
	if v.Kind != Derived || v.Rule != "threshold_rollup" || !reflect.DeepEqual(v.Dependencies, []string{"database", "cache_cluster"}) {
		t.Errorf("data_tier = %+v", v)
	}

	v, ok = tr.Node("cdn_1")
	if !ok {
		t.Fatal("cdn_1 missing")
	}
	if v.Kind != Imported || v.Rule != "" || v.Dependencies != nil {
		t.Errorf("cdn_1 = %+v", v)
	}

	if _, ok := tr.Node("ghost"); ok {
		t.Error("Node(ghost) found")
	}

	nodes := tr.Nodes()
	if len(nodes) != 12 {
		t.Fatalf("Nodes: got %d, want 12", len(nodes))
	}
	if !sort.SliceIsSorted(nodes, func(a, b int) bool { return nodes[a].Name < nodes[b].Name }) {
		t.Error("Nodes not sorted by name")
	}

	if _, err := tr.Affected("ghost"); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Affected(ghost): got %v, want ErrUnknownNode", err)
	}
	affected, err := tr.Affected("overall_system_health")
	if err != nil {
		t.Fatalf("Affected: %v", err)
	}
	if len(affected) != 0 {
		t.Errorf("Affected(root) = %v, want none", affected)
	}
}

func TestSnapshotRestore(t *testing.T) {
	tr := loadTree(t, sampleConfig)
	setAll(t, tr, status.Green)
	set(t, tr, "cdn_2", status.Red)
	tr.Compute()
	snap := tr.Snapshot()

	next := loadTree(t, `
nodes:
  cdn_1: {type: imported}
  cdn_2: {type: imported}
  cdn_3: {type: imported}
  edge_tier: {type: derived, rule: worst_status, dependencies: [cdn_1, cdn_2, cdn_3]}
`)
	if n := next.Restore(snap); n != 2 {
		t.Errorf("Restore = %d, want 2", n)
	}
	wantStatus(t, next, "cdn_2", status.Red)
	wantStatus(t, next, "cdn_3", status.Unknown)
	wantStatus(t, next, "edge_tier", status.Unknown)
}
