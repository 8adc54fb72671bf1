package graph_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/graph/graphtest"
)

// TestSchema_Inheritance tests that inherited features are merged and sorted
func TestSchema_Inheritance(t *testing.T) {
	s := graphtest.Schema()

	comp, ok := s.Type("model.Component")
	if !ok {
		t.Fatal("Type(model.Component) not found")
	}

	var names []string
	for _, f := range comp.Attributes() {
		names = append(names, f.Name)
	}
	want := []string{"active", "description", "kind", "name", "priority", "tags", "weight"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("Attributes() mismatch (-want +got):\n%s", diff)
	}

	if !comp.IsA("core.Element") {
		t.Error("Component should be a core.Element")
	}
	if comp.IsA("model.Function") {
		t.Error("Component should not be a model.Function")
	}

	kind, _ := comp.Feature("kind")
	if kind.Default != "LOGICAL" {
		t.Errorf("enum default = %v, want LOGICAL", kind.Default)
	}
}

// TestSchema_ConcreteTypes tests that abstract types are excluded
func TestSchema_ConcreteTypes(t *testing.T) {
	s := graphtest.Schema()
	var names []string
	for _, typ := range s.ConcreteTypes() {
		names = append(names, typ.QualifiedName())
	}
	want := []string{"model.Component", "model.ComponentPkg", "model.Exchange", "model.Function", "model.Project"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("ConcreteTypes() mismatch (-want +got):\n%s", diff)
	}
}

// TestSchema_Errors tests schema validation
func TestSchema_Errors(t *testing.T) {
	tests := []struct {
		name  string
		types []*graph.Type
	}{
		{
			name:  "unknown supertype",
			types: []*graph.Type{graph.NewType("a", "B").Extends("a.Missing")},
		},
		{
			name:  "unknown target",
			types: []*graph.Type{graph.NewType("a", "B", graph.Reference("r", "a.Missing"))},
		},
		{
			name:  "duplicate type",
			types: []*graph.Type{graph.NewType("a", "B"), graph.NewType("a", "B")},
		},
		{
			name:  "dotted name",
			types: []*graph.Type{graph.NewType("a.b", "C")},
		},
		{
			name: "inheritance cycle",
			types: []*graph.Type{
				graph.NewType("a", "B").Extends("a.C"),
				graph.NewType("a", "C").Extends("a.B"),
			},
		},
		{
			name:  "enum without literals",
			types: []*graph.Type{graph.NewType("a", "B", graph.Attribute("e", graph.TypeEnum))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := graph.NewSchema(tt.types...); err == nil {
				t.Error("NewSchema() succeeded, want error")
			}
		})
	}
}

// TestValueType_Parse tests strict scalar parsing
func TestValueType_Parse(t *testing.T) {
	tests := []struct {
		name     string
		vt       graph.ValueType
		text     string
		literals []string
		want     any
		wantErr  bool
	}{
		{name: "string keeps spaces", vt: graph.TypeString, text: " a ", want: " a "},
		{name: "int", vt: graph.TypeInt, text: "42", want: int64(42)},
		{name: "int with spaces", vt: graph.TypeInt, text: " 42", wantErr: true},
		{name: "int garbage", vt: graph.TypeInt, text: "4x", wantErr: true},
		{name: "float", vt: graph.TypeFloat, text: "2.5", want: 2.5},
		{name: "bool", vt: graph.TypeBool, text: "TRUE", want: true},
		{name: "bool garbage", vt: graph.TypeBool, text: "yes", wantErr: true},
		{name: "enum", vt: graph.TypeEnum, text: "B", literals: []string{"A", "B"}, want: "B"},
		{name: "enum unknown", vt: graph.TypeEnum, text: "C", literals: []string{"A", "B"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.vt.Parse(tt.text, tt.literals)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

// TestFormatValue tests table text rendering
func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{int64(-3), "-3"},
		{1.5, "1.5"},
		{100.0, "100"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := graph.FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestGraph_Liveness tests live vs arena lookups
func TestGraph_Liveness(t *testing.T) {
	g := graphtest.Sample(t)

	if _, ok := g.Node("F1"); !ok {
		t.Fatal("Node(F1) should be live")
	}

	n, err := g.Create("model.Function")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if n.ID() != "gen-1" {
		t.Errorf("ID() = %q, want gen-1", n.ID())
	}
	if _, ok := g.Node(n.ID()); ok {
		t.Error("detached node should not be returned by Node()")
	}
	if _, ok := g.Lookup(n.ID()); !ok {
		t.Error("detached node should be returned by Lookup()")
	}

	root, ok := g.RootOf("F3")
	if !ok || root.ID() != "P" {
		t.Errorf("RootOf(F3) = %v, %v; want P", root, ok)
	}
}

// TestGraph_Walk tests pre-order traversal ordering
func TestGraph_Walk(t *testing.T) {
	g := graphtest.Sample(t)
	root, _ := g.Node("P")

	var visited []string
	err := g.Walk(root, func(n *graph.Node) error {
		visited = append(visited, n.ID())
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() failed: %v", err)
	}

	// containment features are visited by name: main < ownedPkgs
	want := []string{"P", "C0", "K1", "C1", "F1", "F2", "C2", "F3", "X1"}
	if diff := cmp.Diff(want, visited); diff != "" {
		t.Errorf("Walk() order mismatch (-want +got):\n%s", diff)
	}
}

// TestGraph_Walk_StopsOnError tests that an error aborts the walk
func TestGraph_Walk_StopsOnError(t *testing.T) {
	g := graphtest.Sample(t)
	root, _ := g.Node("P")
	stop := errors.New("stop")

	count := 0
	err := g.Walk(root, func(n *graph.Node) error {
		count++
		if n.ID() == "K1" {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Walk() error = %v, want stop", err)
	}
	if count != 3 {
		t.Errorf("visited %d nodes, want 3", count)
	}
}

// TestSetRefs_ContainmentMove tests that containment writes move nodes
func TestSetRefs_ContainmentMove(t *testing.T) {
	g := graphtest.Sample(t)

	if err := g.SetRefs("C2", "ownedFunctions", []string{"F3", "F1"}); err != nil {
		t.Fatalf("SetRefs() failed: %v", err)
	}

	c1, _ := g.Node("C1")
	c2, _ := g.Node("C2")
	if diff := cmp.Diff([]string{"F2"}, c1.Refs("ownedFunctions")); diff != "" {
		t.Errorf("C1.ownedFunctions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"F3", "F1"}, c2.Refs("ownedFunctions")); diff != "" {
		t.Errorf("C2.ownedFunctions mismatch (-want +got):\n%s", diff)
	}
	f1, _ := g.Node("F1")
	if id, feature := f1.Container(); id != "C2" || feature != "ownedFunctions" {
		t.Errorf("F1.Container() = %s/%s, want C2/ownedFunctions", id, feature)
	}
}

// TestSetRefs_Errors tests containment and type checks
func TestSetRefs_Errors(t *testing.T) {
	tests := []struct {
		name    string
		node    string
		feature string
		targets []string
		wantErr error
	}{
		{name: "cycle", node: "K1", feature: "ownedComponentPkgs", targets: []string{"K1"}, wantErr: graph.ErrContainmentCycle},
		{name: "root of wrong type", node: "K1", feature: "ownedComponentPkgs", targets: []string{"P"}, wantErr: graph.ErrTypeMismatch},
		{name: "type", node: "C1", feature: "allocatedFunctions", targets: []string{"C2"}, wantErr: graph.ErrTypeMismatch},
		{name: "missing", node: "C1", feature: "allocatedFunctions", targets: []string{"nope"}, wantErr: graph.ErrNotFound},
		{name: "wrong kind", node: "C1", feature: "partner", targets: []string{"C2"}, wantErr: graph.ErrWrongKind},
		{name: "unknown feature", node: "C1", feature: "bogus", targets: nil, wantErr: graph.ErrUnknownFeature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graphtest.Sample(t)
			err := g.SetRefs(tt.node, tt.feature, tt.targets)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SetRefs() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestSetRefs_Dedupe tests first-write-wins deduplication
func TestSetRefs_Dedupe(t *testing.T) {
	g := graphtest.Sample(t)
	if err := g.SetRefs("C1", "allocatedFunctions", []string{"F2", "F1", "F2"}); err != nil {
		t.Fatalf("SetRefs() failed: %v", err)
	}
	c1, _ := g.Node("C1")
	if diff := cmp.Diff([]string{"F2", "F1"}, c1.Refs("allocatedFunctions")); diff != "" {
		t.Errorf("allocatedFunctions mismatch (-want +got):\n%s", diff)
	}
}

// TestSetAttr tests typed attribute writes and defaults
func TestSetAttr(t *testing.T) {
	g := graphtest.Sample(t)

	if err := g.SetAttr("C1", "priority", "high"); !errors.Is(err, graph.ErrTypeMismatch) {
		t.Errorf("SetAttr(string into int) error = %v, want ErrTypeMismatch", err)
	}
	if err := g.SetAttr("C1", "priority", 7); err != nil {
		t.Fatalf("SetAttr(int) failed: %v", err)
	}
	c1, _ := g.Node("C1")
	if got := c1.Attr("priority"); got != int64(7) {
		t.Errorf("priority = %#v, want int64(7)", got)
	}
	if err := g.SetAttr("C1", "priority", nil); err != nil {
		t.Fatalf("SetAttr(nil) failed: %v", err)
	}
	if got := c1.Attr("priority"); got != int64(0) {
		t.Errorf("priority after unset = %#v, want default 0", got)
	}
}

// TestDelete tests subtree removal and reference cleanup
func TestDelete(t *testing.T) {
	g := graphtest.Sample(t)
	before := g.Len()

	if err := g.Delete("C1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	for _, id := range []string{"C1", "F1", "F2"} {
		if _, ok := g.Lookup(id); ok {
			t.Errorf("%s should be gone", id)
		}
	}
	if g.Len() != before-3 {
		t.Errorf("Len() = %d, want %d", g.Len(), before-3)
	}

	k1, _ := g.Node("K1")
	if diff := cmp.Diff([]string{"C2"}, k1.Refs("ownedComponents")); diff != "" {
		t.Errorf("K1.ownedComponents mismatch (-want +got):\n%s", diff)
	}
	x1, _ := g.Node("X1")
	if x1.Ref("source") != "" {
		t.Errorf("X1.source = %q, want empty after target deletion", x1.Ref("source"))
	}
	if got := g.Referrers("F3"); len(got) != 1 || got[0].ID() != "X1" {
		t.Errorf("Referrers(F3) = %v, want only X1", got)
	}
}

// TestReferrers tests incoming non-containment edges
func TestReferrers(t *testing.T) {
	g := graphtest.Sample(t)
	var ids []string
	for _, n := range g.Referrers("F3") {
		ids = append(ids, n.ID())
	}
	if diff := cmp.Diff([]string{"C1", "X1"}, ids); diff != "" {
		t.Errorf("Referrers(F3) mismatch (-want +got):\n%s", diff)
	}
}

// TestTx_Rollback tests that rollback restores the exact prior state
func TestTx_Rollback(t *testing.T) {
	g := graphtest.Sample(t)
	want := graphtest.Dump(g)

	tx, err := g.Begin()
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	if _, err := g.Begin(); !errors.Is(err, graph.ErrTransactionActive) {
		t.Errorf("nested Begin() error = %v, want ErrTransactionActive", err)
	}

	n, err := g.Create("model.Function")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	mustNot(t, g.SetRefs("C2", "ownedFunctions", []string{"F3", n.ID(), "F1"}))
	mustNot(t, g.SetAttr("C1", "name", "renamed"))
	mustNot(t, g.SetList("C1", "tags", nil))
	mustNot(t, g.Delete("K1"))
	mustNot(t, g.SetRef("P", "main", ""))

	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	if diff := cmp.Diff(want, graphtest.Dump(g)); diff != "" {
		t.Errorf("graph changed after rollback (-want +got):\n%s", diff)
	}
	if err := tx.Commit(); !errors.Is(err, graph.ErrTxDone) {
		t.Errorf("Commit() after Rollback() error = %v, want ErrTxDone", err)
	}
}

// TestTx_CommitPrunes tests that detached nodes are removed on commit
func TestTx_CommitPrunes(t *testing.T) {
	g := graphtest.Sample(t)

	tx, err := g.Begin()
	if err != nil {
		t.Fatalf("Begin() failed: %v", err)
	}
	defer tx.Rollback()

	orphan, _ := g.Create("model.Function")
	mustNot(t, g.SetRef("P", "main", ""))

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	for _, id := range []string{orphan.ID(), "C0"} {
		if _, ok := g.Lookup(id); ok {
			t.Errorf("%s should be pruned on commit", id)
		}
	}
	if g.InTransaction() {
		t.Error("InTransaction() = true after Commit()")
	}
}

// TestLoadSchemaFile tests YAML and TOML schema files
func TestLoadSchemaFile(t *testing.T) {
	yamlSchema := `packages:
  - name: org
    types:
      - name: Unit
        features:
          - {name: name, kind: attribute, type: string}
          - {name: size, kind: attribute, type: int, default: "5"}
          - {name: units, kind: list-reference, containment: true, target: org.Unit}
`
	tomlSchema := `[[packages]]
name = "org"

[[packages.types]]
name = "Unit"

[[packages.types.features]]
name = "name"
kind = "attribute"
type = "string"

[[packages.types.features]]
name = "size"
kind = "attribute"
type = "int"
default = "5"

[[packages.types.features]]
name = "units"
kind = "list-reference"
containment = true
target = "org.Unit"
`
	tests := []struct {
		file    string
		content string
	}{
		{"schema.yaml", yamlSchema},
		{"schema.toml", tomlSchema},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("WriteFile() failed: %v", err)
			}
			s, err := graph.LoadSchemaFile(path)
			if err != nil {
				t.Fatalf("LoadSchemaFile() failed: %v", err)
			}
			unit, ok := s.Type("org.Unit")
			if !ok {
				t.Fatal("org.Unit not loaded")
			}
			size, _ := unit.Feature("size")
			if size.Default != int64(5) {
				t.Errorf("size default = %#v, want int64(5)", size.Default)
			}
			if len(unit.Containments()) != 1 {
				t.Errorf("Containments() = %d, want 1", len(unit.Containments()))
			}
		})
	}
}

// TestLoadSchemaFile_UnknownExtension tests extension dispatch
func TestLoadSchemaFile_UnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if _, err := graph.LoadSchemaFile(path); err == nil {
		t.Error("LoadSchemaFile(.json) succeeded, want error")
	}
}

func mustNot(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
