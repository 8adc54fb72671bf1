package importer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/export"
	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/graph/graphtest"
	"github.com/graphtab/gtab/internal/importer"
	"github.com/graphtab/gtab/internal/progress"
	"github.com/graphtab/gtab/internal/table"
)

var (
	t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	t1 = time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
)

func testFormat(t *testing.T) *table.Format {
	t.Helper()
	f, err := table.NewFormat(table.Options{Delimiter: ';', Quote: '"', Charset: "UTF-8", LineSeparator: table.LF})
	if err != nil {
		t.Fatalf("NewFormat() failed: %v", err)
	}
	return f
}

// setup exports the sample graph into a fresh directory.
func setup(t *testing.T) (*graph.Graph, string) {
	t.Helper()
	dir := t.TempDir()
	g := graphtest.Sample(t)
	exp, err := export.New(g, export.Config{Dir: dir, Format: testFormat(t), Now: func() time.Time { return t0 }})
	if err != nil {
		t.Fatalf("export.New() failed: %v", err)
	}
	p, _ := g.Node("P")
	if _, err := exp.Export(nil, p); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	return g, dir
}

func runImport(t *testing.T, g *graph.Graph, dir string, m *progress.Monitor) (*importer.Result, error) {
	t.Helper()
	im, err := importer.New(g, importer.Config{Dir: dir, Format: testFormat(t), Now: func() time.Time { return t1 }})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	anchor, ok := g.Node("F1")
	if !ok {
		t.Fatal("anchor F1 is not live")
	}
	return im.Import(m, anchor)
}

// sheet is an editable copy of one table.
type sheet struct {
	t      *testing.T
	path   string
	header []string
	rows   [][]string
}

func open(t *testing.T, dir, file string) *sheet {
	t.Helper()
	path := filepath.Join(dir, file)
	tbl, err := table.ReadFile(path, testFormat(t))
	if err != nil {
		t.Fatalf("ReadFile(%s) failed: %v", file, err)
	}
	s := &sheet{t: t, path: path, header: tbl.Header}
	for _, row := range tbl.Rows {
		cells := make([]string, len(tbl.Header))
		copy(cells, row.Cells)
		s.rows = append(s.rows, cells)
	}
	return s
}

func (s *sheet) col(name string) int {
	for i, h := range s.header {
		if h == name {
			return i
		}
	}
	s.t.Fatalf("%s has no column %s", filepath.Base(s.path), name)
	return -1
}

// set assigns column values on the row with the given id.
func (s *sheet) set(id string, values map[string]string) *sheet {
	s.t.Helper()
	idCol := s.col(table.ColID)
	for _, row := range s.rows {
		if row[idCol] == id {
			for k, v := range values {
				row[s.col(k)] = v
			}
			return s
		}
	}
	s.t.Fatalf("%s has no row %s", filepath.Base(s.path), id)
	return s
}

func (s *sheet) add(values map[string]string) *sheet {
	s.t.Helper()
	row := make([]string, len(s.header))
	for k, v := range values {
		row[s.col(k)] = v
	}
	s.rows = append(s.rows, row)
	return s
}

func (s *sheet) addColumn(name string) *sheet {
	s.header = append(s.header, name)
	for i := range s.rows {
		s.rows[i] = append(s.rows[i], "")
	}
	return s
}

func (s *sheet) reverse() *sheet {
	for i, j := 0, len(s.rows)-1; i < j; i, j = i+1, j-1 {
		s.rows[i], s.rows[j] = s.rows[j], s.rows[i]
	}
	return s
}

func (s *sheet) save() {
	s.t.Helper()
	if err := table.WriteFile(s.path, testFormat(s.t), s.header, s.rows); err != nil {
		s.t.Fatalf("WriteFile() failed: %v", err)
	}
}

const (
	compCSV = "model.Component.csv"
	pkgCSV  = "model.ComponentPkg.csv"
	fnCSV   = "model.Function.csv"
	projCSV = "model.Project.csv"
)

var update = map[string]string{table.ColToUpdate: "x"}

func with(m map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(m)+len(kv)/2)
	for k, v := range m {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

// TestImport_RoundTrip tests that importing unedited tables changes nothing
func TestImport_RoundTrip(t *testing.T) {
	g, dir := setup(t)
	want := graphtest.Dump(g)

	// Mark every row for update so that every cell is applied.
	for _, file := range []string{compCSV, pkgCSV, fnCSV, projCSV, "model.Exchange.csv"} {
		s := open(t, dir, file)
		for _, row := range s.rows {
			row[s.col(table.ColToUpdate)] = "x"
		}
		s.save()
	}

	res, err := runImport(t, g, dir, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if res.Updated != 9 || res.Created != 0 || res.Deleted != 0 {
		t.Errorf("Import() = %+v, want 9 updates only", res)
	}
	if diff := cmp.Diff(want, graphtest.Dump(g)); diff != "" {
		t.Errorf("graph changed (-want +got):\n%s", diff)
	}
	if res.Export == nil || res.Export.Rows != 9 {
		t.Errorf("audit export = %+v, want 9 rows", res.Export)
	}
}

// TestImport_Create tests creation through a temporary identifier
func TestImport_Create(t *testing.T) {
	g, dir := setup(t)

	open(t, dir, fnCSV).add(map[string]string{
		table.ColToCreate: "x",
		table.ColID:       "%f%",
		"name":            "fresh",
	}).save()
	open(t, dir, compCSV).set("C2", with(update, "ownedFunctions", "[F3, %f%]")).save()

	res, err := runImport(t, g, dir, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if res.Created != 1 || len(res.Orphans) != 0 {
		t.Errorf("Import() = %+v, want 1 created and no orphans", res)
	}

	c2, _ := g.Node("C2")
	owned := c2.Refs("ownedFunctions")
	if len(owned) != 2 || owned[0] != "F3" {
		t.Fatalf("C2 ownedFunctions = %v, want [F3 <new>]", owned)
	}
	fresh, ok := g.Node(owned[1])
	if !ok {
		t.Fatalf("created node %s is not live", owned[1])
	}
	if fresh.Type().QualifiedName() != "model.Function" || fresh.Attr("name") != "fresh" {
		t.Errorf("created node = %s %v, want model.Function fresh", fresh.Type().QualifiedName(), fresh.Attr("name"))
	}
	if table.IsTempID(fresh.ID()) {
		t.Errorf("created node kept its temporary id %s", fresh.ID())
	}

	after, err := table.ReadFile(filepath.Join(dir, table.AfterDir, compCSV), testFormat(t))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	d0, _ := table.Stamp(t0)
	d1, _ := table.Stamp(t1)
	for _, row := range after.Rows {
		if row.Get(table.ColID) != "C2" {
			continue
		}
		if row.Get(table.ColCreationDate) != d0 || row.Get(table.ColLastUpdateDate) != d1 {
			t.Errorf("C2 stamps = %s/%s, want %s/%s",
				row.Get(table.ColCreationDate), row.Get(table.ColLastUpdateDate), d0, d1)
		}
		if got := row.Get("ownedFunctions"); got != "[F3, "+fresh.ID()+"]" {
			t.Errorf("after ownedFunctions = %q", got)
		}
	}
}

// TestImport_Orphans tests that unplaced new nodes are reported and dropped
func TestImport_Orphans(t *testing.T) {
	g, dir := setup(t)
	before := g.Len()

	open(t, dir, fnCSV).
		add(map[string]string{table.ColToCreate: "x", table.ColID: "%lost%", "name": "lost"}).
		save()

	res, err := runImport(t, g, dir, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	want := []importer.Orphan{{TempID: "%lost%", Type: "model.Function"}}
	if diff := cmp.Diff(want, res.Orphans); diff != "" {
		t.Errorf("Orphans mismatch (-want +got):\n%s", diff)
	}
	w := res.Warning()
	if !strings.HasPrefix(w, "The following new objects have not been imported") || !strings.Contains(w, "%lost%") {
		t.Errorf("Warning() = %q", w)
	}
	if g.Len() != before {
		t.Errorf("Len() = %d, want %d", g.Len(), before)
	}
}

// TestImport_AbortsAtomically tests that one bad row undoes every phase
func TestImport_AbortsAtomically(t *testing.T) {
	g, dir := setup(t)
	want := graphtest.Dump(g)

	open(t, dir, fnCSV).
		set("F2", map[string]string{table.ColToDelete: "x"}).
		add(map[string]string{table.ColToCreate: "x", table.ColID: "%ok%"}).
		add(map[string]string{table.ColToCreate: "x", table.ColID: "F99"}).
		save()
	open(t, dir, compCSV).set("C1", with(update, "name", "renamed")).save()

	_, err := runImport(t, g, dir, nil)
	var cerr *convert.Error
	if !errors.As(err, &cerr) || cerr.Kind != convert.KindIdentity {
		t.Fatalf("Import() error = %v, want identity error", err)
	}
	if cerr.File != fnCSV || cerr.Line != 6 {
		t.Errorf("error location = %s:%d, want %s:6", cerr.File, cerr.Line, fnCSV)
	}
	if diff := cmp.Diff(want, graphtest.Dump(g)); diff != "" {
		t.Errorf("graph changed after failed import (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(filepath.Join(dir, table.AfterDir)); !os.IsNotExist(err) {
		t.Error("failed import wrote an audit export")
	}
	if g.InTransaction() {
		t.Error("transaction left open")
	}
}

// TestImport_Errors tests the error taxonomy of the update phase
func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name     string
		edit     func(t *testing.T, dir string)
		kind     convert.Kind
		feature  string
		expected string
		line     int
	}{
		{
			name: "attribute type",
			edit: func(t *testing.T, dir string) {
				open(t, dir, compCSV).set("C1", with(update, "priority", "high")).save()
			},
			kind: convert.KindType, feature: "priority", expected: "int", line: 3,
		},
		{
			name: "enum literal",
			edit: func(t *testing.T, dir string) {
				open(t, dir, compCSV).set("C1", with(update, "kind", "VIRTUAL")).save()
			},
			kind: convert.KindType, feature: "kind", expected: "one of LOGICAL, PHYSICAL", line: 3,
		},
		{
			name: "list element type",
			edit: func(t *testing.T, dir string) {
				open(t, dir, compCSV).set("C2", with(update, "allocatedFunctions", "[F1, C1]")).save()
			},
			kind: convert.KindType, feature: "allocatedFunctions", expected: "model.Function", line: 4,
		},
		{
			name: "unknown reference target",
			edit: func(t *testing.T, dir string) {
				open(t, dir, compCSV).set("C1", with(update, "partner", "nope")).save()
			},
			kind: convert.KindIdentity, feature: "partner", line: 3,
		},
		{
			name: "unknown updated row",
			edit: func(t *testing.T, dir string) {
				open(t, dir, fnCSV).add(with(update, table.ColID, "ghost")).save()
			},
			kind: convert.KindIdentity, line: 5,
		},
		{
			name: "unknown column",
			edit: func(t *testing.T, dir string) {
				s := open(t, dir, compCSV).addColumn("bogus")
				s.set("C0", update).save()
			},
			kind: convert.KindUnknownFeature, line: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, dir := setup(t)
			want := graphtest.Dump(g)
			tt.edit(t, dir)

			_, err := runImport(t, g, dir, nil)
			var cerr *convert.Error
			if !errors.As(err, &cerr) {
				t.Fatalf("Import() error = %v, want *convert.Error", err)
			}
			if cerr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v (%v)", cerr.Kind, tt.kind, err)
			}
			if cerr.Feature != tt.feature {
				t.Errorf("Feature = %q, want %q", cerr.Feature, tt.feature)
			}
			if tt.expected != "" && cerr.Expected != tt.expected {
				t.Errorf("Expected = %q, want %q", cerr.Expected, tt.expected)
			}
			if cerr.Line != tt.line || cerr.File == "" {
				t.Errorf("location = %s:%d, want line %d", cerr.File, cerr.Line, tt.line)
			}
			if diff := cmp.Diff(want, graphtest.Dump(g)); diff != "" {
				t.Errorf("graph changed (-want +got):\n%s", diff)
			}
		})
	}
}

// TestImport_FileNames tests that unknown tables abort before any change
func TestImport_FileNames(t *testing.T) {
	for _, name := range []string{"model.Nope.csv", "notes.csv", "core.Element.csv"} {
		t.Run(name, func(t *testing.T) {
			g, dir := setup(t)
			open(t, dir, fnCSV).set("F2", map[string]string{table.ColToDelete: "x"}).save()
			if err := os.WriteFile(filepath.Join(dir, name), []byte("id\n"), 0o644); err != nil {
				t.Fatalf("WriteFile() failed: %v", err)
			}

			_, err := runImport(t, g, dir, nil)
			if convert.KindOf(err) != convert.KindFileName {
				t.Fatalf("Import() error = %v, want file name error", err)
			}
			if !strings.Contains(err.Error(), name) {
				t.Errorf("error %q does not name %s", err, name)
			}
			if !g.IsLive("F2") {
				t.Error("F2 was deleted despite the aborted import")
			}
		})
	}
}

// TestImport_Delete tests deletion and the resulting tombstone
func TestImport_Delete(t *testing.T) {
	g, dir := setup(t)

	open(t, dir, compCSV).set("C2", map[string]string{table.ColToDelete: "x"}).save()

	res, err := runImport(t, g, dir, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if res.Deleted != 1 {
		t.Errorf("Deleted = %d, want 1", res.Deleted)
	}
	for _, id := range []string{"C2", "F3"} {
		if g.IsLive(id) {
			t.Errorf("%s still live", id)
		}
	}
	c1, _ := g.Node("C1")
	if c1.Ref("partner") != "" {
		t.Errorf("C1 partner = %q, want cleared", c1.Ref("partner"))
	}
	if diff := cmp.Diff([]string{"F1"}, c1.Refs("allocatedFunctions")); diff != "" {
		t.Errorf("allocatedFunctions mismatch (-want +got):\n%s", diff)
	}

	after, err := table.ReadFile(filepath.Join(dir, table.AfterDir, compCSV), testFormat(t))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	var got []string
	for _, row := range after.Rows {
		got = append(got, row.Get(table.ColID))
	}
	if diff := cmp.Diff([]string{"C0", "C1", "C2"}, got); diff != "" {
		t.Errorf("after rows mismatch (-want +got):\n%s", diff)
	}
	if res.Export.Tombstones != 1 {
		t.Errorf("Tombstones = %d, want 1", res.Export.Tombstones)
	}
}

// TestImport_Move tests that a node moved between two containers ends up
// under the new one exactly once, whatever the row order
func TestImport_Move(t *testing.T) {
	for _, reversed := range []bool{false, true} {
		name := "forward"
		if reversed {
			name = "reversed"
		}
		t.Run(name, func(t *testing.T) {
			g, dir := setup(t)
			s := open(t, dir, compCSV).
				set("C1", with(update, "ownedFunctions", "[F1]")).
				set("C2", with(update, "ownedFunctions", "[F3, F2]"))
			if reversed {
				s.reverse()
			}
			s.save()

			if _, err := runImport(t, g, dir, nil); err != nil {
				t.Fatalf("Import() failed: %v", err)
			}
			c1, _ := g.Node("C1")
			c2, _ := g.Node("C2")
			if diff := cmp.Diff([]string{"F1"}, c1.Refs("ownedFunctions")); diff != "" {
				t.Errorf("C1 mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]string{"F3", "F2"}, c2.Refs("ownedFunctions")); diff != "" {
				t.Errorf("C2 mismatch (-want +got):\n%s", diff)
			}
			if parent, _ := mustNode(t, g, "F2").Container(); parent != "C2" {
				t.Errorf("F2 container = %s, want C2", parent)
			}
		})
	}
}

// TestImport_MoveAcrossTables tests a move whose source and destination
// rows live in different tables
func TestImport_MoveAcrossTables(t *testing.T) {
	g, dir := setup(t)

	open(t, dir, projCSV).set("P", with(update, "main", "")).save()
	open(t, dir, pkgCSV).set("K1", with(update, "ownedComponents", "[C1, C2, C0]")).save()

	if _, err := runImport(t, g, dir, nil); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	k1 := mustNode(t, g, "K1")
	if diff := cmp.Diff([]string{"C1", "C2", "C0"}, k1.Refs("ownedComponents")); diff != "" {
		t.Errorf("ownedComponents mismatch (-want +got):\n%s", diff)
	}
	if got := mustNode(t, g, "P").Ref("main"); got != "" {
		t.Errorf("P main = %q, want empty", got)
	}
}

// TestImport_DetachedIsDropped tests that a node removed from its container
// and placed nowhere is gone after the import
func TestImport_DetachedIsDropped(t *testing.T) {
	g, dir := setup(t)

	open(t, dir, projCSV).set("P", with(update, "main", "")).save()

	if _, err := runImport(t, g, dir, nil); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if _, ok := g.Lookup("C0"); ok {
		t.Error("detached C0 survived the commit")
	}
}

// TestImport_UpdateOfDeletedElement tests that update rows of nodes removed
// in the same import, directly or with their container, are skipped
func TestImport_UpdateOfDeletedElement(t *testing.T) {
	g, dir := setup(t)

	open(t, dir, pkgCSV).set("K1", map[string]string{table.ColToDelete: "x"}).save()
	open(t, dir, compCSV).set("C1", with(update, "name", "renamed")).save()
	open(t, dir, fnCSV).set("F2", with(update, "name", "gone")).save()

	res, err := runImport(t, g, dir, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if res.Deleted != 1 || res.Updated != 0 {
		t.Errorf("Import() = %+v, want 1 deleted and 0 updated", res)
	}
	for _, id := range []string{"K1", "C1", "F2", "X1"} {
		if g.IsLive(id) {
			t.Errorf("%s still live", id)
		}
	}
}

// TestImport_MoveSubtreeAcrossTables tests that contents of a node moved
// between tables stay resolvable while the node is detached
func TestImport_MoveSubtreeAcrossTables(t *testing.T) {
	g, dir := setup(t)

	open(t, dir, pkgCSV).set("K1", with(update, "ownedComponents", "[C2]")).save()
	open(t, dir, "model.Exchange.csv").set("X1", with(update, "source", "F1")).save()
	open(t, dir, projCSV).set("P", with(update, "main", "C1")).save()

	if _, err := runImport(t, g, dir, nil); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if got := mustNode(t, g, "P").Ref("main"); got != "C1" {
		t.Errorf("P main = %q, want C1", got)
	}
	if parent, _ := mustNode(t, g, "F1").Container(); parent != "C1" {
		t.Errorf("F1 container = %s, want C1", parent)
	}
	if got := mustNode(t, g, "X1").Ref("source"); got != "F1" {
		t.Errorf("X1 source = %q, want F1", got)
	}
	if _, ok := g.Lookup("C0"); ok {
		t.Error("replaced C0 survived the commit")
	}
}

// TestImport_CreatePaddedTempID tests that blanks around a temporary
// identifier are ignored
func TestImport_CreatePaddedTempID(t *testing.T) {
	g, dir := setup(t)

	open(t, dir, fnCSV).add(map[string]string{
		table.ColToCreate: "x",
		table.ColID:       " %f% ",
		"name":            "padded",
	}).save()
	open(t, dir, compCSV).set("C2", with(update, "ownedFunctions", "[F3, %f%]")).save()

	res, err := runImport(t, g, dir, nil)
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if res.Created != 1 || len(res.Orphans) != 0 {
		t.Errorf("Import() = %+v, want 1 created and no orphans", res)
	}
	if owned := mustNode(t, g, "C2").Refs("ownedFunctions"); len(owned) != 2 {
		t.Errorf("C2 ownedFunctions = %v, want two entries", owned)
	}
}

// TestImport_ListReconcile tests list reference reconciliation
func TestImport_ListReconcile(t *testing.T) {
	tests := []struct {
		cell string
		want []string
	}{
		{cell: "[F3, F2]", want: []string{"F3", "F2"}},
		{cell: "[F2, F1, F2]", want: []string{"F1", "F2"}},
		{cell: "", want: nil},
		{cell: "[F1, F3]", want: []string{"F1", "F3"}},
	}

	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			g, dir := setup(t)
			open(t, dir, compCSV).set("C1", with(update, "allocatedFunctions", tt.cell)).save()

			if _, err := runImport(t, g, dir, nil); err != nil {
				t.Fatalf("Import() failed: %v", err)
			}
			got := mustNode(t, g, "C1").Refs("allocatedFunctions")
			if len(got) == 0 {
				got = nil
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("allocatedFunctions mismatch (-want +got):\n%s", diff)
			}
			for _, id := range []string{"F1", "F2", "F3"} {
				if !g.IsLive(id) {
					t.Errorf("%s was removed by a non-containment update", id)
				}
			}
		})
	}
}

// TestImport_Attributes tests attribute parsing and defaults
func TestImport_Attributes(t *testing.T) {
	g, dir := setup(t)

	open(t, dir, compCSV).set("C1", with(update,
		"priority", "",
		"weight", "2.25",
		"active", "FALSE",
		"tags", "[x, y, z]",
		"description", "with; delimiter",
	)).save()

	if _, err := runImport(t, g, dir, nil); err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	c1 := mustNode(t, g, "C1")
	want := map[string]any{
		"priority":    int64(0),
		"weight":      2.25,
		"active":      false,
		"tags":        []any{"x", "y", "z"},
		"description": "with; delimiter",
	}
	for name, v := range want {
		f, _ := c1.Type().Feature(name)
		if diff := cmp.Diff(v, c1.Value(f)); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

// TestImport_Canceled tests that cancellation rolls back silently
func TestImport_Canceled(t *testing.T) {
	g, dir := setup(t)
	want := graphtest.Dump(g)
	open(t, dir, fnCSV).set("F2", map[string]string{table.ColToDelete: "x"}).save()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := runImport(t, g, dir, progress.New(ctx, nil, "import", 1))
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if !res.Canceled {
		t.Error("Canceled = false, want true")
	}
	if diff := cmp.Diff(want, graphtest.Dump(g)); diff != "" {
		t.Errorf("graph changed (-want +got):\n%s", diff)
	}
}

// TestImport_NoRoot tests that a detached anchor is rejected
func TestImport_NoRoot(t *testing.T) {
	g, dir := setup(t)
	loose, err := g.Create("model.Function")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	im, err := importer.New(g, importer.Config{Dir: dir, Format: testFormat(t)})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if _, err := im.Import(nil, loose); !errors.Is(err, convert.ErrNoRoot) {
		t.Errorf("Import() error = %v, want ErrNoRoot", err)
	}
}

// TestImport_SkipAudit tests that the audit export can be turned off
func TestImport_SkipAudit(t *testing.T) {
	g, dir := setup(t)
	im, err := importer.New(g, importer.Config{Dir: dir, Format: testFormat(t), SkipAudit: true})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	res, err := im.Import(nil, mustNode(t, g, "P"))
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if res.Export != nil {
		t.Error("audit export ran")
	}
	if entries, _ := table.List(filepath.Join(dir, table.AfterDir)); len(entries) != 0 {
		t.Errorf("after directory has %v", entries)
	}
}

func mustNode(t *testing.T, g *graph.Graph, id string) *graph.Node {
	t.Helper()
	n, ok := g.Node(id)
	if !ok {
		t.Fatalf("node %s is not live", id)
	}
	return n
}
