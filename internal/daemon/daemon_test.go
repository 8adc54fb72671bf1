package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/graphtab/gtab/internal/export"
	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/graph/graphtest"
	"github.com/graphtab/gtab/internal/table"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func testFormat(t *testing.T) *table.Format {
	t.Helper()
	f, err := table.NewFormat(table.Options{Delimiter: ';', Quote: '"', Charset: "UTF-8", LineSeparator: table.LF})
	if err != nil {
		t.Fatalf("NewFormat() failed: %v", err)
	}
	return f
}

// fakeStore counts saves.
type fakeStore struct {
	mu    sync.Mutex
	saves int
	err   error
}

func (s *fakeStore) Save(context.Context, *graph.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return s.err
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// setupDaemon exports the sample graph and returns a daemon over it.
func setupDaemon(t *testing.T, cfg Config) (*Daemon, *graph.Graph, string) {
	t.Helper()
	dir := t.TempDir()
	g := graphtest.Sample(t)
	root, _ := g.Node("P")

	exp, err := export.New(g, export.Config{Dir: dir, Format: testFormat(t), Now: func() time.Time { return t0 }})
	if err != nil {
		t.Fatalf("export.New() failed: %v", err)
	}
	if _, err := exp.Export(nil, root); err != nil {
		t.Fatalf("Export() failed: %v", err)
	}

	cfg.Dir = dir
	cfg.Format = testFormat(t)
	cfg.Now = func() time.Time { return t0.Add(time.Hour) }
	d, err := New(g, root, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return d, g, dir
}

// editRow rewrites one row of a table, addressed by id. An empty id appends
// a row.
func editRow(t *testing.T, dir, file, id string, values map[string]string) {
	t.Helper()
	path := filepath.Join(dir, file)
	tbl, err := table.ReadFile(path, testFormat(t))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	col := make(map[string]int)
	for i, h := range tbl.Header {
		col[h] = i
	}
	var rows [][]string
	found := id == ""
	for _, r := range tbl.Rows {
		cells := make([]string, len(tbl.Header))
		copy(cells, r.Cells)
		if id != "" && r.Get(table.ColID) == id {
			found = true
			for k, v := range values {
				cells[col[k]] = v
			}
		}
		rows = append(rows, cells)
	}
	if id == "" {
		cells := make([]string, len(tbl.Header))
		for k, v := range values {
			cells[col[k]] = v
		}
		rows = append(rows, cells)
	}
	if !found {
		t.Fatalf("%s has no row %s", file, id)
	}
	if err := table.WriteFile(path, testFormat(t), tbl.Header, rows); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
}

func readRow(t *testing.T, dir, file, column, value string) *table.Row {
	t.Helper()
	tbl, err := table.ReadFile(filepath.Join(dir, file), testFormat(t))
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	for _, r := range tbl.Rows {
		if r.Get(column) == value {
			return r
		}
	}
	t.Fatalf("%s has no row with %s = %q", file, column, value)
	return nil
}

// TestNew tests configuration validation
func TestNew(t *testing.T) {
	g := graphtest.Sample(t)
	root, _ := g.Node("P")
	f := testFormat(t)

	tests := []struct {
		name string
		g    *graph.Graph
		root *graph.Node
		cfg  Config
	}{
		{"nil graph", nil, root, Config{Dir: "x", Format: f}},
		{"nil root", g, nil, Config{Dir: "x", Format: f}},
		{"no dir", g, root, Config{Format: f}},
		{"no format", g, root, Config{Dir: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.g, tt.root, tt.cfg); err == nil {
				t.Error("New() succeeded, want error")
			}
		})
	}

	d, err := New(g, root, Config{Dir: "x", Format: f})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if d.cfg.Debounce != DefaultDebounce {
		t.Errorf("Debounce = %v, want %v", d.cfg.Debounce, DefaultDebounce)
	}
}

// TestDaemon_SyncSkipsUnmarked tests that tables without markers are left alone
func TestDaemon_SyncSkipsUnmarked(t *testing.T) {
	store := &fakeStore{}
	d, _, _ := setupDaemon(t, Config{Store: store})

	res, err := d.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if !res.Skipped {
		t.Error("Sync() did not skip unmarked tables")
	}
	if store.count() != 0 {
		t.Errorf("store saved %d times, want 0", store.count())
	}
}

// TestDaemon_SyncUpdate tests the import, save and re-export cycle
func TestDaemon_SyncUpdate(t *testing.T) {
	store := &fakeStore{}
	d, g, dir := setupDaemon(t, Config{Store: store})

	editRow(t, dir, "model.Component.csv", "C2", map[string]string{
		table.ColToUpdate: "x",
		"name":            "Gamma",
	})

	res, err := d.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if res.Skipped || res.Import.Updated != 1 {
		t.Fatalf("Sync() = %+v, want one update", res)
	}
	if store.count() != 1 {
		t.Errorf("store saved %d times, want 1", store.count())
	}

	c2, _ := g.Node("C2")
	if got := c2.Attr("name"); got != "Gamma" {
		t.Errorf("C2 name = %v, want Gamma", got)
	}
	row := readRow(t, dir, "model.Component.csv", table.ColID, "C2")
	if row.Get("name") != "Gamma" || row.Get(table.ColToUpdate) != "" {
		t.Errorf("re-exported row: name=%q to-update=%q", row.Get("name"), row.Get(table.ColToUpdate))
	}
	if _, err := os.Stat(filepath.Join(dir, table.AfterDir, "model.Component.csv")); err != nil {
		t.Errorf("audit table missing: %v", err)
	}

	again, err := d.Sync(context.Background())
	if err != nil {
		t.Fatalf("second Sync() failed: %v", err)
	}
	if !again.Skipped {
		t.Error("second Sync() was not skipped after markers were cleared")
	}
}

// TestDaemon_SyncCreate tests that temporary identifiers are replaced on re-export
func TestDaemon_SyncCreate(t *testing.T) {
	d, _, dir := setupDaemon(t, Config{})

	editRow(t, dir, "model.Function.csv", "", map[string]string{
		table.ColToCreate: "x",
		table.ColID:       "%new%",
		"name":            "fresh",
	})
	editRow(t, dir, "model.Component.csv", "C2", map[string]string{
		table.ColToUpdate: "x",
		"ownedFunctions":  table.EncodeList([]string{"F3", "%new%"}),
	})

	res, err := d.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if res.Import.Created != 1 {
		t.Errorf("Created = %d, want 1", res.Import.Created)
	}

	row := readRow(t, dir, "model.Function.csv", "name", "fresh")
	id := row.Get(table.ColID)
	if table.IsTempID(id) || id == "" {
		t.Errorf("re-exported id = %q, want a real identifier", id)
	}
	c2 := readRow(t, dir, "model.Component.csv", table.ColID, "C2")
	if got, want := c2.Get("ownedFunctions"), table.EncodeList([]string{"F3", id}); got != want {
		t.Errorf("ownedFunctions = %q, want %q", got, want)
	}
}

// TestDaemon_SyncImportError tests that a failed import changes nothing
func TestDaemon_SyncImportError(t *testing.T) {
	store := &fakeStore{}
	d, g, dir := setupDaemon(t, Config{Store: store})

	editRow(t, dir, "model.Component.csv", "C1", map[string]string{
		table.ColToUpdate: "x",
		"priority":        "high",
	})
	before := graphtest.Dump(g)

	if _, err := d.Sync(context.Background()); err == nil {
		t.Fatal("Sync() succeeded with an invalid cell")
	}
	if store.count() != 0 {
		t.Errorf("store saved %d times after a failed import", store.count())
	}
	row := readRow(t, dir, "model.Component.csv", table.ColID, "C1")
	if row.Get("priority") != "high" {
		t.Error("tables were rewritten after a failed import")
	}
	c1, _ := g.Node("C1")
	if c1.Attr("priority") != before["C1"].Values["priority"] {
		t.Error("graph changed after a failed import")
	}
}

// TestDaemon_SyncStoreError tests that a save failure is reported
func TestDaemon_SyncStoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	d, _, dir := setupDaemon(t, Config{Store: store})
	editRow(t, dir, "model.Component.csv", "C2", map[string]string{table.ColToUpdate: "x"})

	res, err := d.Sync(context.Background())
	if err == nil {
		t.Fatal("Sync() succeeded with a failing store")
	}
	if res == nil || res.Import == nil {
		t.Error("Sync() dropped the import result")
	}
}

// TestDaemon_OwnWrites tests that files written by a sync are recognized
func TestDaemon_OwnWrites(t *testing.T) {
	d, _, dir := setupDaemon(t, Config{})
	d.remember()

	path, _ := filepath.Abs(filepath.Join(dir, "model.Function.csv"))
	if !d.ownWrite(path) {
		t.Error("unchanged table not recognized as own write")
	}

	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("Chtimes() failed: %v", err)
	}
	if d.ownWrite(path) {
		t.Error("touched table recognized as own write")
	}

	if !d.ownWrite(filepath.Join(dir, "model.Nope.csv")) {
		t.Error("unknown missing table should be ignored")
	}
}

// TestDaemon_Run tests that an edit made while running is synced
func TestDaemon_Run(t *testing.T) {
	synced := make(chan *SyncResult, 10)
	d, g, dir := setupDaemon(t, Config{
		Debounce: 50 * time.Millisecond,
		OnSync: func(res *SyncResult, err error) {
			if err == nil && res != nil && !res.Skipped {
				synced <- res
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run(ctx)
	}()

	// Wait for the watcher to start
	time.Sleep(200 * time.Millisecond)

	editRow(t, dir, "model.Function.csv", "F2", map[string]string{
		table.ColToUpdate: "x",
		"name":            "renamed",
	})

	select {
	case res := <-synced:
		if res.Import.Updated != 1 {
			t.Errorf("Updated = %d, want 1", res.Import.Updated)
		}
	case <-ctx.Done():
		t.Fatal("Timeout waiting for sync")
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run() error: %v", err)
	}

	f2, _ := g.Node("F2")
	if got := f2.Attr("name"); got != "renamed" {
		t.Errorf("F2 name = %v, want renamed", got)
	}
	select {
	case res := <-synced:
		t.Errorf("daemon synced its own writes: %+v", res)
	default:
	}
}
