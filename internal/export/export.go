// Package export writes a graph out as one table per node type.
//
// # Overview
//
// An export walks the tree under a root in pre-order and appends one row per
// node to the table of its type. Rows already present in the prior state of
// the directory keep their creation and deletion stamps; every row gets a
// fresh last-update stamp. Rows of the prior state that were marked for
// deletion and whose node is gone are carried over unchanged as tombstones.
//
// A Fresh export replaces the tables of the directory (the old ones serve as
// prior state while the export runs). An AfterImport export leaves the
// directory alone and writes into its "after" sub-directory.
//
// # Usage
//
//	exp, err := export.New(g, export.Config{Dir: dir, Format: format})
//	res, err := exp.Export(monitor, root)
//	if res.Canceled {
//	    // partial tables are left in place
//	}
package export

import (
	"errors"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/progress"
	"github.com/graphtab/gtab/internal/snapshot"
	"github.com/graphtab/gtab/internal/table"
)

// Config configures an Exporter.
type Config struct {
	// Dir is the table directory.
	Dir string
	// Mode selects a fresh export or the audit export after an import.
	Mode snapshot.Mode
	// Format is the table format. Required.
	Format *table.Format
	// Logger receives debug and warning records. Defaults to a discard logger.
	Logger *slog.Logger
	// Now stamps rows. Defaults to time.Now.
	Now func() time.Time
}

// Result summarizes an export.
type Result struct {
	// Rows is the number of node rows written.
	Rows int
	// References is the number of reference values written.
	References int
	// Tombstones is the number of deleted rows carried over.
	Tombstones int
	// Tables lists the table files written, sorted.
	Tables []string
	// RelevantIDs is the size of the relevant set of a relevance export.
	RelevantIDs int
	// Canceled is set when the operator canceled the export. Tables written
	// so far are left in place.
	Canceled bool
}

// Exporter exports one graph.
type Exporter struct {
	g      *graph.Graph
	cfg    Config
	logger *slog.Logger
}

// New creates an exporter for g.
func New(g *graph.Graph, cfg Config) (*Exporter, error) {
	if g == nil {
		return nil, convert.Errorf(convert.KindConfig, "no graph to export")
	}
	if cfg.Dir == "" {
		return nil, convert.Errorf(convert.KindConfig, "export directory must be set")
	}
	if cfg.Format == nil {
		return nil, convert.Errorf(convert.KindConfig, "table format must be set")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{
		g:      g,
		cfg:    cfg,
		logger: logger.With("component", "export", "mode", cfg.Mode.String()),
	}, nil
}

// Layout returns the directory layout the exporter writes to.
func (e *Exporter) Layout() snapshot.Layout {
	return snapshot.Layout{Dir: e.cfg.Dir, Mode: e.cfg.Mode}
}

// Export writes every node under root. Cancellation through m is not an
// error: the returned Result has Canceled set.
func (e *Exporter) Export(m *progress.Monitor, root *graph.Node) (*Result, error) {
	return e.run(m, root, nil)
}

// run drives one export; filter is nil for a full export.
func (e *Exporter) run(m *progress.Monitor, root *graph.Node, filter *filter) (res *Result, err error) {
	if root == nil {
		return nil, convert.Wrap(convert.KindConfig, convert.ErrNoRoot)
	}

	r := &run{
		e:       e,
		layout:  e.Layout(),
		filter:  filter,
		prior:   make(map[string]*priorTable),
		headers: make(map[string][]string),
		cols:    make(map[*graph.Type][]column),
		res:     &Result{},
	}
	r.date, r.clock = table.Stamp(e.cfg.Now())
	if filter != nil {
		r.res.RelevantIDs = len(filter.ids)
	}

	m.SetWorkRemaining(100)
	start := time.Now()
	e.logger.Debug("export started", "dir", e.cfg.Dir, "root", root.ID())

	if err := snapshot.Prepare(r.layout); err != nil {
		return nil, err
	}
	m.Worked(10)

	defer func() {
		if cerr := snapshot.Cleanup(r.layout); cerr != nil {
			e.logger.Warn("failed to remove shadow tables", "error", cerr)
			if err == nil {
				res, err = nil, cerr
			}
		}
	}()

	if err := r.walk(m.Split(80), root); err != nil {
		return r.finish(err)
	}
	if err := r.tombstones(m.Split(10)); err != nil {
		return r.finish(err)
	}
	m.Done()

	e.logger.Info("export finished",
		"rows", r.res.Rows,
		"references", r.res.References,
		"tombstones", r.res.Tombstones,
		"tables", len(r.headers),
		"duration", time.Since(start))
	return r.finish(nil)
}

type priorTable struct {
	t    *table.Table
	byID map[string]*table.Row
}

type run struct {
	e           *Exporter
	layout      snapshot.Layout
	filter      *filter
	date, clock string
	prior       map[string]*priorTable
	headers     map[string][]string
	cols        map[*graph.Type][]column
	res         *Result
}

func (r *run) finish(err error) (*Result, error) {
	for name := range r.headers {
		r.res.Tables = append(r.res.Tables, name)
	}
	sort.Strings(r.res.Tables)
	if convert.IsCanceled(err) {
		r.e.logger.Info("export canceled", "rows", r.res.Rows)
		r.res.Canceled = true
		return r.res, nil
	}
	if err != nil {
		return nil, err
	}
	return r.res, nil
}

func (r *run) walk(m *progress.Monitor, root *graph.Node) error {
	total := 0
	_ = r.e.g.Walk(root, func(*graph.Node) error {
		total++
		return nil
	})
	m.SetWorkRemaining(total)

	return r.e.g.Walk(root, func(n *graph.Node) error {
		if err := m.Canceled(); err != nil {
			return err
		}
		defer m.Worked(1)
		if r.filter != nil && !r.filter.ids.Has(n.ID()) {
			return nil
		}
		return r.writeNode(n)
	})
}

func (r *run) writeNode(n *graph.Node) error {
	file := table.FileName(n.Type().QualifiedName())
	cols := r.columns(n.Type())
	header, ok := r.headers[file]
	if !ok {
		header = headerOf(cols)
		r.headers[file] = header
	}

	prior, err := r.priorTable(file)
	if err != nil {
		return err
	}
	cells := r.bookkeeping(n.ID(), prior.byID[n.ID()])
	for _, c := range cols {
		cells = append(cells, r.cell(n, c))
	}

	if err := table.AppendRecord(r.layout.OutputPath(file), r.e.cfg.Format, header, cells); err != nil {
		return err
	}
	r.res.Rows++
	return nil
}

func (r *run) bookkeeping(id string, prior *table.Row) []string {
	get := func(col string) string {
		if prior == nil {
			return ""
		}
		return prior.Get(col)
	}
	createdDate, createdClock := get(table.ColCreationDate), get(table.ColCreationTime)
	if createdDate == "" {
		createdDate = r.date
	}
	if createdClock == "" {
		createdClock = r.clock
	}

	cells := make([]string, 0, len(table.Bookkeeping))
	return append(cells,
		"",
		createdDate,
		createdClock,
		"",
		r.date,
		r.clock,
		"",
		get(table.ColDeletionDate),
		get(table.ColDeletionTime),
		id,
	)
}

// priorTable loads the prior state of file once per run. A missing prior
// table is an empty one.
func (r *run) priorTable(file string) (*priorTable, error) {
	if p, ok := r.prior[file]; ok {
		return p, nil
	}
	p := &priorTable{byID: make(map[string]*table.Row)}
	t, err := table.ReadFile(r.layout.PriorPath(file), r.e.cfg.Format)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		p.t = t
		for _, row := range t.Rows {
			if id := row.Get(table.ColID); id != "" {
				p.byID[id] = row
			}
		}
	}
	r.prior[file] = p
	return p, nil
}

// tombstones carries over rows of the prior state that were marked for
// deletion and whose node no longer exists.
func (r *run) tombstones(m *progress.Monitor) error {
	files, err := r.layout.PriorTables()
	if err != nil {
		return err
	}
	m.SetWorkRemaining(len(files))

	for _, file := range files {
		if err := m.Canceled(); err != nil {
			return err
		}
		prior, err := r.priorTable(file)
		if err != nil {
			return err
		}
		if prior.t == nil {
			m.Worked(1)
			continue
		}

		var dead []*table.Row
		for _, row := range prior.t.Rows {
			id := row.Get(table.ColID)
			if id == "" || table.IsTempID(id) || !table.IsMarked(row.Get(table.ColToDelete)) {
				continue
			}
			if r.e.g.IsLive(id) {
				continue
			}
			dead = append(dead, row)
		}
		if len(dead) > 0 {
			if err := r.writeTombstones(file, prior.t, dead); err != nil {
				return err
			}
		}
		m.Worked(1)
	}
	return nil
}

func (r *run) writeTombstones(file string, prior *table.Table, rows []*table.Row) error {
	header, ok := r.headers[file]
	if !ok {
		header = prior.Header
		r.headers[file] = header
	}
	path := r.layout.OutputPath(file)
	for _, row := range rows {
		cells := make([]string, len(header))
		for i, col := range header {
			cells[i] = row.Get(col)
		}
		if err := table.AppendRecord(path, r.e.cfg.Format, header, cells); err != nil {
			return err
		}
		r.res.Tombstones++
		r.e.logger.Debug("kept tombstone", "table", file, "id", row.Get(table.ColID))
	}
	return nil
}
