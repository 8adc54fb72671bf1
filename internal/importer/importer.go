// Package importer applies edited tables back to a graph.
//
// # Overview
//
// An import reads every table of a directory and applies it inside a single
// graph transaction, in three phases: rows marked "To delete" remove their
// node; rows marked "To create" instantiate a node for their temporary
// identifier; rows marked "To create" or "To update" then set every feature
// column. Any error rolls the whole transaction back. On success an audit
// export is written to the "after" sub-directory.
//
// # Usage
//
//	im, err := importer.New(g, importer.Config{Dir: dir, Format: format})
//	res, err := im.Import(monitor, anyNode)
//	if w := res.Warning(); w != "" {
//	    fmt.Println(w)
//	}
package importer

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/export"
	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/progress"
	"github.com/graphtab/gtab/internal/snapshot"
	"github.com/graphtab/gtab/internal/table"
)

// Config configures an Importer.
type Config struct {
	// Dir is the table directory.
	Dir string
	// Format is the table format. Required.
	Format *table.Format
	// Logger defaults to a discard logger.
	Logger *slog.Logger
	// Now stamps the audit export. Defaults to time.Now.
	Now func() time.Time
	// SkipAudit disables the export into the after directory.
	SkipAudit bool
}

// Orphan is a node created by an import but never placed in a containment.
type Orphan struct {
	TempID string
	Type   string
}

// Result summarizes an import.
type Result struct {
	Created int
	Updated int
	Deleted int
	// Orphans lists created nodes that were not attached anywhere. They are
	// dropped when the transaction commits.
	Orphans []Orphan
	// Export is the audit export result, nil when skipped.
	Export *export.Result
	// Canceled is set when the operator canceled; nothing was applied.
	Canceled bool
}

// Warning returns the informational message for orphaned nodes, or "".
func (r *Result) Warning() string {
	if r == nil || len(r.Orphans) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("The following new objects have not been imported (not added to any containment references):")
	for _, o := range r.Orphans {
		fmt.Fprintf(&b, "\n- %s (%s)", o.TempID, o.Type)
	}
	return b.String()
}

// Importer imports tables into one graph.
type Importer struct {
	g      *graph.Graph
	cfg    Config
	logger *slog.Logger
}

// New creates an importer for g.
func New(g *graph.Graph, cfg Config) (*Importer, error) {
	if g == nil {
		return nil, convert.Errorf(convert.KindConfig, "no graph to import into")
	}
	if cfg.Dir == "" {
		return nil, convert.Errorf(convert.KindConfig, "import directory must be set")
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
	return &Importer{g: g, cfg: cfg, logger: logger.With("component", "import")}, nil
}

type typedTable struct {
	typ *graph.Type
	t   *table.Table
}

// Import applies the tables to the graph containing anchor. Every fatal
// error rolls back all changes. When the audit export fails after a
// successful commit, the Result is returned together with the error.
func (im *Importer) Import(m *progress.Monitor, anchor *graph.Node) (*Result, error) {
	if anchor == nil {
		return nil, convert.Wrap(convert.KindConfig, convert.ErrNoRoot)
	}
	root, ok := im.g.RootOf(anchor.ID())
	if !ok {
		return nil, convert.Wrap(convert.KindConfig, convert.ErrNoRoot)
	}

	start := time.Now()
	m.SetWorkRemaining(100)

	tables, err := im.readTables(m.Split(10))
	if convert.IsCanceled(err) {
		return &Result{Canceled: true}, nil
	}
	if err != nil {
		return nil, err
	}

	tx, err := im.g.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	s := &state{
		im:         im,
		newObjects: make(map[string]*graph.Node),
		created:    make(map[string]bool),
		unattached: make(map[string]*graph.Node),
		deleted:    make(map[string]bool),
		res:        &Result{},
	}

	err = s.deletions(m.Split(10), tables)
	if err == nil {
		err = s.creations(m.Split(10), tables)
	}
	if err == nil {
		err = s.updates(m.Split(50), tables)
	}
	if convert.IsCanceled(err) {
		im.logger.Info("import canceled, changes rolled back", "changes", tx.Len())
		return &Result{Canceled: true}, nil
	}
	if err != nil {
		im.logger.Warn("import failed, changes rolled back", "changes", tx.Len(), "error", err)
		return nil, err
	}

	s.res.Orphans = s.orphans()
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	im.logger.Info("import applied",
		"created", s.res.Created,
		"updated", s.res.Updated,
		"deleted", s.res.Deleted,
		"orphans", len(s.res.Orphans),
		"duration", time.Since(start))

	if im.cfg.SkipAudit {
		m.Done()
		return s.res, nil
	}
	if !im.g.IsLive(root.ID()) {
		im.logger.Warn("root was deleted by the import, skipping the audit export", "root", root.ID())
		m.Done()
		return s.res, nil
	}
	exp, err := export.New(im.g, export.Config{
		Dir:    im.cfg.Dir,
		Mode:   snapshot.AfterImport,
		Format: im.cfg.Format,
		Logger: im.cfg.Logger,
		Now:    im.cfg.Now,
	})
	if err != nil {
		return s.res, err
	}
	s.res.Export, err = exp.Export(m.Split(20), root)
	if err != nil {
		return s.res, fmt.Errorf("import applied but the audit export failed: %w", err)
	}
	m.Done()
	return s.res, nil
}

// readTables maps every table of the directory to its type and parses it.
// Nothing is read until every file name is known to be valid.
func (im *Importer) readTables(m *progress.Monitor) ([]typedTable, error) {
	files, err := table.List(im.cfg.Dir)
	if err != nil {
		return nil, err
	}

	types := make([]*graph.Type, len(files))
	for i, file := range files {
		name, ok := table.TypeName(file)
		var t *graph.Type
		if ok {
			t, ok = im.g.Schema().Type(name)
		}
		if !ok || t.Abstract {
			return nil, &convert.Error{
				Kind: convert.KindFileName,
				File: file,
				Err:  errors.New("file name does not correspond to any type"),
			}
		}
		types[i] = t
	}

	m.SetWorkRemaining(len(files))
	tables := make([]typedTable, 0, len(files))
	for i, file := range files {
		if err := m.Canceled(); err != nil {
			return nil, err
		}
		t, err := table.ReadFile(filepath.Join(im.cfg.Dir, file), im.cfg.Format)
		if err != nil {
			return nil, err
		}
		tables = append(tables, typedTable{typ: types[i], t: t})
		m.Worked(1)
	}
	im.logger.Debug("tables read", "count", len(tables))
	return tables, nil
}

// state is the transaction-scoped bookkeeping of one import.
type state struct {
	im *Importer
	// newObjects maps temporary identifiers to the nodes created for them.
	newObjects map[string]*graph.Node
	// created holds the real identifiers of the nodes in newObjects.
	created map[string]bool
	// unattached holds nodes taken out of a containment during the updates,
	// so that a later row can place them elsewhere.
	unattached map[string]*graph.Node
	// deleted holds every node removed in the deletion phase, contents
	// included.
	deleted map[string]bool
	res     *Result
}

func (s *state) rows(tables []typedTable) int {
	n := 0
	for _, tt := range tables {
		n += len(tt.t.Rows)
	}
	return n
}

func (s *state) deletions(m *progress.Monitor, tables []typedTable) error {
	m.SetWorkRemaining(s.rows(tables))
	for _, tt := range tables {
		for _, row := range tt.t.Rows {
			if err := m.Canceled(); err != nil {
				return err
			}
			m.Worked(1)
			if !table.IsMarked(row.Get(table.ColToDelete)) {
				continue
			}
			id := row.Get(table.ColID)
			n, ok := s.im.g.Node(id)
			if id == "" || !ok {
				continue
			}
			_ = s.im.g.Walk(n, func(d *graph.Node) error {
				s.deleted[d.ID()] = true
				return nil
			})
			if err := s.im.g.Delete(id); err != nil {
				return convert.Wrap(convert.KindIdentity, err).At(tt.t.Name, row.Line)
			}
			s.res.Deleted++
			s.im.logger.Debug("deleted", "id", id, "table", tt.t.Name)
		}
	}
	return nil
}

func (s *state) creations(m *progress.Monitor, tables []typedTable) error {
	m.SetWorkRemaining(s.rows(tables))
	for _, tt := range tables {
		for _, row := range tt.t.Rows {
			if err := m.Canceled(); err != nil {
				return err
			}
			m.Worked(1)
			if !table.IsMarked(row.Get(table.ColToCreate)) {
				continue
			}
			id := strings.TrimSpace(row.Get(table.ColID))
			if !table.IsTempID(id) {
				return &convert.Error{
					Kind: convert.KindIdentity,
					File: tt.t.Name,
					Line: row.Line,
					Err:  fmt.Errorf("a row to create needs a temporary identifier such as %%1%%, got %q", id),
				}
			}
			if _, dup := s.newObjects[id]; dup {
				return &convert.Error{
					Kind: convert.KindIdentity,
					File: tt.t.Name,
					Line: row.Line,
					Err:  fmt.Errorf("temporary identifier %s is used by more than one row", id),
				}
			}
			n, err := s.im.g.Create(tt.typ.QualifiedName())
			if err != nil {
				return convert.Wrap(convert.KindType, err).At(tt.t.Name, row.Line)
			}
			s.newObjects[id] = n
			s.created[n.ID()] = true
			s.res.Created++
		}
	}
	return nil
}

func (s *state) updates(m *progress.Monitor, tables []typedTable) error {
	m.SetWorkRemaining(s.rows(tables))
	for _, tt := range tables {
		cols := tt.t.Columns()
		for _, row := range tt.t.Rows {
			if err := m.Canceled(); err != nil {
				return err
			}
			m.Worked(1)
			create := table.IsMarked(row.Get(table.ColToCreate))
			if !create && !table.IsMarked(row.Get(table.ColToUpdate)) {
				continue
			}
			id := strings.TrimSpace(row.Get(table.ColID))
			n := s.resolve(id)
			if n == nil && s.deleted[id] {
				s.im.logger.Debug("skipping row of deleted element", "id", id, "table", tt.t.Name, "line", row.Line)
				continue
			}
			if n == nil {
				return &convert.Error{
					Kind: convert.KindIdentity,
					File: tt.t.Name,
					Line: row.Line,
					Err:  fmt.Errorf("no element with identifier %q", id),
				}
			}
			if err := s.applyRow(tt.t, cols, row, n); err != nil {
				return err
			}
			if !create {
				s.res.Updated++
			}
		}
	}
	return nil
}

// resolve finds a node by identifier: live nodes first, then nodes created
// or detached in this import, then nodes contained somewhere below one of
// those.
func (s *state) resolve(id string) *graph.Node {
	if id == "" {
		return nil
	}
	if n, ok := s.im.g.Node(id); ok {
		return n
	}
	if n, ok := s.newObjects[id]; ok {
		return n
	}
	if n, ok := s.unattached[id]; ok {
		return n
	}
	n, ok := s.im.g.Lookup(id)
	if !ok {
		return nil
	}
	top := n
	for {
		parent, _ := top.Container()
		if parent == "" {
			break
		}
		if top, ok = s.im.g.Lookup(parent); !ok {
			return nil
		}
	}
	if _, ok := s.unattached[top.ID()]; ok || s.created[top.ID()] {
		return n
	}
	return nil
}

// orphans lists the created nodes that are not live, by temporary id.
func (s *state) orphans() []Orphan {
	var out []Orphan
	for tempID, n := range s.newObjects {
		if !s.im.g.IsLive(n.ID()) {
			out = append(out, Orphan{TempID: tempID, Type: n.Type().QualifiedName()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TempID < out[j].TempID })
	return out
}
