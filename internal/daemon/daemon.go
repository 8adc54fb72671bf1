package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/export"
	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/importer"
	"github.com/graphtab/gtab/internal/progress"
	"github.com/graphtab/gtab/internal/snapshot"
	"github.com/graphtab/gtab/internal/table"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// ErrRootDeleted is returned when an import removed the root the daemon
// exports from.
var ErrRootDeleted = errors.New("root was deleted by the import")

// Store persists the graph after each applied import. *db.DB implements it.
type Store interface {
	Save(ctx context.Context, g *graph.Graph) error
}

// Config holds configuration for the daemon.
type Config struct {
	// Dir is the table directory to watch.
	Dir string
	// Format is the table format. Required.
	Format *table.Format
	// Store persists the graph. Optional.
	Store Store
	// Debounce is how long a table must stay untouched before a sync runs.
	Debounce time.Duration
	// Logger defaults to a discard logger.
	Logger *slog.Logger
	// Now stamps rows. Defaults to time.Now.
	Now func() time.Time
	// OnSync is called after every sync attempt. Optional.
	OnSync func(*SyncResult, error)
}

// SyncResult describes one sync.
type SyncResult struct {
	// Skipped is set when no table carried a marker.
	Skipped bool
	Import  *importer.Result
	Export  *export.Result
}

// fileStamp identifies the content of a table file well enough to recognize
// the daemon's own writes.
type fileStamp struct {
	size    int64
	modTime time.Time
}

// Daemon keeps a graph and its table directory in step.
type Daemon struct {
	g      *graph.Graph
	root   *graph.Node
	cfg    Config
	logger *slog.Logger

	// syncMu serializes syncs.
	syncMu sync.Mutex

	queueMu     sync.Mutex
	changeQueue map[string]time.Time // path -> last event
	written     map[string]fileStamp // path -> stamp after the last sync
}

// New creates a daemon exporting from root.
func New(g *graph.Graph, root *graph.Node, cfg Config) (*Daemon, error) {
	if g == nil || root == nil {
		return nil, convert.Errorf(convert.KindConfig, "daemon requires a graph and a root")
	}
	if cfg.Dir == "" {
		return nil, convert.Errorf(convert.KindConfig, "table directory must be set")
	}
	if cfg.Format == nil {
		return nil, convert.Errorf(convert.KindConfig, "table format must be set")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.Logger = logger.With("component", "daemon")

	return &Daemon{
		g:           g,
		root:        root,
		cfg:         cfg,
		logger:      cfg.Logger,
		changeQueue: make(map[string]time.Time),
		written:     make(map[string]fileStamp),
	}, nil
}

// Run syncs once, then watches the table directory and syncs whenever a
// table settles after an edit. It blocks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting daemon", "dir", d.cfg.Dir, "debounce", d.cfg.Debounce)

	if err := os.MkdirAll(d.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}
	d.report(d.Sync(ctx))

	fw, err := NewFileWatcher()
	if err != nil {
		return err
	}
	if err := fw.Start(d.cfg.Dir); err != nil {
		_ = fw.Stop()
		return err
	}
	defer fw.Stop()

	ticker := time.NewTicker(d.cfg.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon stopped")
			return nil

		case ev, ok := <-fw.Events():
			if !ok {
				return nil
			}
			d.logger.Debug("table event", "op", ev.Op, "type", ev.Type)
			d.queueChange(ev.Path)

		case err, ok := <-fw.Errors():
			if !ok {
				return nil
			}
			d.logger.Warn("watcher error", "error", err)

		case <-ticker.C:
			if d.processPendingChanges() {
				d.report(d.Sync(ctx))
			}
		}
	}
}

func (d *Daemon) report(res *SyncResult, err error) {
	if err != nil {
		d.logger.Warn("sync failed", "error", err)
	}
	if d.cfg.OnSync != nil {
		d.cfg.OnSync(res, err)
	}
}

func (d *Daemon) queueChange(path string) {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	d.changeQueue[path] = time.Now()
}

// processPendingChanges drains the paths that stayed quiet for the debounce
// interval and reports whether any of them differs from what the last sync
// wrote.
func (d *Daemon) processPendingChanges() bool {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()

	now := time.Now()
	changed := false
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.cfg.Debounce {
			continue
		}
		delete(d.changeQueue, path)
		if d.ownWrite(path) {
			continue
		}
		d.logger.Debug("table changed", "path", path)
		changed = true
	}
	return changed
}

func (d *Daemon) ownWrite(path string) bool {
	want, known := d.written[path]
	info, err := os.Stat(path)
	if err != nil {
		return !known
	}
	return known && info.Size() == want.size && info.ModTime().Equal(want.modTime)
}

// remember records the current state of every table so that the events
// caused by the daemon's own writes are recognized.
func (d *Daemon) remember() {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()

	clear(d.written)
	names, err := table.List(d.cfg.Dir)
	if err != nil {
		d.logger.Warn("failed to list tables", "error", err)
		return
	}
	for _, name := range names {
		path, err := filepath.Abs(filepath.Join(d.cfg.Dir, name))
		if err != nil {
			continue
		}
		if info, err := os.Stat(path); err == nil {
			d.written[path] = fileStamp{size: info.Size(), modTime: info.ModTime()}
		}
	}
}

// Sync imports the marked rows of the table directory, persists the graph
// and rewrites the tables from it. Nothing happens when no row is marked.
// A failed import leaves the graph and the tables untouched.
func (d *Daemon) Sync(ctx context.Context) (*SyncResult, error) {
	d.syncMu.Lock()
	defer d.syncMu.Unlock()
	defer d.remember()

	summaries, err := snapshot.Summarize(d.cfg.Dir, d.cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to read tables: %w", err)
	}
	pending := false
	for _, s := range summaries {
		pending = pending || s.Pending()
	}
	if !pending {
		d.logger.Debug("no marked rows, nothing to sync")
		return &SyncResult{Skipped: true}, nil
	}

	start := time.Now()
	m := progress.New(ctx, progress.LogReporter(d.logger), "sync", 100)

	im, err := importer.New(d.g, importer.Config{
		Dir:    d.cfg.Dir,
		Format: d.cfg.Format,
		Logger: d.cfg.Logger,
		Now:    d.cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	res := &SyncResult{}
	res.Import, err = im.Import(m.Split(50), d.root)
	if res.Import == nil {
		return nil, fmt.Errorf("failed to import tables: %w", err)
	}
	if err != nil {
		d.logger.Warn("import applied with errors", "error", err)
	}
	if res.Import.Canceled {
		return res, nil
	}
	if w := res.Import.Warning(); w != "" {
		d.logger.Warn(w)
	}

	if d.cfg.Store != nil {
		if err := d.cfg.Store.Save(ctx, d.g); err != nil {
			return res, fmt.Errorf("failed to save graph: %w", err)
		}
	}

	if !d.g.IsLive(d.root.ID()) {
		return res, ErrRootDeleted
	}
	exp, err := export.New(d.g, export.Config{
		Dir:    d.cfg.Dir,
		Mode:   snapshot.Fresh,
		Format: d.cfg.Format,
		Logger: d.cfg.Logger,
		Now:    d.cfg.Now,
	})
	if err != nil {
		return res, err
	}
	res.Export, err = exp.Export(m.Split(50), d.root)
	if err != nil {
		return res, fmt.Errorf("failed to re-export tables: %w", err)
	}
	m.Done()

	d.logger.Info("sync complete",
		"created", res.Import.Created,
		"updated", res.Import.Updated,
		"deleted", res.Import.Deleted,
		"rows", res.Export.Rows,
		"duration", time.Since(start))
	return res, nil
}
