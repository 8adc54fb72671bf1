package benchmark

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strconv"
	"time"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/db"
	"github.com/graphtab/gtab/internal/export"
	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/importer"
	"github.com/graphtab/gtab/internal/progress"
	"github.com/graphtab/gtab/internal/snapshot"
	"github.com/graphtab/gtab/internal/table"
)

// FolderType is the only type of generated graphs.
const FolderType = "bench.Folder"

// Phase names, in run order.
const (
	PhaseExport = "Export"
	PhaseImport = "Import"
	PhaseSave   = "Save"
	PhaseLoad   = "Load"
)

// Config defines the parameters for a benchmark run.
type Config struct {
	// Nodes is the number of generated nodes, the root included.
	Nodes int
	// Fanout is the number of children per folder.
	Fanout int
	// Links is the number of non-containment references per folder.
	Links int
	// Rounds is how often the round trip is repeated.
	Rounds int
	// UpdatePct is the share of rows marked for update each round (0.0-1.0).
	UpdatePct float64
	// Seed makes the generated graph and the edits reproducible.
	Seed uint64

	// Dir is the table directory. Required.
	Dir string
	// Format is the table format. Required.
	Format *table.Format `json:"-"`
	// DBPath enables the save and load phases.
	DBPath string
	// Logger defaults to a discard logger.
	Logger *slog.Logger `json:"-"`
}

// DefaultConfig returns a benchmark configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Nodes:     1000,
		Fanout:    5,
		Links:     2,
		Rounds:    5,
		UpdatePct: 0.1,
		Seed:      1,
	}
}

// Phase is the timing of one step over all rounds.
type Phase struct {
	Name    string
	Latency LatencyMetrics
}

// Result captures all metrics from a benchmark run.
type Result struct {
	Config Config
	// Rows is the number of rows written per export.
	Rows int
	// Updated is the number of rows applied per import.
	Updated       int
	Phases        []Phase
	Resources     ResourceMetrics
	TotalDuration time.Duration
}

// Schema returns the schema of generated graphs: one folder type with a name,
// a size, contained folders and cross links.
func Schema() *graph.Schema {
	return graph.MustSchema(graph.NewType("bench", "Folder",
		graph.Attribute("name", graph.TypeString),
		graph.Attribute("size", graph.TypeInt),
		graph.ListContainment("items", FolderType),
		graph.ListReference("links", FolderType),
	))
}

// Build generates a graph of n folders, filled breadth first with fanout
// children each. Every folder links to up to links earlier folders.
func Build(n, fanout, links int, seed uint64) (*graph.Graph, *graph.Node, error) {
	if n < 1 || fanout < 1 {
		return nil, nil, fmt.Errorf("need at least one node and a positive fanout")
	}
	next := 0
	g := graph.New(Schema(), graph.WithIDGenerator(func() string {
		next++
		return fmt.Sprintf("N%06d", next)
	}))
	rnd := rand.New(rand.NewPCG(seed, seed))

	root, err := g.AddRoot(FolderType)
	if err != nil {
		return nil, nil, err
	}
	ids := []string{root.ID()}
	for parent := 0; len(ids) < n; parent++ {
		var children []string
		for i := 0; i < fanout && len(ids) < n; i++ {
			child, err := g.Create(FolderType)
			if err != nil {
				return nil, nil, err
			}
			ids = append(ids, child.ID())
			children = append(children, child.ID())
		}
		if err := g.SetRefs(ids[parent], "items", children); err != nil {
			return nil, nil, fmt.Errorf("failed to attach children of %s: %w", ids[parent], err)
		}
	}

	for i, id := range ids {
		if err := g.SetAttr(id, "name", "folder "+strconv.Itoa(i)); err != nil {
			return nil, nil, err
		}
		if err := g.SetAttr(id, "size", int64(rnd.IntN(1000))); err != nil {
			return nil, nil, err
		}
		if i == 0 || links == 0 {
			continue
		}
		targets := make([]string, 0, links)
		for range links {
			targets = append(targets, ids[rnd.IntN(i)])
		}
		if err := g.SetRefs(id, "links", targets); err != nil {
			return nil, nil, err
		}
	}
	return g, root, nil
}

// Run generates a graph and times the export, import and persistence round
// trip cfg.Rounds times.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	switch {
	case cfg.Rounds < 1:
		return nil, convert.Errorf(convert.KindConfig, "rounds must be positive")
	case cfg.UpdatePct < 0 || cfg.UpdatePct > 1:
		return nil, convert.Errorf(convert.KindConfig, "update share must be between 0.0 and 1.0")
	case cfg.Dir == "" || cfg.Format == nil:
		return nil, convert.Errorf(convert.KindConfig, "table directory and format must be set")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "benchmark")

	memBefore := GetMemoryStats()
	start := time.Now()

	g, root, err := Build(cfg.Nodes, cfg.Fanout, cfg.Links, cfg.Seed)
	if err != nil {
		return nil, convert.Wrap(convert.KindConfig, err)
	}
	logger.Debug("graph generated", "nodes", g.Len(), "duration", time.Since(start))

	var store *db.DB
	if cfg.DBPath != "" {
		if store, err = db.Open(cfg.DBPath); err != nil {
			return nil, err
		}
		defer store.Close()
		if err := store.InitSchemaContext(ctx); err != nil {
			return nil, err
		}
	}

	exp, err := export.New(g, export.Config{Dir: cfg.Dir, Mode: snapshot.Fresh, Format: cfg.Format, Logger: logger})
	if err != nil {
		return nil, err
	}
	im, err := importer.New(g, importer.Config{Dir: cfg.Dir, Format: cfg.Format, Logger: logger, SkipAudit: true})
	if err != nil {
		return nil, err
	}

	rnd := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	timings := make(map[string][]time.Duration)
	res := &Result{Config: cfg}
	timed := func(phase string, fn func() error) error {
		t0 := time.Now()
		if err := fn(); err != nil {
			return fmt.Errorf("%s failed: %w", phase, err)
		}
		timings[phase] = append(timings[phase], time.Since(t0))
		return nil
	}

	for round := range cfg.Rounds {
		m := progress.New(ctx, nil, "benchmark", 100)
		if err := m.Canceled(); err != nil {
			return nil, err
		}

		err := timed(PhaseExport, func() error {
			out, err := exp.Export(m.Split(50), root)
			if err == nil {
				res.Rows = out.Rows
			}
			return err
		})
		if err != nil {
			return nil, err
		}

		if err := markUpdates(cfg, rnd, round); err != nil {
			return nil, err
		}
		err = timed(PhaseImport, func() error {
			out, err := im.Import(m.Split(50), root)
			if err == nil {
				res.Updated = out.Updated
			}
			return err
		})
		if err != nil {
			return nil, err
		}

		if store == nil {
			continue
		}
		if err := timed(PhaseSave, func() error { return store.Save(ctx, g) }); err != nil {
			return nil, err
		}
		err = timed(PhaseLoad, func() error {
			_, err := store.Load(ctx, g.Schema())
			return err
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("round finished", "round", round+1)
	}

	for _, name := range []string{PhaseExport, PhaseImport, PhaseSave, PhaseLoad} {
		if d, ok := timings[name]; ok {
			res.Phases = append(res.Phases, Phase{Name: name, Latency: ComputeStats(d)})
		}
	}
	res.TotalDuration = time.Since(start)
	res.Resources = CompareMemoryStats(memBefore, GetMemoryStats())
	return res, nil
}

// markUpdates marks a random share of the folder rows "To update" with a new
// size.
func markUpdates(cfg Config, rnd *rand.Rand, round int) error {
	path := filepath.Join(cfg.Dir, table.FileName(FolderType))
	t, err := table.ReadFile(path, cfg.Format)
	if err != nil {
		return err
	}
	col := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		col[h] = i
	}

	rows := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		cells := make([]string, len(t.Header))
		copy(cells, r.Cells)
		if rnd.Float64() < cfg.UpdatePct {
			cells[col[table.ColToUpdate]] = "x"
			cells[col["size"]] = strconv.Itoa(1000 + round)
		}
		rows[i] = cells
	}
	return table.WriteFile(path, cfg.Format, t.Header, rows)
}
