package main

import (
	"context"
	"fmt"
	"os"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/db"
	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/progress"
	"github.com/graphtab/gtab/internal/ui"
)

func loadSchema() (*graph.Schema, error) {
	s, err := graph.LoadSchemaFile(app.settings.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", app.settings.Schema, err)
	}
	return s, nil
}

func openStore(ctx context.Context) (*db.DB, error) {
	store, err := db.Open(app.settings.DB)
	if err != nil {
		return nil, err
	}
	if err := store.InitSchemaContext(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// loadGraph opens the database and loads the graph with its first root.
// The caller closes the store.
func loadGraph(ctx context.Context) (*db.DB, *graph.Graph, *graph.Node, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	g, err := store.Load(ctx, schema)
	if err != nil {
		store.Close()
		return nil, nil, nil, err
	}
	roots := g.Roots()
	if len(roots) == 0 {
		store.Close()
		return nil, nil, nil, convert.Errorf(convert.KindConfig, "%s holds no graph, run 'gtab init'", app.settings.DB)
	}
	if len(roots) > 1 {
		app.logger.Warn("database holds several roots, using the first", "root", roots[0].ID(), "roots", len(roots))
	}
	return store, g, roots[0], nil
}

// newMonitor reports progress as a bar on a terminal and as debug records
// otherwise. The returned func ends the bar.
func newMonitor(ctx context.Context, task string) (*progress.Monitor, func()) {
	if !quiet && ui.IsTerminal(os.Stderr) {
		bar := ui.NewProgressBar(os.Stderr)
		return progress.New(ctx, bar, task, 100), bar.Finish
	}
	return progress.New(ctx, progress.LogReporter(app.logger.Logger), task, 100), func() {}
}

func successMark() string { return ui.RenderPass("✓") }
func warnMark() string    { return ui.RenderWarn("⚠") }
