package export

import (
	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/progress"
	"github.com/graphtab/gtab/internal/relevance"
)

// Relevance configures a relevance export.
type Relevance struct {
	// Predicate keeps structural nodes. Nil keeps none on its own.
	Predicate *relevance.Predicate
	// Registry supplies the categories; each one becomes a column.
	Registry *relevance.Registry
	// Containments adds the containment columns, filtered to relevant ids.
	Containments bool
}

type filter struct {
	ids          relevance.IDSet
	registry     *relevance.Registry
	containments bool
}

// columns lays out a relevance table: attributes, one column per category,
// then containments when requested.
func (f *filter) columns(t *graph.Type) []column {
	var cols []column
	for _, a := range t.Attributes() {
		cols = append(cols, column{name: a.Name, feature: a})
	}
	if f.registry != nil {
		for _, c := range f.registry.For(t) {
			cols = append(cols, column{name: c.Column, category: c.Classifier})
		}
	}
	if f.containments {
		for _, c := range t.Containments() {
			cols = append(cols, column{name: c.Name, feature: c})
		}
	}
	return cols
}

// ExportRelevant computes the relevant set under root, then exports only the
// nodes in it. Reference cells list relevant identifiers only.
func (e *Exporter) ExportRelevant(m *progress.Monitor, root *graph.Node, rel Relevance) (*Result, error) {
	if root == nil {
		return nil, convert.Wrap(convert.KindConfig, convert.ErrNoRoot)
	}
	m.SetWorkRemaining(100)
	sub := m.Split(20)
	sub.Subtask("computing relevant elements")
	ids, err := relevance.Compute(e.g, root, rel.Predicate, rel.Registry, e.logger)
	if err != nil {
		return nil, convert.Wrap(convert.KindConfig, err)
	}
	sub.Done()
	if err := m.Canceled(); err != nil {
		return &Result{Canceled: true}, nil
	}
	e.logger.Debug("relevant set computed", "size", len(ids))

	return e.run(m.Split(80), root, &filter{
		ids:          ids,
		registry:     rel.Registry,
		containments: rel.Containments,
	})
}
