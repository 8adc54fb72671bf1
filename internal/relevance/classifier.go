// Package relevance computes the set of nodes worth keeping in a reduced
// export.
//
// # Overview
//
// A node is kept when a structural predicate matches it, or when a
// Classifier relates it to another node. Classifiers are registered in a
// Registry with an explicit priority; each one contributes one category
// column to the tables of the types it applies to.
//
// # Usage
//
//	reg := relevance.NewRegistry()
//	reg.Register(relevance.ReferencedElements(), 10)
//	reg.Register(relevance.ReferencingElements(), 10)
//	pred, err := relevance.CompilePredicate(relevance.DefaultExpression)
//	ids, err := relevance.Compute(g, root, pred, reg, logger)
package relevance

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/graphtab/gtab/internal/graph"
)

// Classifier relates a node to other nodes under a named category.
type Classifier interface {
	// ID orders category columns.
	ID() string
	// Name is the human-readable category name; see ColumnName.
	Name() string
	// Applies reports whether nodes of type t have this category.
	Applies(t *graph.Type) bool
	// Related returns the nodes related to n.
	Related(g *graph.Graph, n *graph.Node) ([]*graph.Node, error)
}

var (
	nonLetters = regexp.MustCompile(`[^a-zA-Z]`)
	blanks     = regexp.MustCompile(`\s+`)
)

// ColumnName turns a category name into a column name: non-letters become
// blanks and every run of blanks becomes one underscore.
func ColumnName(category string) string {
	s := nonLetters.ReplaceAllString(strings.TrimSpace(category), " ")
	return blanks.ReplaceAllString(s, "_")
}

type registration struct {
	classifier Classifier
	priority   int
	order      int
}

// Registry holds classifiers in priority order.
type Registry struct {
	entries []registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds c. When two classifiers map to the same column name, the one
// with the higher priority wins; ties go to the first registered.
func (r *Registry) Register(c Classifier, priority int) {
	r.entries = append(r.entries, registration{classifier: c, priority: priority, order: len(r.entries)})
	sort.SliceStable(r.entries, func(i, j int) bool {
		if r.entries[i].priority != r.entries[j].priority {
			return r.entries[i].priority > r.entries[j].priority
		}
		return r.entries[i].order < r.entries[j].order
	})
}

// Len returns the number of registered classifiers.
func (r *Registry) Len() int { return len(r.entries) }

// Category is one resolved category column of a type.
type Category struct {
	Column     string
	Classifier Classifier
}

// For returns the categories of type t sorted by classifier ID.
func (r *Registry) For(t *graph.Type) []Category {
	seen := make(map[string]bool)
	var out []Category
	for _, e := range r.entries {
		if !e.classifier.Applies(t) {
			continue
		}
		col := ColumnName(e.classifier.Name())
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true
		out = append(out, Category{Column: col, Classifier: e.classifier})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Classifier.ID() < out[j].Classifier.ID() })
	return out
}

// Related evaluates every category of n. A failing classifier is logged and
// contributes no nodes.
func (r *Registry) Related(g *graph.Graph, n *graph.Node, logger *slog.Logger) map[string][]*graph.Node {
	out := make(map[string][]*graph.Node)
	for _, c := range r.For(n.Type()) {
		related, err := c.Classifier.Related(g, n)
		if err != nil {
			logger.Warn("category computation failed", "category", c.Column, "node", n.ID(), "error", err)
			continue
		}
		out[c.Column] = related
	}
	return out
}
