package relevance

import (
	"log/slog"
	"sort"

	"github.com/graphtab/gtab/internal/graph"
)

// IDSet is a set of node identifiers.
type IDSet map[string]bool

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool { return s[id] }

// Sorted returns the members in order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Compute walks the tree under root and collects the relevant identifiers:
// every node matching pred, and for every category relation the related
// node together with the node that found it.
func Compute(g *graph.Graph, root *graph.Node, pred *Predicate, reg *Registry, logger *slog.Logger) (IDSet, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ids := make(IDSet)
	var visit func(n *graph.Node, depth int) error
	visit = func(n *graph.Node, depth int) error {
		if pred != nil {
			ok, err := pred.Match(g, n, depth)
			if err != nil {
				return err
			}
			if ok {
				ids[n.ID()] = true
			}
		}
		if reg != nil {
			for _, related := range reg.Related(g, n, logger) {
				for _, r := range related {
					ids[r.ID()] = true
					ids[n.ID()] = true
				}
			}
		}
		for _, child := range g.Children(n) {
			if err := visit(child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(root, 0); err != nil {
		return nil, err
	}
	return ids, nil
}
