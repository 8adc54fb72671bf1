package relevance

import (
	"github.com/graphtab/gtab/internal/graph"
)

// Built-in classifier IDs.
const (
	IDReferenced  = "builtin.referenced"
	IDReferencing = "builtin.referencing"
	IDContainer   = "builtin.container"
)

type funcClassifier struct {
	id, name string
	applies  func(*graph.Type) bool
	related  func(*graph.Graph, *graph.Node) ([]*graph.Node, error)
}

func (c *funcClassifier) ID() string   { return c.id }
func (c *funcClassifier) Name() string { return c.name }

func (c *funcClassifier) Applies(t *graph.Type) bool {
	if c.applies == nil {
		return true
	}
	return c.applies(t)
}

func (c *funcClassifier) Related(g *graph.Graph, n *graph.Node) ([]*graph.Node, error) {
	return c.related(g, n)
}

// NewClassifier builds a classifier from functions. A nil applies matches
// every type.
func NewClassifier(id, name string, applies func(*graph.Type) bool, related func(*graph.Graph, *graph.Node) ([]*graph.Node, error)) Classifier {
	return &funcClassifier{id: id, name: name, applies: applies, related: related}
}

// ReferencedElements relates a node to the live targets of its
// non-containment references.
func ReferencedElements() Classifier {
	return NewClassifier(IDReferenced, "Referenced Elements",
		func(t *graph.Type) bool { return len(t.References()) > 0 },
		func(g *graph.Graph, n *graph.Node) ([]*graph.Node, error) {
			var out []*graph.Node
			seen := make(map[string]bool)
			for _, f := range n.Type().References() {
				for _, id := range n.Refs(f.Name) {
					if target, ok := g.Node(id); ok && !seen[id] {
						seen[id] = true
						out = append(out, target)
					}
				}
			}
			return out, nil
		})
}

// ReferencingElements relates a node to the live nodes referencing it.
func ReferencingElements() Classifier {
	return NewClassifier(IDReferencing, "Referencing Elements", nil,
		func(g *graph.Graph, n *graph.Node) ([]*graph.Node, error) {
			return g.Referrers(n.ID()), nil
		})
}

// ParentElement relates a node to its container.
func ParentElement() Classifier {
	return NewClassifier(IDContainer, "Parent Element", nil,
		func(g *graph.Graph, n *graph.Node) ([]*graph.Node, error) {
			id, _ := n.Container()
			if parent, ok := g.Node(id); ok {
				return []*graph.Node{parent}, nil
			}
			return nil, nil
		})
}

// Builtins returns the built-in classifiers keyed by ID.
func Builtins() map[string]Classifier {
	return map[string]Classifier{
		IDReferenced:  ReferencedElements(),
		IDReferencing: ReferencingElements(),
		IDContainer:   ParentElement(),
	}
}
