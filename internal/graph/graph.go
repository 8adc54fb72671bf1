package graph

import (
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"
)

// Graph is an arena of typed nodes keyed by identifier.
type Graph struct {
	schema *Schema
	nodes  map[string]*Node
	roots  []string
	tx     *Tx
	newID  func() string
}

// Option configures a Graph.
type Option func(*Graph)

// WithIDGenerator replaces the UUID generator used by Create.
func WithIDGenerator(gen func() string) Option {
	return func(g *Graph) { g.newID = gen }
}

// New creates an empty graph over a resolved schema.
func New(schema *Schema, opts ...Option) *Graph {
	g := &Graph{
		schema: schema,
		nodes:  make(map[string]*Node),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Schema returns the graph's schema.
func (g *Graph) Schema() *Schema { return g.schema }

// Len returns the number of nodes in the arena, live or not.
func (g *Graph) Len() int { return len(g.nodes) }

// Create instantiates a new, unattached node of the named type with a fresh
// identifier.
func (g *Graph) Create(typeName string) (*Node, error) {
	return g.CreateWithID(typeName, g.newID())
}

// CreateWithID instantiates a new, unattached node with a caller-chosen id.
func (g *Graph) CreateWithID(typeName, id string) (*Node, error) {
	t, ok := g.schema.Type(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	if t.Abstract {
		return nil, fmt.Errorf("%w: %s", ErrAbstractType, typeName)
	}
	if id == "" {
		return nil, fmt.Errorf("cannot create %s with an empty id", typeName)
	}
	if _, exists := g.nodes[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	n := newNode(id, t)
	g.nodes[id] = n
	g.record(&insertChange{id: id})
	return n, nil
}

// AddRoot creates a node of the named type and makes it a root.
func (g *Graph) AddRoot(typeName string) (*Node, error) {
	n, err := g.Create(typeName)
	if err != nil {
		return nil, err
	}
	if err := g.MarkRoot(n.id); err != nil {
		return nil, err
	}
	return n, nil
}

// MarkRoot turns a detached node into a root.
func (g *Graph) MarkRoot(id string) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if n.root {
		return nil
	}
	if n.container != "" {
		return fmt.Errorf("node %s is contained by %s and cannot become a root", id, n.container)
	}
	g.saveNode(n)
	g.saveRoots()
	n.root = true
	g.roots = append(g.roots, id)
	return nil
}

// Node returns the live node with the given id. Nodes that exist in the arena
// but are detached from every root are not returned.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	if !ok || !g.isLive(n) {
		return nil, false
	}
	return n, true
}

// Lookup returns any node in the arena, live or detached.
func (g *Graph) Lookup(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// IsLive reports whether id names a root or a node whose container chain
// reaches a root.
func (g *Graph) IsLive(id string) bool {
	n, ok := g.nodes[id]
	return ok && g.isLive(n)
}

func (g *Graph) isLive(n *Node) bool {
	return g.top(n).root
}

// top follows the container chain to its end.
func (g *Graph) top(n *Node) *Node {
	seen := 0
	for n.container != "" && seen <= len(g.nodes) {
		parent, ok := g.nodes[n.container]
		if !ok {
			break
		}
		n = parent
		seen++
	}
	return n
}

// RootOf returns the root containing the node, if the node is live.
func (g *Graph) RootOf(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	top := g.top(n)
	if !top.root {
		return nil, false
	}
	return top, true
}

// Roots returns the roots in creation order.
func (g *Graph) Roots() []*Node {
	out := make([]*Node, 0, len(g.roots))
	for _, id := range g.roots {
		out = append(out, g.nodes[id])
	}
	return out
}

// Nodes returns every arena node sorted by id.
func (g *Graph) Nodes() []*Node {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}

// Children returns the nodes directly contained by n, ordered by containment
// feature name and then by position.
func (g *Graph) Children(n *Node) []*Node {
	var out []*Node
	for _, f := range n.typ.Containments() {
		for _, id := range n.refs[f.Name] {
			if child, ok := g.nodes[id]; ok {
				out = append(out, child)
			}
		}
	}
	return out
}

// Walk visits n and its descendants in pre-order. Returning an error from fn
// stops the walk and returns that error.
func (g *Graph) Walk(n *Node, fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, child := range g.Children(n) {
		if err := g.Walk(child, fn); err != nil {
			return err
		}
	}
	return nil
}

// Referrers returns the live nodes holding a non-containment reference to id,
// sorted by id.
func (g *Graph) Referrers(id string) []*Node {
	var out []*Node
	for _, n := range g.Nodes() {
		if !g.isLive(n) {
			continue
		}
		for _, f := range n.typ.References() {
			if n.hasRef(f.Name, id) {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// subtree returns n and every node it transitively contains.
func (g *Graph) subtree(n *Node) []*Node {
	var out []*Node
	var visit func(*Node)
	visit = func(x *Node) {
		out = append(out, x)
		for _, f := range x.typ.Features() {
			if !f.Containment {
				continue
			}
			for _, id := range x.refs[f.Name] {
				if child, ok := g.nodes[id]; ok && !slices.Contains(out, child) {
					visit(child)
				}
			}
		}
	}
	visit(n)
	return out
}
