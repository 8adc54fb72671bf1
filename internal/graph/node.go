package graph

import "maps"

// Node is one typed instance in the arena. Nodes are mutated only through
// the owning Graph so that every change can be recorded.
type Node struct {
	id  string
	typ *Type

	attrs map[string]any
	lists map[string][]any
	refs  map[string][]string

	container        string
	containerFeature string
	root             bool
}

func newNode(id string, t *Type) *Node {
	return &Node{
		id:    id,
		typ:   t,
		attrs: make(map[string]any),
		lists: make(map[string][]any),
		refs:  make(map[string][]string),
	}
}

// ID returns the stable identifier.
func (n *Node) ID() string { return n.id }

// Type returns the node type.
func (n *Node) Type() *Type { return n.typ }

// IsRoot reports whether the node is a graph root.
func (n *Node) IsRoot() bool { return n.root }

// Container returns the id of the containing node and the containment
// feature holding this node. Both are empty for roots and detached nodes.
func (n *Node) Container() (id, feature string) {
	return n.container, n.containerFeature
}

// Attr returns the value of a single-valued attribute, or the feature's
// default when the attribute was never set.
func (n *Node) Attr(name string) any {
	if v, ok := n.attrs[name]; ok {
		return v
	}
	if f, ok := n.typ.Feature(name); ok {
		return f.Default
	}
	return nil
}

// HasAttr reports whether the attribute was set explicitly.
func (n *Node) HasAttr(name string) bool {
	_, ok := n.attrs[name]
	return ok
}

// List returns a copy of a multi-valued attribute.
func (n *Node) List(name string) []any {
	return append([]any(nil), n.lists[name]...)
}

// Ref returns the target id of a single-valued reference, or "".
func (n *Node) Ref(name string) string {
	if ids := n.refs[name]; len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// Refs returns a copy of the target ids of a reference.
func (n *Node) Refs(name string) []string {
	return append([]string(nil), n.refs[name]...)
}

// Value returns the feature value in its natural shape: any for attributes,
// []any for list attributes, string for references, []string for list
// references.
func (n *Node) Value(f *Feature) any {
	switch f.Kind {
	case KindAttribute:
		return n.Attr(f.Name)
	case KindListAttribute:
		return n.List(f.Name)
	case KindReference:
		return n.Ref(f.Name)
	case KindListReference:
		return n.Refs(f.Name)
	}
	return nil
}

func (n *Node) clone() Node {
	c := *n
	c.attrs = maps.Clone(n.attrs)
	c.lists = make(map[string][]any, len(n.lists))
	for k, v := range n.lists {
		c.lists[k] = append([]any(nil), v...)
	}
	c.refs = make(map[string][]string, len(n.refs))
	for k, v := range n.refs {
		c.refs[k] = append([]string(nil), v...)
	}
	return c
}

func (n *Node) hasRef(feature, id string) bool {
	for _, r := range n.refs[feature] {
		if r == id {
			return true
		}
	}
	return false
}

func (n *Node) removeRef(feature, id string) {
	ids := n.refs[feature]
	out := ids[:0:0]
	for _, r := range ids {
		if r != id {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		delete(n.refs, feature)
		return
	}
	n.refs[feature] = out
}
