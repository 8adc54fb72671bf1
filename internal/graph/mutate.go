package graph

import (
	"fmt"
	"slices"
)

func (g *Graph) feature(id, name string, kinds ...FeatureKind) (*Node, *Feature, error) {
	n, ok := g.nodes[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	f, ok := n.typ.Feature(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s has no feature %s", ErrUnknownFeature, n.typ.QualifiedName(), name)
	}
	if !slices.Contains(kinds, f.Kind) {
		return nil, nil, fmt.Errorf("%w: %s.%s is a %s", ErrWrongKind, n.typ.QualifiedName(), name, f.Kind)
	}
	return n, f, nil
}

// SetAttr sets a single-valued attribute. A nil value unsets it, after which
// Attr reports the feature default.
func (g *Graph) SetAttr(id, feature string, value any) error {
	n, f, err := g.feature(id, feature, KindAttribute)
	if err != nil {
		return err
	}
	value = normalize(value)
	if value != nil {
		if err := f.ValueType.Check(value, f.Literals); err != nil {
			return &TypeMismatchError{Feature: f.Name, Expected: string(f.ValueType), Actual: err.Error()}
		}
	}
	g.saveNode(n)
	if value == nil {
		delete(n.attrs, f.Name)
	} else {
		n.attrs[f.Name] = value
	}
	return nil
}

// SetList replaces the values of a multi-valued attribute.
func (g *Graph) SetList(id, feature string, values []any) error {
	n, f, err := g.feature(id, feature, KindListAttribute)
	if err != nil {
		return err
	}
	out := make([]any, 0, len(values))
	for _, v := range values {
		v = normalize(v)
		if err := f.ValueType.Check(v, f.Literals); err != nil {
			return &TypeMismatchError{Feature: f.Name, Expected: string(f.ValueType), Actual: err.Error()}
		}
		out = append(out, v)
	}
	g.saveNode(n)
	if len(out) == 0 {
		delete(n.lists, f.Name)
	} else {
		n.lists[f.Name] = out
	}
	return nil
}

// SetRef sets a single-valued reference. An empty target unsets it; for a
// containment the previous child is detached, not deleted.
func (g *Graph) SetRef(id, feature, target string) error {
	n, f, err := g.feature(id, feature, KindReference)
	if err != nil {
		return err
	}
	var targets []string
	if target != "" {
		targets = []string{target}
	}
	return g.setRefs(n, f, targets)
}

// SetRefs replaces the targets of a multi-valued reference. Duplicate ids
// keep their first position. For containments, new members are moved out of
// their previous container and members no longer listed are detached.
func (g *Graph) SetRefs(id, feature string, targets []string) error {
	n, f, err := g.feature(id, feature, KindListReference)
	if err != nil {
		return err
	}
	return g.setRefs(n, f, targets)
}

func (g *Graph) setRefs(n *Node, f *Feature, targets []string) error {
	var next []string
	for _, t := range targets {
		if t == "" || slices.Contains(next, t) {
			continue
		}
		next = append(next, t)
	}

	for _, t := range next {
		target, ok := g.nodes[t]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, t)
		}
		if !target.typ.IsA(f.Target) {
			return &TypeMismatchError{Feature: f.Name, Expected: f.Target, Actual: target.typ.QualifiedName()}
		}
		if !f.Containment {
			continue
		}
		if target.root {
			return fmt.Errorf("%w: %s", ErrRootContainment, t)
		}
		if g.contains(target, n) {
			return fmt.Errorf("%w: %s would contain itself", ErrContainmentCycle, t)
		}
	}

	prev := n.refs[f.Name]
	if f.Containment {
		for _, old := range prev {
			if slices.Contains(next, old) {
				continue
			}
			if child, ok := g.nodes[old]; ok {
				g.saveNode(child)
				child.container, child.containerFeature = "", ""
			}
		}
		for _, t := range next {
			child := g.nodes[t]
			if child.container == n.id && child.containerFeature == f.Name {
				continue
			}
			g.detach(child)
			g.saveNode(child)
			child.container, child.containerFeature = n.id, f.Name
		}
	}

	g.saveNode(n)
	if len(next) == 0 {
		delete(n.refs, f.Name)
	} else {
		n.refs[f.Name] = next
	}
	return nil
}

// contains reports whether ancestor is n or transitively contains n.
func (g *Graph) contains(ancestor, n *Node) bool {
	for steps := 0; n != nil && steps <= len(g.nodes); steps++ {
		if n == ancestor {
			return true
		}
		if n.container == "" {
			return false
		}
		n = g.nodes[n.container]
	}
	return false
}

// detach removes n from its current container without deleting it.
func (g *Graph) detach(n *Node) {
	if n.container == "" {
		return
	}
	if parent, ok := g.nodes[n.container]; ok {
		g.saveNode(parent)
		parent.removeRef(n.containerFeature, n.id)
	}
	g.saveNode(n)
	n.container, n.containerFeature = "", ""
}

// Detach removes the node from its container, leaving it unattached.
func (g *Graph) Detach(id string) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	g.detach(n)
	return nil
}

// Delete removes the node, everything it contains, and every non-containment
// reference to any of them.
func (g *Graph) Delete(id string) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	doomed := g.subtree(n)
	gone := make(map[string]bool, len(doomed))
	for _, d := range doomed {
		gone[d.id] = true
	}

	g.detach(n)
	if n.root {
		g.saveRoots()
		g.roots = slices.DeleteFunc(slices.Clone(g.roots), func(r string) bool { return r == n.id })
	}

	for _, other := range g.Nodes() {
		if gone[other.id] {
			continue
		}
		for _, f := range other.typ.Features() {
			if !f.IsReference() || f.Containment {
				continue
			}
			ids := other.refs[f.Name]
			if !slices.ContainsFunc(ids, func(r string) bool { return gone[r] }) {
				continue
			}
			g.saveNode(other)
			kept := slices.DeleteFunc(slices.Clone(ids), func(r string) bool { return gone[r] })
			if len(kept) == 0 {
				delete(other.refs, f.Name)
			} else {
				other.refs[f.Name] = kept
			}
		}
	}

	for _, d := range doomed {
		g.record(&removeChange{node: d})
		delete(g.nodes, d.id)
	}
	return nil
}
