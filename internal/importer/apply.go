package importer

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/table"
)

// applyRow sets every feature column of row on n.
func (s *state) applyRow(t *table.Table, cols []string, row *table.Row, n *graph.Node) error {
	for _, col := range cols {
		f, ok := n.Type().Feature(col)
		if !ok || f.Derived {
			return &convert.Error{
				Kind:   convert.KindUnknownFeature,
				File:   t.Name,
				Line:   row.Line,
				Column: col,
				Err:    fmt.Errorf("type %s has no feature named %q", n.Type().QualifiedName(), col),
			}
		}
		if err := s.apply(n, f, row.Get(col)); err != nil {
			return err.At(t.Name, row.Line)
		}
	}
	return nil
}

func (s *state) apply(n *graph.Node, f *graph.Feature, cell string) *convert.Error {
	switch f.Kind {
	case graph.KindAttribute:
		return s.setAttr(n, f, cell)
	case graph.KindListAttribute:
		return s.setList(n, f, cell)
	case graph.KindReference:
		return s.setRef(n, f, cell)
	case graph.KindListReference:
		return s.setRefs(n, f, cell)
	}
	return featureError(convert.KindUnknownFeature, f, "", fmt.Errorf("unsupported feature kind %v", f.Kind))
}

func featureError(kind convert.Kind, f *graph.Feature, expected string, err error) *convert.Error {
	return &convert.Error{Kind: kind, Feature: f.Name, Expected: expected, Err: err}
}

func expected(f *graph.Feature) string {
	if f.ValueType == graph.TypeEnum {
		return "one of " + strings.Join(f.Literals, ", ")
	}
	return string(f.ValueType)
}

// placementError classifies a failed reference write.
func placementError(f *graph.Feature, err error) *convert.Error {
	var mismatch *graph.TypeMismatchError
	if errors.As(err, &mismatch) {
		return featureError(convert.KindType, f, mismatch.Expected, err)
	}
	return featureError(convert.KindType, f, f.Target, err)
}

func (s *state) setAttr(n *graph.Node, f *graph.Feature, cell string) *convert.Error {
	var v any
	if cell != "" {
		parsed, err := f.ValueType.Parse(cell, f.Literals)
		if err != nil {
			return featureError(convert.KindType, f, expected(f), err)
		}
		v = parsed
	}
	if err := s.im.g.SetAttr(n.ID(), f.Name, v); err != nil {
		return featureError(convert.KindType, f, expected(f), err)
	}
	return nil
}

func (s *state) setList(n *graph.Node, f *graph.Feature, cell string) *convert.Error {
	items := table.DecodeList(cell)
	values := make([]any, 0, len(items))
	for _, item := range items {
		v, err := f.ValueType.Parse(item, f.Literals)
		if err != nil {
			return featureError(convert.KindType, f, expected(f), err)
		}
		values = append(values, v)
	}
	if err := s.im.g.SetList(n.ID(), f.Name, values); err != nil {
		return featureError(convert.KindType, f, expected(f), err)
	}
	return nil
}

// target resolves a referenced identifier. ok is false when the cell must be
// skipped: an unknown identifier in a containment may name a node deleted
// earlier in the import.
func (s *state) target(n *graph.Node, f *graph.Feature, id string) (t *graph.Node, ok bool, err *convert.Error) {
	if t := s.resolve(id); t != nil {
		return t, true, nil
	}
	if f.Containment {
		s.im.logger.Debug("skipping unknown contained element", "node", n.ID(), "feature", f.Name, "id", id)
		return nil, false, nil
	}
	return nil, false, featureError(convert.KindIdentity, f, "", fmt.Errorf("no element with identifier %q", id))
}

func (s *state) detached(f *graph.Feature, ids ...string) {
	if !f.Containment {
		return
	}
	for _, id := range ids {
		if n, ok := s.im.g.Lookup(id); ok && !s.im.g.IsLive(id) {
			s.unattached[id] = n
		}
	}
}

func (s *state) setRef(n *graph.Node, f *graph.Feature, cell string) *convert.Error {
	cur := n.Ref(f.Name)
	if cell == "" {
		if cur == "" {
			return nil
		}
		if err := s.im.g.SetRef(n.ID(), f.Name, ""); err != nil {
			return placementError(f, err)
		}
		s.detached(f, cur)
		return nil
	}

	t, ok, err := s.target(n, f, cell)
	if err != nil || !ok {
		return err
	}
	if t.ID() == cur {
		return nil
	}
	if err := s.im.g.SetRef(n.ID(), f.Name, t.ID()); err != nil {
		return placementError(f, err)
	}
	if cur != "" {
		s.detached(f, cur)
	}
	return nil
}

// setRefs reconciles a list reference with the identifiers of cell: current
// members that are still listed keep their order, new ones are appended in
// cell order, the others are removed.
func (s *state) setRefs(n *graph.Node, f *graph.Feature, cell string) *convert.Error {
	cur := n.Refs(f.Name)

	var want []string
	seen := make(map[string]bool)
	for _, id := range table.DecodeList(cell) {
		t, ok, err := s.target(n, f, id)
		if err != nil {
			return err
		}
		if ok && !seen[t.ID()] {
			seen[t.ID()] = true
			want = append(want, t.ID())
		}
	}

	var next, removed []string
	for _, id := range cur {
		if seen[id] {
			next = append(next, id)
		} else {
			removed = append(removed, id)
		}
	}
	for _, id := range want {
		if !slices.Contains(cur, id) {
			next = append(next, id)
		}
	}
	if slices.Equal(next, cur) {
		return nil
	}

	if err := s.im.g.SetRefs(n.ID(), f.Name, next); err != nil {
		return placementError(f, err)
	}
	s.detached(f, removed...)
	return nil
}
