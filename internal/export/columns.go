package export

import (
	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/relevance"
	"github.com/graphtab/gtab/internal/table"
)

// column is one feature column of a table: a structural feature or, in a
// relevance export, a category.
type column struct {
	name     string
	feature  *graph.Feature
	category relevance.Classifier
}

// Header returns the export header of type t: the bookkeeping columns, then
// attributes, non-containment references and containments, each group
// sorted by name.
func Header(t *graph.Type) []string {
	return headerOf(featureColumns(t, true))
}

func featureColumns(t *graph.Type, containments bool) []column {
	var cols []column
	for _, f := range t.Attributes() {
		cols = append(cols, column{name: f.Name, feature: f})
	}
	for _, f := range t.References() {
		cols = append(cols, column{name: f.Name, feature: f})
	}
	if containments {
		for _, f := range t.Containments() {
			cols = append(cols, column{name: f.Name, feature: f})
		}
	}
	return cols
}

func headerOf(cols []column) []string {
	header := make([]string, 0, len(table.Bookkeeping)+len(cols))
	header = append(header, table.Bookkeeping...)
	for _, c := range cols {
		header = append(header, c.name)
	}
	return header
}

func (r *run) columns(t *graph.Type) []column {
	if cols, ok := r.cols[t]; ok {
		return cols
	}
	var cols []column
	if r.filter == nil {
		cols = featureColumns(t, true)
	} else {
		cols = r.filter.columns(t)
	}
	r.cols[t] = cols
	return cols
}

func (r *run) keep(id string) bool {
	return id != "" && (r.filter == nil || r.filter.ids.Has(id))
}

func (r *run) cell(n *graph.Node, c column) string {
	if c.category != nil {
		return r.categoryCell(n, c)
	}

	f := c.feature
	switch f.Kind {
	case graph.KindAttribute:
		v := n.Value(f)
		if v == nil {
			return ""
		}
		return graph.FormatValue(v)

	case graph.KindListAttribute:
		values := n.List(f.Name)
		items := make([]string, 0, len(values))
		for _, v := range values {
			items = append(items, graph.FormatValue(v))
		}
		return table.EncodeList(items)

	case graph.KindReference:
		id := n.Ref(f.Name)
		if !r.keep(id) {
			return ""
		}
		r.res.References++
		return id

	case graph.KindListReference:
		var ids []string
		for _, id := range n.Refs(f.Name) {
			if r.keep(id) {
				ids = append(ids, id)
			}
		}
		r.res.References += len(ids)
		return table.EncodeList(ids)
	}
	return ""
}

func (r *run) categoryCell(n *graph.Node, c column) string {
	related, err := c.category.Related(r.e.g, n)
	if err != nil {
		r.e.logger.Warn("category computation failed", "category", c.name, "node", n.ID(), "error", err)
		return ""
	}
	var ids []string
	seen := make(map[string]bool)
	for _, rn := range related {
		if id := rn.ID(); r.keep(id) && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	r.res.References += len(ids)
	return table.EncodeList(ids)
}
