package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/graphtab/gtab/internal/graph"
)

const metaSavedAt = "saved_at"

// Save replaces the stored graph with g. Every arena node is written,
// detached ones included, so a Load returns an identical arena.
func (db *DB) Save(ctx context.Context, g *graph.Graph) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"refs", "attrs", "nodes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	insertNode, err := tx.PrepareContext(ctx, `
	INSERT INTO nodes (id, type, container_id, container_feature, position, is_root)
	VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare node insert: %w", err)
	}
	defer insertNode.Close()

	insertAttr, err := tx.PrepareContext(ctx, `
	INSERT INTO attrs (node_id, feature, position, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare attribute insert: %w", err)
	}
	defer insertAttr.Close()

	insertRef, err := tx.PrepareContext(ctx, `
	INSERT INTO refs (node_id, feature, position, target_id) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare reference insert: %w", err)
	}
	defer insertRef.Close()

	rootRank := make(map[string]int)
	for i, r := range g.Roots() {
		rootRank[r.ID()] = i
	}

	for _, n := range g.Nodes() {
		parent, feature := n.Container()
		position := 0
		if rank, ok := rootRank[n.ID()]; ok {
			position = rank
		} else if p, ok := g.Lookup(parent); ok {
			position = slices.Index(p.Refs(feature), n.ID())
		}
		if _, err := insertNode.ExecContext(ctx,
			n.ID(),
			n.Type().QualifiedName(),
			nullString(parent),
			nullString(feature),
			position,
			n.IsRoot(),
		); err != nil {
			return fmt.Errorf("failed to save node %s: %w", n.ID(), err)
		}

		for _, f := range n.Type().Features() {
			switch f.Kind {
			case graph.KindAttribute:
				if !n.HasAttr(f.Name) {
					continue
				}
				if _, err := insertAttr.ExecContext(ctx, n.ID(), f.Name, 0, graph.FormatValue(n.Attr(f.Name))); err != nil {
					return fmt.Errorf("failed to save %s.%s: %w", n.ID(), f.Name, err)
				}
			case graph.KindListAttribute:
				for i, v := range n.List(f.Name) {
					if _, err := insertAttr.ExecContext(ctx, n.ID(), f.Name, i, graph.FormatValue(v)); err != nil {
						return fmt.Errorf("failed to save %s.%s: %w", n.ID(), f.Name, err)
					}
				}
			case graph.KindReference, graph.KindListReference:
				for i, target := range n.Refs(f.Name) {
					if _, err := insertRef.ExecContext(ctx, n.ID(), f.Name, i, target); err != nil {
						return fmt.Errorf("failed to save %s.%s: %w", n.ID(), f.Name, err)
					}
				}
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO meta (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaSavedAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to record save time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Load rebuilds the stored graph against s. Stored types and features must
// exist in s.
func (db *DB) Load(ctx context.Context, s *graph.Schema, opts ...graph.Option) (*graph.Graph, error) {
	g := graph.New(s, opts...)

	rows, err := db.conn.QueryContext(ctx, `
	SELECT id, type, is_root FROM nodes ORDER BY is_root DESC, position, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	var roots []string
	for rows.Next() {
		var id, typ string
		var root bool
		if err := rows.Scan(&id, &typ, &root); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if _, err := g.CreateWithID(typ, id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to load node %s: %w", id, err)
		}
		if root {
			roots = append(roots, id)
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to iterate nodes: %w", err)
	}
	for _, id := range roots {
		if err := g.MarkRoot(id); err != nil {
			return nil, fmt.Errorf("failed to load root %s: %w", id, err)
		}
	}

	attrs, err := db.values(ctx, "SELECT node_id, feature, value FROM attrs ORDER BY node_id, feature, position")
	if err != nil {
		return nil, fmt.Errorf("failed to load attributes: %w", err)
	}
	for _, v := range attrs {
		n, f, err := stored(g, v.node, v.feature)
		if err != nil {
			return nil, err
		}
		values := make([]any, 0, len(v.values))
		for _, text := range v.values {
			parsed, err := f.ValueType.Parse(text, f.Literals)
			if err != nil {
				return nil, fmt.Errorf("failed to load %s.%s: %w", v.node, v.feature, err)
			}
			values = append(values, parsed)
		}
		if f.Kind == graph.KindListAttribute {
			err = g.SetList(n.ID(), f.Name, values)
		} else {
			err = g.SetAttr(n.ID(), f.Name, values[0])
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s.%s: %w", v.node, v.feature, err)
		}
	}

	refs, err := db.values(ctx, "SELECT node_id, feature, target_id FROM refs ORDER BY node_id, feature, position")
	if err != nil {
		return nil, fmt.Errorf("failed to load references: %w", err)
	}
	for _, v := range refs {
		n, f, err := stored(g, v.node, v.feature)
		if err != nil {
			return nil, err
		}
		if f.Kind == graph.KindListReference {
			err = g.SetRefs(n.ID(), f.Name, v.values)
		} else {
			err = g.SetRef(n.ID(), f.Name, v.values[0])
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load %s.%s: %w", v.node, v.feature, err)
		}
	}
	return g, nil
}

// featureValues is one node feature with its stored cells in position order.
type featureValues struct {
	node    string
	feature string
	values  []string
}

func (db *DB) values(ctx context.Context, query string) ([]featureValues, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	var out []featureValues
	for rows.Next() {
		var node, feature, value string
		if err := rows.Scan(&node, &feature, &value); err != nil {
			rows.Close()
			return nil, err
		}
		if last := len(out) - 1; last >= 0 && out[last].node == node && out[last].feature == feature {
			out[last].values = append(out[last].values, value)
			continue
		}
		out = append(out, featureValues{node: node, feature: feature, values: []string{value}})
	}
	return out, closeRows(rows)
}

func stored(g *graph.Graph, id, feature string) (*graph.Node, *graph.Feature, error) {
	n, ok := g.Lookup(id)
	if !ok {
		return nil, nil, fmt.Errorf("stored value refers to unknown node %s", id)
	}
	f, ok := n.Type().Feature(feature)
	if !ok {
		return nil, nil, fmt.Errorf("stored feature %s.%s is not in the schema", n.Type().QualifiedName(), feature)
	}
	return n, f, nil
}

// Stats summarizes the stored graph.
type Stats struct {
	Nodes      int
	Roots      int
	Attributes int
	References int
	// Types counts nodes per qualified type name.
	Types map[string]int
	// SavedAt is zero when the graph was never saved.
	SavedAt time.Time
}

// Stats returns counts over the stored graph.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Types: make(map[string]int)}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM nodes", &st.Nodes},
		{"SELECT COUNT(*) FROM nodes WHERE is_root = 1", &st.Roots},
		{"SELECT COUNT(*) FROM attrs", &st.Attributes},
		{"SELECT COUNT(*) FROM refs", &st.References},
	}
	for _, c := range counts {
		if err := db.conn.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count: %w", err)
		}
	}

	rows, err := db.conn.QueryContext(ctx, "SELECT type, COUNT(*) FROM nodes GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("failed to count types: %w", err)
	}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan type count: %w", err)
		}
		st.Types[typ] = n
	}
	if err := closeRows(rows); err != nil {
		return nil, fmt.Errorf("failed to iterate type counts: %w", err)
	}

	var savedAt string
	err = db.conn.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaSavedAt).Scan(&savedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to read save time: %w", err)
	default:
		if t, err := time.Parse(time.RFC3339, savedAt); err == nil {
			st.SavedAt = t
		}
	}
	return st, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
