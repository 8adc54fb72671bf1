package snapshot

import (
	"path/filepath"
	"slices"
	"sort"

	"github.com/graphtab/gtab/internal/table"
)

// TypeDiff lists the identifiers that differ between two versions of one table.
type TypeDiff struct {
	Table   string
	Added   []string
	Removed []string
	Changed []string
}

// Empty reports whether nothing differs.
func (d TypeDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares the tables in dir with the audit tables in dir/after.
// Rows are matched by identifier; bookkeeping columns are ignored so that
// refreshed stamps do not count as changes. Rows without an identifier are
// skipped.
func Diff(dir string, f *table.Format) ([]TypeDiff, error) {
	return DiffDirs(dir, filepath.Join(dir, table.AfterDir), f)
}

// DiffDirs compares the tables of two directories.
func DiffDirs(oldDir, newDir string, f *table.Format) ([]TypeDiff, error) {
	oldNames, err := table.List(oldDir)
	if err != nil {
		return nil, err
	}
	newNames, err := table.List(newDir)
	if err != nil {
		return nil, err
	}
	names := append(slices.Clone(oldNames), newNames...)
	sort.Strings(names)
	names = slices.Compact(names)

	var out []TypeDiff
	for _, name := range names {
		oldRows, err := loadRows(filepath.Join(oldDir, name), slices.Contains(oldNames, name), f)
		if err != nil {
			return nil, err
		}
		newRows, err := loadRows(filepath.Join(newDir, name), slices.Contains(newNames, name), f)
		if err != nil {
			return nil, err
		}
		d := TypeDiff{Table: name}
		for id, nr := range newRows {
			or, ok := oldRows[id]
			switch {
			case !ok:
				d.Added = append(d.Added, id)
			case !sameContent(or, nr):
				d.Changed = append(d.Changed, id)
			}
		}
		for id := range oldRows {
			if _, ok := newRows[id]; !ok {
				d.Removed = append(d.Removed, id)
			}
		}
		sort.Strings(d.Added)
		sort.Strings(d.Removed)
		sort.Strings(d.Changed)
		if !d.Empty() {
			out = append(out, d)
		}
	}
	return out, nil
}

func loadRows(path string, exists bool, f *table.Format) (map[string]map[string]string, error) {
	rows := make(map[string]map[string]string)
	if !exists {
		return rows, nil
	}
	t, err := table.ReadFile(path, f)
	if err != nil {
		return nil, err
	}
	for _, r := range t.Rows {
		id := r.Get(table.ColID)
		if id == "" || table.IsTempID(id) {
			continue
		}
		content := make(map[string]string)
		for _, c := range t.Columns() {
			if v := r.Get(c); v != "" {
				content[c] = v
			}
		}
		rows[id] = content
	}
	return rows, nil
}

func sameContent(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Summary counts the rows and pending markers of one table.
type Summary struct {
	Table    string
	Rows     int
	ToCreate int
	ToUpdate int
	ToDelete int
}

// Pending reports whether any row carries a marker.
func (s Summary) Pending() bool {
	return s.ToCreate+s.ToUpdate+s.ToDelete > 0
}

// Summarize reads every table in dir and counts its markers.
func Summarize(dir string, f *table.Format) ([]Summary, error) {
	names, err := table.List(dir)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(names))
	for _, name := range names {
		t, err := table.ReadFile(filepath.Join(dir, name), f)
		if err != nil {
			return nil, err
		}
		s := Summary{Table: name, Rows: len(t.Rows)}
		for _, r := range t.Rows {
			if table.IsMarked(r.Get(table.ColToCreate)) {
				s.ToCreate++
			}
			if table.IsMarked(r.Get(table.ColToUpdate)) {
				s.ToUpdate++
			}
			if table.IsMarked(r.Get(table.ColToDelete)) {
				s.ToDelete++
			}
		}
		out = append(out, s)
	}
	return out, nil
}
