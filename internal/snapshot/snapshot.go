// Package snapshot manages the before/after table copies that let an export
// tell known rows from new ones and let an import leave an audit trail.
//
// # Layout
//
// A fresh export moves every table "T.csv" of the directory to
// "T_before.csv", writes new tables, and removes the shadow copies when done.
// The export that follows an import leaves the imported tables in place as
// the prior state and writes into the "after" sub-directory instead.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/table"
)

// Mode selects which side of an import an export runs on.
type Mode int

const (
	// Fresh is an operator-requested export.
	Fresh Mode = iota
	// AfterImport is the audit export run after a successful import.
	AfterImport
)

func (m Mode) String() string {
	if m == AfterImport {
		return "after-import"
	}
	return "fresh"
}

// Layout locates prior and output tables for one export.
type Layout struct {
	Dir  string
	Mode Mode
}

// OutputDir returns the directory new tables are written to.
func (l Layout) OutputDir() string {
	if l.Mode == AfterImport {
		return filepath.Join(l.Dir, table.AfterDir)
	}
	return l.Dir
}

// OutputPath returns the output path for a table file name.
func (l Layout) OutputPath(file string) string {
	return filepath.Join(l.OutputDir(), file)
}

// PriorPath returns the path of the prior state of a table file name.
func (l Layout) PriorPath(file string) string {
	if l.Mode == AfterImport {
		return filepath.Join(l.Dir, file)
	}
	return filepath.Join(l.Dir, table.BeforeName(file))
}

// PriorTables returns the table file names (not shadow names) that have a
// prior state.
func (l Layout) PriorTables() ([]string, error) {
	if l.Mode == AfterImport {
		return table.List(l.Dir)
	}
	before, err := table.ListBefore(l.Dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(before))
	for _, b := range before {
		out = append(out, b[:len(b)-len(table.BeforeSuffix)]+table.Ext)
	}
	return out, nil
}

// Prepare readies the directory for an export. In Fresh mode every table is
// moved to its shadow name; stale shadows from an interrupted run are
// dropped first. In AfterImport mode the after directory is emptied of
// tables, or created.
func Prepare(l Layout) error {
	if l.Mode == AfterImport {
		return prepareAfter(l)
	}

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return convert.Wrap(convert.KindIO, fmt.Errorf("failed to create directory %s: %w", l.Dir, err))
	}
	if err := removeShadows(l.Dir); err != nil {
		return err
	}
	tables, err := table.List(l.Dir)
	if err != nil {
		return err
	}
	for _, name := range tables {
		src := filepath.Join(l.Dir, name)
		dst := filepath.Join(l.Dir, table.BeforeName(name))
		if err := os.Rename(src, dst); err != nil {
			return conflictOrIO(dst, fmt.Errorf("failed to move %s aside: %w", name, err))
		}
	}
	return nil
}

func prepareAfter(l Layout) error {
	after := l.OutputDir()
	info, err := os.Stat(after)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := os.MkdirAll(after, 0o755); err != nil {
			return conflictOrIO(after, fmt.Errorf("failed to create %s: %w", after, err))
		}
		return nil
	case err != nil:
		return convert.Wrap(convert.KindIO, fmt.Errorf("failed to stat %s: %w", after, err))
	case !info.IsDir():
		return &convert.Error{Kind: convert.KindConflict, File: after,
			Err: errors.New("a file with this name already exists, please delete it")}
	}

	tables, err := table.List(after)
	if err != nil {
		return err
	}
	for _, name := range tables {
		if err := os.Remove(filepath.Join(after, name)); err != nil {
			return convert.Wrap(convert.KindIO, fmt.Errorf("failed to clear %s: %w", name, err))
		}
	}
	return nil
}

// Cleanup removes the shadow copies of a Fresh export. It is a no-op in
// AfterImport mode.
func Cleanup(l Layout) error {
	if l.Mode == AfterImport {
		return nil
	}
	return removeShadows(l.Dir)
}

func removeShadows(dir string) error {
	shadows, err := table.ListBefore(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range shadows {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return convert.Wrap(convert.KindIO, fmt.Errorf("failed to remove shadow tables: %w", errors.Join(errs...)))
	}
	return nil
}

func conflictOrIO(path string, err error) error {
	if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
		return &convert.Error{Kind: convert.KindConflict, File: path, Err: err}
	}
	return convert.Wrap(convert.KindIO, err)
}
