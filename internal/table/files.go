package table

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/graphtab/gtab/internal/convert"
)

// File name conventions.
const (
	Ext          = ".csv"
	BeforeSuffix = "_before" + Ext
	AfterDir     = "after"
	MetamodelCSV = "Metamodel" + Ext
)

// FileName returns the table file name for a qualified type name.
func FileName(qualifiedType string) string {
	return qualifiedType + Ext
}

// BeforeName returns the shadow copy name for a table file name.
func BeforeName(file string) string {
	return strings.TrimSuffix(file, Ext) + BeforeSuffix
}

// TypeName returns the qualified type name encoded in a table file name.
// Shadow copies and the metamodel table are not type tables.
func TypeName(file string) (string, bool) {
	base := filepath.Base(file)
	if !strings.HasSuffix(base, Ext) || strings.HasSuffix(base, BeforeSuffix) || base == MetamodelCSV {
		return "", false
	}
	name := strings.TrimSuffix(base, Ext)
	if !strings.Contains(name, ".") {
		return "", false
	}
	return name, true
}

// List returns the type tables in dir sorted by name. Shadow copies and the
// metamodel table are skipped.
func List(dir string) ([]string, error) {
	return listMatching(dir, func(name string) bool {
		return strings.HasSuffix(name, Ext) && !strings.HasSuffix(name, BeforeSuffix) && name != MetamodelCSV
	})
}

// ListBefore returns the shadow copies in dir sorted by name.
func ListBefore(dir string) ([]string, error) {
	return listMatching(dir, func(name string) bool {
		return strings.HasSuffix(name, BeforeSuffix)
	})
}

func listMatching(dir string, keep func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, convert.Wrap(convert.KindIO, fmt.Errorf("failed to list %s: %w", dir, err))
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && keep(e.Name()) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
