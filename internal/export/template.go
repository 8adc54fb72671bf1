package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/graph"
	"github.com/graphtab/gtab/internal/progress"
	"github.com/graphtab/gtab/internal/relevance"
	"github.com/graphtab/gtab/internal/table"
)

// Metamodel table columns and feature kinds.
const (
	MetaClassName     = "class_name"
	MetaFeatureType   = "feature_type"
	MetaFeatureName   = "feature_name"
	MetaAttributeType = "attribute_type"

	MetaAttribute = "attribute"
	MetaReference = "reference"
)

// GenerateTemplates writes a header-only table for every concrete type of s
// into dir, replacing existing tables of the same name. It returns the file
// names written.
func GenerateTemplates(m *progress.Monitor, dir string, f *table.Format, s *graph.Schema) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, convert.Wrap(convert.KindIO, fmt.Errorf("failed to create directory %s: %w", dir, err))
	}
	types := s.ConcreteTypes()
	m.SetWorkRemaining(len(types))

	var files []string
	for _, t := range types {
		if err := m.Canceled(); err != nil {
			return files, err
		}
		file := table.FileName(t.QualifiedName())
		if err := table.WriteFile(filepath.Join(dir, file), f, Header(t), nil); err != nil {
			return files, err
		}
		files = append(files, file)
		m.Worked(1)
	}
	return files, nil
}

// GenerateMetamodel writes the metamodel table into dir: one row per feature
// of every concrete type, and one reference row per category of reg that
// applies to the type. reg may be nil.
func GenerateMetamodel(m *progress.Monitor, dir string, f *table.Format, s *graph.Schema, reg *relevance.Registry) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", convert.Wrap(convert.KindIO, fmt.Errorf("failed to create directory %s: %w", dir, err))
	}
	types := s.ConcreteTypes()
	m.SetWorkRemaining(len(types))

	var rows [][]string
	for _, t := range types {
		if err := m.Canceled(); err != nil {
			return "", err
		}
		class := t.QualifiedName()
		for _, feat := range t.Features() {
			if feat.IsAttribute() {
				rows = append(rows, []string{class, MetaAttribute, feat.Name, string(feat.ValueType)})
			} else {
				rows = append(rows, []string{class, MetaReference, feat.Name, ""})
			}
		}
		if reg != nil {
			for _, c := range reg.For(t) {
				rows = append(rows, []string{class, MetaReference, c.Classifier.Name(), ""})
			}
		}
		m.Worked(1)
	}

	path := filepath.Join(dir, table.MetamodelCSV)
	header := []string{MetaClassName, MetaFeatureType, MetaFeatureName, MetaAttributeType}
	if err := table.WriteFile(path, f, header, rows); err != nil {
		return "", err
	}
	return path, nil
}
