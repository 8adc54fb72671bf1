package graph

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// SchemaFile is the on-disk description of a schema.
//
// Example (YAML):
//
//	packages:
//	  - name: la
//	    types:
//	      - name: LogicalComponent
//	        supertypes: [core.NamedElement]
//	        features:
//	          - {name: ownedFunctions, kind: list-reference, containment: true, target: la.LogicalFunction}
type SchemaFile struct {
	Packages []PackageSpec `yaml:"packages" toml:"packages"`
}

// PackageSpec groups type declarations under one namespace.
type PackageSpec struct {
	Name  string     `yaml:"name" toml:"name"`
	Types []TypeSpec `yaml:"types" toml:"types"`
}

// TypeSpec declares one type.
type TypeSpec struct {
	Name       string        `yaml:"name" toml:"name"`
	Abstract   bool          `yaml:"abstract,omitempty" toml:"abstract,omitempty"`
	Supertypes []string      `yaml:"supertypes,omitempty" toml:"supertypes,omitempty"`
	Features   []FeatureSpec `yaml:"features,omitempty" toml:"features,omitempty"`
}

// FeatureSpec declares one feature. Kind is one of attribute, list-attribute,
// reference, list-reference. Default is written in table text form.
type FeatureSpec struct {
	Name        string    `yaml:"name" toml:"name"`
	Kind        string    `yaml:"kind" toml:"kind"`
	Type        ValueType `yaml:"type,omitempty" toml:"type,omitempty"`
	Containment bool      `yaml:"containment,omitempty" toml:"containment,omitempty"`
	Target      string    `yaml:"target,omitempty" toml:"target,omitempty"`
	Literals    []string  `yaml:"literals,omitempty" toml:"literals,omitempty"`
	Default     *string   `yaml:"default,omitempty" toml:"default,omitempty"`
	Derived     bool      `yaml:"derived,omitempty" toml:"derived,omitempty"`
}

// LoadSchemaFile reads a schema from a .yaml/.yml or .toml file.
func LoadSchemaFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var sf SchemaFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&sf); err != nil {
			return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &sf)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("schema file %s: unknown key %s", path, undecoded[0])
		}
	default:
		return nil, fmt.Errorf("schema file %s: unsupported extension (want .yaml, .yml or .toml)", path)
	}
	return sf.Build()
}

// Build converts the file description into a resolved schema.
func (sf *SchemaFile) Build() (*Schema, error) {
	var types []*Type
	for _, p := range sf.Packages {
		for _, ts := range p.Types {
			t := &Type{Package: p.Name, Name: ts.Name, Abstract: ts.Abstract, Supertypes: ts.Supertypes}
			for _, fs := range ts.Features {
				f, err := fs.build()
				if err != nil {
					return nil, fmt.Errorf("type %s.%s: %w", p.Name, ts.Name, err)
				}
				t.own = append(t.own, f)
			}
			types = append(types, t)
		}
	}
	return NewSchema(types...)
}

func (fs FeatureSpec) build() (*Feature, error) {
	f := &Feature{
		Name:        fs.Name,
		Containment: fs.Containment,
		ValueType:   fs.Type,
		Target:      fs.Target,
		Literals:    fs.Literals,
		Derived:     fs.Derived,
	}
	switch fs.Kind {
	case "attribute", "":
		f.Kind = KindAttribute
	case "list-attribute":
		f.Kind = KindListAttribute
	case "reference":
		f.Kind = KindReference
	case "list-reference":
		f.Kind = KindListReference
	default:
		return nil, fmt.Errorf("feature %s: unknown kind %q", fs.Name, fs.Kind)
	}
	if f.IsAttribute() {
		if f.ValueType == "" {
			f.ValueType = TypeString
		}
		if fs.Containment || fs.Target != "" {
			return nil, fmt.Errorf("feature %s: attributes cannot declare a target or containment", fs.Name)
		}
	}
	if fs.Default != nil {
		if !f.IsAttribute() {
			return nil, fmt.Errorf("feature %s: references cannot declare a default", fs.Name)
		}
		v, err := f.ValueType.Parse(*fs.Default, f.Literals)
		if err != nil {
			return nil, fmt.Errorf("feature %s default: %w", fs.Name, err)
		}
		f.Default = v
	}
	return f, nil
}
