package graph

import (
	"fmt"
	"sort"
	"strings"
)

// FeatureKind tags a structural feature.
type FeatureKind int

const (
	// KindAttribute is a single scalar value.
	KindAttribute FeatureKind = iota
	// KindListAttribute is an ordered list of scalar values.
	KindListAttribute
	// KindReference is a single edge to another node.
	KindReference
	// KindListReference is an ordered list of edges.
	KindListReference
)

// String returns a human-readable representation of the kind.
func (k FeatureKind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindListAttribute:
		return "list-attribute"
	case KindReference:
		return "reference"
	case KindListReference:
		return "list-reference"
	default:
		return "unknown"
	}
}

// Feature describes one structural feature of a node type.
type Feature struct {
	Name string
	Kind FeatureKind

	// Containment marks reference features that own their targets.
	Containment bool

	// ValueType and Literals apply to attributes only.
	ValueType ValueType
	Literals  []string

	// Default is the parsed value an empty attribute cell resolves to.
	// Nil means the attribute is unset.
	Default any

	// Target is the qualified type name references must satisfy.
	// Empty accepts any type.
	Target string

	// Derived features are computed by the host and never tabulated.
	Derived bool
}

// IsAttribute reports whether the feature holds scalar values.
func (f *Feature) IsAttribute() bool {
	return f.Kind == KindAttribute || f.Kind == KindListAttribute
}

// IsReference reports whether the feature holds edges.
func (f *Feature) IsReference() bool {
	return f.Kind == KindReference || f.Kind == KindListReference
}

// IsMany reports whether the feature is multi-valued.
func (f *Feature) IsMany() bool {
	return f.Kind == KindListAttribute || f.Kind == KindListReference
}

// Attribute declares a single-valued attribute.
func Attribute(name string, vt ValueType) *Feature {
	return &Feature{Name: name, Kind: KindAttribute, ValueType: vt}
}

// ListAttribute declares a multi-valued attribute.
func ListAttribute(name string, vt ValueType) *Feature {
	return &Feature{Name: name, Kind: KindListAttribute, ValueType: vt}
}

// Reference declares a single non-containment reference.
func Reference(name, target string) *Feature {
	return &Feature{Name: name, Kind: KindReference, Target: target}
}

// ListReference declares a multi-valued non-containment reference.
func ListReference(name, target string) *Feature {
	return &Feature{Name: name, Kind: KindListReference, Target: target}
}

// Containment declares a single containment reference.
func Containment(name, target string) *Feature {
	return &Feature{Name: name, Kind: KindReference, Target: target, Containment: true}
}

// ListContainment declares a multi-valued containment reference.
func ListContainment(name, target string) *Feature {
	return &Feature{Name: name, Kind: KindListReference, Target: target, Containment: true}
}

// Type is a node type. Its effective feature set is its own features plus
// every feature inherited from its supertypes.
type Type struct {
	Package    string
	Name       string
	Abstract   bool
	Supertypes []string

	own []*Feature

	// Populated by Schema.Resolve.
	all       []*Feature
	byName    map[string]*Feature
	ancestors map[string]bool
}

// NewType creates a concrete type with the given own features.
func NewType(pkg, name string, features ...*Feature) *Type {
	return &Type{Package: pkg, Name: name, own: features}
}

// Extends adds supertypes and returns the type for chaining.
func (t *Type) Extends(supertypes ...string) *Type {
	t.Supertypes = append(t.Supertypes, supertypes...)
	return t
}

// QualifiedName returns "<package>.<name>".
func (t *Type) QualifiedName() string {
	return t.Package + "." + t.Name
}

// Feature returns the effective feature with the given name.
func (t *Type) Feature(name string) (*Feature, bool) {
	f, ok := t.byName[name]
	return f, ok
}

// Features returns every effective feature sorted by name.
func (t *Type) Features() []*Feature {
	return t.all
}

// Attributes returns the non-derived attributes sorted by name.
func (t *Type) Attributes() []*Feature {
	return t.filter(func(f *Feature) bool { return f.IsAttribute() })
}

// References returns the non-derived, non-containment references sorted by name.
func (t *Type) References() []*Feature {
	return t.filter(func(f *Feature) bool { return f.IsReference() && !f.Containment })
}

// Containments returns the non-derived containment references sorted by name.
func (t *Type) Containments() []*Feature {
	return t.filter(func(f *Feature) bool { return f.IsReference() && f.Containment })
}

func (t *Type) filter(keep func(*Feature) bool) []*Feature {
	var out []*Feature
	for _, f := range t.all {
		if !f.Derived && keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// IsA reports whether t is the named type or one of its subtypes.
// An empty name matches every type.
func (t *Type) IsA(qualified string) bool {
	if qualified == "" {
		return true
	}
	return t.ancestors[qualified]
}

// Ancestors returns the qualified names of t and all its supertypes, sorted.
func (t *Type) Ancestors() []string {
	out := make([]string, 0, len(t.ancestors))
	for a := range t.ancestors {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Schema is the set of node types known to a graph.
type Schema struct {
	types    map[string]*Type
	resolved bool
}

// NewSchema creates a schema from the given types and resolves it.
func NewSchema(types ...*Type) (*Schema, error) {
	s := &Schema{types: make(map[string]*Type)}
	for _, t := range types {
		if err := s.Define(t); err != nil {
			return nil, err
		}
	}
	if err := s.Resolve(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustSchema is like NewSchema but panics on error. Intended for tests and
// statically declared schemas.
func MustSchema(types ...*Type) *Schema {
	s, err := NewSchema(types...)
	if err != nil {
		panic(err)
	}
	return s
}

// Define adds a type. The schema must be resolved again before use.
func (s *Schema) Define(t *Type) error {
	if t.Package == "" || t.Name == "" {
		return fmt.Errorf("type requires a package and a name (got %q)", t.QualifiedName())
	}
	if strings.Contains(t.Package, ".") || strings.Contains(t.Name, ".") {
		return fmt.Errorf("type %s: package and name must not contain '.'", t.QualifiedName())
	}
	if _, exists := s.types[t.QualifiedName()]; exists {
		return fmt.Errorf("type %s defined twice", t.QualifiedName())
	}
	s.types[t.QualifiedName()] = t
	s.resolved = false
	return nil
}

// Resolve computes inherited features and validates references between types.
func (s *Schema) Resolve() error {
	for _, t := range s.types {
		t.all = nil
		t.byName = nil
		t.ancestors = nil
	}
	for _, name := range s.names() {
		if err := s.resolveType(s.types[name], map[string]bool{}); err != nil {
			return err
		}
	}
	for _, name := range s.names() {
		t := s.types[name]
		for _, f := range t.own {
			if err := s.checkFeature(t, f); err != nil {
				return err
			}
		}
	}
	s.resolved = true
	return nil
}

func (s *Schema) resolveType(t *Type, visiting map[string]bool) error {
	if t.byName != nil {
		return nil
	}
	qn := t.QualifiedName()
	if visiting[qn] {
		return fmt.Errorf("type %s inherits from itself", qn)
	}
	visiting[qn] = true
	defer delete(visiting, qn)

	byName := make(map[string]*Feature)
	ancestors := map[string]bool{qn: true}

	for _, superName := range t.Supertypes {
		super, ok := s.types[superName]
		if !ok {
			return fmt.Errorf("type %s: unknown supertype %s", qn, superName)
		}
		if err := s.resolveType(super, visiting); err != nil {
			return err
		}
		for a := range super.ancestors {
			ancestors[a] = true
		}
		for _, f := range super.all {
			byName[f.Name] = f
		}
	}
	for _, f := range t.own {
		if f.Name == "" {
			return fmt.Errorf("type %s: feature without a name", qn)
		}
		if _, dup := byName[f.Name]; dup {
			return fmt.Errorf("type %s: feature %s declared twice", qn, f.Name)
		}
		byName[f.Name] = f
	}

	all := make([]*Feature, 0, len(byName))
	for _, f := range byName {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	t.all = all
	t.byName = byName
	t.ancestors = ancestors
	return nil
}

func (s *Schema) checkFeature(t *Type, f *Feature) error {
	if f.IsReference() {
		if f.Target != "" {
			if _, ok := s.types[f.Target]; !ok {
				return fmt.Errorf("type %s: feature %s targets unknown type %s", t.QualifiedName(), f.Name, f.Target)
			}
		}
		return nil
	}
	if !f.ValueType.Valid() {
		return fmt.Errorf("type %s: feature %s has invalid value type %q", t.QualifiedName(), f.Name, f.ValueType)
	}
	if f.ValueType == TypeEnum {
		if len(f.Literals) == 0 {
			return fmt.Errorf("type %s: enum feature %s declares no literals", t.QualifiedName(), f.Name)
		}
		if f.Default == nil && f.Kind == KindAttribute {
			f.Default = f.Literals[0]
		}
	}
	if f.Default != nil {
		if err := f.ValueType.Check(f.Default, f.Literals); err != nil {
			return fmt.Errorf("type %s: feature %s default: %w", t.QualifiedName(), f.Name, err)
		}
	}
	return nil
}

// Type returns the type with the given qualified name.
func (s *Schema) Type(qualified string) (*Type, bool) {
	t, ok := s.types[qualified]
	return t, ok
}

// Types returns every type sorted by qualified name.
func (s *Schema) Types() []*Type {
	names := s.names()
	out := make([]*Type, 0, len(names))
	for _, n := range names {
		out = append(out, s.types[n])
	}
	return out
}

// ConcreteTypes returns the instantiable types sorted by qualified name.
func (s *Schema) ConcreteTypes() []*Type {
	var out []*Type
	for _, t := range s.Types() {
		if !t.Abstract {
			out = append(out, t)
		}
	}
	return out
}

func (s *Schema) names() []string {
	names := make([]string, 0, len(s.types))
	for n := range s.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
