// Package graphtest provides a small model schema and sample graph shared by
// package tests.
package graphtest

import (
	"fmt"
	"testing"

	"github.com/graphtab/gtab/internal/graph"
)

// Schema returns a schema with one abstract base type and a handful of
// concrete types covering every feature kind:
//
//	core.Element (abstract)  name, description
//	model.Project            ownedPkgs*, main (containment)
//	model.ComponentPkg       ownedComponents*, ownedComponentPkgs*, ownedExchanges*
//	model.Component          tags*, priority, weight, active, kind, ownedFunctions*, allocatedFunctions*, partner
//	model.Function           -
//	model.Exchange           source, target
func Schema() *graph.Schema {
	element := graph.NewType("core", "Element",
		graph.Attribute("name", graph.TypeString),
		graph.Attribute("description", graph.TypeString),
	)
	element.Abstract = true

	kind := graph.Attribute("kind", graph.TypeEnum)
	kind.Literals = []string{"LOGICAL", "PHYSICAL"}

	priority := graph.Attribute("priority", graph.TypeInt)
	priority.Default = int64(0)

	summary := graph.Attribute("summary", graph.TypeString)
	summary.Derived = true

	return graph.MustSchema(
		element,
		graph.NewType("model", "Project",
			graph.ListContainment("ownedPkgs", "model.ComponentPkg"),
			graph.Containment("main", "model.Component"),
		).Extends("core.Element"),
		graph.NewType("model", "ComponentPkg",
			graph.ListContainment("ownedComponents", "model.Component"),
			graph.ListContainment("ownedComponentPkgs", "model.ComponentPkg"),
			graph.ListContainment("ownedExchanges", "model.Exchange"),
		).Extends("core.Element"),
		graph.NewType("model", "Component",
			graph.ListAttribute("tags", graph.TypeString),
			priority,
			graph.Attribute("weight", graph.TypeFloat),
			graph.Attribute("active", graph.TypeBool),
			kind,
			summary,
			graph.ListContainment("ownedFunctions", "model.Function"),
			graph.ListReference("allocatedFunctions", "model.Function"),
			graph.Reference("partner", "model.Component"),
		).Extends("core.Element"),
		graph.NewType("model", "Function").Extends("core.Element"),
		graph.NewType("model", "Exchange",
			graph.Reference("source", "model.Function"),
			graph.Reference("target", "model.Function"),
		).Extends("core.Element"),
	)
}

// Sequence returns an id generator producing prefix1, prefix2, ...
func Sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

// Sample builds a small graph with fixed ids:
//
//	P (Project "Root")
//	├── main: C0 (Component "Main")
//	└── ownedPkgs: K1 (ComponentPkg "Pkg")
//	    ├── ownedComponents: C1 "Alpha" [F1, F2], C2 "Beta" [F3]
//	    └── ownedExchanges:  X1 (F1 -> F3)
//
// C1.allocatedFunctions = [F1, F3]; C1.partner = C2.
func Sample(t testing.TB) *graph.Graph {
	t.Helper()

	g := graph.New(Schema(), graph.WithIDGenerator(Sequence("gen-")))
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("building sample graph: %v", err)
		}
	}
	create := func(typeName, id, name string) {
		t.Helper()
		_, err := g.CreateWithID(typeName, id)
		must(err)
		must(g.SetAttr(id, "name", name))
	}

	create("model.Project", "P", "Root")
	must(g.MarkRoot("P"))
	create("model.Component", "C0", "Main")
	create("model.ComponentPkg", "K1", "Pkg")
	create("model.Component", "C1", "Alpha")
	create("model.Component", "C2", "Beta")
	create("model.Function", "F1", "f1")
	create("model.Function", "F2", "f2")
	create("model.Function", "F3", "f3")
	create("model.Exchange", "X1", "x1")

	must(g.SetRef("P", "main", "C0"))
	must(g.SetRefs("P", "ownedPkgs", []string{"K1"}))
	must(g.SetRefs("K1", "ownedComponents", []string{"C1", "C2"}))
	must(g.SetRefs("K1", "ownedExchanges", []string{"X1"}))
	must(g.SetRefs("C1", "ownedFunctions", []string{"F1", "F2"}))
	must(g.SetRefs("C2", "ownedFunctions", []string{"F3"}))
	must(g.SetRefs("C1", "allocatedFunctions", []string{"F1", "F3"}))
	must(g.SetRef("C1", "partner", "C2"))
	must(g.SetRef("X1", "source", "F1"))
	must(g.SetRef("X1", "target", "F3"))
	must(g.SetList("C1", "tags", []any{"a", "b"}))
	must(g.SetAttr("C1", "priority", int64(3)))
	must(g.SetAttr("C1", "weight", 1.5))
	must(g.SetAttr("C1", "active", true))
	must(g.SetAttr("C1", "kind", "PHYSICAL"))
	return g
}

// NodeDump is the comparable state of one node.
type NodeDump struct {
	Type      string
	Container string
	Root      bool
	Values    map[string]any
}

// Dump captures every arena node, live or detached, keyed by id. Empty lists
// are recorded as nil so that unset and cleared features compare equal.
func Dump(g *graph.Graph) map[string]NodeDump {
	out := make(map[string]NodeDump)
	for _, n := range g.Nodes() {
		d := NodeDump{Type: n.Type().QualifiedName(), Root: n.IsRoot(), Values: map[string]any{}}
		d.Container, _ = n.Container()
		for _, f := range n.Type().Features() {
			v := n.Value(f)
			switch list := v.(type) {
			case []any:
				if len(list) == 0 {
					v = nil
				}
			case []string:
				if len(list) == 0 {
					v = nil
				}
			}
			d.Values[f.Name] = v
		}
		out[n.ID()] = d
	}
	return out
}
