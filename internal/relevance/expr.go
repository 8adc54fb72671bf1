package relevance

import (
	"fmt"
	"slices"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/graph"
)

// DefaultExpression keeps roots and package-like containers, which carry no
// category of their own but are needed to rebuild the tree.
const DefaultExpression = `root || type endsWith "Pkg"`

// Predicate is a compiled structural-relevance expression.
//
// Variables: type, package, qualified (type names), root (bool), depth
// (int, 0 for the walk root), ancestors ([]string of qualified names),
// attrs (map of attribute values).
type Predicate struct {
	source  string
	program *exprvm.Program
}

func predicateEnv(n *graph.Node, depth int) map[string]any {
	t := n.Type()
	attrs := make(map[string]any)
	for _, f := range t.Attributes() {
		attrs[f.Name] = n.Value(f)
	}
	return map[string]any{
		"type":      t.Name,
		"package":   t.Package,
		"qualified": t.QualifiedName(),
		"root":      n.IsRoot(),
		"depth":     depth,
		"ancestors": t.Ancestors(),
		"attrs":     attrs,
	}
}

var predicateSample = map[string]any{
	"type":      "",
	"package":   "",
	"qualified": "",
	"root":      false,
	"depth":     0,
	"ancestors": []string{},
	"attrs":     map[string]any{},
}

// CompilePredicate compiles src. Errors are KindConfig.
func CompilePredicate(src string) (*Predicate, error) {
	if src == "" {
		return nil, convert.Errorf(convert.KindConfig, "relevance expression must not be empty")
	}
	program, err := exprlang.Compile(src, exprlang.Env(predicateSample), exprlang.AsBool())
	if err != nil {
		return nil, convert.Errorf(convert.KindConfig, "invalid relevance expression %q: %w", src, err)
	}
	return &Predicate{source: src, program: program}, nil
}

// String returns the source expression.
func (p *Predicate) String() string { return p.source }

// Match evaluates the predicate for n found at depth.
func (p *Predicate) Match(g *graph.Graph, n *graph.Node, depth int) (bool, error) {
	out, err := exprlang.Run(p.program, predicateEnv(n, depth))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate %q on %s: %w", p.source, n.ID(), err)
	}
	b, _ := out.(bool)
	return b, nil
}

// ExprClassifier is a classifier defined by an expression returning the
// related identifiers, as a list or a single string.
//
// On top of the Predicate variables it sees: id, container (string),
// children and referrers ([]string), and refs (map of reference name to
// []string of targets).
type ExprClassifier struct {
	id, name string
	types    []string
	program  *exprvm.Program
	source   string
}

var classifierSample = func() map[string]any {
	env := make(map[string]any, len(predicateSample)+5)
	for k, v := range predicateSample {
		env[k] = v
	}
	env["id"] = ""
	env["container"] = ""
	env["children"] = []string{}
	env["referrers"] = []string{}
	env["refs"] = map[string][]string{}
	return env
}()

// NewExprClassifier compiles a classifier. types restricts it to nodes that
// are one of the qualified types (or subtypes); empty applies everywhere.
func NewExprClassifier(id, name string, types []string, src string) (*ExprClassifier, error) {
	if id == "" || name == "" {
		return nil, convert.Errorf(convert.KindConfig, "classifier requires an id and a name")
	}
	program, err := exprlang.Compile(src, exprlang.Env(classifierSample))
	if err != nil {
		return nil, convert.Errorf(convert.KindConfig, "invalid expression for classifier %s: %w", id, err)
	}
	return &ExprClassifier{id: id, name: name, types: types, program: program, source: src}, nil
}

func (c *ExprClassifier) ID() string   { return c.id }
func (c *ExprClassifier) Name() string { return c.name }

func (c *ExprClassifier) Applies(t *graph.Type) bool {
	if len(c.types) == 0 {
		return true
	}
	return slices.ContainsFunc(c.types, t.IsA)
}

func (c *ExprClassifier) Related(g *graph.Graph, n *graph.Node) ([]*graph.Node, error) {
	env := predicateEnv(n, 0)
	env["id"] = n.ID()
	env["container"], _ = n.Container()

	var children []string
	for _, child := range g.Children(n) {
		children = append(children, child.ID())
	}
	env["children"] = children

	var referrers []string
	for _, r := range g.Referrers(n.ID()) {
		referrers = append(referrers, r.ID())
	}
	env["referrers"] = referrers

	refs := make(map[string][]string)
	for _, f := range n.Type().References() {
		refs[f.Name] = n.Refs(f.Name)
	}
	env["refs"] = refs

	out, err := exprlang.Run(c.program, env)
	if err != nil {
		return nil, fmt.Errorf("classifier %s: %w", c.id, err)
	}

	var ids []string
	switch v := out.(type) {
	case nil:
	case string:
		ids = []string{v}
	case []string:
		ids = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("classifier %s: result item %v is not an identifier", c.id, item)
			}
			ids = append(ids, s)
		}
	default:
		return nil, fmt.Errorf("classifier %s: result %T is not a list of identifiers", c.id, out)
	}

	var related []*graph.Node
	for _, id := range ids {
		if node, ok := g.Node(id); ok {
			related = append(related, node)
		}
	}
	return related, nil
}
