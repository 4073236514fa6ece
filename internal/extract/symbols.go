package extract

import (
	"context"
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/Aman-CERP/codegrip/internal/document"
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/grammar"
)

const (
	// maxSuggestions caps the names offered for an unknown symbol.
	maxSuggestions = 3

	// minSimilarity is the Jaro-Winkler score a suggestion needs.
	minSimilarity = 0.7
)

// Symbol is a named extractable unit.
type Symbol struct {
	Name      string           `json:"name"`
	Qualified string           `json:"qualified"` // Container.Name, or Name at top level
	Kind      grammar.UnitKind `json:"kind"`
	StartLine int              `json:"start_line"` // 1-based
	EndLine   int              `json:"end_line"`
	Node      grammar.NodeID   `json:"-"`
}

// Symbols lists the named units of doc in source order.
func (e *Extractor) Symbols(ctx context.Context, doc *document.Document) ([]Symbol, error) {
	g, err := doc.Grammar()
	if err != nil {
		return nil, err
	}
	t, err := doc.LenientTree(ctx)
	if err != nil {
		return nil, err
	}
	return collectSymbols(t, g), nil
}

func collectSymbols(t *grammar.Tree, g grammar.Grammar) []Symbol {
	var out []Symbol
	t.Walk(grammar.Root, func(id grammar.NodeID) bool {
		if !g.IsExtractableNode(t, id) {
			return true
		}
		name := nameOf(t, g, id)
		if name == "" {
			return true
		}
		qualified := name
		if container := containerName(t, g, id); container != "" {
			qualified = container + "." + name
		}
		n := t.Node(id)
		out = append(out, Symbol{
			Name:      name,
			Qualified: qualified,
			Kind:      g.UnitKind(n.Kind),
			StartLine: int(n.StartPoint.Row) + 1,
			EndLine:   int(n.EndPoint.Row) + 1,
			Node:      id,
		})
		return true
	})
	return out
}

// extractSymbol finds the first unit named symbol. "Type.method" and
// "Type::method" select a member of a named container.
func (e *Extractor) extractSymbol(ctx context.Context, doc *document.Document, symbol string) (*document.ExtractedBlock, error) {
	symbols, err := e.Symbols(ctx, doc)
	if err != nil {
		return nil, err
	}
	want := strings.ReplaceAll(strings.TrimSpace(symbol), "::", ".")

	for _, s := range symbols {
		if s.Name == want || s.Qualified == want {
			t, _ := doc.LenientTree(ctx)
			g, _ := doc.Grammar()
			id := s.Node
			for p := t.Node(id).Parent; p != grammar.NoNode && g.IsEnclosingWrapper(t.Node(p).Kind); p = t.Node(p).Parent {
				id = p
			}
			return nodeBlock(doc, t, g, id, s.Kind), nil
		}
	}

	notFound := cgerrors.New(cgerrors.ErrCodeSymbolNotFound, "symbol not found: "+symbol+" in "+doc.Path, nil).
		WithDetail("path", doc.Path).
		WithDetail("symbol", symbol)
	if suggestions := suggest(want, symbols); len(suggestions) > 0 {
		notFound = notFound.WithDetail("suggestions", strings.Join(suggestions, ",")).
			WithSuggestion("did you mean " + strings.Join(suggestions, ", ") + "?")
	}
	return nil, notFound
}

// suggest ranks known names by Jaro-Winkler similarity to want.
func suggest(want string, symbols []Symbol) []string {
	type scored struct {
		name  string
		score float32
	}
	seen := make(map[string]bool)
	var candidates []scored
	for _, s := range symbols {
		for _, name := range []string{s.Name, s.Qualified} {
			if seen[name] {
				continue
			}
			seen[name] = true
			score, err := edlib.StringsSimilarity(strings.ToLower(want), strings.ToLower(name), edlib.JaroWinkler)
			if err != nil || score < minSimilarity {
				continue
			}
			candidates = append(candidates, scored{name: name, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})

	var out []string
	for _, c := range candidates {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, c.name)
	}
	return out
}

// nameOf returns a unit's name, empty when it has none.
func nameOf(t *grammar.Tree, g grammar.Grammar, id grammar.NodeID) string {
	n := t.Node(id)
	cfg := g.Config()

	switch n.Kind {
	case "type_declaration":
		// Go: type Name struct {...}
		if spec := t.ChildByKind(id, "type_spec"); spec != grammar.NoNode {
			return fieldText(t, spec, "name")
		}
	case "impl_item":
		// Rust: impl Trait for Type names the type
		return fieldText(t, id, "type")
	case "arrow_function", "function", "function_expression":
		// const handler = () => {...}
		if p := n.Parent; p != grammar.NoNode && t.Node(p).Kind == "variable_declarator" {
			return fieldText(t, p, "name")
		}
		if p := n.Parent; p != grammar.NoNode && (t.Node(p).Kind == "pair" || t.Node(p).Kind == "assignment_expression") {
			if k := t.ChildByField(p, "key"); k != grammar.NoNode {
				return t.Text(k)
			}
			return fieldText(t, p, "left")
		}
	}

	if cfg.NameField == "declarator" {
		if name := declaratorName(t, id); name != "" {
			return name
		}
	}
	if name := fieldText(t, id, cfg.NameField); name != "" {
		return name
	}
	if name := fieldText(t, id, "name"); name != "" {
		return name
	}
	for _, c := range t.NamedChildren(id) {
		switch t.Node(c).Kind {
		case "identifier", "type_identifier", "field_identifier", "property_identifier":
			return t.Text(c)
		}
	}
	return ""
}

// declaratorName follows C/C++ declarator chains to the declared identifier.
func declaratorName(t *grammar.Tree, id grammar.NodeID) string {
	d := t.ChildByField(id, "declarator")
	if d == grammar.NoNode {
		return ""
	}
	for {
		next := t.ChildByField(d, "declarator")
		if next == grammar.NoNode {
			break
		}
		d = next
	}
	switch t.Node(d).Kind {
	case "identifier", "field_identifier", "qualified_identifier", "destructor_name", "operator_name":
		return t.Text(d)
	}
	return ""
}

func fieldText(t *grammar.Tree, id grammar.NodeID, field string) string {
	if field == "" {
		return ""
	}
	c := t.ChildByField(id, field)
	if c == grammar.NoNode {
		return ""
	}
	return t.Text(c)
}

// containerName names the class, impl, trait or interface around a unit,
// or a Go method's receiver type.
func containerName(t *grammar.Tree, g grammar.Grammar, id grammar.NodeID) string {
	if t.Node(id).Kind == "method_declaration" && g.Name() == "go" {
		return receiverType(t, id)
	}
	for p := t.Node(id).Parent; p != grammar.NoNode; p = t.Node(p).Parent {
		if !g.IsExtractableNode(t, p) {
			continue
		}
		switch g.UnitKind(t.Node(p).Kind) {
		case grammar.UnitClass, grammar.UnitStruct, grammar.UnitInterface, grammar.UnitImpl,
			grammar.UnitTrait, grammar.UnitEnum, grammar.UnitModule:
			return nameOf(t, g, p)
		}
	}
	return ""
}

// receiverType returns T for func (r *T) or func (T[K]).
func receiverType(t *grammar.Tree, id grammar.NodeID) string {
	recv := t.ChildByField(id, "receiver")
	if recv == grammar.NoNode {
		return ""
	}
	var name string
	t.Walk(recv, func(c grammar.NodeID) bool {
		if name != "" {
			return false
		}
		if t.Node(c).Kind == "type_identifier" {
			name = t.Text(c)
			return false
		}
		return true
	})
	return name
}
