package grammar

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
)

// treeSitterGrammar implements Grammar on top of a smacker tree-sitter language.
type treeSitterGrammar struct {
	config *LanguageConfig
	tsLang *sitter.Language

	units     map[string]UnitKind
	wrappers  map[string]bool
	blocks    map[string]bool
	roots     map[string]bool
	bodyKinds map[string]map[string]bool
}

func newTreeSitterGrammar(config *LanguageConfig, tsLang *sitter.Language) *treeSitterGrammar {
	g := &treeSitterGrammar{
		config:    config,
		tsLang:    tsLang,
		units:     make(map[string]UnitKind),
		wrappers:  toSet(config.EnclosingWrappers),
		blocks:    toSet(config.BlockTypes),
		roots:     toSet(config.RootTypes),
		bodyKinds: make(map[string]map[string]bool),
	}

	tables := []struct {
		kinds []string
		unit  UnitKind
	}{
		{config.FunctionTypes, UnitFunction},
		{config.MethodTypes, UnitMethod},
		{config.ClassTypes, UnitClass},
		{config.StructTypes, UnitStruct},
		{config.InterfaceTypes, UnitInterface},
		{config.EnumTypes, UnitEnum},
		{config.ImplTypes, UnitImpl},
		{config.TraitTypes, UnitTrait},
		{config.TypeDefTypes, UnitType},
		{config.ModuleTypes, UnitModule},
	}
	for _, table := range tables {
		for _, kind := range table.kinds {
			g.units[kind] = table.unit
		}
	}
	for kind, children := range config.BodyRequired {
		g.bodyKinds[kind] = toSet(children)
	}
	return g
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func (g *treeSitterGrammar) Name() string { return g.config.Name }

func (g *treeSitterGrammar) Extensions() []string {
	out := make([]string, len(g.config.Extensions))
	copy(out, g.config.Extensions)
	return out
}

func (g *treeSitterGrammar) Config() *LanguageConfig { return g.config }

// Parse parses source and rejects trees containing ERROR or MISSING nodes.
func (g *treeSitterGrammar) Parse(ctx context.Context, source []byte) (*Tree, error) {
	tree, err := g.ParseLenient(ctx, source)
	if err != nil {
		return nil, err
	}
	if tree.Nodes[Root].HasError {
		return nil, cgerrors.New(cgerrors.ErrCodeParseFailed,
			fmt.Sprintf("%s source contains syntax errors near line %d", g.config.Name, tree.FirstErrorLine()+1), nil).
			WithDetail("language", g.config.Name)
	}
	return tree, nil
}

// ParseLenient parses source and keeps error nodes in the tree.
func (g *treeSitterGrammar) ParseLenient(ctx context.Context, source []byte) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// One parser per call: sitter.Parser is not safe for concurrent use
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.tsLang)

	tsTree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, cgerrors.New(cgerrors.ErrCodeParseFailed, "failed to parse source: "+err.Error(), err)
	}
	if tsTree == nil {
		return nil, cgerrors.New(cgerrors.ErrCodeParseFailed, "failed to parse source: nil tree", nil)
	}

	return convertTree(tsTree.RootNode(), source, g.config.Name), nil
}

func (g *treeSitterGrammar) IsExtractableUnit(kind string) bool {
	_, ok := g.units[kind]
	return ok
}

func (g *treeSitterGrammar) IsExtractableNode(t *Tree, id NodeID) bool {
	kind := t.Nodes[id].Kind
	if !g.IsExtractableUnit(kind) {
		return false
	}
	required, ok := g.bodyKinds[kind]
	if !ok {
		return true
	}
	for _, child := range t.Nodes[id].Children {
		if required[t.Nodes[child].Kind] {
			return true
		}
	}
	return false
}

func (g *treeSitterGrammar) UnitKind(kind string) UnitKind {
	return g.units[kind]
}

// IsStatement reports statement, declaration and block kinds. Root kinds never qualify.
func (g *treeSitterGrammar) IsStatement(kind string) bool {
	if g.roots[kind] {
		return false
	}
	if g.blocks[kind] {
		return true
	}
	for _, suffix := range []string{"_statement", "_declaration", "_definition", "_item", "_block"} {
		if strings.HasSuffix(kind, suffix) {
			return true
		}
	}
	return false
}

func (g *treeSitterGrammar) IsRoot(kind string) bool { return g.roots[kind] }

func (g *treeSitterGrammar) IsEnclosingWrapper(kind string) bool { return g.wrappers[kind] }

type convertFrame struct {
	ts     *sitter.Node
	parent NodeID
	field  string
	extra  bool // inside an extra subtree
	atomic bool // inside a node already recorded as one leaf
	exit   NodeID
}

// convertTree flattens a tree-sitter tree into an arena with an explicit stack.
// Nodes are numbered in pre-order so parents always precede their children.
func convertTree(root *sitter.Node, source []byte, language string) *Tree {
	t := &Tree{
		Nodes:    make([]Node, 0, 256),
		Source:   source,
		Language: language,
	}

	stack := []convertFrame{{ts: root, parent: NoNode, exit: NoNode}}
	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if frame.exit != NoNode {
			t.Nodes[frame.exit].EndLeaf = int32(len(t.Leaves))
			continue
		}

		ts := frame.ts
		id := NodeID(len(t.Nodes))
		start, end := ts.StartPoint(), ts.EndPoint()
		isError := ts.Type() == "ERROR"
		// Error recovery marks skipped ERROR regions as extras; their
		// tokens are still source and stay in the leaf sequence.
		extra := frame.extra || (ts.IsExtra() && !isError)
		childCount := int(ts.ChildCount())

		t.Nodes = append(t.Nodes, Node{
			Kind:       ts.Type(),
			Field:      frame.field,
			Named:      ts.IsNamed(),
			Extra:      extra,
			IsError:    ts.IsMissing() || isError,
			HasError:   ts.HasError(),
			Parent:     frame.parent,
			Children:   make([]NodeID, 0, childCount),
			StartByte:  ts.StartByte(),
			EndByte:    ts.EndByte(),
			StartPoint: Point{Row: start.Row, Column: start.Column},
			EndPoint:   Point{Row: end.Row, Column: end.Column},
			FirstLeaf:  int32(len(t.Leaves)),
		})
		if frame.parent != NoNode {
			t.Nodes[frame.parent].Children = append(t.Nodes[frame.parent].Children, id)
		}

		atomic := frame.atomic
		if !atomic && (childCount == 0 || isAtomicKind(ts)) {
			if !extra && !blank(source[ts.StartByte():ts.EndByte()]) {
				t.Leaves = append(t.Leaves, id)
			}
			atomic = true
		}
		if childCount == 0 {
			t.Nodes[id].EndLeaf = int32(len(t.Leaves))
			continue
		}

		stack = append(stack, convertFrame{exit: id})
		for i := childCount - 1; i >= 0; i-- {
			child := ts.Child(i)
			if child == nil {
				continue
			}
			stack = append(stack, convertFrame{
				ts:     child,
				parent: id,
				field:  ts.FieldNameForChild(i),
				extra:  extra,
				atomic: atomic,
				exit:   NoNode,
			})
		}
	}

	return t
}

// blank reports empty or whitespace-only tokens, such as newline terminators.
func blank(text []byte) bool {
	for _, c := range text {
		switch c {
		case ' ', '\t', '\n', '\r', '\f', '\v':
		default:
			return false
		}
	}
	return true
}

// isAtomicKind reports string and character literals. Their content is not
// always covered by child tokens, so the whole literal counts as one leaf.
func isAtomicKind(ts *sitter.Node) bool {
	if !ts.IsNamed() {
		return false
	}
	kind := ts.Type()
	return strings.Contains(kind, "string") || strings.Contains(kind, "char_literal") ||
		kind == "rune_literal" || kind == "template_literal"
}
