// Package structural matches AST-shaped patterns against parse trees.
//
// A pattern is written in the target language with metavariables:
// $NAME binds exactly one node, $$$NAME binds zero or more tokens with
// balanced brackets, and $_ / $$$ match without binding. Patterns are
// parsed with the same grammar as the documents they run against.
//
// Matching uses the root node kind and the pattern's token sequence: a
// candidate node must have the root kind and its tokens must unify with the
// pattern's literals and captures. The PatternNode tree returned by Root
// describes the parsed pattern for display and debugging; inner node kinds
// do not constrain a match.
package structural

import (
	"context"
	"fmt"
	"strings"

	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/grammar"
)

// NodeKind tags a pattern tree node.
type NodeKind int

const (
	// ExactKind requires the same node kind; leaves also compare text.
	ExactKind NodeKind = iota

	// Wildcard accepts any node kind. Pattern fragments the grammar could
	// not parse become wildcards.
	Wildcard

	// SingleCapture binds exactly one node.
	SingleCapture

	// MultiCapture binds zero or more tokens.
	MultiCapture
)

func (k NodeKind) String() string {
	switch k {
	case ExactKind:
		return "exact"
	case Wildcard:
		return "wildcard"
	case SingleCapture:
		return "single"
	case MultiCapture:
		return "multi"
	}
	return "unknown"
}

// Anonymous is the name of captures that match without binding.
const Anonymous = "_"

const placeholderPrefix = "cg_meta_"

// PatternNode is one node of a compiled pattern tree.
type PatternNode struct {
	Kind     NodeKind
	NodeKind string // grammar node kind, empty for wildcards and captures
	Text     string // literal text of a leaf
	Name     string // capture name
	Children []*PatternNode
}

// elemKind tags one step of the flattened leaf program.
type elemKind int

const (
	elemLiteral elemKind = iota
	elemSingle
	elemMulti
)

type element struct {
	kind elemKind
	text string
	name string
}

// Pattern is a compiled structural query. It is immutable and safe to
// share between goroutines.
type Pattern struct {
	source   string
	language string
	root     *PatternNode
	rootKind string // empty: any non-root node is a candidate
	elems    []element
}

// Source returns the pattern text as written.
func (p *Pattern) Source() string { return p.source }

// Language returns the grammar the pattern was compiled with.
func (p *Pattern) Language() string { return p.language }

// Root returns the pattern tree. It is descriptive only.
func (p *Pattern) Root() *PatternNode { return p.root }

// RootKind returns the node kind candidates must have, or "" for a wildcard root.
func (p *Pattern) RootKind() string { return p.rootKind }

// Captures returns the distinct named metavariables in pattern order.
func (p *Pattern) Captures() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range p.elems {
		if e.kind == elemLiteral || e.name == Anonymous || seen[e.name] {
			continue
		}
		seen[e.name] = true
		out = append(out, e.name)
	}
	return out
}

// metavar records one substituted metavariable.
type metavar struct {
	name  string
	multi bool
}

// substitute replaces metavariables with identifiers every supported grammar
// accepts. A '$' not followed by an upper-case name or '_' stays literal.
func substitute(pattern string) (string, map[string]metavar) {
	vars := make(map[string]metavar)
	var b strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] != '$' {
			b.WriteByte(pattern[i])
			i++
			continue
		}

		multi := strings.HasPrefix(pattern[i:], "$$$")
		start := i + 1
		if multi {
			start = i + 3
		}
		end := start
		for end < len(pattern) && isNameByte(pattern[end], end == start) {
			end++
		}
		name := pattern[start:end]
		if name == "" && !multi {
			b.WriteByte('$')
			i++
			continue
		}
		if name == "" {
			name = Anonymous
		}

		placeholder := fmt.Sprintf("%s%d", placeholderPrefix, len(vars))
		vars[placeholder] = metavar{name: name, multi: multi}
		b.WriteString(placeholder)
		i = end
	}
	return b.String(), vars
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c >= 'A' && c <= 'Z', c == '_':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}

// Compile parses pattern with g and builds its matching program.
func Compile(ctx context.Context, pattern string, g grammar.Grammar) (*Pattern, error) {
	if g == nil {
		return nil, cgerrors.ValidationError("pattern requires a language", nil)
	}
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return nil, cgerrors.PatternSyntaxError("empty pattern")
	}

	text, vars := substitute(trimmed)
	// A trailing newline terminates the last statement, so grammars with
	// newline terminators do not recover the pattern as something else.
	tree, err := g.ParseLenient(ctx, []byte(text+"\n"))
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, cgerrors.New(cgerrors.ErrCodeInvalidPattern, "cannot parse pattern", err)
	}

	rootID := unwrap(tree, g)
	p := &Pattern{
		source:   pattern,
		language: g.Name(),
		root:     buildNode(tree, rootID, vars),
	}
	// A recovered parse leaves the root kind unreliable
	if rn := tree.Node(rootID); !rn.HasError && !rn.IsError && !g.IsRoot(rn.Kind) {
		p.rootKind = rn.Kind
	}
	if p.rootKind == "" {
		p.root.Kind = Wildcard
		p.root.NodeKind = ""
	}

	hasLiteral := false
	for _, leaf := range tree.LeafSpan(rootID) {
		text := tree.Text(leaf)
		if mv, ok := vars[text]; ok {
			kind := elemSingle
			if mv.multi {
				kind = elemMulti
			}
			p.elems = append(p.elems, element{kind: kind, name: mv.name})
			continue
		}
		hasLiteral = true
		p.elems = append(p.elems, element{kind: elemLiteral, text: text})
	}
	if !hasLiteral {
		return nil, cgerrors.PatternSyntaxError("pattern has no literal token: " + trimmed).
			WithDetail("language", g.Name())
	}
	if p.root.Kind == SingleCapture || p.root.Kind == MultiCapture {
		return nil, cgerrors.PatternSyntaxError("pattern is a bare metavariable: " + trimmed)
	}
	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(pattern string, g grammar.Grammar) *Pattern {
	p, err := Compile(context.Background(), pattern, g)
	if err != nil {
		panic(err)
	}
	return p
}

// unwrap descends through root and statement wrappers that hold a single
// named child covering all of their tokens (a trailing ';' aside).
func unwrap(t *grammar.Tree, g grammar.Grammar) grammar.NodeID {
	id := grammar.Root
	for {
		n := t.Node(id)
		if !g.IsRoot(n.Kind) && n.Kind != "expression_statement" {
			return id
		}
		named := t.NamedChildren(id)
		if len(named) != 1 {
			return id
		}
		child := named[0]
		if !coversTokens(t, id, child) {
			return id
		}
		id = child
	}
}

func coversTokens(t *grammar.Tree, parent, child grammar.NodeID) bool {
	p, c := t.Node(parent), t.Node(child)
	if c.FirstLeaf != p.FirstLeaf {
		return false
	}
	for i := c.EndLeaf; i < p.EndLeaf; i++ {
		if t.Text(t.Leaves[i]) != ";" {
			return false
		}
	}
	return true
}

// buildNode mirrors the parsed pattern as a PatternNode tree.
func buildNode(t *grammar.Tree, id grammar.NodeID, vars map[string]metavar) *PatternNode {
	n := t.Node(id)
	if len(n.Children) == 0 {
		text := t.Text(id)
		if mv, ok := vars[text]; ok {
			kind := SingleCapture
			if mv.multi {
				kind = MultiCapture
			}
			return &PatternNode{Kind: kind, Name: mv.name}
		}
		return &PatternNode{Kind: ExactKind, NodeKind: n.Kind, Text: text}
	}

	pn := &PatternNode{Kind: ExactKind, NodeKind: n.Kind}
	if n.IsError {
		pn.Kind = Wildcard
		pn.NodeKind = ""
	}
	for _, c := range n.Children {
		if t.Node(c).Extra || t.Node(c).StartByte == t.Node(c).EndByte {
			continue
		}
		pn.Children = append(pn.Children, buildNode(t, c, vars))
	}
	// A metavariable the grammar wrapped in a single-child node is still a capture
	if len(pn.Children) == 1 && (pn.Children[0].Kind == SingleCapture || pn.Children[0].Kind == MultiCapture) {
		return pn.Children[0]
	}
	return pn
}

// String renders the pattern tree as an s-expression.
func (n *PatternNode) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *PatternNode) write(b *strings.Builder) {
	switch n.Kind {
	case SingleCapture:
		b.WriteString("$" + n.Name)
		return
	case MultiCapture:
		b.WriteString("$$$" + n.Name)
		return
	}
	if len(n.Children) == 0 {
		fmt.Fprintf(b, "%q", n.Text)
		return
	}
	b.WriteByte('(')
	if n.Kind == Wildcard {
		b.WriteByte('_')
	} else {
		b.WriteString(n.NodeKind)
	}
	for _, c := range n.Children {
		b.WriteByte(' ')
		c.write(b)
	}
	b.WriteByte(')')
}
