// Package query compiles boolean search queries into immutable trees.
//
// Syntax: bare words are optional scoring terms, +word is required,
// -word is excluded, "quoted text" is a phrase, AND/OR/NOT combine clauses
// and parentheses group them. AND binds tighter than OR.
package query

import (
	"strings"
)

// Kind tags a query node.
type Kind int

const (
	KindTerm Kind = iota
	KindPhrase
	KindAnd
	KindOr
	KindNot
	KindRequired
	KindExcluded
)

func (k Kind) String() string {
	switch k {
	case KindTerm:
		return "Term"
	case KindPhrase:
		return "Phrase"
	case KindAnd:
		return "And"
	case KindOr:
		return "Or"
	case KindNot:
		return "Not"
	case KindRequired:
		return "Required"
	case KindExcluded:
		return "Excluded"
	}
	return "Unknown"
}

// Piece is one analyzed term of a query word or phrase.
type Piece struct {
	Term    string // normalized term, as produced for documents
	Surface string // original text of the piece, for case-sensitive matching
	Offset  int    // position relative to the first piece
}

// Node is an immutable query tree node.
// Required, Excluded and Not have exactly one child; And and Or have two or more.
type Node struct {
	Kind     Kind
	Text     string  // Term and Phrase: the text as written
	Pieces   []Piece // Term and Phrase: analyzed pieces
	Children []*Node
}

// Query is a compiled query: a list of top-level clauses.
// Bare Term/Phrase clauses are optional. Every other clause is a filter.
type Query struct {
	Clauses []*Node
	source  string
}

// Source returns the text the query was compiled from.
func (q *Query) Source() string {
	return q.source
}

// Required returns the top-level Required clauses.
func (q *Query) Required() []*Node { return q.clausesOf(KindRequired) }

// Excluded returns the top-level Excluded clauses.
func (q *Query) Excluded() []*Node { return q.clausesOf(KindExcluded) }

// Optional returns the top-level bare Term and Phrase clauses.
func (q *Query) Optional() []*Node {
	var out []*Node
	for _, c := range q.Clauses {
		if c.IsLeaf() {
			out = append(out, c)
		}
	}
	return out
}

func (q *Query) clausesOf(kind Kind) []*Node {
	var out []*Node
	for _, c := range q.Clauses {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// IsLeaf reports whether the node is a Term or Phrase.
func (n *Node) IsLeaf() bool {
	return n.Kind == KindTerm || n.Kind == KindPhrase
}

// PositiveLeaves returns the Term and Phrase leaves that contribute to
// scoring: every leaf not under Excluded or Not, in query order.
func (q *Query) PositiveLeaves() []*Node {
	var out []*Node
	for _, c := range q.Clauses {
		out = appendPositive(out, c)
	}
	return out
}

func appendPositive(out []*Node, n *Node) []*Node {
	switch n.Kind {
	case KindTerm, KindPhrase:
		return append(out, n)
	case KindExcluded, KindNot:
		return out
	}
	for _, c := range n.Children {
		out = appendPositive(out, c)
	}
	return out
}

// Leaves returns every Term and Phrase leaf, positive or not.
func (q *Query) Leaves() []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.IsLeaf() {
			out = append(out, n)
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, c := range q.Clauses {
		walk(c)
	}
	return out
}

// Terms returns the distinct normalized terms of the positive leaves, in query order.
func (q *Query) Terms() []string {
	seen := make(map[string]bool)
	var out []string
	for _, leaf := range q.PositiveLeaves() {
		for _, p := range leaf.Pieces {
			if !seen[p.Term] {
				seen[p.Term] = true
				out = append(out, p.Term)
			}
		}
	}
	return out
}

// String re-serializes the query. Compiling the result yields an equivalent tree.
func (q *Query) String() string {
	parts := make([]string, len(q.Clauses))
	for i, c := range q.Clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// String re-serializes a node.
func (n *Node) String() string {
	switch n.Kind {
	case KindTerm:
		return n.Text
	case KindPhrase:
		return `"` + n.Text + `"`
	case KindRequired:
		return "+" + n.Children[0].operand()
	case KindExcluded:
		return "-" + n.Children[0].operand()
	case KindNot:
		return "NOT " + n.Children[0].operand()
	case KindAnd:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			if c.Kind == KindOr {
				parts[i] = "(" + c.String() + ")"
			} else {
				parts[i] = c.String()
			}
		}
		return strings.Join(parts, " AND ")
	case KindOr:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = c.String()
		}
		return strings.Join(parts, " OR ")
	}
	return ""
}

// operand renders a node as the operand of a prefix operator.
func (n *Node) operand() string {
	if n.IsLeaf() {
		return n.String()
	}
	return "(" + n.String() + ")"
}

// Equal reports structural equality of two queries.
func (q *Query) Equal(other *Query) bool {
	if q == nil || other == nil {
		return q == other
	}
	if len(q.Clauses) != len(other.Clauses) {
		return false
	}
	for i := range q.Clauses {
		if !q.Clauses[i].Equal(other.Clauses[i]) {
			return false
		}
	}
	return true
}

// Equal reports structural equality of two nodes.
func (n *Node) Equal(other *Node) bool {
	if n.Kind != other.Kind || n.Text != other.Text ||
		len(n.Pieces) != len(other.Pieces) || len(n.Children) != len(other.Children) {
		return false
	}
	for i := range n.Pieces {
		if n.Pieces[i] != other.Pieces[i] {
			return false
		}
	}
	for i := range n.Children {
		if !n.Children[i].Equal(other.Children[i]) {
			return false
		}
	}
	return true
}
