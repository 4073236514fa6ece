package query

import (
	"strconv"
	"strings"

	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/terms"
)

// MaxQueryLength bounds the query string in bytes.
const MaxQueryLength = 4096

// Compile parses a query string and analyzes its words with the analyzer
// used for documents. Words that analyze to nothing (stop words, short
// pieces) are dropped; a query left without positive terms is an error.
func Compile(input string, analyzer *terms.Analyzer) (*Query, error) {
	if strings.TrimSpace(input) == "" {
		return nil, cgerrors.New(cgerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if len(input) > MaxQueryLength {
		return nil, cgerrors.New(cgerrors.ErrCodeQueryTooLong,
			"query exceeds "+strconv.Itoa(MaxQueryLength)+" bytes", nil)
	}

	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens, analyzer: analyzer}
	clauses, err := p.parseSequence(false)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, cgerrors.QuerySyntaxError("unexpected "+tok.kind.String(), tok.pos)
	}

	q := &Query{Clauses: clauses, source: input}
	if len(q.Clauses) == 0 || len(q.PositiveLeaves()) == 0 {
		return nil, cgerrors.New(cgerrors.ErrCodeQueryEmpty,
			"query has no searchable terms after removing stop words and excluded terms", nil).
			WithSuggestion("add at least one term that is not excluded")
	}
	return q, nil
}

// MustCompile is Compile for queries known to be valid.
func MustCompile(input string, analyzer *terms.Analyzer) *Query {
	q, err := Compile(input, analyzer)
	if err != nil {
		panic(err)
	}
	return q
}

type parser struct {
	tokens   []token
	pos      int
	analyzer *terms.Analyzer
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// parseSequence parses juxtaposed clauses until EOF or ')'.
// Clauses whose words analyze to nothing are dropped (nil).
func (p *parser) parseSequence(nested bool) ([]*Node, error) {
	var clauses []*Node
	for {
		tok := p.peek()
		if tok.kind == tokEOF || (nested && tok.kind == tokRParen) {
			return clauses, nil
		}
		if tok.kind == tokRParen {
			return nil, cgerrors.QuerySyntaxError("unbalanced ')'", tok.pos)
		}
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if node != nil {
			clauses = append(clauses, node)
		}
	}
}

// parseOr := parseAnd ('OR' parseAnd)*
func (p *parser) parseOr() (*Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []*Node{first}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	return combine(KindOr, children), nil
}

// parseAnd := parseUnary ('AND' parseUnary)*
func (p *parser) parseAnd() (*Node, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	children := []*Node{first}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	return combine(KindAnd, children), nil
}

// parseUnary := 'NOT' parseUnary | ['+'|'-'] primary
func (p *parser) parseUnary() (*Node, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNot:
		p.next()
		if p.peek().kind == tokEOF {
			return nil, cgerrors.QuerySyntaxError("dangling operator NOT", tok.pos)
		}
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return wrap(KindNot, child), nil
	case tokPlus, tokMinus:
		p.next()
		child, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokPlus {
			return wrap(KindRequired, child), nil
		}
		return wrap(KindExcluded, child), nil
	}
	return p.parsePrimary()
}

// primary := word | phrase | '(' sequence ')'
func (p *parser) parsePrimary() (*Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokWord:
		return p.leaf(KindTerm, tok), nil
	case tokPhrase:
		return p.leaf(KindPhrase, tok), nil
	case tokLParen:
		inner := p.pos
		children, err := p.parseSequence(true)
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.kind != tokRParen {
			return nil, cgerrors.QuerySyntaxError("unbalanced '('", tok.pos)
		}
		if p.pos-1 == inner {
			return nil, cgerrors.QuerySyntaxError("empty group", tok.pos)
		}
		// Juxtaposed clauses inside a group match when any of them does
		return combine(KindOr, children), nil
	case tokEOF:
		return nil, cgerrors.QuerySyntaxError("dangling operator", tok.pos)
	default:
		return nil, cgerrors.QuerySyntaxError("unexpected "+tok.kind.String(), tok.pos)
	}
}

// leaf analyzes a word or phrase. Nil when nothing searchable remains.
func (p *parser) leaf(kind Kind, tok token) *Node {
	if kind == KindPhrase && strings.TrimSpace(tok.text) == "" {
		return nil
	}
	tokens := p.analyzer.Analyze([]byte(tok.text))
	if len(tokens) == 0 {
		return nil
	}
	pieces := make([]Piece, len(tokens))
	base := tokens[0].Position
	for i, t := range tokens {
		pieces[i] = Piece{
			Term:    t.Term,
			Surface: tok.text[t.Start:t.End],
			Offset:  t.Position - base,
		}
	}
	text := tok.text
	if kind == KindPhrase {
		text = strings.Join(strings.Fields(text), " ")
	}
	return &Node{Kind: kind, Text: text, Pieces: pieces}
}

// wrap builds a single-child node; dropped children drop the wrapper.
func wrap(kind Kind, child *Node) *Node {
	if child == nil {
		return nil
	}
	return &Node{Kind: kind, Children: []*Node{child}}
}

// combine builds an And/Or node, flattening nested nodes of the same kind
// and collapsing groups left with a single child.
func combine(kind Kind, children []*Node) *Node {
	var kept []*Node
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.Kind == kind {
			kept = append(kept, c.Children...)
			continue
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &Node{Kind: kind, Children: kept}
}
