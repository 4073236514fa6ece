package query

import (
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokPhrase
	tokPlus
	tokMinus
	tokLParen
	tokRParen
	tokAnd
	tokOr
	tokNot
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokWord:
		return "word"
	case tokPhrase:
		return "phrase"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	}
	return "unknown"
}

type token struct {
	kind tokenKind
	text string // word text or phrase content without quotes
	pos  int    // byte offset in the query
}

// lex splits a query into tokens.
//
//	query   := clause (ws clause)*
//	clause  := ['+'|'-'] (word | phrase | group) | 'AND' | 'OR' | 'NOT'
//	group   := '(' query ')'
//	phrase  := '"' [^"]* '"'
//	word    := [^\s"()]+
//
// '+' and '-' are prefixes only at the start of a clause; inside a word
// they are ordinary characters ("foo-bar").
func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case isSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, pos: i})
			i++
		case c == '"':
			end := i + 1
			for end < len(input) && input[end] != '"' {
				end++
			}
			if end >= len(input) {
				return nil, cgerrors.QuerySyntaxError("unbalanced quote", i)
			}
			tokens = append(tokens, token{kind: tokPhrase, text: input[i+1 : end], pos: i})
			i = end + 1
		case c == '+' || c == '-':
			if i+1 >= len(input) || isSpace(input[i+1]) || input[i+1] == ')' {
				return nil, cgerrors.QuerySyntaxError("dangling operator '"+string(c)+"'", i)
			}
			kind := tokPlus
			if c == '-' {
				kind = tokMinus
			}
			tokens = append(tokens, token{kind: kind, pos: i})
			i++
		default:
			start := i
			for i < len(input) && !isSpace(input[i]) && input[i] != '"' && input[i] != '(' && input[i] != ')' {
				i++
			}
			word := input[start:i]
			switch word {
			case "AND":
				tokens = append(tokens, token{kind: tokAnd, text: word, pos: start})
			case "OR":
				tokens = append(tokens, token{kind: tokOr, text: word, pos: start})
			case "NOT":
				tokens = append(tokens, token{kind: tokNot, text: word, pos: start})
			default:
				tokens = append(tokens, token{kind: tokWord, text: word, pos: start})
			}
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
