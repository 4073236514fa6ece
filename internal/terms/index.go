package terms

import "sort"

// Occurrence is one position of a term inside a document.
type Occurrence struct {
	Start    int
	End      int
	Position int
}

// Index maps each term of one document to its occurrences.
// It is built once per document and never mutated afterwards.
type Index struct {
	tokens []Token
	terms  map[string][]Occurrence
}

// Index analyzes content into a per-document term index.
func (a *Analyzer) Index(content []byte) *Index {
	tokens := a.Analyze(content)
	ix := &Index{
		tokens: tokens,
		terms:  make(map[string][]Occurrence, len(tokens)/2),
	}
	for _, tok := range tokens {
		ix.terms[tok.Term] = append(ix.terms[tok.Term], Occurrence{
			Start:    tok.Start,
			End:      tok.End,
			Position: tok.Position,
		})
	}
	return ix
}

// Tokens returns the document's analyzed tokens in order.
func (ix *Index) Tokens() []Token {
	return ix.tokens
}

// Occurrences returns the occurrences of a term in source order.
func (ix *Index) Occurrences(term string) []Occurrence {
	return ix.terms[term]
}

// TF returns the term frequency.
func (ix *Index) TF(term string) int {
	return len(ix.terms[term])
}

// Has reports whether the term occurs at least once.
func (ix *Index) Has(term string) bool {
	return len(ix.terms[term]) > 0
}

// Len returns the number of distinct terms.
func (ix *Index) Len() int {
	return len(ix.terms)
}

// Terms returns the distinct terms, sorted.
func (ix *Index) Terms() []string {
	out := make([]string, 0, len(ix.terms))
	for term := range ix.terms {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// PhraseOccurrences returns the spans where the pieces occur at the given
// relative positions. offsets[i] is the position of pieces[i] relative to
// pieces[0]. accept, when non-nil, can veto the occurrence chosen for a
// piece. Each result spans from the first to the last piece.
func (ix *Index) PhraseOccurrences(pieces []string, offsets []int, accept func(piece int, occ Occurrence) bool) []Occurrence {
	if len(pieces) == 0 || len(pieces) != len(offsets) {
		return nil
	}

	var out []Occurrence
	for _, first := range ix.terms[pieces[0]] {
		if accept != nil && !accept(0, first) {
			continue
		}
		end := first.End
		ok := true
		for i := 1; i < len(pieces); i++ {
			occ, found := ix.At(pieces[i], first.Position+offsets[i])
			if !found || (accept != nil && !accept(i, occ)) {
				ok = false
				break
			}
			if occ.End > end {
				end = occ.End
			}
		}
		if ok {
			out = append(out, Occurrence{Start: first.Start, End: end, Position: first.Position})
		}
	}
	return out
}

// At finds the occurrence of term at an exact position.
func (ix *Index) At(term string, position int) (Occurrence, bool) {
	occs := ix.terms[term]
	i := sort.Search(len(occs), func(i int) bool { return occs[i].Position >= position })
	if i < len(occs) && occs[i].Position == position {
		return occs[i], true
	}
	return Occurrence{}, false
}
