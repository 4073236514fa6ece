package rank

import (
	"math"
	"sort"

	"github.com/Aman-CERP/codegrip/internal/query"
	"github.com/Aman-CERP/codegrip/internal/terms"
)

// EliminatedScore is the score of a document rejected by a Required or
// Excluded clause.
const EliminatedScore = -1.0

// docIndex is the per-document analysis shared by filtering and scoring.
type docIndex struct {
	source  []byte
	path    []byte
	content *terms.Index
	pathIx  *terms.Index
}

// leafMatch holds the occurrences of one query leaf inside one document.
// For a Term each piece has its own list; a Phrase has a single list of spans.
type leafMatch struct {
	leaf   *query.Node
	pieces [][]terms.Occurrence
	inPath bool
}

// present reports whether every piece occurs at least once.
func (m *leafMatch) present() bool {
	if len(m.pieces) == 0 {
		return false
	}
	for _, occs := range m.pieces {
		if len(occs) == 0 {
			return false
		}
	}
	return true
}

// tf returns the leaf frequency inside [lo, hi): the minimum piece count.
func (m *leafMatch) tf(lo, hi int) int {
	if len(m.pieces) == 0 {
		return 0
	}
	minCount := math.MaxInt
	for _, occs := range m.pieces {
		n := countWithin(occs, lo, hi)
		if n < minCount {
			minCount = n
		}
	}
	return minCount
}

// hits returns the start offsets of every occurrence.
func (m *leafMatch) hits() []int {
	var out []int
	for _, occs := range m.pieces {
		for _, occ := range occs {
			out = append(out, occ.Start)
		}
	}
	return out
}

func countWithin(occs []terms.Occurrence, lo, hi int) int {
	// Occurrences are sorted by start offset
	i := sort.Search(len(occs), func(i int) bool { return occs[i].Start >= lo })
	j := sort.Search(len(occs), func(j int) bool { return occs[j].Start >= hi })
	n := 0
	for k := i; k < j; k++ {
		if occs[k].End <= hi {
			n++
		}
	}
	return n
}

// matchLeaf finds a leaf's occurrences in an index. Case-sensitive matching
// compares each piece's source slice to the query surface.
func matchLeaf(ix *terms.Index, source []byte, leaf *query.Node, caseSensitive bool) [][]terms.Occurrence {
	surfaceOK := func(piece int, occ terms.Occurrence) bool {
		return string(source[occ.Start:occ.End]) == leaf.Pieces[piece].Surface
	}

	if leaf.Kind == query.KindPhrase && len(leaf.Pieces) > 1 {
		pieces := make([]string, len(leaf.Pieces))
		offsets := make([]int, len(leaf.Pieces))
		for i, p := range leaf.Pieces {
			pieces[i] = p.Term
			offsets[i] = p.Offset
		}
		var accept func(int, terms.Occurrence) bool
		if caseSensitive {
			accept = surfaceOK
		}
		return [][]terms.Occurrence{ix.PhraseOccurrences(pieces, offsets, accept)}
	}

	out := make([][]terms.Occurrence, len(leaf.Pieces))
	for i, p := range leaf.Pieces {
		occs := ix.Occurrences(p.Term)
		if caseSensitive {
			var kept []terms.Occurrence
			for _, occ := range occs {
				if surfaceOK(i, occ) {
					kept = append(kept, occ)
				}
			}
			occs = kept
		}
		out[i] = occs
	}
	return out
}

// evaluator answers boolean questions about one document.
type evaluator struct {
	ix            *docIndex
	caseSensitive bool
	cache         map[*query.Node]*leafMatch
	adjacentCache map[*query.Node]*leafMatch
}

func newEvaluator(ix *docIndex, caseSensitive bool) *evaluator {
	return &evaluator{
		ix:            ix,
		caseSensitive: caseSensitive,
		cache:         make(map[*query.Node]*leafMatch),
		adjacentCache: make(map[*query.Node]*leafMatch),
	}
}

func (e *evaluator) leaf(n *query.Node) *leafMatch {
	if m, ok := e.cache[n]; ok {
		return m
	}
	m := e.find(n, n)
	e.cache[n] = m
	return m
}

// adjacent matches a multi-piece word only where its pieces keep their
// relative positions, as a phrase does. Other leaves match as usual.
func (e *evaluator) adjacent(n *query.Node) *leafMatch {
	if n.Kind != query.KindTerm || len(n.Pieces) < 2 {
		return e.leaf(n)
	}
	if m, ok := e.adjacentCache[n]; ok {
		return m
	}
	m := e.find(n, &query.Node{Kind: query.KindPhrase, Text: n.Text, Pieces: n.Pieces})
	e.adjacentCache[n] = m
	return m
}

// find looks target up in the content and path indexes on behalf of n.
func (e *evaluator) find(n, target *query.Node) *leafMatch {
	m := &leafMatch{
		leaf:   n,
		pieces: matchLeaf(e.ix.content, e.ix.source, target, e.caseSensitive),
	}
	if e.ix.pathIx != nil {
		pathMatch := &leafMatch{pieces: matchLeaf(e.ix.pathIx, e.ix.path, target, e.caseSensitive)}
		m.inPath = pathMatch.present()
	}
	return m
}

// match evaluates a node as a boolean filter over content and path. Under
// +, - and NOT a multi-piece word must occur as a whole.
func (e *evaluator) match(n *query.Node, whole bool) bool {
	switch n.Kind {
	case query.KindTerm, query.KindPhrase:
		m := e.leaf(n)
		if whole {
			m = e.adjacent(n)
		}
		return m.present() || m.inPath
	case query.KindAnd:
		for _, c := range n.Children {
			if !e.match(c, whole) {
				return false
			}
		}
		return true
	case query.KindOr:
		for _, c := range n.Children {
			if e.match(c, whole) {
				return true
			}
		}
		return false
	case query.KindNot, query.KindExcluded:
		return !e.match(n.Children[0], true)
	case query.KindRequired:
		return e.match(n.Children[0], true)
	}
	return false
}

// passes applies every top-level filter clause. Bare leaves only score.
func (e *evaluator) passes(q *query.Query) bool {
	for _, c := range q.Clauses {
		if c.IsLeaf() {
			continue
		}
		if !e.match(c, false) {
			return false
		}
	}
	return true
}

// scorer holds the corpus statistics for one Rank call.
type scorer struct {
	opts Options
	idf  map[string]float64
}

// saturate is tf·(k1+1)/(tf+k1): monotonic with diminishing returns.
func (s *scorer) saturate(tf int) float64 {
	if tf <= 0 {
		return 0
	}
	f := float64(tf)
	return f * (s.opts.K1 + 1) / (f + s.opts.K1)
}

// weight applies the configured term frequency weighting.
func (s *scorer) weight(tf int) float64 {
	switch s.opts.Scorer {
	case ScorerTFIDF:
		return float64(max(tf, 0))
	case ScorerHybrid:
		return (s.saturate(tf) + float64(max(tf, 0))) / 2
	}
	return s.saturate(tf)
}

func (s *scorer) leafIDF(leaf *query.Node) float64 {
	sum := 0.0
	for _, p := range leaf.Pieces {
		sum += s.idf[p.Term]
	}
	return sum
}

// score sums leaf contributions over [lo, hi). Leaves are visited in query
// order, so the float sum is identical on every run.
func (s *scorer) score(e *evaluator, leaves []*query.Node, lo, hi int) (float64, []string) {
	total := 0.0
	var matched []string
	for _, leaf := range leaves {
		m := e.leaf(leaf)
		idf := s.leafIDF(leaf)

		contrib := idf * s.weight(m.tf(lo, hi))
		if leaf.Kind == query.KindPhrase {
			contrib *= 1 + s.opts.PhraseBonus
		}
		if m.inPath {
			contrib += idf * s.opts.FilenameBoost
		}
		if contrib > 0 {
			total += contrib
			matched = append(matched, leaf.Text)
		}
	}
	sort.Strings(matched)
	return total, dedupe(matched)
}

func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, s := range sorted[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

// idf is the BM25 inverse document frequency, always positive.
func idf(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}
