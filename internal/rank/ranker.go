// Package rank scores documents and blocks against a compiled query.
//
// Required and Excluded clauses are hard filters; surviving documents are
// scored with a saturating term frequency function weighted by idf. Work is
// spread over a bounded worker pool, and every result lands in an
// index-addressed slot so that the final order comes from a deterministic
// sort, never from completion order.
package rank

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/codegrip/internal/document"
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/query"
	"github.com/Aman-CERP/codegrip/internal/terms"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// BlockResolver resolves a byte offset to its enclosing block.
type BlockResolver interface {
	ResolveOffset(ctx context.Context, doc *document.Document, offset int) (*document.ExtractedBlock, error)
}

// FileScore is the document-level outcome for one input document.
type FileScore struct {
	Path       string
	Score      float64 // EliminatedScore when a filter rejected the document
	FirstMatch int     // byte offset of the earliest content hit, -1 when none
	Terms      []string
	Eliminated bool
	Skipped    bool // not analyzed: unsupported, unparseable or cancelled
}

// Result is the outcome of one Rank call.
type Result struct {
	// Matches are block-level keyword matches in rank order.
	Matches []document.Match

	// Files are surviving documents with a positive score, in rank order.
	Files []FileScore

	// Scores holds one entry per input document, in input order.
	Scores []FileScore

	Diagnostics []document.Diagnostic
	Cancelled   bool
}

// Ranker scores documents against queries.
type Ranker struct {
	analyzer *terms.Analyzer
	resolver BlockResolver
	opts     Options
	logger   *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithResolver sets the block resolver used for block-level results.
func WithResolver(resolver BlockResolver) Option {
	return func(r *Ranker) {
		r.resolver = resolver
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Ranker. The analyzer must be the one the query was compiled with.
func New(analyzer *terms.Analyzer, opts Options, options ...Option) (*Ranker, error) {
	if analyzer == nil {
		return nil, ErrNilDependency
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	r := &Ranker{
		analyzer: analyzer,
		opts:     opts.withDefaults(),
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// docState is one worker slot.
type docState struct {
	ix      *docIndex
	skipped bool
	diag    *document.Diagnostic
	err     error
	score   FileScore
	blocks  []document.Match
}

// Rank filters, scores and block-resolves docs. Cancellation is checked
// between documents; a cancelled call returns the results produced so far.
// A document failure that is not local to it fails the call.
func (r *Ranker) Rank(ctx context.Context, docs []*document.Document, q *query.Query) (*Result, error) {
	if q == nil {
		return nil, ErrNilDependency
	}

	states := make([]docState, len(docs))

	// Phase 1: analyze every document
	r.forEach(ctx, docs, func(i int, doc *document.Document) {
		states[i] = r.analyze(ctx, doc)
	})
	for i := range states {
		if states[i].err != nil {
			return nil, states[i].err
		}
	}

	// Phase 2: corpus statistics, single-threaded
	sc := &scorer{opts: r.opts, idf: r.computeIDF(states, q)}
	leaves := q.PositiveLeaves()

	// Phase 3: filter, score and resolve blocks
	r.forEach(ctx, docs, func(i int, doc *document.Document) {
		if states[i].ix == nil {
			return
		}
		r.scoreDocument(ctx, doc, q, leaves, sc, &states[i])
	})

	result := &Result{
		Scores:    make([]FileScore, len(docs)),
		Cancelled: ctx.Err() != nil,
	}
	for i := range states {
		st := &states[i]
		if st.ix == nil {
			st.score = FileScore{Path: docs[i].Path, FirstMatch: -1, Skipped: true}
		}
		result.Scores[i] = st.score
		if st.diag != nil {
			result.Diagnostics = append(result.Diagnostics, *st.diag)
		}
		if !st.score.Eliminated && st.score.Score > 0 {
			result.Files = append(result.Files, st.score)
			result.Matches = append(result.Matches, st.blocks...)
		}
	}

	SortFiles(result.Files)
	SortMatches(result.Matches)

	r.logger.Debug("rank_complete",
		slog.Int("documents", len(docs)),
		slog.Int("files", len(result.Files)),
		slog.Int("blocks", len(result.Matches)),
		slog.Int("diagnostics", len(result.Diagnostics)),
		slog.Bool("cancelled", result.Cancelled))

	return result, nil
}

// forEach runs fn over docs on a bounded pool, skipping remaining
// documents once ctx is done. fn writes only to its own slot.
func (r *Ranker) forEach(ctx context.Context, docs []*document.Document, fn func(i int, doc *document.Document)) {
	g := new(errgroup.Group)
	g.SetLimit(r.opts.Workers)
	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			fn(i, doc)
			return nil
		})
	}
	_ = g.Wait()
}

// analyze checks the document's language and parse state and builds its term index.
func (r *Ranker) analyze(ctx context.Context, doc *document.Document) docState {
	if !r.opts.PlainTextFallback {
		if _, err := doc.Tree(ctx); err != nil {
			if ctx.Err() != nil {
				return docState{skipped: true}
			}
			if !cgerrors.IsLocal(err) {
				return docState{err: err}
			}
			r.logger.Debug("file_skipped",
				slog.String("path", doc.Path),
				slog.Any("error", cgerrors.FormatForLog(err)))
			return docState{skipped: true, diag: diagnostic(doc.Path, err)}
		}
	}

	ix := &docIndex{
		source:  doc.Content,
		path:    []byte(doc.Path),
		content: r.analyzer.Index(doc.Content),
	}
	if !r.opts.ExcludeFilenames {
		ix.pathIx = r.analyzer.Index(ix.path)
	}
	return docState{ix: ix}
}

// computeIDF counts document frequency over analyzed documents.
func (r *Ranker) computeIDF(states []docState, q *query.Query) map[string]float64 {
	n := 0
	df := make(map[string]int)
	qterms := q.Terms()
	for i := range states {
		ix := states[i].ix
		if ix == nil {
			continue
		}
		n++
		for _, term := range qterms {
			if ix.content.Has(term) || (ix.pathIx != nil && ix.pathIx.Has(term)) {
				df[term]++
			}
		}
	}

	out := make(map[string]float64, len(qterms))
	for _, term := range qterms {
		out[term] = idf(n, df[term])
	}
	return out
}

func (r *Ranker) scoreDocument(ctx context.Context, doc *document.Document, q *query.Query, leaves []*query.Node, sc *scorer, st *docState) {
	ev := newEvaluator(st.ix, r.opts.CaseSensitive)

	if !ev.passes(q) {
		st.score = FileScore{Path: doc.Path, Score: EliminatedScore, FirstMatch: -1, Eliminated: true}
		return
	}

	score, matched := sc.score(ev, leaves, 0, len(doc.Content))
	penalty := 1.0
	if !r.opts.AllowTests && IsTestFile(doc.Path) {
		penalty = TestFilePenalty
	}

	hits := collectHits(ev, leaves)
	first := -1
	if len(hits) > 0 {
		first = hits[0]
	}
	st.score = FileScore{
		Path:       doc.Path,
		Score:      score * penalty,
		FirstMatch: first,
		Terms:      matched,
	}
	if score <= 0 {
		return
	}

	st.blocks = r.resolveBlocks(ctx, doc, ev, sc, leaves, hits, penalty)
}

// collectHits returns the sorted, distinct start offsets of positive leaf hits.
func collectHits(ev *evaluator, leaves []*query.Node) []int {
	seen := make(map[int]bool)
	var hits []int
	for _, leaf := range leaves {
		m := ev.leaf(leaf)
		if !m.present() {
			continue
		}
		for _, h := range m.hits() {
			if !seen[h] {
				seen[h] = true
				hits = append(hits, h)
			}
		}
	}
	sort.Ints(hits)
	return hits
}

func diagnostic(path string, err error) *document.Diagnostic {
	code := cgerrors.GetCode(err)
	if code == "" {
		code = cgerrors.ErrCodeInternal
	}
	return &document.Diagnostic{Path: path, Code: code, Message: err.Error()}
}

// SortFiles orders file scores by score descending, then path, then first match.
func SortFiles(files []FileScore) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.FirstMatch < b.FirstMatch
	})
}

// SortMatches orders matches by score descending, then path, then start byte.
func SortMatches(matches []document.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return Less(&matches[i], &matches[j])
	})
}

// Less is the deterministic match order shared with the assembler.
func Less(a, b *document.Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	if a.Range.StartByte != b.Range.StartByte {
		return a.Range.StartByte < b.Range.StartByte
	}
	if a.Range.EndByte != b.Range.EndByte {
		return a.Range.EndByte < b.Range.EndByte
	}
	return a.Kind < b.Kind
}
