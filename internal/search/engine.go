package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/codegrip/internal/assemble"
	"github.com/Aman-CERP/codegrip/internal/document"
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/extract"
	"github.com/Aman-CERP/codegrip/internal/grammar"
	"github.com/Aman-CERP/codegrip/internal/query"
	"github.com/Aman-CERP/codegrip/internal/rank"
	"github.com/Aman-CERP/codegrip/internal/structural"
	"github.com/Aman-CERP/codegrip/internal/terms"
	"github.com/Aman-CERP/codegrip/internal/tokens"
)

// Engine orchestrates term analysis, ranking, structural matching,
// extraction and budgeting over an in-memory set of files.
type Engine struct {
	registry  *grammar.LanguageRegistry
	extractor *extract.Extractor
	counter   tokens.Counter // nil: tokens.Default() on first use
	logger    *slog.Logger
	config    EngineConfig

	mu        sync.Mutex
	analyzers map[bool]*terms.Analyzer // keyed by Exact
}

// Ensure Engine implements Searcher interface.
var _ Searcher = (*Engine)(nil)

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithRegistry sets the grammar registry (default: grammar.DefaultRegistry()).
func WithRegistry(r *grammar.LanguageRegistry) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithCounter sets the token counter used for budgets.
func WithCounter(c tokens.Counter) EngineOption {
	return func(e *Engine) {
		e.counter = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine. Invalid scoring or term options fail here
// rather than on the first search.
func NewEngine(config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if err := config.Rank.Validate(); err != nil {
		return nil, err
	}
	if config.MaxResults <= 0 {
		config.MaxResults = DefaultMaxResults
	}
	if config.ContextLines <= 0 {
		config.ContextLines = extract.DefaultContextLines
	}

	e := &Engine{
		registry:  grammar.DefaultRegistry(),
		logger:    slog.Default(),
		config:    config,
		analyzers: make(map[bool]*terms.Analyzer, 2),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.extractor = extract.New(extract.WithContextLines(config.ContextLines), extract.WithLogger(e.logger))

	if _, err := e.analyzer(false); err != nil {
		return nil, err
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// analyzer returns the shared analyzer for the given exactness.
func (e *Engine) analyzer(exact bool) (*terms.Analyzer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if a, ok := e.analyzers[exact]; ok {
		return a, nil
	}
	opts := e.config.Terms
	opts.Exact = exact
	a, err := terms.NewAnalyzer(opts)
	if err != nil {
		return nil, err
	}
	e.analyzers[exact] = a
	return a, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.SearchTimeout > 0 {
		return context.WithTimeout(ctx, e.config.SearchTimeout)
	}
	return context.WithCancel(ctx)
}

// documents wraps files, keeping only those in language when it is set.
func (e *Engine) documents(files []document.File, language string) ([]*document.Document, error) {
	var lang string
	if language != "" {
		g, err := e.registry.ByName(language)
		if err != nil {
			return nil, err
		}
		lang = g.Name()
	}

	docs := make([]*document.Document, 0, len(files))
	for _, f := range files {
		doc := document.New(f, e.registry)
		if lang != "" && doc.Language != lang {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Search compiles query once, ranks every file in parallel and assembles
// the best blocks within the budget. With a pattern, nodes matching it
// inside files that pass the keyword query join the keyword blocks; they
// carry the file's keyword score.
func (e *Engine) Search(ctx context.Context, files []document.File, queryText string, opts SearchOptions) (*Response, error) {
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = e.applyDefaults(opts)

	analyzer, err := e.analyzer(opts.Exact)
	if err != nil {
		return nil, err
	}
	q, err := query.Compile(strings.TrimSpace(queryText), analyzer)
	if err != nil {
		return nil, err
	}

	docs, err := e.documents(files, opts.Language)
	if err != nil {
		return nil, err
	}

	mode := ModeKeyword
	if opts.Structural {
		mode = ModeCombined
	}
	e.logger.Debug("search_started",
		slog.String("mode", string(mode)),
		slog.String("query", q.String()),
		slog.Int("files", len(docs)),
		slog.Int("workers", opts.Workers))

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	rankOpts := e.config.Rank
	rankOpts.CaseSensitive = opts.CaseSensitive
	rankOpts.AllowTests = rankOpts.AllowTests || opts.AllowTests
	rankOpts.ExcludeFilenames = rankOpts.ExcludeFilenames || opts.ExcludeFilenames
	if opts.Scorer != "" {
		rankOpts.Scorer = opts.Scorer
	}
	rankOpts.Workers = opts.Workers
	rankOpts.MergeThreshold = opts.MergeThreshold

	ranker, err := rank.New(analyzer, rankOpts, rank.WithResolver(e.extractor), rank.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	ranked, err := ranker.Rank(ctx, docs, q)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Mode:         mode,
		Query:        q.String(),
		Pattern:      opts.Pattern,
		FilesScanned: len(files),
		Diagnostics:  ranked.Diagnostics,
	}

	matches := ranked.Matches
	if opts.Structural {
		matches, err = e.mergePattern(ctx, docs, ranked, opts, resp)
		if err != nil {
			return nil, err
		}
	}

	candidates := matches
	if opts.FilesOnly {
		candidates = assemble.FileMatches(ranked.Files)
	}
	resp.FilesMatched = countFiles(matches)

	out := assemble.Assemble(ctx, docs, candidates, assemble.Options{
		TokenBudget: opts.TokenBudget,
		MaxBytes:    opts.MaxBytes,
		MaxResults:  opts.MaxResults,
		FilesOnly:   opts.FilesOnly,
		Counter:     e.counter,
	})
	patternCancelled := resp.Cancelled
	resp.Output = *out
	resp.Cancelled = out.Cancelled || ranked.Cancelled || patternCancelled || ctx.Err() != nil
	resp.Duration = time.Since(start)

	e.logComplete(resp)
	return resp, nil
}

// mergePattern runs the structural matcher over the files that passed the
// keyword query, scores its matches with their file's score and merges them
// with the keyword blocks.
func (e *Engine) mergePattern(ctx context.Context, docs []*document.Document, ranked *rank.Result, opts SearchOptions, resp *Response) ([]document.Match, error) {
	survivors := make(map[string]rank.FileScore, len(ranked.Files))
	for _, f := range ranked.Files {
		survivors[f.Path] = f
	}
	kept := make([]*document.Document, 0, len(survivors))
	for _, doc := range docs {
		if _, ok := survivors[doc.Path]; ok {
			kept = append(kept, doc)
		}
	}

	matcher := structural.NewMatcher(e.registry, structural.Options{Workers: opts.Workers}, e.logger)
	res, err := matcher.Run(ctx, kept, opts.Pattern, opts.Language)
	if err != nil {
		return nil, err
	}
	resp.Diagnostics = appendDiagnostics(resp.Diagnostics, res.Diagnostics)
	if res.Cancelled {
		resp.Cancelled = true
	}

	for i := range res.Matches {
		m := &res.Matches[i]
		f := survivors[m.Path]
		m.Score = f.Score
		m.Terms = f.Terms
	}
	return assemble.Merge(ranked.Matches, res.Matches), nil
}

// Query runs a structural pattern over files. Results are ordered by path
// then position; they carry capture bindings instead of scores.
func (e *Engine) Query(ctx context.Context, files []document.File, pattern, languageHint string, opts QueryOptions) (*Response, error) {
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = e.applyQueryDefaults(opts)

	docs, err := e.documents(files, "")
	if err != nil {
		return nil, err
	}

	e.logger.Debug("search_started",
		slog.String("mode", string(ModeStructural)),
		slog.String("pattern", pattern),
		slog.String("language", languageHint),
		slog.Int("files", len(docs)),
		slog.Int("workers", opts.Workers))

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	matcher := structural.NewMatcher(e.registry, structural.Options{Nested: opts.Nested, Workers: opts.Workers}, e.logger)
	res, err := matcher.Run(ctx, docs, pattern, languageHint)
	if err != nil {
		return nil, err
	}

	matches := assemble.Merge(nil, res.Matches)
	candidates := matches
	if opts.FilesOnly {
		candidates = assemble.FileMatches(matchedFiles(matches))
	}

	out := assemble.Assemble(ctx, docs, candidates, assemble.Options{
		TokenBudget: opts.TokenBudget,
		MaxBytes:    opts.MaxBytes,
		MaxResults:  opts.MaxResults,
		FilesOnly:   opts.FilesOnly,
		Counter:     e.counter,
	})

	resp := &Response{
		Output:       *out,
		Mode:         ModeStructural,
		Pattern:      pattern,
		FilesScanned: len(files),
		FilesMatched: countFiles(matches),
		Diagnostics:  res.Diagnostics,
	}
	resp.Cancelled = out.Cancelled || res.Cancelled || ctx.Err() != nil
	resp.Duration = time.Since(start)

	e.logComplete(resp)
	return resp, nil
}

// Extract returns the smallest coherent block around loc. contextLines
// sizes the line-window fallback (0: engine config).
func (e *Engine) Extract(ctx context.Context, file document.File, loc document.Location, contextLines int) (*document.ExtractedBlock, error) {
	doc := document.New(file, e.registry)
	block, err := e.extractor.Extract(ctx, doc, loc, contextLines)
	if err != nil {
		e.logger.Debug("extract_failed",
			slog.String("path", file.Path),
			slog.String("location", loc.String()),
			slog.Any("error", cgerrors.FormatForLog(err)))
		return nil, err
	}
	e.logger.Debug("extract_complete",
		slog.String("path", file.Path),
		slog.String("location", loc.String()),
		slog.String("kind", string(block.Kind)),
		slog.Bool("fallback", block.Fallback))
	return block, nil
}

// Symbols lists the named extractable units of file.
func (e *Engine) Symbols(ctx context.Context, file document.File) ([]extract.Symbol, error) {
	return e.extractor.Symbols(ctx, document.New(file, e.registry))
}

func (e *Engine) logComplete(resp *Response) {
	e.logger.Info("search_complete",
		slog.String("mode", string(resp.Mode)),
		slog.Int("files", resp.FilesScanned),
		slog.Int("files_matched", resp.FilesMatched),
		slog.Int("results", len(resp.Records)),
		slog.Int("tokens", resp.TokensUsed),
		slog.Bool("truncated", resp.Truncated),
		slog.Bool("cancelled", resp.Cancelled),
		slog.Int("skipped", len(resp.Diagnostics)),
		slog.Duration("duration", resp.Duration))
}

func countFiles(matches []document.Match) int {
	seen := make(map[string]struct{})
	for _, m := range matches {
		seen[m.Path] = struct{}{}
	}
	return len(seen)
}

// matchedFiles lists each matched path once with its first match offset.
func matchedFiles(matches []document.Match) []rank.FileScore {
	var files []rank.FileScore
	index := make(map[string]int)
	for _, m := range matches {
		if i, ok := index[m.Path]; ok {
			if m.Range.StartByte < files[i].FirstMatch {
				files[i].FirstMatch = m.Range.StartByte
			}
			continue
		}
		index[m.Path] = len(files)
		files = append(files, rank.FileScore{Path: m.Path, FirstMatch: m.Range.StartByte})
	}
	return files
}

func appendDiagnostics(dst, src []document.Diagnostic) []document.Diagnostic {
	seen := make(map[string]bool, len(dst))
	for _, d := range dst {
		seen[d.Path+"\x00"+d.Code] = true
	}
	for _, d := range src {
		if !seen[d.Path+"\x00"+d.Code] {
			dst = append(dst, d)
		}
	}
	return dst
}
