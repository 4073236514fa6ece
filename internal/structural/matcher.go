package structural

import (
	"context"
	"log/slog"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/codegrip/internal/document"
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/grammar"
)

// Options configures a Matcher.
type Options struct {
	// Nested also reports matches inside an already matched node.
	Nested bool

	// Workers bounds parallel matching (default: runtime.NumCPU()).
	Workers int
}

// Result is the outcome of one Run.
type Result struct {
	Matches     []document.Match
	Diagnostics []document.Diagnostic
	Cancelled   bool
}

// Matcher runs a pattern over many documents.
type Matcher struct {
	registry *grammar.LanguageRegistry
	opts     Options
	logger   *slog.Logger
}

// NewMatcher creates a Matcher. A nil registry uses the default one.
func NewMatcher(registry *grammar.LanguageRegistry, opts Options, logger *slog.Logger) *Matcher {
	if registry == nil {
		registry = grammar.DefaultRegistry()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{registry: registry, opts: opts, logger: logger}
}

// Compile compiles pattern for every language in docs, or only for
// languageHint when it is set. Pattern errors fail the call.
func (m *Matcher) Compile(ctx context.Context, pattern string, languageHint string, docs []*document.Document) (map[string]*Pattern, error) {
	var langs []string
	if languageHint != "" {
		g, err := m.registry.ByName(languageHint)
		if err != nil {
			return nil, err
		}
		langs = []string{g.Name()}
	} else {
		seen := make(map[string]bool)
		for _, doc := range docs {
			if doc.Language != "" && !seen[doc.Language] {
				seen[doc.Language] = true
				langs = append(langs, doc.Language)
			}
		}
		sort.Strings(langs)
	}

	patterns := make(map[string]*Pattern, len(langs))
	for _, lang := range langs {
		g, err := m.registry.ByName(lang)
		if err != nil {
			return nil, err
		}
		p, err := Compile(ctx, pattern, g)
		if err != nil {
			return nil, err
		}
		patterns[lang] = p
	}
	return patterns, nil
}

type docMatches struct {
	matches []document.Match
	diag    *document.Diagnostic
	err     error
}

// Run matches pattern against docs. Documents in another language than the
// hint are ignored; unsupported or unparseable documents are reported as
// diagnostics, and any other failure fails the call. Matches are ordered by
// path, then position.
func (m *Matcher) Run(ctx context.Context, docs []*document.Document, pattern string, languageHint string) (*Result, error) {
	patterns, err := m.Compile(ctx, pattern, languageHint, docs)
	if err != nil {
		if ctx.Err() != nil {
			return &Result{Cancelled: true}, nil
		}
		return nil, err
	}

	slots := make([]docMatches, len(docs))
	g := new(errgroup.Group)
	g.SetLimit(m.opts.Workers)
	for i, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			slots[i] = m.matchDocument(ctx, doc, patterns, languageHint != "")
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{Cancelled: ctx.Err() != nil}
	for _, s := range slots {
		if s.err != nil {
			return nil, s.err
		}
		result.Matches = append(result.Matches, s.matches...)
		if s.diag != nil {
			result.Diagnostics = append(result.Diagnostics, *s.diag)
		}
	}
	SortMatches(result.Matches)

	m.logger.Debug("structural_complete",
		slog.String("pattern", pattern),
		slog.Int("documents", len(docs)),
		slog.Int("matches", len(result.Matches)),
		slog.Bool("cancelled", result.Cancelled))

	return result, nil
}

func (m *Matcher) matchDocument(ctx context.Context, doc *document.Document, patterns map[string]*Pattern, hinted bool) docMatches {
	p, ok := patterns[doc.Language]
	if !ok {
		if doc.Language != "" && hinted {
			return docMatches{}
		}
		_, err := doc.Grammar()
		return m.skip(doc, err)
	}

	tree, err := doc.Tree(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return docMatches{}
		}
		return m.skip(doc, err)
	}

	found, _ := p.MatchTree(ctx, tree, m.opts.Nested)
	g, _ := doc.Grammar()
	out := make([]document.Match, 0, len(found))
	for _, tm := range found {
		n := tree.Node(tm.Node)
		out = append(out, document.Match{
			Kind:       document.KindStructural,
			Path:       doc.Path,
			Range:      doc.RangeFor(int(n.StartByte), int(n.EndByte)),
			FirstMatch: int(n.StartByte),
			Bindings:   tm.BindingMap(),
			UnitKind:   g.UnitKind(n.Kind),
		})
	}
	return docMatches{matches: out}
}

// skip reports a failure confined to doc as a diagnostic.
func (m *Matcher) skip(doc *document.Document, err error) docMatches {
	if err == nil {
		err = cgerrors.UnsupportedLanguage(doc.Path)
	}
	if !cgerrors.IsLocal(err) {
		return docMatches{err: err}
	}
	m.logger.Debug("file_skipped",
		slog.String("path", doc.Path),
		slog.Any("error", cgerrors.FormatForLog(err)))
	return docMatches{diag: &document.Diagnostic{Path: doc.Path, Code: cgerrors.GetCode(err), Message: err.Error()}}
}

// SortMatches orders structural matches by path, then start byte, then end byte.
func SortMatches(matches []document.Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := &matches[i], &matches[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Range.StartByte != b.Range.StartByte {
			return a.Range.StartByte < b.Range.StartByte
		}
		return a.Range.EndByte < b.Range.EndByte
	})
}
