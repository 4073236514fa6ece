// Package terms turns source text into normalized search terms.
//
// The pipeline is a bleve analyzer: a code tokenizer that decompounds
// identifiers, then lowercase, minimum length, code stop words and a stemmer.
// Output is a pure function of the input, so analyzers are safe to share.
package terms

import (
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/surgebase/porter2"

	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
)

// Stemmer names.
const (
	StemmerPorter2 = "porter2"
	StemmerPorter  = "porter"
	StemmerNone    = "none"
)

// DefaultMinTermLength drops single-character pieces.
const DefaultMinTermLength = 2

// Options configures an Analyzer.
type Options struct {
	// Stemmer is porter2 (default), porter or none.
	Stemmer string

	// MinTermLength drops shorter pieces (default: 2).
	MinTermLength int

	// StopWords replaces DefaultCodeStopWords when non-nil.
	StopWords []string

	// Exact keeps whole identifiers (underscores included) and disables stemming.
	Exact bool

	// CacheSize bounds the decompounding memo (default: DefaultSplitCacheSize).
	CacheSize int
}

// DefaultOptions returns the default analysis options.
func DefaultOptions() Options {
	return Options{
		Stemmer:       StemmerPorter2,
		MinTermLength: DefaultMinTermLength,
		CacheSize:     DefaultSplitCacheSize,
	}
}

// DefaultCodeStopWords contains keywords and filler words that carry no
// search signal in code.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "fn", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"err", "ctx", "tmp",
	"the", "and", "or", "of", "to", "in", "is", "it", "an", "as", "at", "be", "on",
}

// Token is one analyzed term with its exact source offsets.
type Token struct {
	Term     string // normalized term
	Start    int    // byte offset in the analyzed text
	End      int
	Position int // 1-based; gaps remain where pieces were dropped
}

// Analyzer converts text into terms.
type Analyzer struct {
	opts     Options
	analyzer *analysis.DefaultAnalyzer
	stop     map[string]struct{}
}

// NewAnalyzer builds an analyzer. Unknown stemmer names are a config error.
func NewAnalyzer(opts Options) (*Analyzer, error) {
	if opts.MinTermLength <= 0 {
		opts.MinTermLength = DefaultMinTermLength
	}
	if opts.Stemmer == "" {
		opts.Stemmer = StemmerPorter2
	}
	if opts.Exact {
		opts.Stemmer = StemmerNone
	}

	stopWords := opts.StopWords
	if stopWords == nil {
		stopWords = DefaultCodeStopWords
	}
	stop := BuildStopWordMap(stopWords)

	filters := []analysis.TokenFilter{
		lowercase.NewLowerCaseFilter(),
		length.NewLengthFilter(opts.MinTermLength, -1),
		&codeStopFilter{stopWords: stop},
	}
	switch strings.ToLower(opts.Stemmer) {
	case StemmerPorter2:
		filters = append(filters, &porter2Filter{minLength: 3})
	case StemmerPorter:
		filters = append(filters, porter.NewPorterStemmer())
	case StemmerNone:
	default:
		return nil, cgerrors.ConfigError("unknown stemmer: "+opts.Stemmer, nil).
			WithSuggestion("use one of: porter2, porter, none")
	}

	return &Analyzer{
		opts: opts,
		analyzer: &analysis.DefaultAnalyzer{
			Tokenizer: &codeTokenizer{
				decompound: !opts.Exact,
				splits:     sharedSplits(opts.CacheSize),
			},
			TokenFilters: filters,
		},
		stop: stop,
	}, nil
}

// MustAnalyzer is NewAnalyzer for options known to be valid.
func MustAnalyzer(opts Options) *Analyzer {
	a, err := NewAnalyzer(opts)
	if err != nil {
		panic(err)
	}
	return a
}

// Options returns the analyzer's effective options.
func (a *Analyzer) Options() Options {
	return a.opts
}

// Analyze returns the ordered terms of text with byte offsets.
func (a *Analyzer) Analyze(text []byte) []Token {
	stream := a.analyzer.Analyze(text)
	out := make([]Token, 0, len(stream))
	for _, tok := range stream {
		out = append(out, Token{
			Term:     string(tok.Term),
			Start:    tok.Start,
			End:      tok.End,
			Position: tok.Position,
		})
	}
	return out
}

// Tokenize returns only the normalized terms of text.
func (a *Analyzer) Tokenize(text string) []string {
	tokens := a.Analyze([]byte(text))
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Term
	}
	return out
}

// IsStopWord reports whether a lowercased piece is on the stop list.
func (a *Analyzer) IsStopWord(word string) bool {
	_, ok := a.stop[strings.ToLower(word)]
	return ok
}

// codeStopFilter implements analysis.TokenFilter for code stop words.
type codeStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *codeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[string(token.Term)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// porter2Filter stems terms with the English porter2 algorithm.
type porter2Filter struct {
	minLength int
}

// Filter implements analysis.TokenFilter.
func (f *porter2Filter) Filter(input analysis.TokenStream) analysis.TokenStream {
	for _, token := range input {
		if token.Type == analysis.Numeric || len(token.Term) < f.minLength {
			continue
		}
		token.Term = []byte(porter2.Stem(string(token.Term)))
	}
	return input
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
