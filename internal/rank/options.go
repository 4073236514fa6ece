package rank

import (
	"runtime"
	"strings"

	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
)

// Scoring defaults. The saturation curve and bonuses are tunable; any
// monotonic setting keeps the ordering guarantees.
const (
	// DefaultK1 is the term frequency saturation parameter.
	DefaultK1 = 1.2

	// DefaultPhraseBonus multiplies phrase leaf scores by (1 + bonus).
	DefaultPhraseBonus = 0.25

	// DefaultFilenameBoost weights a query leaf found in the file path.
	DefaultFilenameBoost = 0.5

	// TestFilePenalty reduces test file scores to prioritize real implementations.
	TestFilePenalty = 0.5

	// DefaultMergeThreshold merges blocks separated by at most this many lines.
	DefaultMergeThreshold = 5

	// DefaultContextLines sizes the line window used when no block resolver applies.
	DefaultContextLines = 3
)

// Scorer names the per-leaf term frequency weighting.
type Scorer string

const (
	// ScorerBM25 weights a leaf by idf·tf·(k1+1)/(tf+k1).
	ScorerBM25 Scorer = "bm25"

	// ScorerTFIDF weights a leaf by idf·tf.
	ScorerTFIDF Scorer = "tfidf"

	// ScorerHybrid averages the bm25 and tfidf weights.
	ScorerHybrid Scorer = "hybrid"
)

// Options configures a Ranker.
type Options struct {
	K1            float64
	PhraseBonus   float64
	FilenameBoost float64

	// Scorer selects the term frequency weighting (default: bm25).
	Scorer Scorer

	// ExcludeFilenames ignores file paths: a path hit neither satisfies a
	// clause nor earns the filename boost.
	ExcludeFilenames bool

	// CaseSensitive requires query pieces to match the source text exactly.
	CaseSensitive bool

	// AllowTests disables the test file penalty.
	AllowTests bool

	// Workers bounds parallel scoring (default: runtime.NumCPU()).
	Workers int

	// MergeThreshold merges blocks whose line gap is at most this value.
	// Negative disables merging of non-overlapping blocks.
	MergeThreshold int

	// PlainTextFallback scores files without a grammar, or with parse
	// errors, using line windows instead of skipping them.
	PlainTextFallback bool

	// ContextLines sizes fallback line windows.
	ContextLines int
}

// DefaultOptions returns the default ranking options.
func DefaultOptions() Options {
	return Options{
		K1:             DefaultK1,
		PhraseBonus:    DefaultPhraseBonus,
		FilenameBoost:  DefaultFilenameBoost,
		Scorer:         ScorerBM25,
		Workers:        runtime.NumCPU(),
		MergeThreshold: DefaultMergeThreshold,
		ContextLines:   DefaultContextLines,
	}
}

// withDefaults fills zero values.
func (o Options) withDefaults() Options {
	if o.K1 <= 0 {
		o.K1 = DefaultK1
	}
	if o.Scorer == "" {
		o.Scorer = ScorerBM25
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.ContextLines <= 0 {
		o.ContextLines = DefaultContextLines
	}
	return o
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.K1 < 0 {
		return cgerrors.ValidationError("k1 must be non-negative", nil)
	}
	if o.PhraseBonus < 0 {
		return cgerrors.ValidationError("phrase bonus must be non-negative", nil)
	}
	if o.FilenameBoost < 0 {
		return cgerrors.ValidationError("filename boost must be non-negative", nil)
	}
	if o.Workers < 0 {
		return cgerrors.ValidationError("workers must be non-negative", nil)
	}
	switch o.Scorer {
	case "", ScorerBM25, ScorerTFIDF, ScorerHybrid:
	default:
		return cgerrors.ValidationError("unknown scorer "+string(o.Scorer), nil).
			WithSuggestion("Use bm25, tfidf or hybrid")
	}
	return nil
}

// IsTestFile checks if a file path is a test file.
// Supports Go (_test.go), JavaScript/TypeScript (.test.js, .spec.ts, etc.),
// Python (test_*.py, *_test.py), Rust and Java conventions, and test directories.
func IsTestFile(filePath string) bool {
	filePath = strings.ReplaceAll(filePath, "\\", "/")

	// Go test files
	if strings.HasSuffix(filePath, "_test.go") {
		return true
	}

	// JavaScript/TypeScript test files
	if strings.Contains(filePath, ".test.") || strings.Contains(filePath, ".spec.") {
		return true
	}

	fileName := filePath
	if idx := strings.LastIndex(filePath, "/"); idx >= 0 {
		fileName = filePath[idx+1:]
	}

	// Python test files (test_*.py or *_test.py)
	if strings.HasPrefix(fileName, "test_") && strings.HasSuffix(fileName, ".py") {
		return true
	}
	if strings.HasSuffix(fileName, "_test.py") || strings.HasSuffix(fileName, "_test.rs") {
		return true
	}

	// Java test classes
	if strings.HasSuffix(fileName, "Test.java") || strings.HasSuffix(fileName, "Tests.java") {
		return true
	}

	// Test directories (with or without leading slash)
	if strings.Contains(filePath, "/test/") || strings.Contains(filePath, "/tests/") {
		return true
	}
	if strings.HasPrefix(filePath, "test/") || strings.HasPrefix(filePath, "tests/") {
		return true
	}
	if strings.Contains(filePath, "/__tests__/") || strings.HasPrefix(filePath, "__tests__/") {
		return true
	}

	return false
}
