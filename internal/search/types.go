// Package search provides the engine behind codegrip's three operations:
// keyword search, structural query and block extraction.
package search

import (
	"context"
	"time"

	"github.com/Aman-CERP/codegrip/internal/assemble"
	"github.com/Aman-CERP/codegrip/internal/document"
	"github.com/Aman-CERP/codegrip/internal/rank"
	"github.com/Aman-CERP/codegrip/internal/terms"
)

// Searcher is the operation surface of the engine.
type Searcher interface {
	// Search runs a keyword query, optionally combined with a structural pattern.
	Search(ctx context.Context, files []document.File, query string, opts SearchOptions) (*Response, error)

	// Query runs a structural pattern.
	Query(ctx context.Context, files []document.File, pattern, languageHint string, opts QueryOptions) (*Response, error)

	// Extract returns the coherent block around a location.
	Extract(ctx context.Context, file document.File, loc document.Location, contextLines int) (*document.ExtractedBlock, error)
}

// Mode names the operation that produced a Response.
type Mode string

const (
	// ModeKeyword is a keyword search.
	ModeKeyword Mode = "keyword"

	// ModeStructural is a structural query.
	ModeStructural Mode = "structural"

	// ModeCombined is a keyword search restricted by a structural pattern.
	ModeCombined Mode = "combined"
)

// Response is the outcome of Search or Query.
type Response struct {
	assemble.Output

	Mode    Mode   `json:"mode"`
	Query   string `json:"query,omitempty"`
	Pattern string `json:"pattern,omitempty"`

	// FilesScanned counts the documents handed to the engine.
	FilesScanned int `json:"files_scanned"`

	// FilesMatched counts documents with at least one result before budgeting.
	FilesMatched int `json:"files_matched"`

	// Diagnostics lists files skipped as unsupported or unparseable.
	Diagnostics []document.Diagnostic `json:"diagnostics,omitempty"`

	Duration time.Duration `json:"-"`
}

// EngineConfig configures the search engine.
type EngineConfig struct {
	// Rank holds the scoring constants and worker count.
	Rank rank.Options

	// Terms configures term extraction for documents and queries.
	Terms terms.Options

	// MaxResults is the default result limit (default: 50).
	MaxResults int

	// MaxBytes is the default snippet byte limit (0: unlimited).
	MaxBytes int

	// TokenBudget is the default token budget (0: unlimited).
	TokenBudget int

	// ContextLines sizes the extraction fallback window (default: 10).
	ContextLines int

	// SearchTimeout bounds one call (0: no timeout). A call that hits it
	// returns what was produced so far with Cancelled set.
	SearchTimeout time.Duration
}

// DefaultMaxResults is the default result limit.
const DefaultMaxResults = 50

// DefaultConfig returns sensible default configuration.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		Rank:         rank.DefaultOptions(),
		Terms:        terms.DefaultOptions(),
		MaxResults:   DefaultMaxResults,
		ContextLines: 10,
	}
}
