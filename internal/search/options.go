package search

import (
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/rank"
)

// SearchOptions configures a keyword search.
type SearchOptions struct {
	// CaseSensitive requires query words to match the source text exactly.
	CaseSensitive bool

	// Exact disables stemming and identifier decompounding.
	Exact bool

	// MaxResults caps the number of results (default: engine config).
	MaxResults int

	// MaxBytes caps the total snippet bytes (0: engine config).
	MaxBytes int

	// TokenBudget caps the total snippet tokens (0: engine config).
	TokenBudget int

	// Structural restricts results to nodes matching Pattern.
	Structural bool
	Pattern    string

	// Language restricts the search to one language (name or extension).
	Language string

	// AllowTests disables the test file penalty.
	AllowTests bool

	// ExcludeFilenames matches query words against file content only.
	ExcludeFilenames bool

	// Scorer overrides the engine's term frequency weighting.
	Scorer rank.Scorer

	// FilesOnly returns ranked paths without snippets.
	FilesOnly bool

	// MergeThreshold merges blocks at most this many lines apart.
	// 0 uses the engine config; negative disables merging.
	MergeThreshold int

	// Workers bounds parallelism (0: engine config).
	Workers int
}

// QueryOptions configures a structural query.
type QueryOptions struct {
	// Nested also reports matches inside matched nodes.
	Nested bool

	MaxResults  int
	MaxBytes    int
	TokenBudget int
	FilesOnly   bool
	Workers     int
}

// Validate checks option ranges and combinations.
func (o SearchOptions) Validate() error {
	if o.MaxResults < 0 || o.MaxBytes < 0 || o.TokenBudget < 0 {
		return cgerrors.ValidationError("limits must be non-negative", nil)
	}
	if o.Workers < 0 {
		return cgerrors.ValidationError("workers must be non-negative", nil)
	}
	if o.Structural && o.Pattern == "" {
		return cgerrors.ValidationError("structural search needs a pattern", nil).
			WithSuggestion("Pass a pattern such as 'fn $NAME($$$ARGS)'")
	}
	return nil
}

// Validate checks option ranges.
func (o QueryOptions) Validate() error {
	if o.MaxResults < 0 || o.MaxBytes < 0 || o.TokenBudget < 0 {
		return cgerrors.ValidationError("limits must be non-negative", nil)
	}
	if o.Workers < 0 {
		return cgerrors.ValidationError("workers must be non-negative", nil)
	}
	return nil
}

func (e *Engine) applyDefaults(opts SearchOptions) SearchOptions {
	if opts.MaxResults <= 0 {
		opts.MaxResults = e.config.MaxResults
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = e.config.MaxBytes
	}
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = e.config.TokenBudget
	}
	if opts.MergeThreshold == 0 {
		opts.MergeThreshold = e.config.Rank.MergeThreshold
	}
	if opts.Workers <= 0 {
		opts.Workers = e.config.Rank.Workers
	}
	if opts.Pattern != "" {
		opts.Structural = true
	}
	return opts
}

func (e *Engine) applyQueryDefaults(opts QueryOptions) QueryOptions {
	if opts.MaxResults <= 0 {
		opts.MaxResults = e.config.MaxResults
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = e.config.MaxBytes
	}
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = e.config.TokenBudget
	}
	if opts.Workers <= 0 {
		opts.Workers = e.config.Rank.Workers
	}
	return opts
}
