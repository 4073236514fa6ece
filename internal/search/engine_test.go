package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Aman-CERP/codegrip/internal/document"
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/grammar"
	"github.com/Aman-CERP/codegrip/internal/rank"
	"github.com/Aman-CERP/codegrip/internal/tokens"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const rustLib = `fn add(a: i32, b: i32) -> i32 {
    let total = a + b;
    total
}

fn sub(a: i32, b: i32) -> i32 {
    let total = a - b;
    total
}

fn main() {
    println!("{}", add(1, 2));
}
`

const rustOther = `fn mul(a: i32, b: i32) -> i32 {
    a * b
}
`

const goUsers = `package users

func LookupUser(id string) *User {
	return cache.Lookup(id)
}

func deleteUser(id string) {
	store.Delete(id)
}
`

const goOrders = `package orders

func lookupOrder(id string) *Order {
	return db.Find(id)
}
`

func testFiles() []document.File {
	return []document.File{
		{Path: "src/lib.rs", Content: []byte(rustLib)},
		{Path: "src/other.rs", Content: []byte(rustOther)},
		{Path: "users/users.go", Content: []byte(goUsers)},
		{Path: "orders/orders.go", Content: []byte(goOrders)},
		{Path: "README.txt", Content: []byte("lookup users here\n")},
	}
}

func newTestEngine(t testing.TB) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig(), WithCounter(tokens.Estimator{}))
	require.NoError(t, err)
	return e
}

func paths(resp *Response) []string {
	out := make([]string, 0, len(resp.Records))
	for _, r := range resp.Records {
		out = append(out, r.Path)
	}
	return out
}

func TestNewEngine_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rank.K1 = -1

	_, err := NewEngine(cfg)

	require.Error(t, err)
	assert.Equal(t, cgerrors.ErrCodeInvalidInput, cgerrors.GetCode(err))
}

func TestSearch_KeywordBlocks(t *testing.T) {
	// Given: Go files defining lookup functions
	e := newTestEngine(t)

	// When: searching for "lookup"
	resp, err := e.Search(context.Background(), testFiles(), "lookup", SearchOptions{})
	require.NoError(t, err)

	// Then: blocks are function units from both Go files, best first
	require.NotEmpty(t, resp.Records)
	assert.Equal(t, ModeKeyword, resp.Mode)
	assert.Equal(t, 5, resp.FilesScanned)
	assert.Equal(t, 2, resp.FilesMatched)
	assert.Equal(t, "users/users.go", resp.Records[0].Path)
	assert.Equal(t, grammar.UnitFunction, resp.Records[0].UnitKind)
	assert.Contains(t, resp.Records[0].Snippet, "func LookupUser")
	for i := 1; i < len(resp.Records); i++ {
		assert.GreaterOrEqual(t, resp.Records[i-1].Score, resp.Records[i].Score)
	}

	// The plain text file has no grammar and is reported, not searched
	require.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, "README.txt", resp.Diagnostics[0].Path)
	assert.Equal(t, cgerrors.ErrCodeUnsupportedLanguage, resp.Diagnostics[0].Code)
}

func TestSearch_ExcludedTermFiltersFiles(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Search(context.Background(), testFiles(), "lookup -order", SearchOptions{})
	require.NoError(t, err)

	for _, p := range paths(resp) {
		assert.NotEqual(t, "orders/orders.go", p)
	}
	assert.Equal(t, 1, resp.FilesMatched)
}

func TestSearch_DeterministicAcrossWorkers(t *testing.T) {
	e := newTestEngine(t)

	one, err := e.Search(context.Background(), testFiles(), "lookup user id", SearchOptions{Workers: 1})
	require.NoError(t, err)
	many, err := e.Search(context.Background(), testFiles(), "lookup user id", SearchOptions{Workers: 8})
	require.NoError(t, err)

	assert.Equal(t, one.Records, many.Records)
}

func TestSearch_TokenBudget(t *testing.T) {
	e := newTestEngine(t)

	full, err := e.Search(context.Background(), testFiles(), "lookup user id", SearchOptions{})
	require.NoError(t, err)
	require.Greater(t, len(full.Records), 1)
	budget := full.Records[0].Tokens

	// When: the budget only fits the first record
	resp, err := e.Search(context.Background(), testFiles(), "lookup user id", SearchOptions{TokenBudget: budget})
	require.NoError(t, err)

	// Then: the budget holds and truncation is reported
	assert.LessOrEqual(t, resp.TokensUsed, budget)
	assert.Len(t, resp.Records, 1)
	assert.True(t, resp.Truncated)
	assert.Equal(t, full.Records[0], resp.Records[0])
}

func TestSearch_FilesOnly(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Search(context.Background(), testFiles(), "lookup", SearchOptions{FilesOnly: true})
	require.NoError(t, err)

	require.Len(t, resp.Records, 2)
	for _, r := range resp.Records {
		assert.Equal(t, document.KindFile, r.Kind)
		assert.Empty(t, r.Snippet)
	}
}

func TestSearch_LanguageFilter(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Search(context.Background(), testFiles(), "total", SearchOptions{Language: "go"})
	require.NoError(t, err)
	assert.Empty(t, resp.Records)

	resp, err = e.Search(context.Background(), testFiles(), "total", SearchOptions{Language: "rs"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Records)
	assert.Equal(t, "src/lib.rs", resp.Records[0].Path)
	assert.Empty(t, resp.Diagnostics)

	_, err = e.Search(context.Background(), testFiles(), "total", SearchOptions{Language: "cobol"})
	assert.Equal(t, cgerrors.ErrCodeUnsupportedLanguage, cgerrors.GetCode(err))
}

func TestSearch_CombinedWithPattern(t *testing.T) {
	// Given: two Rust files; only lib.rs mentions "total"
	e := newTestEngine(t)

	// When: searching "total" restricted to function items
	resp, err := e.Search(context.Background(), testFiles(), "total", SearchOptions{
		Pattern:  "fn $NAME($$$PARAMS) -> i32 $$$BODY",
		Language: "rust",
	})
	require.NoError(t, err)

	// Then: only lib.rs functions returning i32 carry bindings
	assert.Equal(t, ModeCombined, resp.Mode)
	var names []string
	for _, r := range resp.Records {
		assert.Equal(t, "src/lib.rs", r.Path)
		assert.Positive(t, r.Score)
		if name, ok := r.Bindings["NAME"]; ok {
			names = append(names, name)
		}
	}
	assert.ElementsMatch(t, []string{"add", "sub"}, names)
}

func TestSearch_CombinedKeepsKeywordBlocks(t *testing.T) {
	// Given: "println" only appears in main, which the pattern does not match
	e := newTestEngine(t)

	// When: searching with a pattern for functions returning i32
	resp, err := e.Search(context.Background(), testFiles(), "println", SearchOptions{
		Pattern:  "fn $NAME($$$PARAMS) -> i32 $$$BODY",
		Language: "rust",
	})
	require.NoError(t, err)

	// Then: the keyword block and the structural matches share one response
	var keyword []string
	var structural []string
	for _, r := range resp.Records {
		assert.Equal(t, "src/lib.rs", r.Path)
		switch r.Kind {
		case document.KindKeyword:
			keyword = append(keyword, r.Snippet)
		case document.KindStructural:
			structural = append(structural, r.Bindings["NAME"])
			assert.Positive(t, r.Score)
		}
	}
	require.Len(t, keyword, 1)
	assert.Contains(t, keyword[0], "println!")
	assert.ElementsMatch(t, []string{"add", "sub"}, structural)
	assert.Equal(t, 1, resp.FilesMatched)
}

func TestSearch_ScorerOption(t *testing.T) {
	e := newTestEngine(t)
	files := []document.File{{Path: "budget/budget.go", Content: []byte("package budget\n\nfunc other() {}\n")}}

	resp, err := e.Search(context.Background(), files, "other", SearchOptions{ExcludeFilenames: true, Scorer: rank.ScorerTFIDF})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.FilesMatched)

	_, err = e.Search(context.Background(), files, "other", SearchOptions{Scorer: "cosine"})
	require.Error(t, err)
	assert.Equal(t, cgerrors.ErrCodeInvalidInput, cgerrors.GetCode(err))
}

func TestSearch_ExcludeFilenamesDropsPathOnlyFiles(t *testing.T) {
	// Given: a file whose path, not content, holds the query word
	e := newTestEngine(t)
	files := []document.File{{Path: "budget/budget.go", Content: []byte("package p\n\nfunc other() {}\n")}}

	// When: searching with filenames excluded
	resp, err := e.Search(context.Background(), files, "budget", SearchOptions{ExcludeFilenames: true})
	require.NoError(t, err)

	// Then: nothing matches
	assert.Zero(t, resp.FilesMatched)
	assert.Empty(t, resp.Records)
}

func TestSearch_InputErrors(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name  string
		query string
		opts  SearchOptions
		code  string
	}{
		{"unbalanced quote", `"lookup user`, SearchOptions{}, cgerrors.ErrCodeInvalidQuery},
		{"structural without pattern", "lookup", SearchOptions{Structural: true}, cgerrors.ErrCodeInvalidInput},
		{"negative budget", "lookup", SearchOptions{TokenBudget: -1}, cgerrors.ErrCodeInvalidInput},
		{"bad pattern", "lookup", SearchOptions{Pattern: "$X", Language: "go"}, cgerrors.ErrCodeInvalidPattern},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Search(context.Background(), testFiles(), tt.query, tt.opts)
			require.Error(t, err)
			assert.Equal(t, tt.code, cgerrors.GetCode(err))
		})
	}

	_, err := e.Search(context.Background(), testFiles(), "   ", SearchOptions{})
	assert.Equal(t, cgerrors.ErrCodeQueryEmpty, cgerrors.GetCode(err))
}

func TestSearch_CancelledBeforeStart(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := e.Search(ctx, testFiles(), "lookup", SearchOptions{})

	require.NoError(t, err)
	assert.True(t, resp.Cancelled)
}

// cancellingCounter cancels the call the first time a snippet is counted.
type cancellingCounter struct {
	tokens.Estimator
	cancel context.CancelFunc
}

func (c cancellingCounter) Count(text string) int {
	c.cancel()
	return c.Estimator.Count(text)
}

func TestSearch_CancelledKeepsPartialResults(t *testing.T) {
	// Given: a call that is cancelled once ranking has produced its blocks
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e, err := NewEngine(DefaultConfig(), WithCounter(cancellingCounter{cancel: cancel}))
	require.NoError(t, err)

	full, err := newTestEngine(t).Search(context.Background(), testFiles(), "lookup user id", SearchOptions{})
	require.NoError(t, err)

	// When: searching
	resp, err := e.Search(ctx, testFiles(), "lookup user id", SearchOptions{})
	require.NoError(t, err)

	// Then: every ranked block is still returned, flagged as cancelled
	assert.True(t, resp.Cancelled)
	assert.Equal(t, paths(full), paths(resp))
	assert.NotEmpty(t, resp.Records)
}

func TestQuery_RustFunctions(t *testing.T) {
	// Given: three Rust functions in one file
	e := newTestEngine(t)

	// When: querying for function items
	resp, err := e.Query(context.Background(), testFiles(), "fn $NAME($$$PARAMS) $$$BODY", "rust", QueryOptions{})
	require.NoError(t, err)

	// Then: each function matches once, in file order, with its name bound
	assert.Equal(t, ModeStructural, resp.Mode)
	var names []string
	for _, r := range resp.Records {
		names = append(names, r.Bindings["NAME"])
		assert.Equal(t, document.KindStructural, r.Kind)
		assert.True(t, strings.HasPrefix(r.Snippet, "fn "+r.Bindings["NAME"]))
	}
	assert.Equal(t, []string{"add", "sub", "main", "mul"}, names)
	assert.Equal(t, 2, resp.FilesMatched)
}

func TestQuery_FilesOnlyAndLimits(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Query(context.Background(), testFiles(), "fn $NAME($$$PARAMS) $$$BODY", "rust", QueryOptions{FilesOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/lib.rs", "src/other.rs"}, paths(resp))

	resp, err = e.Query(context.Background(), testFiles(), "fn $NAME($$$PARAMS) $$$BODY", "rust", QueryOptions{MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Records, 2)
	assert.True(t, resp.Truncated)
	assert.Equal(t, 2, resp.Dropped)
}

func TestQuery_PatternErrorFailsCall(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Query(context.Background(), testFiles(), "$$$BODY", "rust", QueryOptions{})

	require.Error(t, err)
	assert.Equal(t, cgerrors.ErrCodeInvalidPattern, cgerrors.GetCode(err))
}

func TestExtract_Function(t *testing.T) {
	e := newTestEngine(t)
	file := document.File{Path: "users/users.go", Content: []byte(goUsers)}

	b, err := e.Extract(context.Background(), file, document.AtLine(4), 0)
	require.NoError(t, err)

	assert.Equal(t, grammar.UnitFunction, b.Kind)
	assert.Equal(t, "LookupUser", b.Symbol)
	assert.Equal(t, 3, b.StartLine)
	assert.Equal(t, 5, b.EndLine)

	_, err = e.Extract(context.Background(), file, document.AtLine(50), 0)
	assert.Equal(t, cgerrors.ErrCodeLineOutOfRange, cgerrors.GetCode(err))
}

func TestSymbols(t *testing.T) {
	e := newTestEngine(t)

	symbols, err := e.Symbols(context.Background(), document.File{Path: "src/lib.rs", Content: []byte(rustLib)})
	require.NoError(t, err)

	var names []string
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"add", "sub", "main"}, names)
}

func BenchmarkSearch(b *testing.B) {
	e := newTestEngine(b)
	files := testFiles()
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Search(ctx, files, "lookup user", SearchOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}
