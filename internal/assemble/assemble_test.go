package assemble

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codegrip/internal/document"
	"github.com/Aman-CERP/codegrip/internal/rank"
	"github.com/Aman-CERP/codegrip/internal/tokens"
)

// fixture builds one document with n blocks of 40 bytes (10 estimated
// tokens each) and a keyword match per block with decreasing scores.
func fixture(n int) (*document.Document, []document.Match) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%-39s\n", fmt.Sprintf("// block %d", i))
	}
	doc := document.New(document.File{Path: "blocks.go", Content: []byte(b.String())}, nil)

	matches := make([]document.Match, n)
	for i := range matches {
		matches[i] = document.Match{
			Kind:  document.KindKeyword,
			Path:  doc.Path,
			Range: doc.RangeFor(i*40, (i+1)*40),
			Score: float64(n - i),
		}
	}
	return doc, matches
}

func TestAssemble_TokenBudget(t *testing.T) {
	doc, matches := fixture(10)

	tests := []struct {
		name      string
		budget    int
		wantCount int
		truncated bool
	}{
		{"unlimited", 0, 10, false},
		{"exact fit", 100, 10, false},
		{"partial", 35, 3, true},
		{"boundary", 30, 3, true},
		{"smaller than first", 5, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: assembling with an estimator and a token budget
			out := Assemble(context.Background(), []*document.Document{doc}, matches, Options{
				TokenBudget: tt.budget,
				Counter:     tokens.Estimator{},
			})

			// Then: the budget holds and truncation is reported iff something was dropped
			require.Len(t, out.Records, tt.wantCount)
			if tt.budget > 0 {
				assert.LessOrEqual(t, out.TokensUsed, tt.budget)
			}
			assert.Equal(t, tt.truncated, out.Truncated)
			assert.Equal(t, len(matches)-tt.wantCount, out.Dropped)

			sum := 0
			for _, r := range out.Records {
				sum += r.Tokens
			}
			assert.Equal(t, sum, out.TokensUsed)
		})
	}
}

func TestAssemble_ByteAndResultLimits(t *testing.T) {
	doc, matches := fixture(6)
	docs := []*document.Document{doc}

	out := Assemble(context.Background(), docs, matches, Options{MaxResults: 4, Counter: tokens.Estimator{}})
	assert.Len(t, out.Records, 4)
	assert.True(t, out.Truncated)

	out = Assemble(context.Background(), docs, matches, Options{MaxBytes: 100, Counter: tokens.Estimator{}})
	assert.Len(t, out.Records, 2)
	assert.Equal(t, 80, out.BytesUsed)
	assert.True(t, out.Truncated)

	out = Assemble(context.Background(), docs, matches, Options{MaxResults: 6, Counter: tokens.Estimator{}})
	assert.Len(t, out.Records, 6)
	assert.False(t, out.Truncated)
}

func TestAssemble_RecordShape(t *testing.T) {
	doc, matches := fixture(1)

	out := Assemble(context.Background(), []*document.Document{doc}, matches, Options{Counter: tokens.Estimator{}})

	require.Len(t, out.Records, 1)
	r := out.Records[0]
	assert.Equal(t, "blocks.go", r.Path)
	assert.Equal(t, "go", r.Language)
	assert.Equal(t, "// block 0", strings.TrimSpace(r.Snippet))
	assert.Equal(t, 10, r.Tokens)
	assert.Equal(t, RecordID(matches[0]), r.ID)
	assert.NotEmpty(t, r.ID)
}

func TestAssemble_FilesOnly(t *testing.T) {
	doc, _ := fixture(1)
	files := []rank.FileScore{
		{Path: "b.go", Score: 1},
		{Path: "blocks.go", Score: 2},
		{Path: "a.go", Score: 1},
	}

	out := Assemble(context.Background(), []*document.Document{doc}, FileMatches(files), Options{
		FilesOnly: true,
		Counter:   tokens.Estimator{},
	})

	require.Len(t, out.Records, 3)
	assert.Equal(t, []string{"blocks.go", "a.go", "b.go"},
		[]string{out.Records[0].Path, out.Records[1].Path, out.Records[2].Path})
	for _, r := range out.Records {
		assert.Empty(t, r.Snippet)
		assert.Equal(t, document.KindFile, r.Kind)
	}
}

func TestAssemble_CancelledKeepsPartialResults(t *testing.T) {
	// Given: matches produced before the call was cancelled
	doc, matches := fixture(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When: assembling with the cancelled context
	out := Assemble(ctx, []*document.Document{doc}, matches, Options{Counter: tokens.Estimator{}, TokenBudget: 25})

	// Then: the partial results are kept, budgeted, and flagged
	assert.True(t, out.Cancelled)
	require.Len(t, out.Records, 2)
	assert.Equal(t, "blocks.go", out.Records[0].Path)
	assert.True(t, out.Truncated)
	assert.Equal(t, 1, out.Dropped)
}

func TestMerge_DedupesAndOrders(t *testing.T) {
	// Given: a keyword and a structural match on the same range
	rng := document.Range{StartByte: 10, EndByte: 50, StartLine: 2, EndLine: 4}
	keyword := []document.Match{
		{Kind: document.KindKeyword, Path: "b.go", Range: rng, Score: 2},
		{Kind: document.KindKeyword, Path: "a.go", Range: rng, Score: 2},
	}
	structural := []document.Match{
		{Kind: document.KindStructural, Path: "b.go", Range: rng, Bindings: map[string]string{"NAME": "run"}},
		{Kind: document.KindStructural, Path: "c.go", Range: rng},
	}

	// When: merging the streams
	merged := Merge(keyword, structural)

	// Then: the shared range appears once, keeping score and bindings
	require.Len(t, merged, 3)
	assert.Equal(t, "a.go", merged[0].Path)
	assert.Equal(t, "b.go", merged[1].Path)
	assert.Equal(t, document.KindKeyword, merged[1].Kind)
	assert.Equal(t, "run", merged[1].Bindings["NAME"])
	assert.Equal(t, "c.go", merged[2].Path)
}

func TestRecordID_Stable(t *testing.T) {
	m := document.Match{Kind: document.KindKeyword, Path: "a.go", Range: document.Range{StartByte: 1, EndByte: 9}}
	other := m
	other.Range.EndByte = 10

	assert.Equal(t, RecordID(m), RecordID(m))
	assert.NotEqual(t, RecordID(m), RecordID(other))
}
