package document

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/grammar"
)

func TestNew_ResolvesLanguage(t *testing.T) {
	doc := New(File{Path: "pkg/main.go", Content: []byte("package main\n")}, nil)

	assert.Equal(t, "go", doc.Language)
	g, err := doc.Grammar()
	require.NoError(t, err)
	assert.Equal(t, "go", g.Name())
	assert.NotZero(t, doc.ID)
}

func TestNew_UnsupportedLanguage(t *testing.T) {
	doc := New(File{Path: "README.md", Content: []byte("# hi\n")}, nil)

	assert.Empty(t, doc.Language)
	_, err := doc.Grammar()
	require.Error(t, err)
	assert.Equal(t, cgerrors.ErrCodeUnsupportedLanguage, cgerrors.GetCode(err))

	_, err = doc.Tree(context.Background())
	assert.Error(t, err)
}

func TestHash_StableAndPathSensitive(t *testing.T) {
	content := []byte("fn main() {}")

	assert.Equal(t, Hash("a.rs", content), Hash("a.rs", content))
	assert.NotEqual(t, Hash("a.rs", content), Hash("b.rs", content))
}

func TestDocument_Tree_ParsesOnce(t *testing.T) {
	doc := New(File{Path: "lib.rs", Content: []byte("fn one() {}\n")}, nil)

	first, err := doc.Tree(context.Background())
	require.NoError(t, err)
	second, err := doc.Tree(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestDocument_Tree_ParseErrorIsLocal(t *testing.T) {
	doc := New(File{Path: "bad.go", Content: []byte("package main\nfunc (\n")}, nil)

	_, err := doc.Tree(context.Background())
	require.Error(t, err)
	assert.Equal(t, cgerrors.ErrCodeParseFailed, cgerrors.GetCode(err))
	assert.True(t, cgerrors.IsLocal(err))

	// Lenient access still returns the tree
	tree, err := doc.LenientTree(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tree)
}

func TestDocument_LineIndex(t *testing.T) {
	doc := New(File{Path: "x.txt", Content: []byte("ab\ncd\n\nef")}, nil)

	tests := []struct {
		offset int
		line   int
	}{
		{0, 1},
		{2, 1},
		{3, 2},
		{6, 3},
		{7, 4},
		{8, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.line, doc.LineOf(tt.offset), "offset %d", tt.offset)
	}

	assert.Equal(t, 4, doc.LineCount())
	assert.Equal(t, 3, doc.LineStart(2))
	assert.Equal(t, 6, doc.LineEnd(2))
	assert.Equal(t, "cd\n", doc.Slice(doc.LineStart(2), doc.LineEnd(2)))
	assert.Equal(t, len(doc.Content), doc.LineEnd(4))
}

func TestDocument_RangeFor(t *testing.T) {
	doc := New(File{Path: "x.txt", Content: []byte("one\ntwo\nthree\n")}, nil)

	r := doc.RangeFor(4, 14)
	assert.Equal(t, Range{StartByte: 4, EndByte: 14, StartLine: 2, EndLine: 3}, r)
	assert.Equal(t, "2-3", r.String())
}

func TestRange_OverlapsAndContains(t *testing.T) {
	a := Range{StartByte: 0, EndByte: 10}
	b := Range{StartByte: 5, EndByte: 15}
	c := Range{StartByte: 10, EndByte: 12}

	assert.True(t, a.Overlaps(b))
	assert.False(t, a.Overlaps(c))
	assert.True(t, a.Contains(Range{StartByte: 2, EndByte: 8}))
	assert.False(t, a.Contains(b))
}

func TestLocation_String(t *testing.T) {
	assert.Equal(t, "12", AtLine(12).String())
	assert.Equal(t, "3-9", Lines(3, 9).String())
	assert.Equal(t, "#Parse", AtSymbol("Parse").String())
	assert.Equal(t, "@40", AtOffset(40).String())
}

type failingGrammar struct {
	grammar.Grammar
	err error
}

func (g failingGrammar) ParseLenient(context.Context, []byte) (*grammar.Tree, error) {
	return nil, g.err
}

func TestDocument_LenientTree_ErrorScope(t *testing.T) {
	goGrammar, err := grammar.DefaultRegistry().ByName("go")
	require.NoError(t, err)

	tests := []struct {
		name      string
		err       error
		wantCode  string
		wantLocal bool
	}{
		{"foreign error", stderrors.New("boom"), cgerrors.ErrCodeParseFailed, true},
		{"local error", cgerrors.New(cgerrors.ErrCodeParseFailed, "nil tree", nil), cgerrors.ErrCodeParseFailed, true},
		{"internal error", cgerrors.New(cgerrors.ErrCodeInternal, "parser crashed", nil), cgerrors.ErrCodeInternal, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := NewWithGrammar(File{Path: "a.go", Content: []byte("package a\n")}, failingGrammar{goGrammar, tt.err})

			_, err := doc.LenientTree(context.Background())

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, cgerrors.GetCode(err))
			assert.Equal(t, tt.wantLocal, cgerrors.IsLocal(err))
		})
	}
}
