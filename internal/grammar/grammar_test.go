package grammar

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
)

func findKinds(t *Tree, kind string) []NodeID {
	var out []NodeID
	t.Walk(Root, func(id NodeID) bool {
		if t.Nodes[id].Kind == kind {
			out = append(out, id)
		}
		return true
	})
	return out
}

func TestRegistry_Resolve_KnownExtensions(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".go", "go"},
		{".rs", "rust"},
		{".py", "python"},
		{".pyi", "python"},
		{".js", "javascript"},
		{".jsx", "javascript"},
		{".mjs", "javascript"},
		{".ts", "typescript"},
		{".tsx", "tsx"},
		{".java", "java"},
		{".c", "c"},
		{".h", "c"},
		{".cpp", "cpp"},
		{"HPP", "cpp"},
	}

	registry := NewLanguageRegistry()
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			g, err := registry.Resolve(tt.ext)
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.Name())
		})
	}
}

func TestRegistry_Resolve_UnknownExtension(t *testing.T) {
	// Given: an extension without a grammar
	registry := DefaultRegistry()

	// When: resolving it
	g, err := registry.Resolve(".cobol")

	// Then: an unsupported-language error is returned
	assert.Nil(t, g)
	require.Error(t, err)
	assert.Equal(t, cgerrors.ErrCodeUnsupportedLanguage, cgerrors.GetCode(err))
	assert.True(t, cgerrors.IsLocal(err))
}

func TestRegistry_ByName_Aliases(t *testing.T) {
	registry := DefaultRegistry()

	for _, name := range []string{"golang", "Go", "rs", "ts", "c++"} {
		g, err := registry.ByName(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, g.Name())
	}

	_, err := registry.ByName("klingon")
	assert.Error(t, err)
}

func TestRegistry_ForPath(t *testing.T) {
	registry := DefaultRegistry()

	g, err := registry.ForPath("src/lib/main.rs")
	require.NoError(t, err)
	assert.Equal(t, "rust", g.Name())

	_, err = registry.ForPath("Makefile")
	assert.Error(t, err)
}

func TestRegistry_SupportedExtensions_Sorted(t *testing.T) {
	exts := DefaultRegistry().SupportedExtensions()
	assert.Contains(t, exts, ".go")
	assert.Contains(t, exts, ".tsx")
	assert.IsIncreasing(t, exts)
}

func TestGrammar_ParseGo_BuildsArena(t *testing.T) {
	// Given: valid Go source with two functions
	source := []byte(`package main

func hello() {
	fmt.Println("Hello")
}

func goodbye() {
	fmt.Println("Bye")
}
`)
	g, err := DefaultRegistry().ByName("go")
	require.NoError(t, err)

	// When: parsing
	tree, err := g.Parse(context.Background(), source)

	// Then: the arena holds both function declarations with index links
	require.NoError(t, err)
	assert.Equal(t, "go", tree.Language)
	assert.Equal(t, "source_file", tree.Nodes[Root].Kind)
	assert.Equal(t, NoNode, tree.Nodes[Root].Parent)

	funcs := findKinds(tree, "function_declaration")
	require.Len(t, funcs, 2)
	assert.Equal(t, Root, tree.Nodes[funcs[0]].Parent)

	name := tree.ChildByField(funcs[0], "name")
	require.NotEqual(t, NoNode, name)
	assert.Equal(t, "hello", tree.Text(name))
	assert.True(t, g.IsExtractableNode(tree, funcs[0]))
	assert.Equal(t, UnitFunction, g.UnitKind("function_declaration"))
}

func TestGrammar_Parse_LeavesInSourceOrder(t *testing.T) {
	source := []byte("fn add(a: i32) -> i32 { a + 1 } // done\n")
	g, err := DefaultRegistry().ByName("rust")
	require.NoError(t, err)

	tree, err := g.Parse(context.Background(), source)
	require.NoError(t, err)

	var texts []string
	prev := uint32(0)
	for _, leaf := range tree.Leaves {
		n := tree.Nodes[leaf]
		assert.GreaterOrEqual(t, n.StartByte, prev)
		prev = n.EndByte
		texts = append(texts, tree.Text(leaf))
	}

	// The comment is an extra and is not part of the leaf sequence
	assert.Equal(t, []string{"fn", "add", "(", "a", ":", "i32", ")", "->", "i32", "{", "a", "+", "1", "}"}, texts)

	fn := findKinds(tree, "function_item")
	require.Len(t, fn, 1)
	assert.Len(t, tree.LeafSpan(fn[0]), len(texts))
}

func TestGrammar_ParseLenient_ErrorRegionKeepsLeaves(t *testing.T) {
	// Given: a Rust function without a body, which recovers as a top-level ERROR
	g, err := DefaultRegistry().ByName("rust")
	require.NoError(t, err)

	// When: parsing leniently
	tree, err := g.ParseLenient(context.Background(), []byte("fn add(a) body\n"))
	require.NoError(t, err)

	// Then: the ERROR region is not an extra and its tokens stay leaves
	errs := findKinds(tree, "ERROR")
	require.NotEmpty(t, errs)
	assert.False(t, tree.Nodes[errs[0]].Extra)
	assert.True(t, tree.Nodes[errs[0]].IsError)

	var texts []string
	for _, leaf := range tree.LeafSpan(errs[0]) {
		texts = append(texts, tree.Text(leaf))
	}
	assert.Equal(t, []string{"fn", "add", "(", "a", ")", "body"}, texts)
	assert.Equal(t, []NodeID{errs[0]}, tree.NamedChildren(Root))
}

func TestGrammar_Parse_NewlineTerminatorsAreNotLeaves(t *testing.T) {
	g, err := DefaultRegistry().ByName("go")
	require.NoError(t, err)

	tree, err := g.Parse(context.Background(), []byte("package main\n\nfunc main() {\n\tx := 1\n}\n"))
	require.NoError(t, err)

	for _, leaf := range tree.Leaves {
		assert.NotEmpty(t, strings.TrimSpace(tree.Text(leaf)))
	}
}

func TestGrammar_Parse_StringLiteralIsOneLeaf(t *testing.T) {
	source := []byte("package p\n\nvar s = \"hello world\"\n")
	g, err := DefaultRegistry().ByName("go")
	require.NoError(t, err)

	tree, err := g.Parse(context.Background(), source)
	require.NoError(t, err)

	var texts []string
	for _, leaf := range tree.Leaves {
		texts = append(texts, tree.Text(leaf))
	}
	assert.Contains(t, texts, `"hello world"`)
}

func TestGrammar_Parse_MalformedSourceFails(t *testing.T) {
	// Given: Go source with an unterminated function
	source := []byte("package main\n\nfunc broken( {\n")
	g, err := DefaultRegistry().ByName("go")
	require.NoError(t, err)

	// When: parsing strictly
	tree, err := g.Parse(context.Background(), source)

	// Then: a local parse error is returned
	assert.Nil(t, tree)
	require.Error(t, err)
	assert.Equal(t, cgerrors.ErrCodeParseFailed, cgerrors.GetCode(err))
	assert.True(t, cgerrors.IsLocal(err))

	// And: lenient parsing still yields a tree with error nodes
	tree, err = g.ParseLenient(context.Background(), source)
	require.NoError(t, err)
	assert.True(t, tree.Nodes[Root].HasError)
	assert.NotEmpty(t, tree.Errors())
}

func TestGrammar_Parse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := DefaultRegistry().ByName("python")
	require.NoError(t, err)

	_, err = g.Parse(ctx, []byte("def f():\n    pass\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGrammar_DeepestAt(t *testing.T) {
	source := []byte("def outer():\n    value = compute(1)\n    return value\n")
	g, err := DefaultRegistry().ByName("python")
	require.NoError(t, err)
	tree, err := g.Parse(context.Background(), source)
	require.NoError(t, err)

	offset := uint32(len("def outer():\n    value = comp"))
	id := tree.DeepestAt(offset)
	require.NotEqual(t, NoNode, id)
	assert.Equal(t, "compute", tree.Text(id))

	// Ascending reaches the function definition
	for id != NoNode && !g.IsExtractableUnit(tree.Nodes[id].Kind) {
		id = tree.Nodes[id].Parent
	}
	require.NotEqual(t, NoNode, id)
	assert.Equal(t, "function_definition", tree.Nodes[id].Kind)
	assert.True(t, tree.Contains(Root, id))
}

func TestGrammar_CStructNeedsBody(t *testing.T) {
	source := []byte("struct point { int x; int y; };\nstruct point origin;\n")
	g, err := DefaultRegistry().ByName("c")
	require.NoError(t, err)
	tree, err := g.Parse(context.Background(), source)
	require.NoError(t, err)

	structs := findKinds(tree, "struct_specifier")
	require.Len(t, structs, 2)
	assert.True(t, g.IsExtractableNode(tree, structs[0]))
	assert.False(t, g.IsExtractableNode(tree, structs[1]))
}

func TestGrammar_IsStatement(t *testing.T) {
	g, err := DefaultRegistry().ByName("go")
	require.NoError(t, err)

	assert.True(t, g.IsStatement("return_statement"))
	assert.True(t, g.IsStatement("short_var_declaration"))
	assert.True(t, g.IsStatement("block"))
	assert.False(t, g.IsStatement("source_file"))
	assert.False(t, g.IsStatement("identifier"))
}

func TestGrammar_EnclosingWrappers(t *testing.T) {
	py, err := DefaultRegistry().ByName("python")
	require.NoError(t, err)
	assert.True(t, py.IsEnclosingWrapper("decorated_definition"))

	ts, err := DefaultRegistry().ByName("typescript")
	require.NoError(t, err)
	assert.True(t, ts.IsEnclosingWrapper("export_statement"))
	assert.Equal(t, UnitInterface, ts.UnitKind("interface_declaration"))

	tsx, err := DefaultRegistry().ByName("tsx")
	require.NoError(t, err)
	assert.Equal(t, []string{".tsx"}, tsx.Extensions())
}
