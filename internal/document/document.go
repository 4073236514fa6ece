// Package document holds the per-call data model shared by the search
// components: documents, match records and extracted blocks.
package document

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/grammar"
)

// File is one candidate file as produced by a walker.
type File struct {
	Path    string
	Content []byte
}

// Document is one file inside a single search call.
// The parse tree is produced at most once and is read-only afterwards.
type Document struct {
	ID       uint64 // xxhash64 of path and content
	Path     string
	Language string // empty when no grammar handles the file
	Content  []byte

	grammar grammar.Grammar
	langErr error

	lineOnce   sync.Once
	lineStarts []int

	parseOnce sync.Once
	tree      *grammar.Tree
	parseErr  error
}

// New creates a Document and resolves its grammar from the path extension.
// A nil registry uses the default one.
func New(f File, registry *grammar.LanguageRegistry) *Document {
	if registry == nil {
		registry = grammar.DefaultRegistry()
	}

	d := &Document{
		ID:      Hash(f.Path, f.Content),
		Path:    f.Path,
		Content: f.Content,
	}
	g, err := registry.ForPath(f.Path)
	if err != nil {
		d.langErr = err
	} else {
		d.grammar = g
		d.Language = g.Name()
	}
	return d
}

// NewWithGrammar creates a Document bound to an explicit grammar.
func NewWithGrammar(f File, g grammar.Grammar) *Document {
	return &Document{
		ID:       Hash(f.Path, f.Content),
		Path:     f.Path,
		Content:  f.Content,
		grammar:  g,
		Language: g.Name(),
	}
}

// Hash returns the stable xxhash64 identity of a path and its content.
func Hash(path string, content []byte) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(path)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(content)
	return h.Sum64()
}

// Grammar returns the document's grammar or an unsupported-language error.
func (d *Document) Grammar() (grammar.Grammar, error) {
	if d.grammar == nil {
		if d.langErr != nil {
			return nil, d.langErr
		}
		return nil, cgerrors.UnsupportedLanguage(d.Path)
	}
	return d.grammar, nil
}

// Tree returns the parse tree and fails when the source has syntax errors.
func (d *Document) Tree(ctx context.Context) (*grammar.Tree, error) {
	tree, err := d.LenientTree(ctx)
	if err != nil {
		return nil, err
	}
	if tree.Nodes[grammar.Root].HasError {
		return nil, cgerrors.ParseError(d.Path, nil).
			WithDetail("line", strconv.Itoa(int(tree.FirstErrorLine())+1))
	}
	return tree, nil
}

// LenientTree returns the parse tree even when it contains error nodes.
func (d *Document) LenientTree(ctx context.Context) (*grammar.Tree, error) {
	g, err := d.Grammar()
	if err != nil {
		return nil, err
	}
	d.parseOnce.Do(func() {
		d.tree, d.parseErr = g.ParseLenient(ctx, d.Content)
		// Foreign and local failures become parse errors for this path
		if d.parseErr != nil && ctx.Err() == nil && (cgerrors.GetCode(d.parseErr) == "" || cgerrors.IsLocal(d.parseErr)) {
			d.parseErr = cgerrors.ParseError(d.Path, d.parseErr)
		}
	})
	return d.tree, d.parseErr
}

func (d *Document) lines() []int {
	d.lineOnce.Do(func() {
		d.lineStarts = []int{0}
		for i, b := range d.Content {
			if b == '\n' && i+1 < len(d.Content) {
				d.lineStarts = append(d.lineStarts, i+1)
			}
		}
	})
	return d.lineStarts
}

// LineCount returns the number of lines. An empty document has one empty line.
func (d *Document) LineCount() int {
	return len(d.lines())
}

// LineOf returns the 1-indexed line containing a byte offset.
func (d *Document) LineOf(offset int) int {
	starts := d.lines()
	return sort.Search(len(starts), func(i int) bool { return starts[i] > offset })
}

// LineStart returns the byte offset where a 1-indexed line begins.
func (d *Document) LineStart(line int) int {
	starts := d.lines()
	if line <= 1 {
		return 0
	}
	if line > len(starts) {
		return len(d.Content)
	}
	return starts[line-1]
}

// LineEnd returns the byte offset just past a 1-indexed line, newline included.
func (d *Document) LineEnd(line int) int {
	starts := d.lines()
	if line >= len(starts) {
		return len(d.Content)
	}
	if line < 1 {
		line = 1
	}
	return starts[line]
}

// FirstNonSpace returns the offset of the first non-blank byte on a line,
// or the line start when the line is blank.
func (d *Document) FirstNonSpace(line int) int {
	start, end := d.LineStart(line), d.LineEnd(line)
	for i := start; i < end; i++ {
		switch d.Content[i] {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return i
	}
	return start
}

// Slice returns content between two byte offsets, clamped to the document.
func (d *Document) Slice(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(d.Content) {
		end = len(d.Content)
	}
	if start >= end {
		return ""
	}
	return string(d.Content[start:end])
}

// RangeFor builds a Range from byte offsets, with inclusive 1-indexed lines.
func (d *Document) RangeFor(start, end int) Range {
	endLine := d.LineOf(start)
	if end > start {
		endLine = d.LineOf(end - 1)
	}
	return Range{
		StartByte: start,
		EndByte:   end,
		StartLine: d.LineOf(start),
		EndLine:   endLine,
	}
}
