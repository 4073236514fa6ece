// Package extract resolves a location inside a file to the smallest
// enclosing syntactic unit: a function, method, class, impl block and so on.
//
// Resolution ascends from the deepest node at the location to the first
// extractable unit, widening to enclosing wrappers such as decorators and
// export statements. Without a unit it falls back to the smallest enclosing
// statement, then to the whole file. Files without a grammar, and locations
// inside a syntax error, get a line window flagged as a fallback.
package extract

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/Aman-CERP/codegrip/internal/document"
	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
	"github.com/Aman-CERP/codegrip/internal/grammar"
)

// DefaultContextLines is the line window radius used by the fallback.
const DefaultContextLines = 10

// Extractor resolves locations to blocks. It holds no per-call state and is
// safe for concurrent use.
type Extractor struct {
	contextLines int
	logger       *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithContextLines sets the default fallback window radius.
func WithContextLines(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.contextLines = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		contextLines: DefaultContextLines,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract resolves loc inside doc. contextLines sizes the fallback window;
// zero or less uses the extractor default.
func (e *Extractor) Extract(ctx context.Context, doc *document.Document, loc document.Location, contextLines int) (*document.ExtractedBlock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if contextLines <= 0 {
		contextLines = e.contextLines
	}

	switch {
	case loc.Symbol != "":
		return e.extractSymbol(ctx, doc, loc.Symbol)
	case loc.HasOffset:
		if loc.Offset < 0 || loc.Offset > len(doc.Content) {
			return nil, cgerrors.New(cgerrors.ErrCodeLineOutOfRange, "offset out of range: "+strconv.Itoa(loc.Offset), nil).
				WithDetail("path", doc.Path)
		}
		return e.extractOffset(ctx, doc, loc.Offset, contextLines), nil
	default:
		if err := checkLine(doc, loc.Line); err != nil {
			return nil, err
		}
		if loc.IsRange() {
			if err := checkLine(doc, loc.EndLine); err != nil {
				return nil, err
			}
			if loc.EndLine < loc.Line {
				return nil, cgerrors.ValidationError("range end precedes start: "+loc.String(), nil)
			}
			return e.extractRange(ctx, doc, loc.Line, loc.EndLine, contextLines), nil
		}
		return e.extractOffset(ctx, doc, doc.FirstNonSpace(loc.Line), contextLines), nil
	}
}

// ResolveOffset returns the block enclosing offset. It lets the ranking
// engine resolve keyword hits to blocks.
func (e *Extractor) ResolveOffset(ctx context.Context, doc *document.Document, offset int) (*document.ExtractedBlock, error) {
	if offset < 0 || offset > len(doc.Content) {
		return nil, cgerrors.New(cgerrors.ErrCodeLineOutOfRange, "offset out of range: "+strconv.Itoa(offset), nil)
	}
	return e.extractOffset(ctx, doc, offset, e.contextLines), nil
}

func checkLine(doc *document.Document, line int) error {
	if line < 1 || line > doc.LineCount() {
		return cgerrors.New(cgerrors.ErrCodeLineOutOfRange,
			"line "+strconv.Itoa(line)+" is outside "+doc.Path, nil).
			WithDetail("path", doc.Path).
			WithDetail("lines", strconv.Itoa(doc.LineCount()))
	}
	return nil
}

// tree returns the lenient parse tree and grammar, or ok=false when the
// document has to use the line window fallback.
func (e *Extractor) tree(ctx context.Context, doc *document.Document) (*grammar.Tree, grammar.Grammar, bool) {
	g, err := doc.Grammar()
	if err != nil {
		return nil, nil, false
	}
	t, err := doc.LenientTree(ctx)
	if err != nil {
		e.logger.Debug("extract_fallback",
			slog.String("path", doc.Path),
			slog.String("reason", cgerrors.GetCode(err)))
		return nil, nil, false
	}
	return t, g, true
}

func (e *Extractor) extractOffset(ctx context.Context, doc *document.Document, offset, contextLines int) *document.ExtractedBlock {
	t, g, ok := e.tree(ctx, doc)
	if !ok {
		return window(doc, doc.LineOf(offset), doc.LineOf(offset), contextLines)
	}
	id, kind, ok := enclosing(t, g, t.DeepestAt(uint32(offset)))
	if !ok {
		return window(doc, doc.LineOf(offset), doc.LineOf(offset), contextLines)
	}
	return nodeBlock(doc, t, g, id, kind)
}

// extractRange returns the smallest unit covering both ends of a line range.
// A range no single unit covers is returned as is.
func (e *Extractor) extractRange(ctx context.Context, doc *document.Document, startLine, endLine, contextLines int) *document.ExtractedBlock {
	start := doc.FirstNonSpace(startLine)
	end := lastNonSpace(doc, endLine)

	t, g, ok := e.tree(ctx, doc)
	if !ok {
		return window(doc, startLine, endLine, contextLines)
	}
	id, kind, ok := enclosing(t, g, t.DeepestAt(uint32(start)))
	for ok && t.Node(id).EndByte < uint32(end) {
		parent := t.Node(id).Parent
		if parent == grammar.NoNode {
			break
		}
		id, kind, ok = enclosing(t, g, parent)
	}
	if ok && id != grammar.Root && t.Node(id).EndByte >= uint32(end) {
		return nodeBlock(doc, t, g, id, kind)
	}

	b := window(doc, startLine, endLine, 0)
	b.Fallback = false
	return b
}

// enclosing ascends from id to the first extractable unit, widened through
// enclosing wrappers. Without a unit the smallest statement is used, then
// the root. ok is false when the ascent crosses a syntax error first.
func enclosing(t *grammar.Tree, g grammar.Grammar, id grammar.NodeID) (grammar.NodeID, grammar.UnitKind, bool) {
	if id == grammar.NoNode {
		return grammar.Root, grammar.UnitFile, true
	}

	statement := grammar.NoNode
	for cur := id; cur != grammar.NoNode; cur = t.Node(cur).Parent {
		n := t.Node(cur)
		if n.IsError {
			return grammar.NoNode, "", false
		}
		if g.IsExtractableNode(t, cur) {
			kind := g.UnitKind(n.Kind)
			for p := n.Parent; p != grammar.NoNode && g.IsEnclosingWrapper(t.Node(p).Kind); p = t.Node(p).Parent {
				cur = p
			}
			return cur, kind, true
		}
		if statement == grammar.NoNode && g.IsStatement(n.Kind) {
			statement = cur
		}
	}
	if statement != grammar.NoNode {
		return statement, grammar.UnitStatement, true
	}
	return grammar.Root, grammar.UnitFile, true
}

func nodeBlock(doc *document.Document, t *grammar.Tree, g grammar.Grammar, id grammar.NodeID, kind grammar.UnitKind) *document.ExtractedBlock {
	n := t.Node(id)
	start, end := int(n.StartByte), int(n.EndByte)
	if id == grammar.Root {
		start, end = 0, len(doc.Content)
	}
	rng := doc.RangeFor(start, end)

	symbol := ""
	if kind != grammar.UnitFile && kind != grammar.UnitStatement {
		symbol = nameOf(t, g, unitOf(t, g, id))
	}
	return &document.ExtractedBlock{
		Path:      doc.Path,
		Language:  doc.Language,
		StartLine: rng.StartLine,
		EndLine:   rng.EndLine,
		StartByte: start,
		EndByte:   end,
		Kind:      kind,
		Symbol:    symbol,
		Source:    doc.Slice(start, end),
	}
}

// unitOf descends from a wrapper to the unit it wraps.
func unitOf(t *grammar.Tree, g grammar.Grammar, id grammar.NodeID) grammar.NodeID {
	for g.IsEnclosingWrapper(t.Node(id).Kind) {
		next := grammar.NoNode
		for _, c := range t.NamedChildren(id) {
			if g.IsExtractableNode(t, c) || g.IsEnclosingWrapper(t.Node(c).Kind) {
				next = c
				break
			}
		}
		if next == grammar.NoNode {
			return id
		}
		id = next
	}
	return id
}

// window returns whole lines [startLine-contextLines, endLine+contextLines].
func window(doc *document.Document, startLine, endLine, contextLines int) *document.ExtractedBlock {
	from := startLine - contextLines
	if from < 1 {
		from = 1
	}
	to := endLine + contextLines
	if to > doc.LineCount() {
		to = doc.LineCount()
	}
	start, end := doc.LineStart(from), doc.LineEnd(to)
	rng := doc.RangeFor(start, end)
	return &document.ExtractedBlock{
		Path:      doc.Path,
		Language:  doc.Language,
		StartLine: rng.StartLine,
		EndLine:   rng.EndLine,
		StartByte: start,
		EndByte:   end,
		Kind:      grammar.UnitLines,
		Source:    doc.Slice(start, end),
		Fallback:  true,
	}
}

func lastNonSpace(doc *document.Document, line int) int {
	start, end := doc.LineStart(line), doc.LineEnd(line)
	for i := end - 1; i >= start; i-- {
		switch doc.Content[i] {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return i + 1
	}
	return start
}
