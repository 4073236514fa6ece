package rank

import (
	"context"
	"sort"

	"github.com/Aman-CERP/codegrip/internal/document"
	"github.com/Aman-CERP/codegrip/internal/grammar"
	"github.com/Aman-CERP/codegrip/internal/query"
)

// block is a candidate range before scoring.
type block struct {
	rng    document.Range
	kind   grammar.UnitKind
	symbol string
}

// resolveBlocks turns hits into merged, scored block matches.
func (r *Ranker) resolveBlocks(ctx context.Context, doc *document.Document, ev *evaluator, sc *scorer, leaves []*query.Node, hits []int, penalty float64) []document.Match {
	if len(hits) == 0 {
		// Path-only match: the whole file is the block
		whole := block{rng: doc.RangeFor(0, len(doc.Content)), kind: grammar.UnitFile}
		score, matched := sc.score(ev, leaves, 0, len(doc.Content))
		return []document.Match{r.toMatch(doc, whole, score*penalty, -1, matched)}
	}

	// One resolution per line; later hits on the same line share the block
	var blocks []block
	lastLine := 0
	for _, h := range hits {
		line := doc.LineOf(h)
		if line == lastLine {
			continue
		}
		lastLine = line
		blocks = append(blocks, r.blockAt(ctx, doc, h))
	}

	blocks = mergeBlocks(blocks, r.opts.MergeThreshold)

	out := make([]document.Match, 0, len(blocks))
	for _, b := range blocks {
		score, matched := sc.score(ev, leaves, b.rng.StartByte, b.rng.EndByte)
		if score <= 0 {
			continue
		}
		out = append(out, r.toMatch(doc, b, score*penalty, firstHitWithin(hits, b.rng), matched))
	}
	return out
}

func (r *Ranker) toMatch(doc *document.Document, b block, score float64, first int, matched []string) document.Match {
	if first < 0 {
		first = b.rng.StartByte
	}
	return document.Match{
		Kind:       document.KindKeyword,
		Path:       doc.Path,
		Range:      b.rng,
		Score:      score,
		FirstMatch: first,
		Terms:      matched,
		UnitKind:   b.kind,
		Symbol:     b.symbol,
	}
}

// blockAt resolves one hit to its enclosing block, falling back to a line window.
func (r *Ranker) blockAt(ctx context.Context, doc *document.Document, offset int) block {
	if r.resolver != nil && doc.Language != "" {
		eb, err := r.resolver.ResolveOffset(ctx, doc, offset)
		if err == nil && eb != nil {
			return block{rng: eb.Range(), kind: eb.Kind, symbol: eb.Symbol}
		}
	}
	return lineWindow(doc, doc.LineOf(offset), r.opts.ContextLines)
}

// lineWindow returns the lines around line, clamped to the document.
func lineWindow(doc *document.Document, line, contextLines int) block {
	startLine := line - contextLines
	if startLine < 1 {
		startLine = 1
	}
	endLine := line + contextLines
	if endLine > doc.LineCount() {
		endLine = doc.LineCount()
	}
	start := doc.LineStart(startLine)
	end := doc.LineEnd(endLine)
	return block{rng: doc.RangeFor(start, end), kind: grammar.UnitLines}
}

// mergeBlocks merges overlapping blocks and blocks whose line gap is at
// most threshold. A negative threshold merges only overlapping ranges.
func mergeBlocks(blocks []block, threshold int) []block {
	if len(blocks) < 2 {
		return blocks
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].rng.StartByte != blocks[j].rng.StartByte {
			return blocks[i].rng.StartByte < blocks[j].rng.StartByte
		}
		return blocks[i].rng.EndByte > blocks[j].rng.EndByte
	})

	merged := []block{blocks[0]}
	for _, b := range blocks[1:] {
		cur := &merged[len(merged)-1]
		overlaps := b.rng.StartByte < cur.rng.EndByte
		gap := b.rng.StartLine - cur.rng.EndLine - 1
		if !overlaps && (threshold < 0 || gap > threshold) {
			merged = append(merged, b)
			continue
		}
		if cur.rng.Contains(b.rng) {
			continue
		}
		if b.rng.EndByte > cur.rng.EndByte {
			cur.rng.EndByte = b.rng.EndByte
			cur.rng.EndLine = b.rng.EndLine
		}
		if cur.kind != b.kind {
			cur.kind = grammar.UnitLines
		}
		if cur.symbol != b.symbol {
			cur.symbol = ""
		}
	}
	return merged
}

func firstHitWithin(hits []int, rng document.Range) int {
	i := sort.SearchInts(hits, rng.StartByte)
	if i < len(hits) && hits[i] < rng.EndByte {
		return hits[i]
	}
	return -1
}
