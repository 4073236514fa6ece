// Package assemble merges keyword and structural matches into the final
// result list and enforces the caller's token, byte and result budgets.
package assemble

import (
	"context"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/Aman-CERP/codegrip/internal/document"
	"github.com/Aman-CERP/codegrip/internal/grammar"
	"github.com/Aman-CERP/codegrip/internal/rank"
	"github.com/Aman-CERP/codegrip/internal/tokens"
)

// Record is the stable, serializable shape of one result.
type Record struct {
	ID       string             `json:"id"`
	Kind     document.MatchKind `json:"kind"`
	Path     string             `json:"path"`
	Language string             `json:"language,omitempty"`
	Range    document.Range     `json:"range"`
	Score    float64            `json:"score"`
	Terms    []string           `json:"terms,omitempty"`
	Bindings map[string]string  `json:"bindings,omitempty"`
	UnitKind grammar.UnitKind   `json:"unit_kind,omitempty"`
	Symbol   string             `json:"symbol,omitempty"`
	Snippet  string             `json:"snippet,omitempty"`
	Tokens   int                `json:"tokens"`
}

// Options bounds one assembly pass. Zero limits are unlimited.
type Options struct {
	TokenBudget int
	MaxBytes    int
	MaxResults  int

	// FilesOnly emits paths without snippets.
	FilesOnly bool

	// Counter counts snippet tokens (default: tokens.Default()).
	Counter tokens.Counter
}

// Output is the assembled result list.
type Output struct {
	Records     []Record `json:"results"`
	TokensUsed  int      `json:"tokens_used"`
	BytesUsed   int      `json:"bytes_used"`
	TokenBudget int      `json:"token_budget,omitempty"`
	Truncated   bool     `json:"truncated"`
	Dropped     int      `json:"dropped,omitempty"`
	Cancelled   bool     `json:"cancelled,omitempty"`
}

// Budget tracks what one assembly pass has spent.
type Budget struct {
	TokenLimit  int
	ByteLimit   int
	ResultLimit int

	Tokens  int
	Bytes   int
	Results int
}

// Fits reports whether one more result of the given cost stays within every limit.
func (b *Budget) Fits(tokenCost, byteCost int) bool {
	if b.TokenLimit > 0 && b.Tokens+tokenCost > b.TokenLimit {
		return false
	}
	if b.ByteLimit > 0 && b.Bytes+byteCost > b.ByteLimit {
		return false
	}
	if b.ResultLimit > 0 && b.Results+1 > b.ResultLimit {
		return false
	}
	return true
}

// Spend records one result.
func (b *Budget) Spend(tokenCost, byteCost int) {
	b.Tokens += tokenCost
	b.Bytes += byteCost
	b.Results++
}

// Merge combines the keyword and structural streams into one ordered list.
// A range reported by both streams is kept once: with the higher score and
// the structural bindings.
func Merge(keyword, structural []document.Match) []document.Match {
	type key struct {
		path       string
		start, end int
	}
	index := make(map[key]int, len(keyword)+len(structural))
	out := make([]document.Match, 0, len(keyword)+len(structural))

	add := func(m document.Match) {
		k := key{m.Path, m.Range.StartByte, m.Range.EndByte}
		i, dup := index[k]
		if !dup {
			index[k] = len(out)
			out = append(out, m)
			return
		}
		prev := &out[i]
		if m.Score > prev.Score {
			m.Bindings = mergeBindings(m.Bindings, prev.Bindings)
			*prev = m
			return
		}
		prev.Bindings = mergeBindings(prev.Bindings, m.Bindings)
	}
	for _, m := range keyword {
		add(m)
	}
	for _, m := range structural {
		add(m)
	}

	rank.SortMatches(out)
	return out
}

func mergeBindings(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	out := make(map[string]string, len(dst)+len(src))
	for k, v := range src {
		out[k] = v
	}
	for k, v := range dst {
		out[k] = v
	}
	return out
}

// Assemble turns ordered matches into records until a budget would be
// exceeded. It stops at the first candidate that does not fit; Truncated is
// set exactly when a candidate was left out. A cancelled ctx does not stop
// assembly: the matches produced before cancellation are still returned,
// with Cancelled set.
func Assemble(ctx context.Context, docs []*document.Document, matches []document.Match, opts Options) *Output {
	counter := opts.Counter
	if counter == nil {
		counter = tokens.Default()
	}
	byPath := make(map[string]*document.Document, len(docs))
	for _, d := range docs {
		byPath[d.Path] = d
	}

	budget := &Budget{TokenLimit: opts.TokenBudget, ByteLimit: opts.MaxBytes, ResultLimit: opts.MaxResults}
	out := &Output{TokenBudget: opts.TokenBudget, Records: []Record{}, Cancelled: ctx.Err() != nil}

	for i, m := range matches {
		rec := newRecord(m, byPath[m.Path], opts.FilesOnly)
		text := rec.Snippet
		if opts.FilesOnly {
			text = rec.Path
		}
		rec.Tokens = counter.Count(text)

		if !budget.Fits(rec.Tokens, len(text)) {
			out.Truncated = true
			out.Dropped = len(matches) - i
			break
		}
		budget.Spend(rec.Tokens, len(text))
		out.Records = append(out.Records, rec)
	}

	out.TokensUsed = budget.Tokens
	out.BytesUsed = budget.Bytes
	return out
}

func newRecord(m document.Match, doc *document.Document, filesOnly bool) Record {
	rec := Record{
		ID:       RecordID(m),
		Kind:     m.Kind,
		Path:     m.Path,
		Range:    m.Range,
		Score:    m.Score,
		Terms:    m.Terms,
		Bindings: m.Bindings,
		UnitKind: m.UnitKind,
		Symbol:   m.Symbol,
	}
	if doc != nil {
		rec.Language = doc.Language
		if !filesOnly {
			rec.Snippet = doc.Slice(m.Range.StartByte, m.Range.EndByte)
		}
	}
	return rec
}

// RecordID is a stable identifier for a match: the xxhash64 of its kind,
// path and byte range.
func RecordID(m document.Match) string {
	h := xxhash.New()
	_, _ = h.WriteString(string(m.Kind))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(m.Path)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strconv.Itoa(m.Range.StartByte))
	_, _ = h.WriteString("-")
	_, _ = h.WriteString(strconv.Itoa(m.Range.EndByte))
	return strconv.FormatUint(h.Sum64(), 16)
}

// FileMatches converts ranked files into file-kind matches for FilesOnly output.
func FileMatches(files []rank.FileScore) []document.Match {
	out := make([]document.Match, 0, len(files))
	for _, f := range files {
		out = append(out, document.Match{
			Kind:       document.KindFile,
			Path:       f.Path,
			Score:      f.Score,
			FirstMatch: f.FirstMatch,
			Terms:      f.Terms,
		})
	}
	rank.SortMatches(out)
	return out
}
