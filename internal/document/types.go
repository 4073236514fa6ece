package document

import (
	"fmt"

	"github.com/Aman-CERP/codegrip/internal/grammar"
)

// MatchKind distinguishes keyword hits from structural hits.
type MatchKind string

const (
	KindKeyword    MatchKind = "keyword"
	KindStructural MatchKind = "structural"
	KindFile       MatchKind = "file" // files-only listing
)

// Range is a byte range with inclusive 1-indexed lines.
type Range struct {
	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
}

// Overlaps reports whether two ranges share at least one byte.
func (r Range) Overlaps(o Range) bool {
	return r.StartByte < o.EndByte && o.StartByte < r.EndByte
}

// Contains reports whether o lies entirely within r.
func (r Range) Contains(o Range) bool {
	return r.StartByte <= o.StartByte && o.EndByte <= r.EndByte
}

func (r Range) String() string {
	if r.StartLine == r.EndLine {
		return fmt.Sprintf("%d", r.StartLine)
	}
	return fmt.Sprintf("%d-%d", r.StartLine, r.EndLine)
}

// Match is a keyword or structural hit. Path is a non-owning reference
// back into the Document that produced it.
type Match struct {
	Kind  MatchKind
	Path  string
	Range Range

	// Keyword matches
	Score      float64
	FirstMatch int      // byte offset of the earliest query hit
	Terms      []string // matched query terms, sorted

	// Structural matches
	Bindings map[string]string

	// Resolved block information
	UnitKind grammar.UnitKind
	Symbol   string
}

// ExtractedBlock is a source range resolved around a location.
type ExtractedBlock struct {
	Path      string           `json:"path"`
	Language  string           `json:"language,omitempty"`
	StartLine int              `json:"start_line"`
	EndLine   int              `json:"end_line"`
	StartByte int              `json:"start_byte"`
	EndByte   int              `json:"end_byte"`
	Kind      grammar.UnitKind `json:"kind"`
	Symbol    string           `json:"symbol,omitempty"`
	Source    string           `json:"source"`

	// Fallback is set when the block is a line window rather than a syntactic unit.
	Fallback bool `json:"fallback,omitempty"`
}

// Range returns the block's byte and line range.
func (b *ExtractedBlock) Range() Range {
	return Range{StartByte: b.StartByte, EndByte: b.EndByte, StartLine: b.StartLine, EndLine: b.EndLine}
}

// Location addresses a point or range inside a file for extraction.
// Exactly one of Line, Offset, Symbol or a line range is meaningful.
type Location struct {
	Line      int    // 1-indexed; 0 when unset
	EndLine   int    // set for start-end ranges
	Offset    int    // byte offset; valid when HasOffset
	HasOffset bool
	Symbol    string
}

// AtLine addresses a 1-indexed line.
func AtLine(line int) Location { return Location{Line: line} }

// AtOffset addresses a byte offset.
func AtOffset(offset int) Location { return Location{Offset: offset, HasOffset: true} }

// AtSymbol addresses a named extractable unit.
func AtSymbol(name string) Location { return Location{Symbol: name} }

// Lines addresses an explicit inclusive line range.
func Lines(start, end int) Location { return Location{Line: start, EndLine: end} }

// IsRange reports whether the location is an explicit line range.
func (l Location) IsRange() bool { return l.EndLine > 0 }

func (l Location) String() string {
	switch {
	case l.Symbol != "":
		return "#" + l.Symbol
	case l.HasOffset:
		return fmt.Sprintf("@%d", l.Offset)
	case l.IsRange():
		return fmt.Sprintf("%d-%d", l.Line, l.EndLine)
	default:
		return fmt.Sprintf("%d", l.Line)
	}
}

// Diagnostic records a file skipped or degraded during a call.
type Diagnostic struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
