package terms

import (
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSplitCacheSize bounds the decompounding memo.
const DefaultSplitCacheSize = 8192

// span is a byte range relative to the start of an identifier run.
type span struct {
	start, end int
}

// splitCache memoizes identifier decompounding. Splitting is a pure
// function of the run, so one cache is shared by every analyzer.
type splitCache struct {
	cache *lru.Cache[string, []span]
}

func newSplitCache(size int) *splitCache {
	if size <= 0 {
		size = DefaultSplitCacheSize
	}
	cache, err := lru.New[string, []span](size)
	if err != nil {
		// Only returned for a non-positive size
		return &splitCache{}
	}
	return &splitCache{cache: cache}
}

func (c *splitCache) split(run string) []span {
	if c.cache == nil {
		return splitIdentifier(run)
	}
	if spans, ok := c.cache.Get(run); ok {
		return spans
	}
	spans := splitIdentifier(run)
	c.cache.Add(run, spans)
	return spans
}

var (
	defaultSplits     *splitCache
	defaultSplitsOnce sync.Once
)

// sharedSplits returns the process-wide memo for the default size and a
// private one otherwise.
func sharedSplits(size int) *splitCache {
	if size > 0 && size != DefaultSplitCacheSize {
		return newSplitCache(size)
	}
	defaultSplitsOnce.Do(func() {
		defaultSplits = newSplitCache(DefaultSplitCacheSize)
	})
	return defaultSplits
}

// codeTokenizer implements analysis.Tokenizer for source code.
// It splits on non-alphanumeric bytes, then decompounds each run on case
// transitions, acronym ends and digit/letter boundaries.
type codeTokenizer struct {
	decompound bool
	splits     *splitCache
}

// Tokenize implements analysis.Tokenizer.
// Offsets are exact byte offsets into input; positions are 1-based.
func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input)/4)
	pos := 1

	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRune(input[i:])
		if !t.isRunRune(r) {
			i += size
			continue
		}

		start := i
		for i < len(input) {
			r, size = utf8.DecodeRune(input[i:])
			if !t.isRunRune(r) {
				break
			}
			i += size
		}

		if !t.decompound {
			result = append(result, newToken(input, start, i, pos))
			pos++
			continue
		}

		for _, s := range t.splits.split(string(input[start:i])) {
			result = append(result, newToken(input, start+s.start, start+s.end, pos))
			pos++
		}
	}

	return result
}

func (t *codeTokenizer) isRunRune(r rune) bool {
	if r == utf8.RuneError {
		return false
	}
	if r == '_' {
		return !t.decompound
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func newToken(input []byte, start, end, pos int) *analysis.Token {
	term := make([]byte, end-start)
	copy(term, input[start:end])
	typ := analysis.AlphaNumeric
	if isNumeric(term) {
		typ = analysis.Numeric
	}
	return &analysis.Token{
		Term:     term,
		Start:    start,
		End:      end,
		Position: pos,
		Type:     typ,
	}
}

func isNumeric(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(b) > 0
}

// splitIdentifier splits an alphanumeric run into pieces.
// Examples:
//   - "getUserByID" -> get, User, By, ID
//   - "HTTPHandler" -> HTTP, Handler
//   - "utf8Decode"  -> utf, 8, Decode
func splitIdentifier(run string) []span {
	runes := []rune(run)
	offsets := make([]int, len(runes)+1)
	off := 0
	for i, r := range runes {
		offsets[i] = off
		off += utf8.RuneLen(r)
	}
	offsets[len(runes)] = off

	var spans []span
	start := 0
	for i := 1; i < len(runes); i++ {
		if isBoundary(runes, i) {
			spans = append(spans, span{offsets[start], offsets[i]})
			start = i
		}
	}
	if start < len(runes) {
		spans = append(spans, span{offsets[start], offsets[len(runes)]})
	}
	return spans
}

// isBoundary reports whether a new piece starts at runes[i].
func isBoundary(runes []rune, i int) bool {
	prev, cur := runes[i-1], runes[i]

	if unicode.IsDigit(prev) != unicode.IsDigit(cur) {
		return true
	}
	if !unicode.IsUpper(cur) {
		return false
	}
	if unicode.IsLower(prev) {
		return true
	}
	// Last capital of an acronym followed by a lowercase letter: "HTTPHandler"
	return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
