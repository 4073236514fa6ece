// Package tokens counts the LLM tokens a piece of text costs.
package tokens

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"

	cgerrors "github.com/Aman-CERP/codegrip/internal/errors"
)

// DefaultEncoding is the BPE encoding used for budgets.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens.
type Counter interface {
	Count(text string) int
	Name() string
}

// Estimator approximates ~4 characters per token. It needs no data files.
type Estimator struct{}

// Count returns ceil(len(text)/4).
func (Estimator) Count(text string) int {
	return (len(text) + 3) / 4
}

// Name returns "estimate".
func (Estimator) Name() string { return "estimate" }

// BPE counts tokens with a tiktoken encoding.
type BPE struct {
	name string
	enc  *tiktoken.Tiktoken
}

var loaderOnce sync.Once

// NewBPE loads an encoding from the embedded offline BPE ranks.
func NewBPE(encoding string) (*BPE, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, cgerrors.ConfigError("cannot load token encoding "+encoding, err)
	}
	return &BPE{name: encoding, enc: enc}, nil
}

// Count returns the number of BPE tokens in text. Special-token markup is
// counted as ordinary text.
func (b *BPE) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(b.enc.EncodeOrdinary(text))
}

// Name returns the encoding name.
func (b *BPE) Name() string { return b.name }

var (
	defaultCounter     Counter
	defaultCounterOnce sync.Once
)

// Default returns the shared cl100k_base counter, or the estimator when the
// encoding cannot be loaded.
func Default() Counter {
	defaultCounterOnce.Do(func() {
		bpe, err := NewBPE(DefaultEncoding)
		if err != nil {
			slog.Warn("token_counter_fallback",
				slog.String("encoding", DefaultEncoding),
				slog.String("error", err.Error()))
			defaultCounter = Estimator{}
			return
		}
		defaultCounter = bpe
	})
	return defaultCounter
}

// ByName returns a counter for "estimate" or a tiktoken encoding name.
// An empty name selects Default.
func ByName(name string) (Counter, error) {
	switch name {
	case "":
		return Default(), nil
	case "estimate":
		return Estimator{}, nil
	case DefaultEncoding:
		return Default(), nil
	}
	return NewBPE(name)
}
