// Package tokens estimates how many model tokens a piece of text occupies.
//
// Every estimator is monotone: appending text never lowers the count, and
// the empty string counts as zero. Token budgets elsewhere in NeuralMeet
// are only meaningful relative to the estimator chosen for the process.
package tokens

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const defaultEncoding = "cl100k_base"

type Estimator interface {
	Count(text string) int
}

// Words counts whitespace-delimited fields.
type Words struct{}

func (Words) Count(text string) int {
	return len(strings.Fields(text))
}

// Tiktoken counts BPE tokens with an embedded vocabulary.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

func NewTiktoken(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encoding, err)
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.EncodeOrdinary(text))
}

// New returns the estimator named by kind ("tiktoken" or "words"). A
// tokenizer that cannot load degrades to Words so a run can still proceed.
func New(kind string) (Estimator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "tiktoken":
		est, err := NewTiktoken(defaultEncoding)
		if err != nil {
			slog.Warn("tiktoken unavailable, counting words instead", "error", err)
			return Words{}, nil
		}
		return est, nil
	case "words":
		return Words{}, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q: supported tokenizers are tiktoken, words", kind)
	}
}
