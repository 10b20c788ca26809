// Package tokens measures generated text against a token budget.
package tokens

import (
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts the tokens in a piece of text.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts with a tiktoken encoding.
type TiktokenCounter struct {
	codec tokenizer.Codec
}

var (
	codecCache   = make(map[tokenizer.Encoding]tokenizer.Codec)
	codecCacheMu sync.Mutex
)

// NewTiktokenCounter returns a counter using the encoding closest to model.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	encoding := modelToEncoding(model)

	codecCacheMu.Lock()
	defer codecCacheMu.Unlock()

	if codec, ok := codecCache[encoding]; ok {
		return &TiktokenCounter{codec: codec}, nil
	}
	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}
	codecCache[encoding] = codec
	return &TiktokenCounter{codec: codec}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return estimate(text, defaultCharsPerToken)
	}
	return len(ids)
}

const defaultCharsPerToken = 4.0

// Estimator approximates counts from the character length.
type Estimator struct {
	CharsPerToken float64
}

func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: defaultCharsPerToken}
}

func (e *Estimator) Count(text string) int {
	return estimate(text, e.CharsPerToken)
}

func estimate(text string, charsPerToken float64) int {
	if charsPerToken <= 0 {
		charsPerToken = defaultCharsPerToken
	}
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / charsPerToken))
}

// ForModel returns a tiktoken counter for model, or an Estimator when no
// encoding can be loaded.
func ForModel(model string) Counter {
	c, err := NewTiktokenCounter(model)
	if err != nil {
		return NewEstimator()
	}
	return c
}

// modelToEncoding picks a tiktoken encoding. Models without a published
// tiktoken encoding (Gemini among them) are approximated with cl100k_base.
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}
