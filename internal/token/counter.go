// Package token provides token counting for chunk-size budgeting.
//
// Counts use a tiktoken encoding so chunk budgets line up with what the
// embedding model actually sees. Encodings load from the embedded
// offline vocabulary, never the network. When the encoding cannot be
// loaded the counter degrades to a character-count heuristic; callers
// must treat counts as budgeting guidance, not exact values, in that
// mode.
package token

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// fallbackDivisor approximates tokens from characters when no tokenizer is
// available (roughly 4 characters per token for English text).
const fallbackDivisor = 4

// Counter counts tokens in text. Safe for concurrent use.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

var loaderOnce sync.Once

// NewCounter creates a Counter for the given tiktoken encoding name
// (e.g. "cl100k_base"). On failure it returns a degraded Counter that uses
// the character heuristic, together with the error, so callers can log the
// degradation and continue.
func NewCounter(encodingName string) (*Counter, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return &Counter{}, fmt.Errorf("loading tiktoken encoding %q: %w", encodingName, err)
	}
	return &Counter{encoding: enc}, nil
}

// Count returns the number of tokens in text. Pure function, no side
// effects.
func (c *Counter) Count(text string) int {
	if c.encoding == nil {
		return len(text) / fallbackDivisor
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// Degraded reports whether the counter is running on the character
// heuristic instead of a real tokenizer.
func (c *Counter) Degraded() bool {
	return c.encoding == nil
}
