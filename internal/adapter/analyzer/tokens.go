package analyzer

import (
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates LLM token costs with tiktoken's cl100k_base
// encoding, falling back to a chars/4 heuristic when the encoding cannot be
// loaded (e.g. no cached BPE files and no network).
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenCounter creates a TokenCounter. The encoding is loaded lazily on
// first use.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// Count returns the token count for the given text.
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}

	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			c.enc = enc
		}
	})

	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

// HeuristicCounter counts tokens with the chars/4 approximation only.
// Deterministic and dependency-free, used by tests and as a cheap fallback.
type HeuristicCounter struct{}

// Count returns the approximate token count for the given text.
func (HeuristicCounter) Count(text string) int {
	return EstimateTokens(text)
}

// EstimateTokens approximates a token count at ~4 characters per token.
// Non-empty text always costs at least one token.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := int(math.Ceil(float64(len(text)) / 4.0))
	if n < 1 {
		n = 1
	}
	return n
}
