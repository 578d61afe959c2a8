// internal/history/tokens.go
package history

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/user/chronicler/internal/types"
)

// TokenCounter estimates token cost for buffer accounting and compression
// budgets. It prefers a real tiktoken encoding for the configured model and
// degrades to a chars/4 estimate when no encoding is available (offline,
// unknown model).
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter for the given model name.
func NewTokenCounter(model string) *TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
		}
	}
	return &TokenCounter{enc: enc}
}

// NewApproxCounter returns a counter that always uses the chars/4
// estimate, independent of any encoding data. Useful where deterministic
// costs matter more than accuracy.
func NewApproxCounter() *TokenCounter {
	return &TokenCounter{}
}

// Count returns the estimated token count for text.
func (c *TokenCounter) Count(text string) int {
	if c == nil || c.enc == nil {
		// Rough estimate: 1 token ≈ 4 characters
		n := len(text) / 4
		if n < 1 && len(text) > 0 {
			n = 1
		}
		return n
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountTurns sums the estimated cost of a run of turns.
func (c *TokenCounter) CountTurns(turns []types.Turn) int {
	total := 0
	for _, t := range turns {
		total += c.Count(t.Content)
	}
	return total
}
