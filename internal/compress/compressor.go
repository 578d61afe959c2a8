// internal/compress/compressor.go
package compress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/chronicler/internal/history"
	"github.com/user/chronicler/internal/types"
)

// Policy configures when compression fires and how small its output must be.
type Policy struct {
	// BudgetTokens is the buffer cost above which compression is wanted.
	BudgetTokens int
	// CeilingTokens forces compression even without a natural break. A
	// summary produced this way is flagged Forced (policy fallback).
	CeilingTokens int
	// TargetTokens bounds the summary length independently of input size.
	TargetTokens int
	// IdleTurns is the number of consecutive turns without world-relevant
	// content that counts as a topic-shift break.
	IdleTurns int
}

// DefaultPolicy returns the policy used when config leaves values unset:
// 1500-token budget, 2x ceiling, 256-token summaries, 6 idle turns.
func DefaultPolicy() Policy {
	return Policy{
		BudgetTokens:  1500,
		CeilingTokens: 3000,
		TargetTokens:  256,
		IdleTurns:     6,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.BudgetTokens <= 0 {
		p.BudgetTokens = d.BudgetTokens
	}
	if p.CeilingTokens <= p.BudgetTokens {
		p.CeilingTokens = p.BudgetTokens * 2
	}
	if p.TargetTokens <= 0 {
		p.TargetTokens = d.TargetTokens
	}
	if p.IdleTurns <= 0 {
		p.IdleTurns = d.IdleTurns
	}
	return p
}

// Trigger is the outcome of the compression trigger policy.
type Trigger struct {
	Compress bool
	// Forced is set when the hard ceiling fired without a natural break.
	Forced bool
}

// Compressor folds a run of turns into a bounded Summary. It never touches
// the archival transcript; only the active context view shrinks.
type Compressor struct {
	policy     Policy
	counter    *history.TokenCounter
	summarizer types.Summarizer
}

// New creates a Compressor. Zero policy fields take defaults.
func New(policy Policy, counter *history.TokenCounter, summarizer types.Summarizer) *Compressor {
	return &Compressor{
		policy:     policy.withDefaults(),
		counter:    counter,
		summarizer: summarizer,
	}
}

// Policy returns the effective policy after defaulting.
func (c *Compressor) Policy() Policy { return c.policy }

// ShouldCompress applies the trigger policy to the current buffer cost and
// break state. Budget-exceeded without a break defers to the next break so
// an exchange is never truncated mid-thought; the ceiling overrides that.
func (c *Compressor) ShouldCompress(cost int, breakDetected bool) Trigger {
	if cost > c.policy.CeilingTokens {
		return Trigger{Compress: true, Forced: !breakDetected}
	}
	if cost > c.policy.BudgetTokens && breakDetected {
		return Trigger{Compress: true}
	}
	return Trigger{}
}

// Compress summarizes turns into a single Summary covering buffer indices
// [fromTurn, fromTurn+len(turns)-1]. On any failure the caller's view is
// untouched; there is no partial replace.
func (c *Compressor) Compress(ctx context.Context, turns []types.Turn, fromTurn int, forced bool) (types.Summary, error) {
	if len(turns) == 0 {
		return types.Summary{}, fmt.Errorf("no turns to compress: %w", types.ErrCompressionFailed)
	}

	text, err := c.summarizer.Summarize(ctx, turns, c.policy.TargetTokens)
	if err != nil {
		return types.Summary{}, fmt.Errorf("summarize %d turns (%v): %w", len(turns), err, types.ErrCompressionFailed)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Summary{}, fmt.Errorf("summarizer returned empty output: %w", types.ErrCompressionFailed)
	}

	// Hard bound regardless of what the summarizer did.
	text = truncateToTokens(text, c.policy.TargetTokens, c.counter)

	return types.Summary{
		SceneID:   turns[0].SceneID,
		FromTurn:  fromTurn,
		ToTurn:    fromTurn + len(turns) - 1,
		Text:      text,
		CreatedAt: time.Now().UTC(),
		Forced:    forced,
	}, nil
}

// truncateToTokens trims text at word boundaries until it fits the budget.
// Already-compact text passes through unchanged, so re-compressing a
// summary can rephrase but never lose it wholesale.
func truncateToTokens(text string, budget int, counter *history.TokenCounter) string {
	if counter.Count(text) <= budget {
		return text
	}
	words := strings.Fields(text)
	lo, hi := 0, len(words)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if counter.Count(strings.Join(words[:mid], " ")) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	if lo == 0 {
		lo = 1
	}
	return strings.Join(words[:lo], " ")
}
