// internal/compress/summarize.go
package compress

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/chronicler/internal/history"
	"github.com/user/chronicler/internal/types"
	"github.com/user/chronicler/pkg/llm"
)

const chunkPrompt = "Summarise the following tabletop-RPG conversation chunk into concise " +
	"third-person prose. Preserve resolved and open plot facts, NPC relationship " +
	"changes, newly introduced names, and location transitions. Discard verbatim dialogue."

const mergePrompt = "Combine the following partial scene summaries into one concise " +
	"third-person summary. Keep every named character, place, and unresolved hook; " +
	"only the phrasing may shrink."

// LLMSummarizer folds turns through the language model hierarchically:
// chunk by token budget, summarise each chunk, then summarise the combined
// summaries until one remains.
type LLMSummarizer struct {
	provider    llm.Provider
	counter     *history.TokenCounter
	chunkTokens int
}

// NewLLMSummarizer creates a summarizer over the given provider.
// chunkTokens bounds the input size of a single summarisation call.
func NewLLMSummarizer(provider llm.Provider, counter *history.TokenCounter, chunkTokens int) *LLMSummarizer {
	if chunkTokens <= 0 {
		chunkTokens = 1500
	}
	return &LLMSummarizer{provider: provider, counter: counter, chunkTokens: chunkTokens}
}

// Summarize implements types.Summarizer.
func (s *LLMSummarizer) Summarize(ctx context.Context, turns []types.Turn, targetTokens int) (string, error) {
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = fmt.Sprintf("%s: %s", t.Role, t.Content)
	}

	summaries, err := s.summarizeChunks(ctx, lines, chunkPrompt, targetTokens)
	if err != nil {
		return "", err
	}

	// Merge passes until a single summary remains.
	for len(summaries) > 1 {
		summaries, err = s.summarizeChunks(ctx, summaries, mergePrompt, targetTokens)
		if err != nil {
			return "", err
		}
	}
	return summaries[0], nil
}

// summarizeChunks splits lines into token-bounded chunks and summarises
// each with one completion call.
func (s *LLMSummarizer) summarizeChunks(ctx context.Context, lines []string, prompt string, targetTokens int) ([]string, error) {
	var chunks [][]string
	current := []string{}
	currentTokens := 0
	for _, line := range lines {
		tokens := s.counter.Count(line)
		if currentTokens+tokens > s.chunkTokens && len(current) > 0 {
			chunks = append(chunks, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, line)
		currentTokens += tokens
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		messages := []llm.Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: strings.Join(chunk, "\n")},
		}
		resp, err := s.provider.Complete(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("summarize chunk: %w", err)
		}
		out = append(out, strings.TrimSpace(resp.Content))
	}
	return out, nil
}

// ExtractiveSummarizer is a deterministic fallback used when no language
// model is configured. It keeps the leading sentence of each turn and trims
// the result to the target budget.
type ExtractiveSummarizer struct {
	counter *history.TokenCounter
}

// NewExtractiveSummarizer creates the fallback summarizer.
func NewExtractiveSummarizer(counter *history.TokenCounter) *ExtractiveSummarizer {
	return &ExtractiveSummarizer{counter: counter}
}

// Summarize implements types.Summarizer.
func (s *ExtractiveSummarizer) Summarize(_ context.Context, turns []types.Turn, targetTokens int) (string, error) {
	var parts []string
	for _, t := range turns {
		sentence := firstSentence(t.Content)
		if sentence == "" {
			continue
		}
		parts = append(parts, sentence)
	}
	text := strings.Join(parts, " ")
	return truncateToTokens(text, targetTokens, s.counter), nil
}

func firstSentence(content string) string {
	content = strings.TrimSpace(content)
	for i, r := range content {
		if r == '.' || r == '!' || r == '?' {
			return content[:i+1]
		}
	}
	return content
}
