// internal/narrate/narrator.go
package narrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/chronicler/internal/types"
	"github.com/user/chronicler/pkg/llm"
)

const systemPrompt = "You are the game master for a tabletop RPG campaign. " +
	"Maintain narrative consistency with the provided world state and story plan. " +
	"After your narration you may append one fenced ```json block with structured " +
	"deltas: {\"npcs\": [{\"name\",\"description\",\"tags\"}], \"locations\": [...], " +
	"\"items\": [...], \"beat_transition\": {\"order\", \"status\"}, \"threads\": [\"...\"]}. " +
	"Only include facts established by the narration."

// Narrator implements types.Narrator over a chat-completion provider. It
// assembles the compressed context window into messages and extracts the
// optional structured-delta block from the reply. It never retries; the
// caller classifies failures and offers the turn again.
type Narrator struct {
	provider llm.Provider
}

// New creates a Narrator over the given provider.
func New(provider llm.Provider) *Narrator {
	return &Narrator{provider: provider}
}

// Narrate implements types.Narrator.
func (n *Narrator) Narrate(ctx context.Context, window types.ContextWindow) (*types.Narration, error) {
	messages := buildMessages(window)
	resp, err := n.provider.Complete(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("narrate: %w", err)
	}

	text, deltas := extractDeltas(resp.Content)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("narrator returned empty narration")
	}

	narration := &types.Narration{Text: strings.TrimSpace(text)}
	if deltas != nil {
		narration.NPCs = deltas.NPCs
		narration.Locations = deltas.Locations
		narration.Items = deltas.Items
		narration.Transition = deltas.Transition
		narration.Threads = deltas.Threads
	}
	return narration, nil
}

func buildMessages(window types.ContextWindow) []llm.Message {
	system := window.System
	if system == "" {
		system = systemPrompt
	}

	messages := []llm.Message{{Role: "system", Content: system}}
	if window.WorldExcerpt != "" {
		messages = append(messages, llm.Message{
			Role: "system", Content: "World state:\n" + window.WorldExcerpt,
		})
	}
	if window.PlanExcerpt != "" {
		messages = append(messages, llm.Message{
			Role: "system", Content: "Story plan (> marks the active beat):\n" + window.PlanExcerpt,
		})
	}
	for _, s := range window.Summaries {
		messages = append(messages, llm.Message{
			Role: "system", Content: "Earlier in this scene: " + s.Text,
		})
	}
	for _, t := range window.Turns {
		role := "assistant"
		if t.Role == types.RolePlayer {
			role = "user"
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}
	return messages
}

// deltaBlock mirrors the JSON shape the prompt asks the model for.
type deltaBlock struct {
	NPCs       []types.Entity        `json:"npcs,omitempty"`
	Locations  []types.Entity        `json:"locations,omitempty"`
	Items      []types.Entity        `json:"items,omitempty"`
	Transition *types.BeatTransition `json:"beat_transition,omitempty"`
	Threads    []string              `json:"threads,omitempty"`
}

// extractDeltas strips a trailing fenced JSON block from the narration and
// decodes it. A block that fails to decode is dropped silently: bad deltas
// must never corrupt campaign state, narration text still flows.
func extractDeltas(content string) (string, *deltaBlock) {
	start := strings.LastIndex(content, "```json")
	if start < 0 {
		return content, nil
	}
	rest := content[start+len("```json"):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return content, nil
	}

	var block deltaBlock
	if err := json.Unmarshal([]byte(rest[:end]), &block); err != nil {
		return content[:start], nil
	}
	return content[:start], &block
}
