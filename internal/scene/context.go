// internal/scene/context.go
package scene

import (
	"fmt"
	"strings"

	"github.com/user/chronicler/internal/campaign"
	"github.com/user/chronicler/internal/types"
)

const maxExcerptEntities = 12

// worldExcerpt renders the seed world state as compact lines for the
// narrator's context window.
func worldExcerpt(world types.WorldState) string {
	var b strings.Builder
	writeCollection(&b, "NPCs", world.NPCs)
	writeCollection(&b, "Locations", world.Locations)
	writeCollection(&b, "Items", world.Items)
	return strings.TrimSpace(b.String())
}

func writeCollection(b *strings.Builder, label string, collection map[string]types.Entity) {
	if len(collection) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for i, e := range campaign.SortedEntities(collection) {
		if i >= maxExcerptEntities {
			fmt.Fprintf(b, "- (%d more)\n", len(collection)-maxExcerptEntities)
			break
		}
		if e.Description != "" {
			fmt.Fprintf(b, "- %s: %s\n", e.Name, e.Description)
		} else {
			fmt.Fprintf(b, "- %s\n", e.Name)
		}
	}
}

// planExcerpt renders the story plan with status markers, active beat
// flagged so the narrator keeps the campaign on its current beat.
func planExcerpt(plan []types.StoryBeat) string {
	var b strings.Builder
	for _, beat := range plan {
		marker := " "
		switch beat.Status {
		case types.BeatActive:
			marker = ">"
		case types.BeatDone:
			marker = "x"
		}
		fmt.Fprintf(&b, "%s %d. %s\n", marker, beat.Order, beat.Description)
	}
	return strings.TrimSpace(b.String())
}
