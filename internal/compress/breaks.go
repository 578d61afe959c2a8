// internal/compress/breaks.go
package compress

import (
	"strings"
	"unicode"

	"github.com/user/chronicler/internal/types"
)

// endPhrases are player utterances treated as an explicit end-of-encounter
// action.
var endPhrases = []string{
	"end scene",
	"end encounter",
	"end the scene",
	"long rest",
	"short rest",
	"we make camp",
	"call it a night",
}

// BreakDetector decides when a natural story break has occurred. Heuristic:
// an explicit scene-end signal from the owning agent, a player turn that
// matches an end-of-encounter phrase, or IdleTurns consecutive turns that
// neither mention a known world entity nor introduce a new proper name.
type BreakDetector struct {
	idleNeeded int
	idle       int
	known      map[string]struct{}
	sceneEnd   bool
}

// NewBreakDetector seeds a detector with the entity names the world state
// currently knows about.
func NewBreakDetector(idleNeeded int, world types.WorldState) *BreakDetector {
	d := &BreakDetector{
		idleNeeded: idleNeeded,
		known:      make(map[string]struct{}),
	}
	for key := range world.NPCs {
		d.known[key] = struct{}{}
	}
	for key := range world.Locations {
		d.known[key] = struct{}{}
	}
	for key := range world.Items {
		d.known[key] = struct{}{}
	}
	return d
}

// MarkSceneEnd records an explicit scene-conclusion signal from the owner.
func (d *BreakDetector) MarkSceneEnd() {
	d.sceneEnd = true
}

// Observe feeds one appended turn through the heuristic.
func (d *BreakDetector) Observe(turn types.Turn) {
	lower := strings.ToLower(turn.Content)

	if turn.Role == types.RolePlayer {
		for _, phrase := range endPhrases {
			if strings.Contains(lower, phrase) {
				d.sceneEnd = true
				return
			}
		}
	}

	if d.relevant(turn.Content, lower) {
		d.idle = 0
	} else {
		d.idle++
	}
}

// Break reports whether a natural break is currently in effect.
func (d *BreakDetector) Break() bool {
	return d.sceneEnd || (d.idleNeeded > 0 && d.idle >= d.idleNeeded)
}

// Reset clears the idle counter after a compression consumed the turns it
// was counting. An explicit scene end stays latched until the scene is torn
// down.
func (d *BreakDetector) Reset() {
	d.idle = 0
}

// relevant reports whether the turn mentions a known entity or introduces
// a new proper name. New names are learned so repeat mentions keep the
// exchange "relevant" rather than counting as idle.
func (d *BreakDetector) relevant(content, lower string) bool {
	for key := range d.known {
		if strings.Contains(lower, key) {
			return true
		}
	}

	found := false
	for _, name := range properNames(content) {
		if _, ok := d.known[name]; !ok {
			d.known[name] = struct{}{}
			found = true
		}
	}
	return found
}

// properNames extracts lowercased candidate names: capitalized words that
// are not the first word of a sentence.
func properNames(content string) []string {
	var names []string
	sentenceStart := true
	for _, word := range strings.Fields(content) {
		trimmed := strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		runes := []rune(trimmed)
		if len(runes) > 2 && unicode.IsUpper(runes[0]) && !sentenceStart {
			names = append(names, strings.ToLower(trimmed))
		}
		sentenceStart = strings.HasSuffix(word, ".") ||
			strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
	}
	return names
}
