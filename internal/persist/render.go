// internal/persist/render.go
package persist

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/chronicler/internal/campaign"
	"github.com/user/chronicler/internal/types"
)

// Section names, in required document order.
var sectionOrder = []string{
	sectionMetadata,
	sectionWorldState,
	sectionStoryPlan,
	sectionSceneHistory,
	sectionOpenThreads,
}

const (
	sectionMetadata     = "Metadata"
	sectionWorldState   = "World State"
	sectionStoryPlan    = "Story Plan"
	sectionSceneHistory = "Scene History"
	sectionOpenThreads  = "Open Threads"
)

// metadata is the YAML block at the top of every save.
type metadata struct {
	Version    int    `yaml:"version"`
	Campaign   string `yaml:"campaign"`
	Created    string `yaml:"created"`
	LastPlayed string `yaml:"last_played"`
}

// Render serializes a CampaignState into the .dnd-save.md document format.
func Render(state *types.CampaignState) ([]byte, error) {
	var b strings.Builder

	meta := metadata{
		Version:    state.Version,
		Campaign:   state.Name,
		Created:    state.CreatedAt.UTC().Format(time.RFC3339),
		LastPlayed: state.LastPlayedAt.UTC().Format(time.RFC3339),
	}
	metaYAML, err := yaml.Marshal(&meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	openSection(&b, sectionMetadata)
	b.Write(metaYAML)
	closeSection(&b, state, sectionMetadata)

	openSection(&b, sectionWorldState)
	renderCollection(&b, "NPCs", state.World.NPCs)
	renderCollection(&b, "Locations", state.World.Locations)
	renderCollection(&b, "Items", state.World.Items)
	closeSection(&b, state, sectionWorldState)

	openSection(&b, sectionStoryPlan)
	for _, beat := range state.Plan {
		fmt.Fprintf(&b, "%d. [%s] %s\n", beat.Order, beat.Status, beat.Description)
	}
	closeSection(&b, state, sectionStoryPlan)

	openSection(&b, sectionSceneHistory)
	for _, rec := range state.Scenes {
		renderScene(&b, rec)
	}
	closeSection(&b, state, sectionSceneHistory)

	openSection(&b, sectionOpenThreads)
	for _, thread := range state.Threads {
		mark := " "
		if thread.Resolved {
			mark = "x"
		}
		fmt.Fprintf(&b, "- [%s] %s — %s\n",
			mark, thread.Text, thread.CreatedAt.UTC().Format(time.RFC3339))
	}
	closeSection(&b, state, sectionOpenThreads)

	return []byte(b.String()), nil
}

func openSection(b *strings.Builder, name string) {
	fmt.Fprintf(b, "# %s\n---\n", name)
}

// closeSection re-emits any preserved unrecognized content for the section
// before the closing delimiter, so foreign text survives a round trip.
func closeSection(b *strings.Builder, state *types.CampaignState, name string) {
	if extra := state.Extras[name]; extra != "" {
		b.WriteString(extra)
		if !strings.HasSuffix(extra, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("---\n\n")
}

func renderCollection(b *strings.Builder, label string, collection map[string]types.Entity) {
	fmt.Fprintf(b, "## %s\n", label)
	for _, e := range campaign.SortedEntities(collection) {
		fmt.Fprintf(b, "- **%s**: %s", e.Name, e.Description)
		if len(e.Tags) > 0 {
			fmt.Fprintf(b, " (tags: %s)", strings.Join(e.Tags, ", "))
		}
		b.WriteString("\n")
	}
}

func renderScene(b *strings.Builder, rec types.SceneRecord) {
	fmt.Fprintf(b, "<details>\n<summary>%s – %q (%s)</summary>\n\n",
		rec.EndedAt.UTC().Format("2006-01-02"), rec.Title, rec.SceneID)
	fmt.Fprintf(b, "**Started**: %s\n", rec.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(b, "**Ended**: %s\n", rec.EndedAt.UTC().Format(time.RFC3339))
	covers := fmt.Sprintf("turns %d-%d", rec.Summary.FromTurn, rec.Summary.ToTurn)
	if rec.Summary.Forced {
		covers += " (forced)"
	}
	fmt.Fprintf(b, "**Covers**: %s\n", covers)
	fmt.Fprintf(b, "**Summary**: %s\n", strings.ReplaceAll(rec.Summary.Text, "\n", " "))
	if rec.TranscriptRef != "" {
		fmt.Fprintf(b, "**Transcript**: [[%s]]\n", rec.TranscriptRef)
	}
	b.WriteString("\n</details>\n")
}
