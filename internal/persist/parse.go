// internal/persist/parse.go
package persist

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/chronicler/internal/campaign"
	"github.com/user/chronicler/internal/types"
)

var (
	entityLine  = regexp.MustCompile(`^- \*\*(.+?)\*\*: (.*)$`)
	tagsSuffix  = regexp.MustCompile(`^(.*?)\s*\(tags: (.*)\)$`)
	beatLine    = regexp.MustCompile(`^(\d+)\. \[(pending|active|done)\] (.*)$`)
	threadLine  = regexp.MustCompile(`^- \[( |x)\] (.*) — (\S+)$`)
	summaryLine = regexp.MustCompile(`^<summary>([\d-]+) – "(.*)" \((.+)\)</summary>$`)
	coversLine  = regexp.MustCompile(`^turns (\d+)-(\d+)( \(forced\))?$`)
)

// Parse reads a .dnd-save.md document back into a CampaignState. Structural
// violations fail with ErrMalformedSave; a version newer than this build
// understands fails with ErrSchemaVersionMismatch. Unrecognized lines inside
// known sections are preserved in Extras and survive the next Render.
func Parse(data []byte) (*types.CampaignState, error) {
	sections, err := splitSections(string(data))
	if err != nil {
		return nil, err
	}

	state := &types.CampaignState{
		World:   types.NewWorldState(),
		Plan:    []types.StoryBeat{},
		Scenes:  []types.SceneRecord{},
		Threads: []types.OpenThread{},
	}
	extras := make(map[string]string)

	if err := parseMetadata(sections[sectionMetadata], state, extras); err != nil {
		return nil, err
	}
	parseWorldState(sections[sectionWorldState], state, extras)
	parseStoryPlan(sections[sectionStoryPlan], state, extras)
	if err := parseSceneHistory(sections[sectionSceneHistory], state, extras); err != nil {
		return nil, err
	}
	parseOpenThreads(sections[sectionOpenThreads], state, extras)

	if err := campaign.ValidatePlan(state.Plan); err != nil {
		return nil, fmt.Errorf("story plan (%v): %w", err, types.ErrMalformedSave)
	}
	if len(extras) > 0 {
		state.Extras = extras
	}
	return state, nil
}

// splitSections walks the document expecting the five known sections in
// order, each as "# Name" followed by a "---" line, body, and a closing
// "---" line.
func splitSections(text string) (map[string][]string, error) {
	lines := strings.Split(text, "\n")
	sections := make(map[string][]string, len(sectionOrder))

	i := 0
	for _, name := range sectionOrder {
		// Skip blank lines between sections.
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		if i >= len(lines) || lines[i] != "# "+name {
			return nil, fmt.Errorf("missing section %q: %w", name, types.ErrMalformedSave)
		}
		i++
		if i >= len(lines) || strings.TrimSpace(lines[i]) != "---" {
			return nil, fmt.Errorf("section %q missing opening delimiter: %w", name, types.ErrMalformedSave)
		}
		i++
		var body []string
		closed := false
		for i < len(lines) {
			if strings.TrimSpace(lines[i]) == "---" {
				closed = true
				i++
				break
			}
			body = append(body, lines[i])
			i++
		}
		if !closed {
			return nil, fmt.Errorf("section %q missing closing delimiter: %w", name, types.ErrMalformedSave)
		}
		sections[name] = body
	}
	return sections, nil
}

// metadataKeys are the top-level YAML keys this build understands. Lines
// under any other key are preserved in Extras, verbatim.
var metadataKeys = []string{"version:", "campaign:", "created:", "last_played:"}

func knownMetadataLine(line string) bool {
	for _, key := range metadataKeys {
		if strings.HasPrefix(line, key) {
			return true
		}
	}
	return false
}

func parseMetadata(body []string, state *types.CampaignState, extras map[string]string) error {
	var meta metadata
	if err := yaml.Unmarshal([]byte(strings.Join(body, "\n")), &meta); err != nil {
		return fmt.Errorf("metadata block (%v): %w", err, types.ErrMalformedSave)
	}
	if meta.Version == 0 || meta.Campaign == "" {
		return fmt.Errorf("metadata missing version or campaign: %w", types.ErrMalformedSave)
	}
	if meta.Version > types.SchemaVersion {
		return fmt.Errorf("save version %d, newest readable %d: %w",
			meta.Version, types.SchemaVersion, types.ErrSchemaVersionMismatch)
	}

	state.Version = meta.Version
	state.Name = meta.Campaign

	created, err := time.Parse(time.RFC3339, meta.Created)
	if err != nil {
		return fmt.Errorf("metadata created timestamp (%v): %w", err, types.ErrMalformedSave)
	}
	lastPlayed, err := time.Parse(time.RFC3339, meta.LastPlayed)
	if err != nil {
		return fmt.Errorf("metadata last_played timestamp (%v): %w", err, types.ErrMalformedSave)
	}
	state.CreatedAt = created
	state.LastPlayedAt = lastPlayed

	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || knownMetadataLine(trimmed) {
			continue
		}
		keepExtra(extras, sectionMetadata, line)
	}
	return nil
}

func parseWorldState(body []string, state *types.CampaignState, extras map[string]string) {
	var current map[string]types.Entity
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		switch trimmed {
		case "":
			continue
		case "## NPCs":
			current = state.World.NPCs
			continue
		case "## Locations":
			current = state.World.Locations
			continue
		case "## Items":
			current = state.World.Items
			continue
		}

		m := entityLine.FindStringSubmatch(trimmed)
		if m == nil || current == nil {
			keepExtra(extras, sectionWorldState, line)
			continue
		}
		entity := types.Entity{Name: m[1], Description: m[2]}
		if tm := tagsSuffix.FindStringSubmatch(entity.Description); tm != nil {
			entity.Description = tm[1]
			for _, tag := range strings.Split(tm[2], ",") {
				entity.Tags = append(entity.Tags, strings.TrimSpace(tag))
			}
		}
		current[strings.ToLower(entity.Name)] = entity
	}
}

func parseStoryPlan(body []string, state *types.CampaignState, extras map[string]string) {
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		m := beatLine.FindStringSubmatch(trimmed)
		if m == nil {
			keepExtra(extras, sectionStoryPlan, line)
			continue
		}
		order, _ := strconv.Atoi(m[1])
		state.Plan = append(state.Plan, types.StoryBeat{
			Order:       order,
			Status:      types.BeatStatus(m[2]),
			Description: m[3],
		})
	}
}

func parseSceneHistory(body []string, state *types.CampaignState, extras map[string]string) error {
	var rec *types.SceneRecord
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "<details>":
			rec = &types.SceneRecord{}
		case trimmed == "</details>":
			if rec == nil {
				return fmt.Errorf("scene history: stray </details>: %w", types.ErrMalformedSave)
			}
			rec.Summary.SceneID = rec.SceneID
			rec.Summary.CreatedAt = rec.EndedAt
			state.Scenes = append(state.Scenes, *rec)
			rec = nil
		case rec == nil:
			if trimmed != "" {
				keepExtra(extras, sectionSceneHistory, line)
			}
		case strings.HasPrefix(trimmed, "<summary>"):
			m := summaryLine.FindStringSubmatch(trimmed)
			if m == nil {
				return fmt.Errorf("scene history: bad summary line %q: %w", trimmed, types.ErrMalformedSave)
			}
			// The renderer writes the title with %q, so quotes and
			// backslashes arrive escaped.
			rec.Title = m[2]
			if unquoted, err := strconv.Unquote(`"` + m[2] + `"`); err == nil {
				rec.Title = unquoted
			}
			rec.SceneID = types.SceneID(m[3])
		case strings.HasPrefix(trimmed, "**Started**: "):
			t, err := time.Parse(time.RFC3339, strings.TrimPrefix(trimmed, "**Started**: "))
			if err != nil {
				return fmt.Errorf("scene history: bad started timestamp (%v): %w", err, types.ErrMalformedSave)
			}
			rec.StartedAt = t
		case strings.HasPrefix(trimmed, "**Ended**: "):
			t, err := time.Parse(time.RFC3339, strings.TrimPrefix(trimmed, "**Ended**: "))
			if err != nil {
				return fmt.Errorf("scene history: bad ended timestamp (%v): %w", err, types.ErrMalformedSave)
			}
			rec.EndedAt = t
		case strings.HasPrefix(trimmed, "**Covers**: "):
			m := coversLine.FindStringSubmatch(strings.TrimPrefix(trimmed, "**Covers**: "))
			if m != nil {
				rec.Summary.FromTurn, _ = strconv.Atoi(m[1])
				rec.Summary.ToTurn, _ = strconv.Atoi(m[2])
				rec.Summary.Forced = m[3] != ""
			}
		case strings.HasPrefix(trimmed, "**Summary**: "):
			rec.Summary.Text = strings.TrimPrefix(trimmed, "**Summary**: ")
		case strings.HasPrefix(trimmed, "**Transcript**: "):
			ref := strings.TrimPrefix(trimmed, "**Transcript**: ")
			ref = strings.TrimPrefix(ref, "[[")
			ref = strings.TrimSuffix(ref, "]]")
			rec.TranscriptRef = ref
		case trimmed == "":
		default:
			keepExtra(extras, sectionSceneHistory, line)
		}
	}
	if rec != nil {
		return fmt.Errorf("scene history: unterminated <details> block: %w", types.ErrMalformedSave)
	}
	return nil
}

func parseOpenThreads(body []string, state *types.CampaignState, extras map[string]string) {
	for _, line := range body {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		m := threadLine.FindStringSubmatch(trimmed)
		if m == nil {
			keepExtra(extras, sectionOpenThreads, line)
			continue
		}
		created, err := time.Parse(time.RFC3339, m[3])
		if err != nil {
			keepExtra(extras, sectionOpenThreads, line)
			continue
		}
		state.Threads = append(state.Threads, types.OpenThread{
			Text:      m[2],
			CreatedAt: created,
			Resolved:  m[1] == "x",
		})
	}
}

func keepExtra(extras map[string]string, section, line string) {
	if extras[section] != "" {
		extras[section] += "\n"
	}
	extras[section] += line
}
