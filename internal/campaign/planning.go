// internal/campaign/planning.go
package campaign

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/user/chronicler/internal/types"
)

// Planner runs the question-driven setup that seeds a fresh campaign:
// name, starting location, seed NPCs, and the initial beat list.
type Planner struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPlanner creates a planner reading answers from in and writing
// prompts to out.
func NewPlanner(in io.Reader, out io.Writer) *Planner {
	return &Planner{in: bufio.NewScanner(in), out: out}
}

// Run walks the setup questions and returns the initial CampaignState.
func (p *Planner) Run() (*types.CampaignState, error) {
	fmt.Fprintln(p.out, "New campaign setup. Press Enter to skip an optional answer.")
	fmt.Fprintln(p.out)

	name := p.ask("Campaign name", "Untitled Campaign")

	state := &types.CampaignState{
		Version:   types.SchemaVersion,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		World:     types.NewWorldState(),
		Threads:   []types.OpenThread{},
	}

	if loc := p.ask("Starting location (name: description)", ""); loc != "" {
		upsertEntities(state.World.Locations, []types.Entity{parseEntityLine(loc)})
	}

	fmt.Fprintln(p.out, "Seed NPCs, one per line as \"name: description\". Blank line to finish.")
	for {
		line := p.ask("NPC", "")
		if line == "" {
			break
		}
		upsertEntities(state.World.NPCs, []types.Entity{parseEntityLine(line)})
	}

	fmt.Fprintln(p.out, "Story beats in order, one per line. Blank line to finish.")
	var beats []string
	for {
		line := p.ask(fmt.Sprintf("Beat %d", len(beats)+1), "")
		if line == "" {
			break
		}
		beats = append(beats, line)
	}
	if len(beats) == 0 {
		beats = []string{"The adventure begins"}
	}
	state.Plan = NewPlan(beats)

	if err := ValidatePlan(state.Plan); err != nil {
		return nil, fmt.Errorf("planning produced invalid plan: %w", err)
	}
	return state, nil
}

// ask displays a labeled prompt with a default value and reads one answer.
func (p *Planner) ask(label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, defaultVal)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	if p.in.Scan() {
		input := strings.TrimSpace(p.in.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}

// parseEntityLine splits "name: description" into an Entity; a line with
// no colon becomes a name with an empty description.
func parseEntityLine(line string) types.Entity {
	name, desc, found := strings.Cut(line, ":")
	if !found {
		return types.Entity{Name: strings.TrimSpace(line)}
	}
	return types.Entity{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(desc),
	}
}
