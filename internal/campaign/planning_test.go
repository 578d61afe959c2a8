package campaign

import (
	"strings"
	"testing"

	"github.com/user/chronicler/internal/types"
)

func TestPlanner_Run(t *testing.T) {
	answers := strings.Join([]string{
		"The Sunken Vale",
		"Ashford: a fishing town on the marsh edge",
		"Eldrin: an elven sage",
		"Varyn: a nervous guide",
		"", // end of NPCs
		"Arrive in Ashford",
		"Investigate the drowned temple",
		"", // end of beats
	}, "\n") + "\n"

	planner := NewPlanner(strings.NewReader(answers), &strings.Builder{})
	state, err := planner.Run()
	if err != nil {
		t.Fatal(err)
	}

	if state.Name != "The Sunken Vale" {
		t.Errorf("unexpected name %q", state.Name)
	}
	if state.Version != types.SchemaVersion {
		t.Errorf("unexpected version %d", state.Version)
	}
	if _, ok := state.World.Locations["ashford"]; !ok {
		t.Error("starting location missing")
	}
	if len(state.World.NPCs) != 2 {
		t.Errorf("expected 2 NPCs, got %d", len(state.World.NPCs))
	}
	if e := state.World.NPCs["eldrin"]; e.Description != "an elven sage" {
		t.Errorf("unexpected NPC description %q", e.Description)
	}
	if len(state.Plan) != 2 {
		t.Fatalf("expected 2 beats, got %d", len(state.Plan))
	}
	if state.Plan[0].Status != types.BeatActive || state.Plan[1].Status != types.BeatPending {
		t.Errorf("unexpected beat statuses: %+v", state.Plan)
	}
}

func TestPlanner_DefaultsWhenAnswersSkipped(t *testing.T) {
	// Every question answered blank.
	planner := NewPlanner(strings.NewReader("\n\n\n\n"), &strings.Builder{})
	state, err := planner.Run()
	if err != nil {
		t.Fatal(err)
	}

	if state.Name != "Untitled Campaign" {
		t.Errorf("unexpected default name %q", state.Name)
	}
	if len(state.World.Locations) != 0 || len(state.World.NPCs) != 0 {
		t.Error("skipped answers must not seed entities")
	}
	if len(state.Plan) != 1 || state.Plan[0].Description != "The adventure begins" {
		t.Errorf("expected the default opening beat, got %+v", state.Plan)
	}
}

func TestParseEntityLine(t *testing.T) {
	e := parseEntityLine("Eldrin: an elven sage")
	if e.Name != "Eldrin" || e.Description != "an elven sage" {
		t.Errorf("unexpected entity %+v", e)
	}

	e = parseEntityLine("Sunblade")
	if e.Name != "Sunblade" || e.Description != "" {
		t.Errorf("no-colon line should become a bare name, got %+v", e)
	}
}
