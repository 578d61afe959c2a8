//go:build integration

package test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/user/chronicler/internal/archive"
	"github.com/user/chronicler/internal/campaign"
	"github.com/user/chronicler/internal/compress"
	"github.com/user/chronicler/internal/history"
	"github.com/user/chronicler/internal/narrate"
	"github.com/user/chronicler/internal/persist"
	"github.com/user/chronicler/internal/scene"
	"github.com/user/chronicler/internal/types"
	"github.com/user/chronicler/pkg/llm"
)

// mockProvider returns a canned narration with a structured delta block.
type mockProvider struct {
	response string
}

func (m *mockProvider) Complete(_ context.Context, _ []llm.Message) (*llm.Response, error) {
	return &llm.Response{Content: m.response}, nil
}

func TestFullCampaignSession(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	layer := persist.NewLayer(dir)
	transcripts := archive.NewStore(dir)
	counter := history.NewApproxCounter()
	summarizer := compress.NewExtractiveSummarizer(counter)
	compressor := compress.New(compress.Policy{}, counter, summarizer)

	// Plan a fresh campaign.
	master := campaign.NewMaster(layer)
	if err := master.BeginPlanning(); err != nil {
		t.Fatal(err)
	}
	world := types.NewWorldState()
	world.NPCs["eldrin"] = types.Entity{Name: "Eldrin", Description: "an elven sage"}
	if err := master.CompletePlanning(&types.CampaignState{
		Name:  "The Sunken Vale",
		World: world,
		Plan: []types.StoryBeat{
			{Order: 1, Description: "Arrive in Ashford", Status: types.BeatActive},
			{Order: 2, Description: "Investigate the drowned temple", Status: types.BeatPending},
		},
	}); err != nil {
		t.Fatal(err)
	}

	// Play a scene against the mock narrator.
	narrator := narrate.New(&mockProvider{
		response: "Varyn waves you toward the marsh road.\n\n" +
			"```json\n" +
			`{"npcs":[{"name":"Varyn","description":"a nervous guide"}],` +
			`"beat_transition":{"order":1,"status":"done"},` +
			`"threads":["Who hired Varyn?"]}` +
			"\n```",
	})

	snap, err := master.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	agent := scene.New("Into the Vale", snap, counter, compressor, transcripts)

	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		at = at.Add(time.Second)
		if err := agent.AppendTurn(ctx, types.Turn{
			Role:    types.RolePlayer,
			Content: fmt.Sprintf("we follow the marsh road, step %d.", i),
			At:      at,
		}); err != nil {
			t.Fatal(err)
		}

		narration, err := narrator.Narrate(ctx, agent.Window(""))
		if err != nil {
			t.Fatal(err)
		}
		at = at.Add(time.Second)
		if err := agent.RecordNarration(ctx, narration, at); err != nil {
			t.Fatal(err)
		}
	}

	delta, err := agent.Conclude(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := master.Merge(*delta); err != nil {
		t.Fatal(err)
	}
	agent.Terminate()
	master.WaitSaves()

	// Stop the session and resume from disk into a fresh master.
	if err := master.Pause(); err != nil {
		t.Fatal(err)
	}
	if err := master.Persist(); err != nil {
		t.Fatal(err)
	}

	restored, savePath, err := layer.Resume("The Sunken Vale")
	if err != nil {
		t.Fatal(err)
	}
	t.Logf("resumed from %s", savePath)

	if _, ok := restored.World.NPCs["varyn"]; !ok {
		t.Error("merged NPC lost across save/resume")
	}
	if restored.Plan[0].Status != types.BeatDone {
		t.Errorf("beat transition lost across save/resume: %+v", restored.Plan)
	}
	if len(restored.Scenes) != 1 || len(restored.Threads) != 3 {
		t.Errorf("scene history or threads lost: %d scenes, %d threads",
			len(restored.Scenes), len(restored.Threads))
	}

	// The archival transcript survives independently of compression.
	count, err := transcripts.Count(ctx, delta.Record.SceneID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 6 {
		t.Errorf("expected 6 archived turns, got %d", count)
	}

	// Second session continues from the restored state.
	resumed := campaign.NewMaster(layer)
	if err := resumed.Restore(restored); err != nil {
		t.Fatal(err)
	}
	snap2, err := resumed.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	agent2 := scene.New("The Drowned Temple", snap2, counter, compressor, transcripts)
	at = at.Add(time.Second)
	if err := agent2.AppendTurn(ctx, types.Turn{
		Role: types.RolePlayer, Content: "we descend into the temple.", At: at,
	}); err != nil {
		t.Fatal(err)
	}
	delta2, err := agent2.Conclude(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := resumed.Merge(*delta2); err != nil {
		t.Fatal(err)
	}
	agent2.Terminate()
	resumed.WaitSaves()

	// Archive ends the campaign for good.
	if err := resumed.Archive(); err != nil {
		t.Fatal(err)
	}
	if err := resumed.Merge(*delta2); !errors.Is(err, types.ErrCampaignArchived) {
		t.Errorf("merge after archive: expected ErrCampaignArchived, got %v", err)
	}
}
