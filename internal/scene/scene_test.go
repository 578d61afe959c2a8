package scene

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/user/chronicler/internal/archive"
	"github.com/user/chronicler/internal/compress"
	"github.com/user/chronicler/internal/history"
	"github.com/user/chronicler/internal/types"
)

// stubSummarizer returns fixed text, or an error when failing is set.
type stubSummarizer struct {
	text    string
	failing bool
	calls   int
}

func (s *stubSummarizer) Summarize(_ context.Context, turns []types.Turn, _ int) (string, error) {
	s.calls++
	if s.failing {
		return "", errors.New("model unavailable")
	}
	return s.text, nil
}

// turnFeed hands out strictly increasing timestamps.
type turnFeed struct {
	at time.Time
}

func newTurnFeed() *turnFeed {
	return &turnFeed{at: time.Now().UTC()}
}

func (f *turnFeed) player(content string) types.Turn {
	f.at = f.at.Add(time.Second)
	return types.Turn{Role: types.RolePlayer, Content: content, At: f.at}
}

func seedSnapshot() types.CampaignState {
	world := types.NewWorldState()
	world.NPCs["eldrin"] = types.Entity{Name: "Eldrin", Description: "an elven sage"}
	return types.CampaignState{
		Version: types.SchemaVersion,
		Name:    "The Sunken Vale",
		World:   world,
		Plan: []types.StoryBeat{
			{Order: 1, Description: "arrive", Status: types.BeatActive},
		},
	}
}

func newTestAgent(t *testing.T, policy compress.Policy, summarizer types.Summarizer) *Agent {
	t.Helper()
	counter := history.NewApproxCounter()
	compressor := compress.New(policy, counter, summarizer)
	store := archive.NewStore(t.TempDir())
	return New("Into the Vale", seedSnapshot(), counter, compressor, store)
}

func TestAgent_Lifecycle(t *testing.T) {
	ctx := context.Background()
	agent := newTestAgent(t, compress.Policy{}, &stubSummarizer{text: "summary"})

	if agent.Phase() != PhaseSpawned {
		t.Fatalf("fresh agent should be spawned, got %s", agent.Phase())
	}

	feed := newTurnFeed()
	if err := agent.AppendTurn(ctx, feed.player("we speak with eldrin")); err != nil {
		t.Fatal(err)
	}
	if agent.Phase() != PhaseActive {
		t.Fatalf("first turn should activate, got %s", agent.Phase())
	}

	delta, err := agent.Conclude(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if delta.Record.SceneID != agent.ID() {
		t.Error("record carries the wrong scene id")
	}
	agent.Terminate()

	if err := agent.AppendTurn(ctx, feed.player("one more thing")); !errors.Is(err, types.ErrSceneTerminated) {
		t.Errorf("append after terminate: expected ErrSceneTerminated, got %v", err)
	}
	if err := agent.AddThread("late thought"); !errors.Is(err, types.ErrSceneTerminated) {
		t.Errorf("thread after terminate: expected ErrSceneTerminated, got %v", err)
	}
}

func TestAgent_CompressesOnBudgetAndBreak(t *testing.T) {
	ctx := context.Background()
	summarizer := &stubSummarizer{text: "The party spoke with Eldrin and rested."}
	agent := newTestAgent(t, compress.Policy{
		BudgetTokens:  10,
		CeilingTokens: 1000,
		TargetTokens:  50,
		IdleTurns:     100,
	}, summarizer)

	feed := newTurnFeed()
	// Relevant turns push cost past the budget without a break.
	for i := 0; i < 2; i++ {
		if err := agent.AppendTurn(ctx, feed.player("we press eldrin about the drowned temple below")); err != nil {
			t.Fatal(err)
		}
	}
	if summarizer.calls != 0 {
		t.Fatal("over budget without a break must not compress")
	}

	// The end-of-encounter phrase supplies the break.
	if err := agent.AppendTurn(ctx, feed.player("we take a long rest")); err != nil {
		t.Fatal(err)
	}
	if summarizer.calls != 1 {
		t.Fatalf("expected one compression, got %d", summarizer.calls)
	}

	window := agent.Window("system")
	if len(window.Summaries) != 1 {
		t.Fatalf("expected one summary in the window, got %d", len(window.Summaries))
	}
	if window.Summaries[0].Forced {
		t.Error("natural-break compression must not be forced")
	}
	if window.Summaries[0].FromTurn != 0 || window.Summaries[0].ToTurn != 2 {
		t.Errorf("summary should cover turns 0-2, got %d-%d",
			window.Summaries[0].FromTurn, window.Summaries[0].ToTurn)
	}
	if len(window.Turns) != 0 {
		t.Errorf("compressed turns should leave the window, %d remain", len(window.Turns))
	}
}

func TestAgent_CeilingForcesCompression(t *testing.T) {
	ctx := context.Background()
	summarizer := &stubSummarizer{text: "Forced mid-exchange cut."}
	agent := newTestAgent(t, compress.Policy{
		BudgetTokens:  10,
		CeilingTokens: 20,
		TargetTokens:  50,
		IdleTurns:     100,
	}, summarizer)

	feed := newTurnFeed()
	// Every turn mentions a known entity, so no break ever forms.
	for i := 0; i < 3; i++ {
		if err := agent.AppendTurn(ctx, feed.player("we press eldrin about the temple vaults")); err != nil {
			t.Fatal(err)
		}
	}

	window := agent.Window("system")
	if len(window.Summaries) != 1 {
		t.Fatalf("ceiling should have forced a compression, summaries=%d", len(window.Summaries))
	}
	if !window.Summaries[0].Forced {
		t.Error("ceiling compression must be flagged forced")
	}
}

func TestAgent_CompressionFailureIsRecoverable(t *testing.T) {
	ctx := context.Background()
	summarizer := &stubSummarizer{failing: true}
	agent := newTestAgent(t, compress.Policy{
		BudgetTokens:  5,
		CeilingTokens: 10,
		TargetTokens:  50,
		IdleTurns:     100,
	}, summarizer)

	feed := newTurnFeed()
	for i := 0; i < 4; i++ {
		if err := agent.AppendTurn(ctx, feed.player("we press eldrin for every last detail")); err != nil {
			t.Fatalf("turn %d: compression failure must not fail the append: %v", i, err)
		}
	}

	// All turns still present, nothing was replaced.
	window := agent.Window("system")
	if len(window.Summaries) != 0 || len(window.Turns) != 4 {
		t.Errorf("failed compression must leave the view untouched: summaries=%d turns=%d",
			len(window.Summaries), len(window.Turns))
	}

	// Conclude surfaces the failure and stays retryable.
	if _, err := agent.Conclude(ctx); !errors.Is(err, types.ErrCompressionFailed) {
		t.Fatalf("expected ErrCompressionFailed, got %v", err)
	}
	if agent.Phase() != PhaseConcluding {
		t.Errorf("failed conclude should stay concluding, got %s", agent.Phase())
	}

	// A later retry succeeds once the summarizer recovers.
	summarizer.failing = false
	summarizer.text = "The interrogation of Eldrin."
	delta, err := agent.Conclude(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if delta.Record.Summary.Text == "" {
		t.Error("retried conclude should produce a summary")
	}
}

func TestAgent_ConcludeCollectsDeltas(t *testing.T) {
	ctx := context.Background()
	agent := newTestAgent(t, compress.Policy{}, &stubSummarizer{text: "The party met Varyn."})

	feed := newTurnFeed()
	if err := agent.AppendTurn(ctx, feed.player("we enter the vale")); err != nil {
		t.Fatal(err)
	}
	narration := &types.Narration{
		Text:       "A nervous guide named Varyn waves you over.",
		NPCs:       []types.Entity{{Name: "Varyn", Description: "a nervous guide"}},
		Locations:  []types.Entity{{Name: "The Vale", Description: "a drowned valley"}},
		Transition: &types.BeatTransition{Order: 1, Status: types.BeatDone},
		Threads:    []string{"Who hired Varyn?"},
	}
	feedAt := feed.player("x").At
	if err := agent.RecordNarration(ctx, narration, feedAt); err != nil {
		t.Fatal(err)
	}
	if err := agent.AddThread("Check the tide charts."); err != nil {
		t.Fatal(err)
	}

	delta, err := agent.Conclude(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(delta.NPCs) != 1 || delta.NPCs[0].Name != "Varyn" {
		t.Errorf("unexpected NPC deltas: %+v", delta.NPCs)
	}
	if len(delta.Locations) != 1 {
		t.Errorf("unexpected location deltas: %+v", delta.Locations)
	}
	if delta.Transition == nil || delta.Transition.Order != 1 {
		t.Errorf("unexpected transition: %+v", delta.Transition)
	}
	if len(delta.NewThreads) != 2 {
		t.Errorf("expected narration thread plus manual thread, got %d", len(delta.NewThreads))
	}
	if delta.Record.TranscriptRef == "" {
		t.Error("record must reference the archival transcript")
	}
	if delta.Record.EndedAt.Before(delta.Record.StartedAt) {
		t.Error("record end must not precede start")
	}
}

func TestAgent_ConcludeEmptyScene(t *testing.T) {
	ctx := context.Background()
	agent := newTestAgent(t, compress.Policy{}, &stubSummarizer{text: "unused"})

	delta, err := agent.Conclude(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if delta.Record.Summary.Text == "" {
		t.Error("empty scene still needs a summary text")
	}
	if delta.Record.Summary.FromTurn != 0 || delta.Record.Summary.ToTurn != 0 {
		t.Errorf("empty scene should cover turns 0-0, got %d-%d",
			delta.Record.Summary.FromTurn, delta.Record.Summary.ToTurn)
	}
}

func TestAgent_AbortDiscardsDeltasKeepsTranscript(t *testing.T) {
	ctx := context.Background()
	store := archive.NewStore(t.TempDir())
	counter := history.NewApproxCounter()
	compressor := compress.New(compress.Policy{}, counter, &stubSummarizer{text: "unused"})
	agent := New("Doomed Detour", seedSnapshot(), counter, compressor, store)

	feed := newTurnFeed()
	for i := 0; i < 3; i++ {
		if err := agent.AppendTurn(ctx, feed.player(fmt.Sprintf("detour step %d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := agent.AddThread("never merged"); err != nil {
		t.Fatal(err)
	}

	agent.Abort()
	if agent.Phase() != PhaseTerminated {
		t.Fatalf("abort should terminate, got %s", agent.Phase())
	}
	if _, err := agent.Conclude(ctx); !errors.Is(err, types.ErrSceneTerminated) {
		t.Errorf("conclude after abort: expected ErrSceneTerminated, got %v", err)
	}

	// The archival transcript survives the abort.
	count, err := store.Count(ctx, agent.ID())
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 archived turns, got %d", count)
	}
}

func TestAgent_LongSceneKeepsFullTranscript(t *testing.T) {
	ctx := context.Background()
	store := archive.NewStore(t.TempDir())
	counter := history.NewApproxCounter()
	compressor := compress.New(compress.Policy{
		BudgetTokens:  20,
		CeilingTokens: 40,
		TargetTokens:  16,
		IdleTurns:     100,
	}, counter, &stubSummarizer{text: "Condensed stretch of play."})
	agent := New("The Long Crawl", seedSnapshot(), counter, compressor, store)

	feed := newTurnFeed()
	const total = 40
	for i := 0; i < total; i++ {
		turn := feed.player(fmt.Sprintf("we push eldrin further into passage %d of the crawl", i))
		if err := agent.AppendTurn(ctx, turn); err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
	}

	window := agent.Window("system")
	if len(window.Summaries) == 0 {
		t.Error("a long scene should have compressed at least once")
	}
	if len(window.Summaries)+len(window.Turns) >= total {
		t.Errorf("context view should be smaller than the raw history: %d summaries + %d turns",
			len(window.Summaries), len(window.Turns))
	}

	count, err := store.Count(ctx, agent.ID())
	if err != nil {
		t.Fatal(err)
	}
	if count != total {
		t.Errorf("archival transcript must keep all %d turns, got %d", total, count)
	}

	turns, err := store.Read(ctx, agent.ID())
	if err != nil {
		t.Fatal(err)
	}
	if turns[0].Content != "we push eldrin further into passage 0 of the crawl" {
		t.Errorf("transcript order lost, first turn %q", turns[0].Content)
	}
}

func TestWorldExcerpt(t *testing.T) {
	snapshot := seedSnapshot()
	excerpt := worldExcerpt(snapshot.World)
	if excerpt == "" {
		t.Fatal("excerpt should not be empty")
	}
	if want := "- Eldrin: an elven sage"; !strings.Contains(excerpt, want) {
		t.Errorf("excerpt missing %q:\n%s", want, excerpt)
	}
}

func TestPlanExcerpt(t *testing.T) {
	plan := []types.StoryBeat{
		{Order: 1, Description: "arrive", Status: types.BeatDone},
		{Order: 2, Description: "investigate", Status: types.BeatActive},
		{Order: 3, Description: "confront", Status: types.BeatPending},
	}
	excerpt := planExcerpt(plan)
	if !strings.Contains(excerpt, "x 1. arrive") || !strings.Contains(excerpt, "> 2. investigate") {
		t.Errorf("unexpected plan excerpt:\n%s", excerpt)
	}
}
