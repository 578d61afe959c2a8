// internal/scene/scene.go
package scene

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/user/chronicler/internal/compress"
	"github.com/user/chronicler/internal/history"
	"github.com/user/chronicler/internal/types"
)

// Phase is the scene agent's lifecycle state.
type Phase string

const (
	PhaseSpawned    Phase = "spawned"
	PhaseActive     Phase = "active"
	PhaseConcluding Phase = "concluding"
	PhaseTerminated Phase = "terminated"
)

// Agent handles one interaction segment (dialogue, combat, exploration).
// It is seeded from a read-only snapshot of master state, owns a local
// history buffer, and hands its deltas back through Conclude; it never
// writes into the master directly.
type Agent struct {
	mu sync.Mutex

	id        types.SceneID
	title     string
	phase     Phase
	startedAt time.Time

	seed        types.CampaignState
	buffer      *history.Buffer
	counter     *history.TokenCounter
	compressor  *compress.Compressor
	detector    *compress.BreakDetector
	transcripts types.TranscriptStore

	// Active context view: summaries stand in for the turns they cover,
	// tailStart is the buffer index of the first uncompressed turn.
	summaries []types.Summary
	tailStart int

	// Deltas accumulated for the merge.
	npcs       []types.Entity
	locations  []types.Entity
	items      []types.Entity
	transition *types.BeatTransition
	threads    []types.OpenThread
}

// New spawns a scene agent seeded from a master snapshot.
func New(title string, seed types.CampaignState, counter *history.TokenCounter, compressor *compress.Compressor, transcripts types.TranscriptStore) *Agent {
	return &Agent{
		id:          types.NewSceneID(),
		title:       title,
		phase:       PhaseSpawned,
		startedAt:   time.Now().UTC(),
		seed:        seed,
		buffer:      history.NewBuffer(counter),
		counter:     counter,
		compressor:  compressor,
		detector:    compress.NewBreakDetector(compressor.Policy().IdleTurns, seed.World),
		transcripts: transcripts,
	}
}

// ID returns the scene's unique identifier.
func (a *Agent) ID() types.SceneID { return a.id }

// Title returns the scene's display title.
func (a *Agent) Title() string { return a.title }

// Phase returns the current lifecycle phase.
func (a *Agent) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// AppendTurn accepts one turn: it goes into the local buffer, into the
// archival transcript, and through the compression trigger. The first
// turn moves Spawned → Active.
func (a *Agent) AppendTurn(ctx context.Context, turn types.Turn) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.phase {
	case PhaseSpawned:
		a.phase = PhaseActive
	case PhaseActive:
	case PhaseTerminated:
		return types.ErrSceneTerminated
	default:
		return fmt.Errorf("append turn in phase %s", a.phase)
	}

	turn.SceneID = a.id
	if err := a.buffer.Append(turn); err != nil {
		return err
	}
	if err := a.transcripts.Append(ctx, &turn); err != nil {
		return fmt.Errorf("archive turn: %w", err)
	}

	a.detector.Observe(turn)
	a.maybeCompress(ctx)
	return nil
}

// maybeCompress applies the trigger policy to the uncompressed tail.
// Compression failure is recoverable: the view stays as it was and the
// turn loop continues.
func (a *Agent) maybeCompress(ctx context.Context) {
	tail := a.tail()
	cost := a.counter.CountTurns(tail)

	trig := a.compressor.ShouldCompress(cost, a.detector.Break())
	if !trig.Compress {
		return
	}

	summary, err := a.compressor.Compress(ctx, tail, a.tailStart, trig.Forced)
	if err != nil {
		slog.Warn("compression failed, keeping uncompressed buffer",
			"scene_id", string(a.id), "turns", len(tail), "error", err)
		return
	}
	if trig.Forced {
		slog.Info("hard-ceiling compression without natural break",
			"scene_id", string(a.id), "turns", len(tail))
	}

	a.summaries = append(a.summaries, summary)
	a.tailStart += len(tail)
	a.detector.Reset()
}

// tail returns the uncompressed suffix of the buffer. Caller holds a.mu.
func (a *Agent) tail() []types.Turn {
	turns := a.buffer.Snapshot()
	return turns[a.tailStart:]
}

// Window assembles the compressed context view for the narrator.
func (a *Agent) Window(system string) types.ContextWindow {
	a.mu.Lock()
	defer a.mu.Unlock()

	summaries := append([]types.Summary(nil), a.summaries...)
	return types.ContextWindow{
		System:       system,
		Summaries:    summaries,
		Turns:        a.tail(),
		WorldExcerpt: worldExcerpt(a.seed.World),
		PlanExcerpt:  planExcerpt(a.seed.Plan),
	}
}

// RecordNarration appends the narrator's turn and folds any structured
// deltas the model proposed into the pending merge set.
func (a *Agent) RecordNarration(ctx context.Context, n *types.Narration, at time.Time) error {
	err := a.AppendTurn(ctx, types.Turn{
		Role:    types.RoleNarrator,
		Content: n.Text,
		At:      at,
	})
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.npcs = append(a.npcs, n.NPCs...)
	a.locations = append(a.locations, n.Locations...)
	a.items = append(a.items, n.Items...)
	if n.Transition != nil {
		a.transition = n.Transition
	}
	for _, text := range n.Threads {
		a.threads = append(a.threads, types.OpenThread{
			Text:      text,
			CreatedAt: at,
		})
	}
	return nil
}

// AddThread records an open thread raised outside narration (a DM note).
func (a *Agent) AddThread(text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.phase == PhaseTerminated {
		return types.ErrSceneTerminated
	}
	a.threads = append(a.threads, types.OpenThread{
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// SetTransition records the beat transition this scene will propose at
// merge time. Last write wins; validation happens in the merge.
func (a *Agent) SetTransition(tr types.BeatTransition) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.phase == PhaseTerminated {
		return types.ErrSceneTerminated
	}
	a.transition = &tr
	return nil
}

// Conclude ends the segment: remaining tail turns are folded into the
// scene summary and the full delta set is returned for merging. On
// compression failure the agent stays in Concluding so the caller can
// retry; nothing has been merged.
func (a *Agent) Conclude(ctx context.Context) (*types.SceneDelta, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.phase {
	case PhaseSpawned, PhaseActive, PhaseConcluding:
		a.phase = PhaseConcluding
	case PhaseTerminated:
		return nil, types.ErrSceneTerminated
	}
	a.detector.MarkSceneEnd()

	if tail := a.tail(); len(tail) > 0 {
		summary, err := a.compressor.Compress(ctx, tail, a.tailStart, false)
		if err != nil {
			return nil, err
		}
		a.summaries = append(a.summaries, summary)
		a.tailStart += len(tail)
	}

	sceneSummary := a.combinedSummary()
	delta := &types.SceneDelta{
		NPCs:       append([]types.Entity(nil), a.npcs...),
		Locations:  append([]types.Entity(nil), a.locations...),
		Items:      append([]types.Entity(nil), a.items...),
		Transition: a.transition,
		NewThreads: append([]types.OpenThread(nil), a.threads...),
		Record: types.SceneRecord{
			SceneID:       a.id,
			Title:         a.title,
			StartedAt:     a.startedAt,
			EndedAt:       time.Now().UTC(),
			Summary:       sceneSummary,
			TranscriptRef: a.transcripts.Ref(a.id),
		},
	}
	return delta, nil
}

// combinedSummary folds the per-run summaries into the single scene
// summary stored in the record. Caller holds a.mu.
func (a *Agent) combinedSummary() types.Summary {
	texts := make([]string, 0, len(a.summaries))
	forced := false
	for _, s := range a.summaries {
		texts = append(texts, s.Text)
		forced = forced || s.Forced
	}
	text := strings.Join(texts, " ")
	if text == "" {
		text = fmt.Sprintf("Scene %q concluded without recorded turns.", a.title)
	}
	lastTurn := a.buffer.Len() - 1
	if lastTurn < 0 {
		lastTurn = 0
	}
	return types.Summary{
		SceneID:   a.id,
		FromTurn:  0,
		ToTurn:    lastTurn,
		Text:      text,
		CreatedAt: time.Now().UTC(),
		Forced:    forced,
	}
}

// Terminate marks the agent unreachable after its merge completed. Any
// later append fails with ErrSceneTerminated.
func (a *Agent) Terminate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.phase = PhaseTerminated
}

// Abort discards the scene without merging: the local buffer and pending
// deltas are dropped, the archival transcript keeps what was written.
func (a *Agent) Abort() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.phase = PhaseTerminated
	a.npcs, a.locations, a.items = nil, nil, nil
	a.transition = nil
	a.threads = nil
	a.summaries = nil
}
