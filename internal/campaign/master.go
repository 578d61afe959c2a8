// internal/campaign/master.go
package campaign

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/chronicler/internal/types"
)

// Phase is the master agent's lifecycle state.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhasePlanning      Phase = "planning"
	PhaseActive        Phase = "active"
	PhasePaused        Phase = "paused"
	PhaseArchived      Phase = "archived"
)

// Persister writes a campaign snapshot durably. Implemented by the
// persistence layer; swapped for a fake in tests.
type Persister interface {
	Save(state *types.CampaignState) (string, error)
}

// Master is the sole owner of CampaignState. All mutation flows through
// the merge operation or explicit lifecycle calls; scene agents only ever
// see snapshots.
type Master struct {
	mu    sync.Mutex
	phase Phase
	state *types.CampaignState

	merging atomic.Bool

	persister Persister
	saveMu    sync.Mutex // ordered, non-overlapping saves per campaign
	saveWG    sync.WaitGroup
}

// NewMaster creates an uninitialized master agent.
func NewMaster(persister Persister) *Master {
	return &Master{
		phase:     PhaseUninitialized,
		persister: persister,
	}
}

// Phase returns the current lifecycle phase.
func (m *Master) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// BeginPlanning moves Uninitialized → Planning.
func (m *Master) BeginPlanning() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseUninitialized {
		return fmt.Errorf("begin planning from phase %s", m.phase)
	}
	m.phase = PhasePlanning
	return nil
}

// CompletePlanning installs the initial CampaignState produced by the
// planning flow and moves Planning → Active.
func (m *Master) CompletePlanning(state *types.CampaignState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhasePlanning {
		return fmt.Errorf("complete planning from phase %s", m.phase)
	}
	if err := ValidatePlan(state.Plan); err != nil {
		return fmt.Errorf("initial plan: %w", err)
	}
	if state.Version == 0 {
		state.Version = types.SchemaVersion
	}
	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now().UTC()
	}
	m.state = state
	m.phase = PhaseActive
	return nil
}

// Restore installs a previously persisted state and re-enters Active.
// Used by the persistence layer's resume path.
func (m *Master) Restore(state *types.CampaignState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseUninitialized && m.phase != PhasePaused {
		return fmt.Errorf("restore from phase %s", m.phase)
	}
	if err := ValidatePlan(state.Plan); err != nil {
		return fmt.Errorf("restored plan: %w", err)
	}
	m.state = state
	m.phase = PhaseActive
	return nil
}

// Pause moves Active → Paused (explicit stop or process exit).
func (m *Master) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseActive {
		return fmt.Errorf("pause from phase %s", m.phase)
	}
	m.phase = PhasePaused
	return nil
}

// Archive marks the campaign complete. Terminal: every later mutation
// fails with ErrCampaignArchived.
func (m *Master) Archive() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseActive, PhasePaused:
		m.phase = PhaseArchived
		return nil
	case PhaseArchived:
		return types.ErrCampaignArchived
	default:
		return fmt.Errorf("archive from phase %s", m.phase)
	}
}

// Snapshot returns a deep copy of the campaign state. Scene agents seed
// from snapshots, never from live references.
func (m *Master) Snapshot() (types.CampaignState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return types.CampaignState{}, fmt.Errorf("no campaign state in phase %s", m.phase)
	}
	return m.snapshotLocked(), nil
}

func (m *Master) snapshotLocked() types.CampaignState {
	s := *m.state
	s.World = cloneWorld(m.state.World)
	s.Plan = clonePlan(m.state.Plan)
	s.Scenes = append([]types.SceneRecord(nil), m.state.Scenes...)
	s.Threads = append([]types.OpenThread(nil), m.state.Threads...)
	if m.state.Extras != nil {
		s.Extras = make(map[string]string, len(m.state.Extras))
		for k, v := range m.state.Extras {
			s.Extras[k] = v
		}
	}
	return s
}

// Merge applies a concluded scene's deltas atomically: world upserts,
// zero-or-one beat transition, appended threads, one scene record. Either
// everything applies and persistence is invoked, or the state is left
// byte-identical to its pre-merge snapshot.
func (m *Master) Merge(delta types.SceneDelta) error {
	if !m.merging.CompareAndSwap(false, true) {
		return fmt.Errorf("merge already in flight: %w", types.ErrMergeConflict)
	}
	defer m.merging.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseActive:
	case PhaseArchived:
		return types.ErrCampaignArchived
	default:
		return fmt.Errorf("merge in phase %s", m.phase)
	}

	// Build the post-merge state on a scratch copy. Nothing below touches
	// m.state until every delta validated.
	next := m.snapshotLocked()

	upsertEntities(next.World.NPCs, delta.NPCs)
	upsertEntities(next.World.Locations, delta.Locations)
	upsertEntities(next.World.Items, delta.Items)

	if delta.Transition != nil {
		plan, err := ApplyTransition(next.Plan, *delta.Transition)
		if err != nil {
			return err
		}
		next.Plan = plan
	}

	for _, thread := range delta.NewThreads {
		if thread.CreatedAt.IsZero() {
			thread.CreatedAt = time.Now().UTC()
		}
		next.Threads = append(next.Threads, thread)
	}

	if delta.Record.SceneID == "" {
		return fmt.Errorf("scene record has no scene id")
	}
	for _, rec := range next.Scenes {
		if rec.SceneID == delta.Record.SceneID {
			return fmt.Errorf("scene %s already recorded", delta.Record.SceneID)
		}
	}
	next.Scenes = append(next.Scenes, delta.Record)
	next.LastPlayedAt = time.Now().UTC()

	m.state = &next
	m.persistLocked()
	return nil
}

// ResolveThread flips the resolved flag on the open thread at index.
// Threads are never deleted.
func (m *Master) ResolveThread(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseArchived {
		return types.ErrCampaignArchived
	}
	if m.state == nil || index < 0 || index >= len(m.state.Threads) {
		return fmt.Errorf("no open thread at index %d", index)
	}
	m.state.Threads[index].Resolved = true
	return nil
}

// persistLocked hands an immutable snapshot to the persister on a
// background goroutine. Saves for the same campaign are serialized by
// saveMu, so a later save never overtakes an earlier one, while the next
// scene's early turns proceed without waiting.
func (m *Master) persistLocked() {
	if m.persister == nil {
		return
	}
	snapshot := m.snapshotLocked()
	m.saveWG.Add(1)
	go func() {
		defer m.saveWG.Done()
		m.saveMu.Lock()
		defer m.saveMu.Unlock()
		if path, err := m.persister.Save(&snapshot); err != nil {
			slog.Error("campaign save failed", "campaign", snapshot.Name, "error", err)
		} else {
			slog.Debug("campaign saved", "campaign", snapshot.Name, "path", path)
		}
	}()
}

// Persist saves the current state synchronously (pause, archive, exit).
func (m *Master) Persist() error {
	m.mu.Lock()
	if m.state == nil {
		m.mu.Unlock()
		return fmt.Errorf("no campaign state in phase %s", m.phase)
	}
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	if m.persister == nil {
		return nil
	}
	_, err := m.persister.Save(&snapshot)
	return err
}

// WaitSaves blocks until all in-flight background saves complete.
func (m *Master) WaitSaves() {
	m.saveWG.Wait()
}
