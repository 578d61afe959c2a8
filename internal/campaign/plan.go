// internal/campaign/plan.go
package campaign

import (
	"fmt"

	"github.com/user/chronicler/internal/types"
)

// ValidatePlan checks the story-plan invariants: order values unique and
// contiguous starting at 1, at most one beat active.
func ValidatePlan(plan []types.StoryBeat) error {
	active := 0
	for i, beat := range plan {
		if beat.Order != i+1 {
			return fmt.Errorf("beat %d has order %d, want %d: %w",
				i, beat.Order, i+1, types.ErrInvalidBeatTransition)
		}
		if beat.Status == types.BeatActive {
			active++
		}
	}
	if active > 1 {
		return fmt.Errorf("%d beats active, at most one allowed: %w",
			active, types.ErrInvalidBeatTransition)
	}
	return nil
}

// ApplyTransition returns a new plan with the transition applied, leaving
// the input untouched. Activating a beat while a different one is active,
// or targeting a missing order, fails with ErrInvalidBeatTransition.
func ApplyTransition(plan []types.StoryBeat, tr types.BeatTransition) ([]types.StoryBeat, error) {
	out := make([]types.StoryBeat, len(plan))
	copy(out, plan)

	idx := -1
	for i, beat := range out {
		if beat.Order == tr.Order {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("no beat with order %d: %w", tr.Order, types.ErrInvalidBeatTransition)
	}

	switch tr.Status {
	case types.BeatPending, types.BeatActive, types.BeatDone:
	default:
		return nil, fmt.Errorf("unknown beat status %q: %w", tr.Status, types.ErrInvalidBeatTransition)
	}

	if tr.Status == types.BeatActive {
		for _, beat := range out {
			if beat.Status == types.BeatActive && beat.Order != tr.Order {
				return nil, fmt.Errorf("beat %d already active: %w",
					beat.Order, types.ErrInvalidBeatTransition)
			}
		}
	}

	out[idx].Status = tr.Status
	return out, nil
}

// ActiveBeat returns the currently active beat, if any.
func ActiveBeat(plan []types.StoryBeat) (types.StoryBeat, bool) {
	for _, beat := range plan {
		if beat.Status == types.BeatActive {
			return beat, true
		}
	}
	return types.StoryBeat{}, false
}

// NewPlan builds a pending plan from beat descriptions, assigning
// contiguous orders starting at 1. The first beat is activated.
func NewPlan(descriptions []string) []types.StoryBeat {
	plan := make([]types.StoryBeat, 0, len(descriptions))
	for i, desc := range descriptions {
		status := types.BeatPending
		if i == 0 {
			status = types.BeatActive
		}
		plan = append(plan, types.StoryBeat{
			Order:       i + 1,
			Description: desc,
			Status:      status,
		})
	}
	return plan
}

func clonePlan(plan []types.StoryBeat) []types.StoryBeat {
	out := make([]types.StoryBeat, len(plan))
	copy(out, plan)
	return out
}
