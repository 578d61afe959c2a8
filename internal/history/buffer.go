// internal/history/buffer.go
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/user/chronicler/internal/types"
)

// Buffer is an ordered append-only log of turns for one interaction
// segment. It is owned exclusively by a single agent (master or a live
// scene agent); consumers read through Snapshot and never mutate.
type Buffer struct {
	mu      sync.RWMutex
	turns   []types.Turn
	cost    int
	lastAt  time.Time
	counter *TokenCounter
}

// NewBuffer creates an empty buffer costed by the given counter.
func NewBuffer(counter *TokenCounter) *Buffer {
	return &Buffer{counter: counter}
}

// Append adds a turn to the buffer. Timestamps must strictly increase;
// a turn at or before the previous one fails with ErrInvalidTurnOrder.
func (b *Buffer) Append(turn types.Turn) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.turns) > 0 && !turn.At.After(b.lastAt) {
		return fmt.Errorf("append turn at %s after %s: %w",
			turn.At.Format(time.RFC3339Nano), b.lastAt.Format(time.RFC3339Nano),
			types.ErrInvalidTurnOrder)
	}

	b.turns = append(b.turns, turn)
	b.lastAt = turn.At
	b.cost += b.counter.Count(turn.Content)
	return nil
}

// Size returns the estimated token cost of the whole buffer. The
// compressor uses this against its budget.
func (b *Buffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cost
}

// Len returns the number of turns held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.turns)
}

// Snapshot returns a copy of the ordered turn sequence. The copy is the
// caller's to keep; the buffer is never exposed for in-place mutation.
func (b *Buffer) Snapshot() []types.Turn {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.Turn, len(b.turns))
	copy(out, b.turns)
	return out
}
