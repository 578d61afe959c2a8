package history

import (
	"errors"
	"testing"
	"time"

	"github.com/user/chronicler/internal/types"
)

func TestBuffer_AppendPreservesOrder(t *testing.T) {
	buf := NewBuffer(NewApproxCounter())
	base := time.Now()

	contents := []string{"we enter the tavern", "the barkeep waves", "we order ale"}
	for i, content := range contents {
		err := buf.Append(types.Turn{
			Role:    types.RolePlayer,
			Content: content,
			At:      base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	snap := buf.Snapshot()
	if len(snap) != len(contents) {
		t.Fatalf("expected %d turns, got %d", len(contents), len(snap))
	}
	for i, turn := range snap {
		if turn.Content != contents[i] {
			t.Errorf("turn %d: expected %q, got %q", i, contents[i], turn.Content)
		}
	}
}

func TestBuffer_RejectsNonIncreasingTimestamps(t *testing.T) {
	buf := NewBuffer(NewApproxCounter())
	at := time.Now()

	if err := buf.Append(types.Turn{Role: types.RolePlayer, Content: "first", At: at}); err != nil {
		t.Fatal(err)
	}

	err := buf.Append(types.Turn{Role: types.RolePlayer, Content: "same instant", At: at})
	if !errors.Is(err, types.ErrInvalidTurnOrder) {
		t.Fatalf("expected ErrInvalidTurnOrder, got %v", err)
	}

	err = buf.Append(types.Turn{Role: types.RolePlayer, Content: "earlier", At: at.Add(-time.Second)})
	if !errors.Is(err, types.ErrInvalidTurnOrder) {
		t.Fatalf("expected ErrInvalidTurnOrder, got %v", err)
	}

	if buf.Len() != 1 {
		t.Errorf("rejected turns must not be stored, have %d", buf.Len())
	}
}

func TestBuffer_SizeGrowsWithContent(t *testing.T) {
	buf := NewBuffer(NewApproxCounter())
	if buf.Size() != 0 {
		t.Fatalf("empty buffer should cost 0, got %d", buf.Size())
	}

	if err := buf.Append(types.Turn{
		Role:    types.RoleNarrator,
		Content: "the cellar door creaks open onto darkness",
		At:      time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	if buf.Size() == 0 {
		t.Error("buffer cost should grow after append")
	}
}

func TestBuffer_SnapshotIsACopy(t *testing.T) {
	buf := NewBuffer(NewApproxCounter())
	if err := buf.Append(types.Turn{Role: types.RolePlayer, Content: "original", At: time.Now()}); err != nil {
		t.Fatal(err)
	}

	snap := buf.Snapshot()
	snap[0].Content = "mutated"

	if buf.Snapshot()[0].Content != "original" {
		t.Error("mutating a snapshot must not affect the buffer")
	}
}

func TestTokenCounter_ApproxEstimate(t *testing.T) {
	counter := NewApproxCounter()
	if got := counter.Count(""); got != 0 {
		t.Errorf("empty string should cost 0, got %d", got)
	}
	if got := counter.Count("ab"); got != 1 {
		t.Errorf("short string should cost at least 1, got %d", got)
	}
	if got := counter.Count("abcdefgh"); got != 2 {
		t.Errorf("expected 2 tokens for 8 chars, got %d", got)
	}
}
