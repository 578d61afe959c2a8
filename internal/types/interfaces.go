// internal/types/interfaces.go
package types

import (
	"context"
	"time"
)

// TranscriptStore is the append-only archival record of every turn, kept
// per scene. Compression never touches it.
type TranscriptStore interface {
	Append(ctx context.Context, turn *Turn) error
	Read(ctx context.Context, sceneID SceneID) ([]*Turn, error)
	Count(ctx context.Context, sceneID SceneID) (int64, error)
	// Ref returns the stable reference string recorded in a SceneRecord.
	Ref(sceneID SceneID) string
}

// ContextWindow is the compressed view handed to the language-generation
// collaborator: prior summaries stand in for the turns they cover.
type ContextWindow struct {
	System       string
	Summaries    []Summary
	Turns        []Turn
	WorldExcerpt string
	PlanExcerpt  string
}

// Narration is a language-generation result: narration text plus optional
// structured deltas the model proposed.
type Narration struct {
	Text       string
	NPCs       []Entity
	Locations  []Entity
	Items      []Entity
	Transition *BeatTransition
	Threads    []string
}

// Narrator is the language-generation collaborator. The engine never
// retries on its behalf; failures are classified and surfaced so the
// turn can be offered again.
type Narrator interface {
	Narrate(ctx context.Context, window ContextWindow) (*Narration, error)
}

// Summarizer folds a run of turns into bounded prose. Implementations
// must respect the target token budget regardless of input length.
type Summarizer interface {
	Summarize(ctx context.Context, turns []Turn, targetTokens int) (string, error)
}

// TurnCandidate is one transcribed utterance from a recording session.
type TurnCandidate struct {
	Text string
	At   time.Time
}

// Transcriber is the speech-to-text collaborator: a finite, lazily
// produced sequence of turn candidates per recording session. The channel
// closes when the session ends.
type Transcriber interface {
	Transcribe(ctx context.Context) (<-chan TurnCandidate, error)
}

// Speaker is the speech-synthesis collaborator. Invoked fire-and-forget
// through the collab dispatcher; the engine never blocks on it.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// Illustrator is the image-generation collaborator. Same delivery rules
// as Speaker.
type Illustrator interface {
	Illustrate(ctx context.Context, sceneDescription string) ([]byte, error)
}
