// internal/types/models.go
package types

import (
	"time"
)

// Role identifies the speaker of a Turn.
type Role string

const (
	RolePlayer   Role = "player"
	RoleNarrator Role = "narrator"
	RoleNPC      Role = "npc"
)

// Turn is a single conversational exchange unit. Immutable once appended
// to a history buffer.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
	SceneID SceneID   `json:"scene_id,omitempty"`
}

// Summary is condensed prose covering a run of turns. It replaces the
// covered turns in the active context window; the archival transcript
// keeps the originals.
type Summary struct {
	SceneID   SceneID   `json:"scene_id,omitempty"`
	FromTurn  int       `json:"from_turn"`
	ToTurn    int       `json:"to_turn"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	// Forced marks a hard-ceiling compression that fired without a
	// natural break (policy fallback, not a failure).
	Forced bool `json:"forced,omitempty"`
}

// Entity is a named world-state record (NPC, location, or item).
// Names are unique within a collection, compared case-insensitively.
type Entity struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// WorldState holds the canonical mutable facts of a campaign, independent
// of any conversation text. Maps are keyed by the lowercased entity name;
// the Entity keeps the display casing.
type WorldState struct {
	NPCs      map[string]Entity `json:"npcs"`
	Locations map[string]Entity `json:"locations"`
	Items     map[string]Entity `json:"items"`
}

// NewWorldState returns a WorldState with all collections allocated.
func NewWorldState() WorldState {
	return WorldState{
		NPCs:      make(map[string]Entity),
		Locations: make(map[string]Entity),
		Items:     make(map[string]Entity),
	}
}

// BeatStatus is the lifecycle status of a story beat.
type BeatStatus string

const (
	BeatPending BeatStatus = "pending"
	BeatActive  BeatStatus = "active"
	BeatDone    BeatStatus = "done"
)

// StoryBeat is one entry of the ordered narrative outline. Order values
// are unique and contiguous starting at 1; at most one beat is active.
type StoryBeat struct {
	Order       int        `json:"order"`
	Description string     `json:"description"`
	Status      BeatStatus `json:"status"`
}

// BeatTransition requests a status change for the beat at Order.
type BeatTransition struct {
	Order  int        `json:"order"`
	Status BeatStatus `json:"status"`
}

// OpenThread is an unresolved narrative hook. Threads are append-only;
// resolution flips the flag, the entry is never deleted.
type OpenThread struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Resolved  bool      `json:"resolved"`
}

// SceneRecord is the archival record of one concluded scene. Immutable
// once appended to the scene history.
type SceneRecord struct {
	SceneID       SceneID   `json:"scene_id"`
	Title         string    `json:"title"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	Summary       Summary   `json:"summary"`
	TranscriptRef string    `json:"transcript_ref,omitempty"`
}

// SceneDelta is the unit a scene agent hands back for merging: world-state
// upserts, at most one beat transition, new threads, and the scene record.
type SceneDelta struct {
	NPCs       []Entity        `json:"npcs,omitempty"`
	Locations  []Entity        `json:"locations,omitempty"`
	Items      []Entity        `json:"items,omitempty"`
	Transition *BeatTransition `json:"transition,omitempty"`
	NewThreads []OpenThread    `json:"new_threads,omitempty"`
	Record     SceneRecord     `json:"record"`
}

// CampaignState is the single unit of persistence, owned exclusively by
// the master agent.
type CampaignState struct {
	Version      int           `json:"version"`
	Name         string        `json:"name"`
	CreatedAt    time.Time     `json:"created_at"`
	LastPlayedAt time.Time     `json:"last_played_at"`
	World        WorldState    `json:"world"`
	Plan         []StoryBeat   `json:"plan"`
	Scenes       []SceneRecord `json:"scenes"`
	Threads      []OpenThread  `json:"threads"`

	// Extras preserves unrecognized free-form content found inside known
	// save-file sections, keyed by section name, so a round trip never
	// drops text written by a newer writer or a human editor.
	Extras map[string]string `json:"extras,omitempty"`
}

// SchemaVersion is the newest save-file schema this build can read.
const SchemaVersion = 1
