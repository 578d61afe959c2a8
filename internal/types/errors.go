// internal/types/errors.go
package types

import "errors"

// Sentinel errors for the campaign engine. Callers classify with errors.Is;
// wrapped variants carry call-site detail.
var (
	// ErrInvalidTurnOrder is returned when a turn's timestamp does not
	// strictly increase within its buffer.
	ErrInvalidTurnOrder = errors.New("invalid turn order")

	// ErrCompressionFailed is returned when summarization produced empty
	// or malformed output; the caller keeps the uncompressed buffer.
	ErrCompressionFailed = errors.New("compression failed")

	// ErrInvalidBeatTransition is returned when a beat status change would
	// violate the at-most-one-active invariant or target a missing beat.
	ErrInvalidBeatTransition = errors.New("invalid beat transition")

	// ErrSceneTerminated is returned on any mutation of a scene agent
	// after its merge completed.
	ErrSceneTerminated = errors.New("scene already terminated")

	// ErrSchemaVersionMismatch is returned when a save file declares a
	// version newer than this build understands.
	ErrSchemaVersionMismatch = errors.New("schema version mismatch")

	// ErrMalformedSave is returned on structural save-file parse errors.
	ErrMalformedSave = errors.New("malformed save")

	// ErrNoSaveFound signals that no save exists for the campaign slug.
	// Not a failure: the caller proceeds to the planning phase.
	ErrNoSaveFound = errors.New("no save found")

	// ErrMergeConflict is returned when a merge is attempted while another
	// merge for the same campaign is in flight.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrCampaignArchived is returned on any mutation of an archived
	// campaign.
	ErrCampaignArchived = errors.New("campaign archived")
)
