// Package archive provides the filesystem-backed archival transcript store.
package archive

import "github.com/user/chronicler/internal/types"

// Compile-time interface compliance check.
var _ types.TranscriptStore = (*Store)(nil)
