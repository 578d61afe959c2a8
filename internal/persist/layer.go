// internal/persist/layer.go
package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/chronicler/internal/types"
)

// saveSuffix is the extension of campaign save documents.
const saveSuffix = ".dnd-save.md"

// Layer serializes and restores CampaignState as .dnd-save.md documents
// under a campaign directory.
type Layer struct {
	dir string
}

// NewLayer creates a persistence layer writing saves into dir.
func NewLayer(dir string) *Layer {
	return &Layer{dir: dir}
}

// Dir returns the save directory.
func (l *Layer) Dir() string { return l.dir }

// Save renders the state and writes it atomically: render to a temporary
// path, then rename over the target. A partially written save is never
// visible under the canonical name.
func (l *Layer) Save(state *types.CampaignState) (string, error) {
	if state.LastPlayedAt.IsZero() {
		state.LastPlayedAt = time.Now().UTC()
	}

	data, err := Render(state)
	if err != nil {
		return "", fmt.Errorf("render save: %w", err)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("create save dir: %w", err)
	}

	stamp := strings.ReplaceAll(state.LastPlayedAt.UTC().Format(time.RFC3339), ":", "-")
	path := filepath.Join(l.dir, fmt.Sprintf("%s_%s%s", types.Slug(state.Name), stamp, saveSuffix))

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write temp save: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp save: %w", err)
	}
	return path, nil
}

// Load parses the save document at path.
func (l *Layer) Load(path string) (*types.CampaignState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read save: %w", err)
	}
	state, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return state, nil
}

// Resume locates the most recently modified save matching the campaign
// slug and loads it. When no save exists it signals ErrNoSaveFound, which
// the caller treats as "proceed to planning", not a failure.
func (l *Layer) Resume(campaignName string) (*types.CampaignState, string, error) {
	slug := types.Slug(campaignName)

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", types.ErrNoSaveFound
		}
		return nil, "", fmt.Errorf("read save dir: %w", err)
	}

	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, saveSuffix) {
			continue
		}
		if !strings.HasPrefix(name, slug+"_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(l.dir, name)
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return nil, "", types.ErrNoSaveFound
	}

	state, err := l.Load(latest)
	if err != nil {
		return nil, latest, err
	}
	return state, latest, nil
}
