// internal/types/ids.go
package types

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type SceneID string
type CampaignID string
type JobID string

func NewSceneID() SceneID {
	return SceneID(uuid.New().String())
}

func NewCampaignID() CampaignID {
	return CampaignID(uuid.New().String())
}

func NewJobID() JobID {
	return JobID(uuid.New().String())
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug normalizes a campaign name into a filesystem- and URL-safe slug:
// lowercased, non-alphanumeric runs collapsed to single dashes.
func Slug(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}
