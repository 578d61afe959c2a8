// internal/lore/import.go
package lore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/chronicler/internal/types"
)

const maxImportChars = 50000

// Notes is an imported set of campaign notes: the converted markdown plus
// any seed entities recognized in it.
type Notes struct {
	Markdown  string
	NPCs      []types.Entity
	Locations []types.Entity
	Items     []types.Entity
}

// Importer converts campaign-notes documents (HTML pages or local files)
// into markdown and extracts world-state seed entities for the planning
// phase.
type Importer struct {
	client *http.Client
}

// NewImporter creates an Importer.
func NewImporter() *Importer {
	return &Importer{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Import reads the source (http(s) URL or local path) and converts it.
// HTML content is converted to markdown; markdown/plain text passes
// through.
func (im *Importer) Import(ctx context.Context, source string) (*Notes, error) {
	var content string
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		content, err = im.fetch(ctx, source)
	} else {
		content, err = readFile(source)
	}
	if err != nil {
		return nil, err
	}

	if looksLikeHTML(content) {
		content, err = htmltomarkdown.ConvertString(content)
		if err != nil {
			return nil, fmt.Errorf("convert HTML: %w", err)
		}
	}
	if len(content) > maxImportChars {
		content = content[:maxImportChars]
	}

	notes := &Notes{Markdown: content}
	extractEntities(notes)
	return notes, nil
}

func (im *Importer) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Chronicler/1.0")

	resp, err := im.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch notes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch notes: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImportChars*4))
	if err != nil {
		return "", fmt.Errorf("read notes: %w", err)
	}
	return string(body), nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read notes file: %w", err)
	}
	return string(data), nil
}

func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div") ||
		strings.Contains(lower, "<p>")
}

var noteEntityLine = regexp.MustCompile(`^[-*] \*\*(.+?)\*\*[:：]?\s*(.*)$`)

// extractEntities scans the markdown for "## NPCs" / "## Locations" /
// "## Items" sections with bold-name bullets, the same shape the save
// format uses, so exported notes round-trip into a world seed.
func extractEntities(notes *Notes) {
	var current *[]types.Entity
	for _, line := range strings.Split(notes.Markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			switch strings.ToLower(strings.TrimPrefix(trimmed, "## ")) {
			case "npcs", "characters":
				current = &notes.NPCs
			case "locations", "places":
				current = &notes.Locations
			case "items", "treasure":
				current = &notes.Items
			default:
				current = nil
			}
			continue
		}
		if current == nil {
			continue
		}
		if m := noteEntityLine.FindStringSubmatch(trimmed); m != nil {
			*current = append(*current, types.Entity{
				Name:        m[1],
				Description: strings.TrimSpace(m[2]),
			})
		}
	}
}
