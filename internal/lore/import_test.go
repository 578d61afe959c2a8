package lore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const notesMarkdown = `# The Sunken Vale

## NPCs
- **Eldrin**: an elven sage
- **Varyn**: a nervous guide

## Places
- **Ashford**: a fishing town on the marsh edge

## Treasure
- **Sunblade**: a glowing sword

## Session Zero
- **Safety tools**: lines and veils discussed
`

func TestImporter_LocalMarkdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte(notesMarkdown), 0o644); err != nil {
		t.Fatal(err)
	}

	notes, err := NewImporter().Import(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	if notes.Markdown != notesMarkdown {
		t.Error("markdown input should pass through unchanged")
	}
	if len(notes.NPCs) != 2 || notes.NPCs[0].Name != "Eldrin" {
		t.Errorf("unexpected NPCs: %+v", notes.NPCs)
	}
	if len(notes.Locations) != 1 || notes.Locations[0].Name != "Ashford" {
		t.Errorf("unexpected locations: %+v", notes.Locations)
	}
	if len(notes.Items) != 1 || notes.Items[0].Name != "Sunblade" {
		t.Errorf("unexpected items: %+v", notes.Items)
	}
}

func TestImporter_UnknownSectionsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte(notesMarkdown), 0o644); err != nil {
		t.Fatal(err)
	}

	notes, err := NewImporter().Import(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range notes.NPCs {
		if e.Name == "Safety tools" {
			t.Error("entities outside known sections must be ignored")
		}
	}
}

func TestImporter_HTMLPage(t *testing.T) {
	page := `<html><body>
<h2>NPCs</h2>
<ul><li><strong>Eldrin</strong>: an elven sage</li></ul>
</body></html>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	notes, err := NewImporter().Import(context.Background(), server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(notes.Markdown, "<html") {
		t.Error("HTML should be converted to markdown")
	}
	if !strings.Contains(notes.Markdown, "Eldrin") {
		t.Errorf("converted markdown lost content:\n%s", notes.Markdown)
	}
}

func TestImporter_FetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := NewImporter().Import(context.Background(), server.URL); err == nil {
		t.Error("non-200 response must fail the import")
	}

	if _, err := NewImporter().Import(context.Background(), "/no/such/file.md"); err == nil {
		t.Error("missing local file must fail the import")
	}
}

func TestLooksLikeHTML(t *testing.T) {
	if looksLikeHTML("# Just markdown\n\n- a list") {
		t.Error("markdown misidentified as HTML")
	}
	if !looksLikeHTML("<html><body>hi</body></html>") {
		t.Error("HTML page not identified")
	}
}
