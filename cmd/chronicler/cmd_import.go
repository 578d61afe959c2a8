package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/chronicler/internal/lore"
	"github.com/user/chronicler/internal/types"
)

func init() {
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <url-or-file>",
	Short: "Convert campaign notes (HTML or markdown) for use as a planning seed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		notes, err := lore.NewImporter().Import(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}

		dir := filepath.Join(cfg.DataDir, "notes")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create notes dir: %w", err)
		}
		out := filepath.Join(dir, types.Slug(filepath.Base(args[0]))+".md")
		if err := os.WriteFile(out, []byte(notes.Markdown), 0o644); err != nil {
			return fmt.Errorf("write notes: %w", err)
		}

		fmt.Printf("Notes written to %s\n", out)
		fmt.Printf("Recognized %d NPCs, %d locations, %d items.\n",
			len(notes.NPCs), len(notes.Locations), len(notes.Items))
		fmt.Printf("Seed a new campaign with: chronicler play <name> --notes %s\n", out)
		return nil
	},
}
