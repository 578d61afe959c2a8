package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/chronicler/internal/campaign"
	"github.com/user/chronicler/internal/persist"
	"github.com/user/chronicler/internal/types"
)

func init() {
	rootCmd.AddCommand(campaignCmd)
	campaignCmd.AddCommand(campaignListCmd, campaignShowCmd, campaignResolveCmd)
}

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Inspect and manage campaigns",
}

var campaignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all campaigns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		root := filepath.Join(cfg.DataDir, "campaigns")

		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No campaigns found.")
				return nil
			}
			return fmt.Errorf("read campaigns dir: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CAMPAIGN\tSCENES\tOPEN THREADS\tLAST PLAYED")
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			layer := persist.NewLayer(filepath.Join(root, entry.Name()))
			state, _, err := layer.Resume(entry.Name())
			if err != nil {
				fmt.Fprintf(w, "%s\t-\t-\t(unreadable: %v)\n", entry.Name(), err)
				continue
			}
			open := 0
			for _, thread := range state.Threads {
				if !thread.Resolved {
					open++
				}
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
				state.Name,
				len(state.Scenes),
				open,
				state.LastPlayedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var campaignShowCmd = &cobra.Command{
	Use:   "show <campaign-name>",
	Short: "Show world state, story plan, and open threads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		layer := persist.NewLayer(campaignDir(cfg, types.Slug(args[0])))

		state, savePath, err := layer.Resume(args[0])
		if err != nil {
			if errors.Is(err, types.ErrNoSaveFound) {
				fmt.Printf("No save found for %q.\n", args[0])
				return nil
			}
			return err
		}

		fmt.Printf("%s (v%d)  created %s  last played %s\n",
			state.Name, state.Version,
			state.CreatedAt.Format("2006-01-02"),
			state.LastPlayedAt.Format("2006-01-02 15:04"))
		fmt.Println("save:", savePath)
		fmt.Println()

		printCollection("NPCs", state.World.NPCs)
		printCollection("Locations", state.World.Locations)
		printCollection("Items", state.World.Items)

		fmt.Println("Story Plan:")
		for _, beat := range state.Plan {
			fmt.Printf("  %d. [%s] %s\n", beat.Order, beat.Status, beat.Description)
		}
		fmt.Println()

		fmt.Printf("Scene History (%d):\n", len(state.Scenes))
		for _, rec := range state.Scenes {
			fmt.Printf("  %s  %q — %s\n",
				rec.EndedAt.Format("2006-01-02"), rec.Title, firstLine(rec.Summary.Text, 80))
		}
		fmt.Println()

		fmt.Println("Open Threads:")
		for i, thread := range state.Threads {
			mark := " "
			if thread.Resolved {
				mark = "x"
			}
			fmt.Printf("  %d. [%s] %s\n", i, mark, thread.Text)
		}
		return nil
	},
}

var campaignResolveCmd = &cobra.Command{
	Use:   "resolve <campaign-name> <thread-index>",
	Short: "Mark an open thread as resolved",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		layer := persist.NewLayer(campaignDir(cfg, types.Slug(args[0])))

		state, _, err := layer.Resume(args[0])
		if err != nil {
			return err
		}

		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad thread index %q", args[1])
		}

		master := campaign.NewMaster(layer)
		if err := master.Restore(state); err != nil {
			return err
		}
		if err := master.ResolveThread(index); err != nil {
			return err
		}
		if err := master.Persist(); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		fmt.Printf("Thread %d resolved.\n", index)
		return nil
	},
}

func printCollection(label string, collection map[string]types.Entity) {
	fmt.Printf("%s (%d):\n", label, len(collection))
	for _, e := range campaign.SortedEntities(collection) {
		fmt.Printf("  - %s: %s\n", e.Name, firstLine(e.Description, 70))
	}
	fmt.Println()
}

func firstLine(text string, limit int) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > limit {
		text = text[:limit] + "…"
	}
	return text
}
