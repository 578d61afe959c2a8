package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/chronicler/internal/archive"
	"github.com/user/chronicler/internal/campaign"
	"github.com/user/chronicler/internal/collab"
	"github.com/user/chronicler/internal/compress"
	"github.com/user/chronicler/internal/config"
	"github.com/user/chronicler/internal/history"
	"github.com/user/chronicler/internal/lore"
	"github.com/user/chronicler/internal/narrate"
	"github.com/user/chronicler/internal/persist"
	"github.com/user/chronicler/internal/scene"
	"github.com/user/chronicler/internal/types"
	"github.com/user/chronicler/pkg/llm"
	"github.com/user/chronicler/pkg/llm/openai"
)

var notesSource string

func init() {
	playCmd.Flags().StringVar(&notesSource, "notes", "", "seed planning from campaign notes (URL or file)")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <campaign-name>",
	Short: "Resume a campaign, or plan a new one, and run the session loop",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

// session bundles everything the play loop needs.
type session struct {
	master      *campaign.Master
	counter     *history.TokenCounter
	compressor  *compress.Compressor
	transcripts types.TranscriptStore
	narrator    types.Narrator
	dispatcher  *collab.Dispatcher
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	name := args[0]
	dir := campaignDir(cfg, types.Slug(name))
	layer := persist.NewLayer(dir)
	master := campaign.NewMaster(layer)

	state, savePath, err := layer.Resume(name)
	switch {
	case err == nil:
		if err := master.Restore(state); err != nil {
			return fmt.Errorf("restore campaign: %w", err)
		}
		fmt.Printf("Resumed %q from %s\n", state.Name, savePath)
	case errors.Is(err, types.ErrNoSaveFound):
		if err := planCampaign(master, name); err != nil {
			return err
		}
	case errors.Is(err, types.ErrSchemaVersionMismatch), errors.Is(err, types.ErrMalformedSave):
		// The existing save stays on disk untouched; starting fresh must
		// be a visible choice, never a silent one.
		fmt.Fprintf(os.Stderr, "WARNING: cannot resume from %s: %v\n", savePath, err)
		fmt.Fprintln(os.Stderr, "The save file is left in place. Starting a fresh planning phase.")
		if err := planCampaign(master, name); err != nil {
			return err
		}
	default:
		return fmt.Errorf("resume: %w", err)
	}

	sess, cleanup := buildSession(cfg, master, dir)
	defer cleanup()

	return playLoop(cmd.Context(), sess)
}

// planCampaign runs the interactive planning phase, optionally seeded
// from imported notes.
func planCampaign(master *campaign.Master, name string) error {
	if err := master.BeginPlanning(); err != nil {
		return err
	}

	planner := campaign.NewPlanner(os.Stdin, os.Stdout)
	state, err := planner.Run()
	if err != nil {
		return fmt.Errorf("planning: %w", err)
	}
	if state.Name == "Untitled Campaign" {
		state.Name = name
	}

	if notesSource != "" {
		notes, err := lore.NewImporter().Import(context.Background(), notesSource)
		if err != nil {
			return fmt.Errorf("import notes: %w", err)
		}
		campaign.SeedWorld(&state.World, notes.NPCs, notes.Locations, notes.Items)
		fmt.Printf("Seeded %d NPCs, %d locations, %d items from notes.\n",
			len(notes.NPCs), len(notes.Locations), len(notes.Items))
	}

	if err := master.CompletePlanning(state); err != nil {
		return fmt.Errorf("complete planning: %w", err)
	}
	if err := master.Persist(); err != nil {
		return fmt.Errorf("initial save: %w", err)
	}
	fmt.Printf("Campaign %q created.\n", state.Name)
	return nil
}

func buildSession(cfg *config.Config, master *campaign.Master, dir string) (*session, func()) {
	counter := history.NewTokenCounter(cfg.LLM.Model)

	policy := compress.Policy{
		BudgetTokens:  cfg.Compression.BudgetTokens,
		CeilingTokens: cfg.Compression.CeilingTokens,
		TargetTokens:  cfg.Compression.TargetTokens,
		IdleTurns:     cfg.Compression.IdleTurns,
	}

	var summarizer types.Summarizer
	var narrator types.Narrator
	if cfg.LLM.APIKey != "" {
		provider := openai.New(&llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		})
		summarizer = compress.NewLLMSummarizer(provider, counter, cfg.Compression.ChunkTokens)
		narrator = narrate.New(provider)
	} else {
		slog.Warn("no LLM API key configured, narration disabled, using extractive summaries")
		summarizer = compress.NewExtractiveSummarizer(counter)
	}

	dispatcher := collab.NewDispatcher(nil, nil, int64(cfg.MaxCollabConcurrent))
	dispatcher.Start(context.Background())

	sess := &session{
		master:      master,
		counter:     counter,
		compressor:  compress.New(policy, counter, summarizer),
		transcripts: archive.NewStore(dir),
		narrator:    narrator,
		dispatcher:  dispatcher,
	}
	return sess, dispatcher.Stop
}

// playLoop is the master agent's steady state: spawn scene, forward
// input, merge the concluding delta, persist, repeat.
func playLoop(ctx context.Context, sess *session) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(`Commands: /end (conclude scene), /abort, /thread <text>, /beat <order> <status>, /quit`)

	for {
		fmt.Print("Scene title (empty to quit): ")
		if !scanner.Scan() {
			break
		}
		title := strings.TrimSpace(scanner.Text())
		if title == "" {
			break
		}

		snapshot, err := sess.master.Snapshot()
		if err != nil {
			return err
		}
		agent := scene.New(title, snapshot, sess.counter, sess.compressor, sess.transcripts)

		if err := sceneLoop(ctx, sess, agent, scanner); err != nil {
			return err
		}
	}

	if sess.master.Phase() == campaign.PhaseActive {
		if err := sess.master.Pause(); err != nil {
			return err
		}
	}
	sess.master.WaitSaves()
	if err := sess.master.Persist(); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	fmt.Println("Campaign paused and saved.")
	return nil
}

func sceneLoop(ctx context.Context, sess *session, agent *scene.Agent, scanner *bufio.Scanner) error {
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			agent.Abort()
			return nil
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/abort":
			agent.Abort()
			fmt.Println("Scene aborted, nothing merged.")
			return nil
		case line == "/quit":
			agent.Abort()
			return nil
		case strings.HasPrefix(line, "/thread "):
			if err := agent.AddThread(strings.TrimPrefix(line, "/thread ")); err != nil {
				return err
			}
			continue
		case strings.HasPrefix(line, "/beat "):
			if err := parseBeatCommand(agent, line); err != nil {
				fmt.Fprintln(os.Stderr, "beat:", err)
			}
			continue
		case line == "/end":
			return concludeScene(ctx, sess, agent)
		}

		turn := types.Turn{Role: types.RolePlayer, Content: line, At: time.Now()}
		if err := agent.AppendTurn(ctx, turn); err != nil {
			return fmt.Errorf("append turn: %w", err)
		}

		if sess.narrator == nil {
			continue
		}
		narration, err := sess.narrator.Narrate(ctx, agent.Window(""))
		if err != nil {
			// Collaborator failures never corrupt state; the turn stays
			// recorded and the player may simply try again.
			if collab.Classify(err) == collab.ClassTransient {
				fmt.Fprintln(os.Stderr, "narration failed (transient), try again:", err)
			} else {
				fmt.Fprintln(os.Stderr, "narration failed:", err)
			}
			continue
		}
		if err := agent.RecordNarration(ctx, narration, time.Now()); err != nil {
			return fmt.Errorf("record narration: %w", err)
		}
		fmt.Println(narration.Text)
		sess.dispatcher.Speak(agent.ID(), narration.Text)
	}
}

func concludeScene(ctx context.Context, sess *session, agent *scene.Agent) error {
	delta, err := agent.Conclude(ctx)
	if err != nil {
		return fmt.Errorf("conclude scene: %w", err)
	}
	if err := sess.master.Merge(*delta); err != nil {
		agent.Abort()
		return fmt.Errorf("merge scene: %w", err)
	}
	agent.Terminate()
	fmt.Printf("Scene %q merged: %s\n", agent.Title(), delta.Record.Summary.Text)
	return nil
}

func parseBeatCommand(agent *scene.Agent, line string) error {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return fmt.Errorf("usage: /beat <order> <pending|active|done>")
	}
	order, err := strconv.Atoi(fields[1])
	if err != nil {
		return fmt.Errorf("bad order %q", fields[1])
	}
	return agent.SetTransition(types.BeatTransition{
		Order:  order,
		Status: types.BeatStatus(fields[2]),
	})
}
