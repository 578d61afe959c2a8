package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/user/chronicler/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "chronicler",
	Short: "Campaign memory and state-persistence engine for long-running narrative sessions",
}

func main() {
	// .env is optional; real env vars take precedence in config.Load.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&cfgPath,
		"config",
		filepath.Join(os.Getenv("HOME"), ".chronicler", "config.json"),
		"config file path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file or exits with a message.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// setupLogging configures the default slog handler from config.
func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// campaignDir returns the per-campaign data directory for a slug.
func campaignDir(cfg *config.Config, slug string) string {
	return filepath.Join(cfg.DataDir, "campaigns", slug)
}
