// Package cli implements the companion CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/seedling-ai/companion/internal/config"
	"github.com/seedling-ai/companion/internal/memory"
)

var (
	configPath string
	dbFlag     string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "companion",
	Short: "Contextual memory and grounded retrieval for a support agent",
	Long: "companion manages conversational memory for an emotional-support agent:\n" +
		"session transcripts and long-term profiles in SQLite, plus an offline-built\n" +
		"knowledge index queried per turn under a safety-aware routing policy.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $COMPANION_CONFIG or ~/.companion/companion.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbFlag, "db", "d", "", "Database path (overrides config)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")
}

func loadConfig() config.Config {
	path := configPath
	if path == "" {
		path = os.Getenv("COMPANION_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		exitErr("load config", err)
	}
	if dbFlag != "" {
		cfg.Database.Path = dbFlag
	}
	return cfg
}

func openStore(cfg config.Config) *memory.SQLiteStore {
	s, err := memory.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		exitErr("open store", err)
	}
	return s
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
