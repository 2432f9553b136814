// Command graphkeepd is the coordination daemon: it loads configuration,
// opens the Graph Backend, wires the Change Journal, Graph Store, Snapshot
// Engine, Command Broker, and Event Bus, and serves the Public API Facade
// in-process for the daemon's subcommands (spec §4.6, SPEC_FULL §4.8).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphkeep/graphkeep/internal/config"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

var (
	cfgLoader *config.Loader
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "graphkeepd",
	Short: "graphkeepd - coordination service for software-engineering agents",
	Long:  `graphkeepd tracks Components, Relationships, Tasks, and Comments in a versioned graph, journals every change, and arbitrates commands between agents.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfgLoader = l
		logger = newLogger(l.Current())
		return nil
	},
}

// newLogger builds the process-wide slog.Logger per the resolved log
// level/format, text or JSON.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func main() {
	rootCmd.AddCommand(serveCmd, snapshotCmd, replayCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
