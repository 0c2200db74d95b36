// Package cmd implements the lectern CLI: corpus ingestion, content
// search, grounded question answering and catalog inspection.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/internal/config"
	"github.com/lectern-ai/lectern/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Lectern - semantic search over course materials",
	Long: `Lectern ingests structured course documents into a vector index and
answers questions grounded in the indexed material, with per-answer
source citations.

Typical flow:
  lectern ingest ./docs
  lectern ask "What does lesson 2 cover?" --course "Intro to RAG"`,
	SilenceUsage: true,
}

// Execute runs the root command. Called from main.
func Execute() error {
	slog.SetDefault(initLogger())
	return rootCmd.Execute()
}

// initLogger builds the process logger. LECTERN_DEBUG enables debug level
// with source locations; LECTERN_LOG_JSON switches to JSON output.
func initLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("LECTERN_DEBUG") != "" {
		cfg.Level = slog.LevelDebug
		cfg.AddSource = true
	}
	if os.Getenv("LECTERN_LOG_JSON") != "" {
		cfg.JSON = true
	}
	return log.New(cfg)
}

// loadConfig loads and validates configuration, verifying the Gemini key
// commands depend on is present.
func loadConfig() (*config.Config, error) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Please run:")
		fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
		return nil, errors.New("GEMINI_API_KEY not set")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}
