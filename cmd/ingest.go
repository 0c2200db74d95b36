package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/internal/app"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Load course documents from a directory into the index",
	Long: `Ingest parses every .txt course document under the directory
(lexicographic order), chunks and embeds the content, and writes it to
the index. Already-indexed courses are skipped, so re-running over the
same directory is a cheap no-op. Defaults to the configured docs_dir.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	dir := cfg.DocsDir
	if len(args) == 1 {
		dir = args[0]
	}

	a, err := app.Setup(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	stats, err := a.Loader.LoadDir(ctx, dir)
	if err != nil {
		return err
	}

	fmt.Printf("Ingest complete: %d loaded (%d chunks), %d skipped, %d failed\n",
		stats.Loaded, stats.Chunks, stats.Skipped, stats.Failed)

	count, err := a.Index.CourseCount(ctx)
	if err != nil {
		return fmt.Errorf("counting courses: %w", err)
	}
	fmt.Printf("Index now holds %d courses\n", count)
	return nil
}
