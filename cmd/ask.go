package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/internal/app"
	"github.com/lectern-ai/lectern/internal/retrieve"
)

var (
	askCourse string
	askLesson int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question grounded in the indexed course material",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askCourse, "course", "", "restrict to one course (fuzzy name)")
	askCmd.Flags().IntVar(&askLesson, "lesson", 0, "restrict to one lesson number")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.Setup(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() { _ = a.Close() }()

	question := strings.Join(args, " ")
	answer, err := a.Assistant.Ask(ctx, question, askFilter(cmd), nil)
	switch {
	case errors.Is(err, retrieve.ErrCourseNotFound):
		return fmt.Errorf("no course matches %q; run 'lectern courses' to list the catalog", askCourse)
	case errors.Is(err, retrieve.ErrNoResults):
		fmt.Println("No relevant course material found for that question.")
		return nil
	case err != nil:
		return err
	}

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, s := range answer.Sources {
			if s.Link != "" {
				fmt.Printf("  %s %s\n", s.Citation, s.Link)
			} else {
				fmt.Printf("  %s\n", s.Citation)
			}
		}
	}
	return nil
}

// askFilter builds the retrieval filter from the command flags. A lesson
// flag left at zero means no lesson filter; lesson numbers in course
// documents start at 1 (0 appears only in malformed or preamble-style
// markers and is not addressable from the CLI).
func askFilter(cmd *cobra.Command) retrieve.Filter {
	filter := retrieve.Filter{Course: askCourse}
	if cmd.Flags().Changed("lesson") {
		n := askLesson
		filter.Lesson = &n
	}
	return filter
}
