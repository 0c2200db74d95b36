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
	searchCourse string
	searchLesson int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed course content without generating an answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchCourse, "course", "", "restrict to one course (fuzzy name)")
	searchCmd.Flags().IntVar(&searchLesson, "lesson", 0, "restrict to one lesson number")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	filter := retrieve.Filter{Course: searchCourse}
	if cmd.Flags().Changed("lesson") {
		n := searchLesson
		filter.Lesson = &n
	}

	results, err := a.Retriever.Search(ctx, strings.Join(args, " "), filter)
	switch {
	case errors.Is(err, retrieve.ErrCourseNotFound):
		return fmt.Errorf("no course matches %q; run 'lectern courses' to list the catalog", searchCourse)
	case errors.Is(err, retrieve.ErrNoResults):
		fmt.Println("No matching content.")
		return nil
	case err != nil:
		return err
	}

	for i, r := range results {
		fmt.Printf("%d. %s (%.3f)\n", i+1, r.Citation(), r.Similarity)
		if r.LessonLink != "" {
			fmt.Printf("   %s\n", r.LessonLink)
		}
		fmt.Printf("   %s\n\n", r.Text)
	}
	return nil
}
