package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lectern-ai/lectern/internal/app"
)

var coursesOutline string

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List indexed courses, or show one course's outline",
	Args:  cobra.NoArgs,
	RunE:  runCourses,
}

func init() {
	coursesCmd.Flags().StringVar(&coursesOutline, "outline", "", "show the lesson outline of one course (exact title)")
	rootCmd.AddCommand(coursesCmd)
}

func runCourses(cmd *cobra.Command, args []string) error {
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

	if coursesOutline != "" {
		return printOutline(cmd, a, coursesOutline)
	}

	titles, err := a.Index.CourseTitles(ctx)
	if err != nil {
		return err
	}
	if len(titles) == 0 {
		fmt.Println("No courses indexed. Run 'lectern ingest' first.")
		return nil
	}

	sorted := make([]string, 0, len(titles))
	for t := range titles {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	fmt.Printf("%d courses:\n", len(sorted))
	for _, t := range sorted {
		fmt.Printf("  %s\n", t)
	}
	return nil
}

func printOutline(cmd *cobra.Command, a *app.App, title string) error {
	entry, ok, err := a.Index.Outline(cmd.Context(), title)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no course titled %q; run 'lectern courses' to list exact titles", title)
	}

	fmt.Println(entry.Title)
	if entry.Instructor != "" {
		fmt.Printf("Instructor: %s\n", entry.Instructor)
	}
	if entry.Link != "" {
		fmt.Printf("Link: %s\n", entry.Link)
	}
	fmt.Printf("Lessons (%d):\n", entry.LessonCount)
	for _, l := range entry.Lessons {
		if l.Link != "" {
			fmt.Printf("  %d. %s — %s\n", l.Number, l.Title, l.Link)
		} else {
			fmt.Printf("  %d. %s\n", l.Number, l.Title)
		}
	}
	return nil
}
