package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lectern-ai/lectern/internal/index"
)

// ErrNoResults indicates a content search that matched nothing under the
// given filters. The query and filters were valid; the corpus simply has
// no relevant material.
var ErrNoResults = errors.New("no relevant content found")

// Searcher is the slice of the index the Retriever needs.
type Searcher interface {
	CatalogSearcher
	SearchContent(ctx context.Context, query string, opts ...index.SearchOption) ([]index.ContentResult, error)
	LessonLink(ctx context.Context, title string, lessonNumber int) (string, error)
}

// Filter narrows a content search. Course may be a fuzzy name; it is
// resolved against the catalog before searching. A nil Lesson means all
// lessons.
type Filter struct {
	Course string
	Lesson *int
}

// Result is one retrieved chunk with its source attribution.
type Result struct {
	Text         string
	CourseTitle  string
	LessonNumber *int
	LessonLink   string
	Similarity   float64
}

// Citation formats the result's source as "[Course - Lesson N]", or
// "[Course]" for front matter with no lesson.
func (r Result) Citation() string {
	if r.LessonNumber != nil {
		return fmt.Sprintf("[%s - Lesson %d]", r.CourseTitle, *r.LessonNumber)
	}
	return fmt.Sprintf("[%s]", r.CourseTitle)
}

// Retriever orchestrates one retrieval pass: resolve the optional course
// filter, run the filtered content search, attach lesson links.
type Retriever struct {
	searcher   Searcher
	resolver   *Resolver
	maxResults int
	logger     *slog.Logger
}

// New creates a Retriever returning at most maxResults chunks per search.
// logger may be nil (slog.Default is used).
func New(searcher Searcher, maxResults int, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		searcher:   searcher,
		resolver:   NewResolver(searcher),
		maxResults: maxResults,
		logger:     logger,
	}
}

// Search runs a filtered semantic search over course content. Results come
// back in relevance order with per-chunk attribution. Returns
// ErrCourseNotFound when the filter's course name resolves to nothing and
// ErrNoResults when the search matches no chunks.
func (r *Retriever) Search(ctx context.Context, query string, filter Filter) ([]Result, error) {
	opts := []index.SearchOption{index.WithTopK(r.maxResults)}

	if course := strings.TrimSpace(filter.Course); course != "" {
		title, err := r.resolver.Resolve(ctx, course)
		if err != nil {
			return nil, err
		}
		r.logger.Debug("course filter resolved", "input", course, "title", title)
		opts = append(opts, index.WithCourse(title))
	}
	if filter.Lesson != nil {
		opts = append(opts, index.WithLesson(*filter.Lesson))
	}

	hits, err := r.searcher.SearchContent(ctx, query, opts...)
	if err != nil {
		return nil, fmt.Errorf("content search: %w", err)
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoResults, describeFilter(filter))
	}

	// Lesson links come from catalog metadata; one lookup per distinct
	// (course, lesson) pair in the result set.
	links := make(map[string]string)
	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		res := Result{
			Text:         hit.Entry.Text,
			CourseTitle:  hit.Entry.CourseTitle,
			LessonNumber: hit.Entry.LessonNumber,
			Similarity:   hit.Similarity,
		}
		if hit.Entry.LessonNumber != nil {
			key := fmt.Sprintf("%s\x00%d", hit.Entry.CourseTitle, *hit.Entry.LessonNumber)
			link, ok := links[key]
			if !ok {
				link, err = r.searcher.LessonLink(ctx, hit.Entry.CourseTitle, *hit.Entry.LessonNumber)
				if err != nil {
					r.logger.Warn("lesson link lookup failed",
						"course", hit.Entry.CourseTitle,
						"lesson", *hit.Entry.LessonNumber,
						"error", err)
					link = ""
				}
				links[key] = link
			}
			res.LessonLink = link
		}
		results = append(results, res)
	}
	return results, nil
}

func describeFilter(filter Filter) string {
	var parts []string
	if filter.Course != "" {
		parts = append(parts, fmt.Sprintf("course %q", filter.Course))
	}
	if filter.Lesson != nil {
		parts = append(parts, fmt.Sprintf("lesson %d", *filter.Lesson))
	}
	if len(parts) == 0 {
		return "no filters"
	}
	return strings.Join(parts, ", ")
}
