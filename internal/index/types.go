package index

// LessonInfo is the per-lesson slice of catalog metadata, stored as JSONB
// on the catalog row.
type LessonInfo struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// CatalogEntry is one catalog collection record: the course title as
// searchable text plus course-level metadata. Created when a new course is
// ingested, never mutated.
type CatalogEntry struct {
	Title       string
	Instructor  string
	Link        string
	LessonCount int
	Lessons     []LessonInfo

	// Similarity is the backend relevance score for catalog searches
	// (1 - cosine distance; higher is closer).
	Similarity float64
}

// ContentEntry is one content collection record: a context-enriched chunk
// plus its addressing metadata.
type ContentEntry struct {
	Text         string
	CourseTitle  string
	LessonNumber *int
	ChunkIndex   int
}

// ContentResult pairs a content entry with its relevance score.
type ContentResult struct {
	Entry      ContentEntry
	Similarity float64
}

// SearchOption configures content search using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK   int
	course *string
	lesson *int
}

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithCourse restricts results to an exact course title. Callers resolve
// fuzzy names first (internal/retrieve); this filter is always exact.
func WithCourse(title string) SearchOption {
	return func(c *searchConfig) {
		c.course = &title
	}
}

// WithLesson restricts results to a lesson number.
func WithLesson(number int) SearchOption {
	return func(c *searchConfig) {
		c.lesson = &number
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topK: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
