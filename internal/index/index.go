// Package index owns the two persisted search collections of the retrieval
// pipeline: the catalog collection (one embedded entry per course, for
// fuzzy name resolution and course discovery) and the content collection
// (one embedded entry per chunk, for content search).
//
// Index wraps an ai.Embedder and a Querier; the Querier interface is
// defined here, by the consumer, and implemented over pgvector in pg.go.
// All reads are safe for unbounded concurrent use; writes are expected to
// run single-writer at startup (internal/loader).
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// VectorDimension is the embedding dimensionality of both collections.
// gemini-embedding-001 defaults to 3072 dimensions and must be truncated
// to match the vector(768) columns in db/migrations; every embed call
// requests this dimensionality explicitly.
const VectorDimension int32 = 768

// ErrDuplicateCourse indicates an AddCourse call for a title already in the
// catalog. Expected under idempotent re-load; the loader treats it as a
// skip signal, not a fault.
var ErrDuplicateCourse = errors.New("course already indexed")

// searchTimeout bounds embedding plus vector search for a single query.
const searchTimeout = 10 * time.Second

// Querier defines the database operations Index needs. Interfaces are
// defined by the consumer (io.Reader, sql.Driver); PG in pg.go is the
// production implementation and tests substitute a mock.
type Querier interface {
	// InsertCourse writes one catalog row.
	InsertCourse(ctx context.Context, arg InsertCourseParams) error

	// InsertChunk writes one content row.
	InsertChunk(ctx context.Context, arg InsertChunkParams) error

	// CourseExists reports whether a catalog row with the exact title exists.
	CourseExists(ctx context.Context, title string) (bool, error)

	// GetCourse fetches one catalog row by exact title.
	GetCourse(ctx context.Context, title string) (CourseRow, error)

	// SearchCourses performs nearest-neighbor search over catalog embeddings.
	SearchCourses(ctx context.Context, embedding pgvector.Vector, limit int) ([]CourseRow, error)

	// SearchChunks performs filtered nearest-neighbor search over content
	// embeddings, ordered by ascending distance with chunk_index tie-break.
	SearchChunks(ctx context.Context, arg SearchChunksParams) ([]ChunkRow, error)

	// CountCourses returns the catalog size.
	CountCourses(ctx context.Context) (int64, error)

	// ListCourseTitles returns every catalog title.
	ListCourseTitles(ctx context.Context) ([]string, error)
}

// InsertCourseParams is the write shape of a catalog row.
type InsertCourseParams struct {
	Title      string
	Instructor string
	Link       string
	Lessons    []byte // JSONB-encoded []LessonInfo
	Embedding  pgvector.Vector
}

// InsertChunkParams is the write shape of a content row.
type InsertChunkParams struct {
	ID           string
	CourseTitle  string
	LessonNumber pgtype.Int4
	ChunkIndex   int32
	Content      string
	Embedding    pgvector.Vector
}

// SearchChunksParams carries the query embedding, optional exact filters
// and the result limit for content search.
type SearchChunksParams struct {
	Embedding    pgvector.Vector
	CourseTitle  *string
	LessonNumber *int32
	Limit        int32
}

// CourseRow is one catalog row as returned by the Querier.
type CourseRow struct {
	Title      string
	Instructor pgtype.Text
	Link       pgtype.Text
	Lessons    []byte
	Similarity float64
}

// ChunkRow is one content row as returned by the Querier.
type ChunkRow struct {
	ID           string
	CourseTitle  string
	LessonNumber pgtype.Int4
	ChunkIndex   int32
	Content      string
	Similarity   float64
}

// Index is the dual-collection store. Safe for concurrent reads; see the
// package comment for the write model.
type Index struct {
	q        Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates an Index. logger may be nil (slog.Default is used).
func New(q Querier, embedder ai.Embedder, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{q: q, embedder: embedder, logger: logger}
}

// Course is the write-path input for AddCourse: the parsed course plus its
// enriched chunks, mirrored from internal/course without importing it so
// the index stays decoupled from parsing.
type Course struct {
	Title      string
	Instructor string
	Link       string
	Lessons    []LessonInfo
}

// ChunkInput is one enriched chunk heading into the content collection.
type ChunkInput struct {
	Text         string
	LessonNumber *int
	ChunkIndex   int
}

// AddCourse writes the course's content entries and then, last, its catalog
// entry. Ordering is the failure-containment strategy: a crash mid-write
// leaves orphaned content rows with no catalog row, invisible to HasCourse
// and safely re-ingested on the next run. Returns ErrDuplicateCourse if the
// title is already cataloged.
func (ix *Index) AddCourse(ctx context.Context, c Course, chunks []ChunkInput) error {
	exists, err := ix.q.CourseExists(ctx, c.Title)
	if err != nil {
		return fmt.Errorf("checking course %q: %w", c.Title, err)
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCourse, c.Title)
	}

	for _, chunk := range chunks {
		embedding, err := ix.embed(ctx, chunk.Text)
		if err != nil {
			return fmt.Errorf("embedding chunk %d of %q: %w", chunk.ChunkIndex, c.Title, err)
		}

		var lesson pgtype.Int4
		if chunk.LessonNumber != nil {
			lesson = pgtype.Int4{Int32: int32(*chunk.LessonNumber), Valid: true}
		}

		err = ix.q.InsertChunk(ctx, InsertChunkParams{
			ID:           fmt.Sprintf("%s_%d", c.Title, chunk.ChunkIndex),
			CourseTitle:  c.Title,
			LessonNumber: lesson,
			ChunkIndex:   int32(chunk.ChunkIndex),
			Content:      chunk.Text,
			Embedding:    embedding,
		})
		if err != nil {
			return fmt.Errorf("inserting chunk %d of %q: %w", chunk.ChunkIndex, c.Title, err)
		}
	}

	lessonsJSON, err := json.Marshal(c.Lessons)
	if err != nil {
		return fmt.Errorf("marshaling lessons of %q: %w", c.Title, err)
	}

	embedding, err := ix.embed(ctx, c.Title)
	if err != nil {
		return fmt.Errorf("embedding title %q: %w", c.Title, err)
	}

	err = ix.q.InsertCourse(ctx, InsertCourseParams{
		Title:      c.Title,
		Instructor: c.Instructor,
		Link:       c.Link,
		Lessons:    lessonsJSON,
		Embedding:  embedding,
	})
	if err != nil {
		return fmt.Errorf("inserting course %q: %w", c.Title, err)
	}

	ix.logger.Debug("course indexed", "title", c.Title, "chunks", len(chunks))
	return nil
}

// HasCourse reports whether a course with the exact title is cataloged.
// Catalog presence is the single source of truth for "course fully loaded".
func (ix *Index) HasCourse(ctx context.Context, title string) (bool, error) {
	exists, err := ix.q.CourseExists(ctx, title)
	if err != nil {
		return false, fmt.Errorf("checking course %q: %w", title, err)
	}
	return exists, nil
}

// SearchCatalog performs semantic nearest-neighbor search over course
// titles, for fuzzy course-name resolution and course-level discovery.
func (ix *Index) SearchCatalog(ctx context.Context, query string, topK int) ([]CatalogEntry, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := ix.embed(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding catalog query: %w", err)
	}

	rows, err := ix.q.SearchCourses(queryCtx, embedding, topK)
	if err != nil {
		return nil, fmt.Errorf("catalog search: %w", err)
	}

	entries := make([]CatalogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, ix.courseRowToEntry(row))
	}
	return entries, nil
}

// SearchContent performs semantic nearest-neighbor search over chunk text,
// optionally constrained by WithCourse and WithLesson. Results are ordered
// by descending relevance with chunk_index tie-break (the Querier's ORDER
// BY contract).
func (ix *Index) SearchContent(ctx context.Context, query string, opts ...SearchOption) ([]ContentResult, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := ix.embed(queryCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding content query: %w", err)
	}

	params := SearchChunksParams{
		Embedding: embedding,
		Limit:     int32(cfg.topK),
	}
	if cfg.course != nil {
		params.CourseTitle = cfg.course
	}
	if cfg.lesson != nil {
		n := int32(*cfg.lesson)
		params.LessonNumber = &n
	}

	rows, err := ix.q.SearchChunks(queryCtx, params)
	if err != nil {
		return nil, fmt.Errorf("content search: %w", err)
	}

	results := make([]ContentResult, 0, len(rows))
	for _, row := range rows {
		entry := ContentEntry{
			Text:        row.Content,
			CourseTitle: row.CourseTitle,
			ChunkIndex:  int(row.ChunkIndex),
		}
		if row.LessonNumber.Valid {
			n := int(row.LessonNumber.Int32)
			entry.LessonNumber = &n
		}
		results = append(results, ContentResult{Entry: entry, Similarity: row.Similarity})
	}
	return results, nil
}

// CourseCount returns the number of cataloged courses.
func (ix *Index) CourseCount(ctx context.Context) (int, error) {
	count, err := ix.q.CountCourses(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting courses: %w", err)
	}
	return int(count), nil
}

// CourseTitles returns the set of cataloged course titles.
func (ix *Index) CourseTitles(ctx context.Context) (map[string]bool, error) {
	titles, err := ix.q.ListCourseTitles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing course titles: %w", err)
	}
	set := make(map[string]bool, len(titles))
	for _, t := range titles {
		set[t] = true
	}
	return set, nil
}

// Outline returns the catalog entry for an exact course title, including
// the ordered lesson list. The bool result is false when no such course is
// cataloged.
func (ix *Index) Outline(ctx context.Context, title string) (CatalogEntry, bool, error) {
	row, err := ix.q.GetCourse(ctx, title)
	if err != nil {
		if errors.Is(err, ErrNoCourseRow) {
			return CatalogEntry{}, false, nil
		}
		return CatalogEntry{}, false, fmt.Errorf("fetching course %q: %w", title, err)
	}
	return ix.courseRowToEntry(row), true, nil
}

// LessonLink returns the stored link for a lesson, or "" when the course or
// lesson is unknown or the lesson has no link.
func (ix *Index) LessonLink(ctx context.Context, title string, lessonNumber int) (string, error) {
	entry, ok, err := ix.Outline(ctx, title)
	if err != nil || !ok {
		return "", err
	}
	for _, l := range entry.Lessons {
		if l.Number == lessonNumber {
			return l.Link, nil
		}
	}
	return "", nil
}

// embed generates a single embedding, rejecting empty backend responses.
func (ix *Index) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := ix.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return pgvector.Vector{}, fmt.Errorf("embedding timeout: %w", err)
		}
		return pgvector.Vector{}, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// courseRowToEntry parses a catalog row into a CatalogEntry. Unparseable
// lesson metadata degrades to an empty lesson list rather than failing the
// whole search.
func (ix *Index) courseRowToEntry(row CourseRow) CatalogEntry {
	var lessons []LessonInfo
	if len(row.Lessons) > 0 {
		if err := json.Unmarshal(row.Lessons, &lessons); err != nil {
			ix.logger.Warn("failed to parse lesson metadata", "course", row.Title, "error", err)
			lessons = nil
		}
	}
	return CatalogEntry{
		Title:       row.Title,
		Instructor:  row.Instructor.String,
		Link:        row.Link.String,
		LessonCount: len(lessons),
		Lessons:     lessons,
		Similarity:  row.Similarity,
	}
}
