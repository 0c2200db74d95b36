package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/goleak"
	"google.golang.org/genai"

	"github.com/lectern-ai/lectern/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// testcontainers keeps a reaper connection alive for the process.
		goleak.IgnoreTopFunction("github.com/testcontainers/testcontainers-go.(*Reaper).connect.func1"),
	)
}

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	embedErr    error
	returnEmpty bool
	embeddings  []float32
	callCount   int
	inputs      []string
	options     []any // req.Options per call
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(r api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	m.options = append(m.options, req.Options)
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.inputs = append(m.inputs, req.Input[0].Content[0].Text)
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{Embeddings: []*ai.Embedding{{Embedding: []float32{}}}}, nil
	}
	embeddings := m.embeddings
	if embeddings == nil {
		embeddings = []float32{0.1, 0.2, 0.3}
	}
	return &ai.EmbedResponse{Embeddings: []*ai.Embedding{{Embedding: embeddings}}}, nil
}

// mockQuerier implements Querier and records call order for write-ordering
// assertions.
type mockQuerier struct {
	existsResult bool
	existsErr    error
	insertErr    error
	chunkErr     error
	searchErr    error

	courseRows []CourseRow
	chunkRows  []ChunkRow
	getRow     CourseRow
	getErr     error
	count      int64
	titles     []string

	calls            []string
	lastInsertCourse InsertCourseParams
	insertedChunks   []InsertChunkParams
	lastSearchChunks SearchChunksParams
	lastSearchLimit  int
}

func (m *mockQuerier) InsertCourse(ctx context.Context, arg InsertCourseParams) error {
	m.calls = append(m.calls, "InsertCourse")
	m.lastInsertCourse = arg
	return m.insertErr
}

func (m *mockQuerier) InsertChunk(ctx context.Context, arg InsertChunkParams) error {
	m.calls = append(m.calls, "InsertChunk")
	m.insertedChunks = append(m.insertedChunks, arg)
	return m.chunkErr
}

func (m *mockQuerier) CourseExists(ctx context.Context, title string) (bool, error) {
	m.calls = append(m.calls, "CourseExists")
	return m.existsResult, m.existsErr
}

func (m *mockQuerier) GetCourse(ctx context.Context, title string) (CourseRow, error) {
	m.calls = append(m.calls, "GetCourse")
	return m.getRow, m.getErr
}

func (m *mockQuerier) SearchCourses(ctx context.Context, embedding pgvector.Vector, limit int) ([]CourseRow, error) {
	m.calls = append(m.calls, "SearchCourses")
	m.lastSearchLimit = limit
	return m.courseRows, m.searchErr
}

func (m *mockQuerier) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]ChunkRow, error) {
	m.calls = append(m.calls, "SearchChunks")
	m.lastSearchChunks = arg
	return m.chunkRows, m.searchErr
}

func (m *mockQuerier) CountCourses(ctx context.Context) (int64, error) {
	return m.count, nil
}

func (m *mockQuerier) ListCourseTitles(ctx context.Context) ([]string, error) {
	return m.titles, nil
}

func validInt4(n int32) pgtype.Int4 {
	return pgtype.Int4{Int32: n, Valid: true}
}

func lessonsJSON(t *testing.T, lessons []LessonInfo) []byte {
	t.Helper()
	data, err := json.Marshal(lessons)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func testCourse() Course {
	return Course{
		Title:      "Vectors 101",
		Instructor: "Ada Lovelace",
		Link:       "http://example.com/vectors",
		Lessons: []LessonInfo{
			{Number: 1, Title: "Basics", Link: "http://example.com/vectors/1"},
		},
	}
}

func TestAddCourse_CatalogWrittenLast(t *testing.T) {
	q := &mockQuerier{}
	ix := New(q, &mockEmbedder{}, log.NewNop())

	one := 1
	chunks := []ChunkInput{
		{Text: "[Vectors 101, Lesson 1] First chunk.", LessonNumber: &one, ChunkIndex: 0},
		{Text: "[Vectors 101, Lesson 1] Second chunk.", LessonNumber: &one, ChunkIndex: 1},
	}

	if err := ix.AddCourse(context.Background(), testCourse(), chunks); err != nil {
		t.Fatalf("AddCourse() error = %v", err)
	}

	want := []string{"CourseExists", "InsertChunk", "InsertChunk", "InsertCourse"}
	if len(q.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", q.calls, want)
	}
	for i := range want {
		if q.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v (catalog row must be written after all content rows)", q.calls, want)
		}
	}
}

func TestAddCourse_ChunkIdentityAndMetadata(t *testing.T) {
	q := &mockQuerier{}
	ix := New(q, &mockEmbedder{}, log.NewNop())

	one := 1
	chunks := []ChunkInput{
		{Text: "[Vectors 101] Front matter.", LessonNumber: nil, ChunkIndex: 0},
		{Text: "[Vectors 101, Lesson 1] Body.", LessonNumber: &one, ChunkIndex: 1},
	}

	if err := ix.AddCourse(context.Background(), testCourse(), chunks); err != nil {
		t.Fatalf("AddCourse() error = %v", err)
	}

	if got := q.insertedChunks[0].ID; got != "Vectors 101_0" {
		t.Errorf("chunk 0 ID = %q, want %q", got, "Vectors 101_0")
	}
	if q.insertedChunks[0].LessonNumber.Valid {
		t.Error("front-matter chunk must have a NULL lesson number")
	}
	if !q.insertedChunks[1].LessonNumber.Valid || q.insertedChunks[1].LessonNumber.Int32 != 1 {
		t.Errorf("chunk 1 lesson = %+v, want valid 1", q.insertedChunks[1].LessonNumber)
	}

	var lessons []LessonInfo
	if err := json.Unmarshal(q.lastInsertCourse.Lessons, &lessons); err != nil {
		t.Fatalf("catalog lessons not valid JSON: %v", err)
	}
	if len(lessons) != 1 || lessons[0].Number != 1 {
		t.Errorf("catalog lessons = %+v", lessons)
	}
}

func TestAddCourse_Duplicate(t *testing.T) {
	q := &mockQuerier{existsResult: true}
	ix := New(q, &mockEmbedder{}, log.NewNop())

	err := ix.AddCourse(context.Background(), testCourse(), nil)
	if !errors.Is(err, ErrDuplicateCourse) {
		t.Fatalf("AddCourse() error = %v, want ErrDuplicateCourse", err)
	}
	for _, c := range q.calls {
		if c == "InsertChunk" || c == "InsertCourse" {
			t.Fatalf("duplicate course must not write, calls = %v", q.calls)
		}
	}
}

func TestAddCourse_EmbedsEveryChunkAndTitle(t *testing.T) {
	q := &mockQuerier{}
	e := &mockEmbedder{}
	ix := New(q, e, log.NewNop())

	chunks := []ChunkInput{
		{Text: "chunk a", ChunkIndex: 0},
		{Text: "chunk b", ChunkIndex: 1},
	}
	if err := ix.AddCourse(context.Background(), testCourse(), chunks); err != nil {
		t.Fatalf("AddCourse() error = %v", err)
	}

	if e.callCount != 3 {
		t.Errorf("embedder calls = %d, want 3 (2 chunks + title)", e.callCount)
	}
	if e.inputs[len(e.inputs)-1] != "Vectors 101" {
		t.Errorf("title embedded last, got inputs %v", e.inputs)
	}
}

func TestAddCourse_EmbedFailure(t *testing.T) {
	q := &mockQuerier{}
	e := &mockEmbedder{embedErr: errors.New("quota exceeded")}
	ix := New(q, e, log.NewNop())

	err := ix.AddCourse(context.Background(), testCourse(), []ChunkInput{{Text: "x", ChunkIndex: 0}})
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
	for _, c := range q.calls {
		if c == "InsertCourse" {
			t.Fatal("catalog row must not be written after an embed failure")
		}
	}
}

// assertSchemaDimensionality fails unless the recorded embed option
// truncates to the schema's vector dimensionality.
func assertSchemaDimensionality(t *testing.T, option any) {
	t.Helper()
	cfg, ok := option.(*genai.EmbedContentConfig)
	if !ok {
		t.Fatalf("embed options = %T, want *genai.EmbedContentConfig", option)
	}
	if cfg.OutputDimensionality == nil {
		t.Fatal("OutputDimensionality not set; default output does not fit the vector columns")
	}
	if *cfg.OutputDimensionality != VectorDimension {
		t.Fatalf("OutputDimensionality = %d, want %d", *cfg.OutputDimensionality, VectorDimension)
	}
}

func TestEmbed_RequestsSchemaDimensionality(t *testing.T) {
	e := &mockEmbedder{}
	ix := New(&mockQuerier{}, e, log.NewNop())

	if _, err := ix.SearchContent(context.Background(), "query"); err != nil {
		t.Fatalf("SearchContent() error = %v", err)
	}
	if _, err := ix.SearchCatalog(context.Background(), "query", 1); err != nil {
		t.Fatalf("SearchCatalog() error = %v", err)
	}
	err := ix.AddCourse(context.Background(), testCourse(),
		[]ChunkInput{{Text: "chunk", ChunkIndex: 0}})
	if err != nil {
		t.Fatalf("AddCourse() error = %v", err)
	}

	if len(e.options) == 0 {
		t.Fatal("no embed calls recorded")
	}
	for _, option := range e.options {
		assertSchemaDimensionality(t, option)
	}
}

func TestVectorDimensionMatchesSchema(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "000001_create_collections.up.sql"))
	if err != nil {
		t.Fatal(err)
	}

	want := fmt.Sprintf("VECTOR(%d)", VectorDimension)
	if got := strings.Count(string(raw), want); got != 2 {
		t.Errorf("migration declares %q %d times, want 2 (courses + chunks)", want, got)
	}
}

func TestSearchContent_FilterMapping(t *testing.T) {
	q := &mockQuerier{}
	ix := New(q, &mockEmbedder{}, log.NewNop())

	_, err := ix.SearchContent(context.Background(), "what is a vector",
		WithTopK(3), WithCourse("Vectors 101"), WithLesson(2))
	if err != nil {
		t.Fatalf("SearchContent() error = %v", err)
	}

	p := q.lastSearchChunks
	if p.Limit != 3 {
		t.Errorf("limit = %d, want 3", p.Limit)
	}
	if p.CourseTitle == nil || *p.CourseTitle != "Vectors 101" {
		t.Errorf("course filter = %v, want Vectors 101", p.CourseTitle)
	}
	if p.LessonNumber == nil || *p.LessonNumber != 2 {
		t.Errorf("lesson filter = %v, want 2", p.LessonNumber)
	}
}

func TestSearchContent_DefaultsAndNoFilters(t *testing.T) {
	q := &mockQuerier{}
	ix := New(q, &mockEmbedder{}, log.NewNop())

	if _, err := ix.SearchContent(context.Background(), "anything"); err != nil {
		t.Fatalf("SearchContent() error = %v", err)
	}
	p := q.lastSearchChunks
	if p.Limit != 5 {
		t.Errorf("default limit = %d, want 5", p.Limit)
	}
	if p.CourseTitle != nil || p.LessonNumber != nil {
		t.Errorf("expected no filters, got %+v", p)
	}
}

func TestSearchContent_RowMapping(t *testing.T) {
	q := &mockQuerier{
		chunkRows: []ChunkRow{
			{
				ID: "Vectors 101_0", CourseTitle: "Vectors 101",
				LessonNumber: validInt4(1), ChunkIndex: 0,
				Content: "[Vectors 101, Lesson 1] First.", Similarity: 0.92,
			},
			{
				ID: "Vectors 101_3", CourseTitle: "Vectors 101",
				ChunkIndex: 3, Content: "[Vectors 101] Preamble.", Similarity: 0.71,
			},
		},
	}
	ix := New(q, &mockEmbedder{}, log.NewNop())

	results, err := ix.SearchContent(context.Background(), "first")
	if err != nil {
		t.Fatalf("SearchContent() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	first := results[0].Entry
	if first.LessonNumber == nil || *first.LessonNumber != 1 {
		t.Errorf("results[0] lesson = %v, want 1", first.LessonNumber)
	}
	if results[0].Similarity != 0.92 {
		t.Errorf("results[0] similarity = %v", results[0].Similarity)
	}
	if results[1].Entry.LessonNumber != nil {
		t.Error("null lesson_number must map to nil")
	}
	if results[1].Entry.ChunkIndex != 3 {
		t.Errorf("results[1] chunk index = %d, want 3", results[1].Entry.ChunkIndex)
	}
}

func TestSearchCatalog_ParsesLessonMetadata(t *testing.T) {
	q := &mockQuerier{
		courseRows: []CourseRow{{
			Title: "Vectors 101",
			Lessons: lessonsJSON(t, []LessonInfo{
				{Number: 1, Title: "Basics", Link: "http://example.com/1"},
				{Number: 2, Title: "Depth"},
			}),
			Similarity: 0.88,
		}},
	}
	ix := New(q, &mockEmbedder{}, log.NewNop())

	entries, err := ix.SearchCatalog(context.Background(), "vectors", 1)
	if err != nil {
		t.Fatalf("SearchCatalog() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.LessonCount != 2 || len(e.Lessons) != 2 {
		t.Errorf("lesson count = %d/%d, want 2", e.LessonCount, len(e.Lessons))
	}
	if q.lastSearchLimit != 1 {
		t.Errorf("search limit = %d, want 1", q.lastSearchLimit)
	}
}

func TestSearchCatalog_BadLessonJSONDegrades(t *testing.T) {
	q := &mockQuerier{
		courseRows: []CourseRow{{Title: "Broken", Lessons: []byte("{not json")}},
	}
	ix := New(q, &mockEmbedder{}, log.NewNop())

	entries, err := ix.SearchCatalog(context.Background(), "broken", 1)
	if err != nil {
		t.Fatalf("SearchCatalog() error = %v", err)
	}
	if entries[0].LessonCount != 0 {
		t.Errorf("unparseable lessons should degrade to empty, got %+v", entries[0])
	}
}

func TestSearchContent_EmptyEmbedding(t *testing.T) {
	ix := New(&mockQuerier{}, &mockEmbedder{returnEmpty: true}, log.NewNop())

	if _, err := ix.SearchContent(context.Background(), "query"); err == nil {
		t.Fatal("expected error for empty embedding response")
	}
}

func TestCourseTitlesAndCount(t *testing.T) {
	q := &mockQuerier{count: 2, titles: []string{"A", "B"}}
	ix := New(q, &mockEmbedder{}, log.NewNop())

	count, err := ix.CourseCount(context.Background())
	if err != nil || count != 2 {
		t.Errorf("CourseCount() = %d, %v; want 2, nil", count, err)
	}

	titles, err := ix.CourseTitles(context.Background())
	if err != nil {
		t.Fatalf("CourseTitles() error = %v", err)
	}
	if !titles["A"] || !titles["B"] || len(titles) != 2 {
		t.Errorf("CourseTitles() = %v", titles)
	}
}

func TestOutline_Miss(t *testing.T) {
	q := &mockQuerier{getErr: ErrNoCourseRow}
	ix := New(q, &mockEmbedder{}, log.NewNop())

	_, ok, err := ix.Outline(context.Background(), "Nope")
	if err != nil {
		t.Fatalf("Outline() error = %v", err)
	}
	if ok {
		t.Error("Outline() ok = true for missing course")
	}
}

func TestLessonLink(t *testing.T) {
	q := &mockQuerier{
		getRow: CourseRow{
			Title: "Vectors 101",
			Lessons: lessonsJSON(t, []LessonInfo{
				{Number: 1, Title: "Basics", Link: "http://example.com/vectors/1"},
				{Number: 2, Title: "No link"},
			}),
		},
	}
	ix := New(q, &mockEmbedder{}, log.NewNop())

	link, err := ix.LessonLink(context.Background(), "Vectors 101", 1)
	if err != nil || link != "http://example.com/vectors/1" {
		t.Errorf("LessonLink(1) = %q, %v", link, err)
	}

	link, err = ix.LessonLink(context.Background(), "Vectors 101", 999)
	if err != nil || link != "" {
		t.Errorf("LessonLink(999) = %q, %v; want empty", link, err)
	}
}
