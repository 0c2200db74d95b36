// Package loader ingests a directory of course documents into the index.
// Loading is idempotent (already-cataloged titles are skipped) and
// single-writer: a file lock rejects concurrent ingest runs against the
// same corpus directory.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/lectern-ai/lectern/internal/course"
	"github.com/lectern-ai/lectern/internal/index"
)

// ErrLocked indicates another ingest run holds the corpus lock.
var ErrLocked = errors.New("corpus directory locked by another ingest run")

// lockFile lives inside the corpus directory so the lock scope follows the
// data.
const lockFile = ".lectern.lock"

// Indexer is the slice of the index the loader needs.
type Indexer interface {
	HasCourse(ctx context.Context, title string) (bool, error)
	AddCourse(ctx context.Context, c index.Course, chunks []index.ChunkInput) error
}

// Stats summarizes one load run.
type Stats struct {
	Loaded  int
	Skipped int
	Failed  int
	Chunks  int
}

// Loader reads course files from disk and feeds them through the
// parse/chunk/enrich pipeline into the index.
type Loader struct {
	ix           Indexer
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// New creates a Loader with the given chunking parameters. logger may be
// nil (slog.Default is used).
func New(ix Indexer, chunkSize, chunkOverlap int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{ix: ix, chunkSize: chunkSize, chunkOverlap: chunkOverlap, logger: logger}
}

// LoadDir ingests every .txt file under dir in lexicographic order. Files
// that fail to parse or index are logged and skipped; the batch continues.
// Courses whose title is already cataloged are skipped silently, which
// makes repeated runs over the same directory cheap no-ops.
//
// Returns ErrLocked if another run holds the directory lock.
func (l *Loader) LoadDir(ctx context.Context, dir string) (Stats, error) {
	lock := flock.New(filepath.Join(dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return Stats{}, fmt.Errorf("acquiring corpus lock: %w", err)
	}
	if !locked {
		return Stats{}, fmt.Errorf("%w: %s", ErrLocked, dir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			l.logger.Warn("failed to release corpus lock", "error", err)
		}
	}()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return Stats{}, fmt.Errorf("reading corpus directory %s: %w", dir, err)
	}

	runID := uuid.NewString()
	logger := l.logger.With("run_id", runID, "dir", dir)
	logger.Info("ingest started")

	var stats Stats
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("ingest interrupted: %w", err)
		}

		path := filepath.Join(dir, entry.Name())
		added, err := l.loadFile(ctx, path)
		switch {
		case errors.Is(err, errAlreadyLoaded):
			stats.Skipped++
		case err != nil:
			stats.Failed++
			logger.Warn("file skipped", "file", entry.Name(), "error", err)
		default:
			stats.Loaded++
			stats.Chunks += added
		}
	}

	logger.Info("ingest finished",
		"loaded", stats.Loaded, "skipped", stats.Skipped,
		"failed", stats.Failed, "chunks", stats.Chunks)
	return stats, nil
}

// errAlreadyLoaded is internal flow control for the skip path.
var errAlreadyLoaded = errors.New("already loaded")

// loadFile parses one course file and indexes its chunks. Returns the
// number of chunks written.
func (l *Loader) loadFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading file: %w", err)
	}

	c, sections, err := course.Parse(string(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing: %w", err)
	}

	exists, err := l.ix.HasCourse(ctx, c.Title)
	if err != nil {
		return 0, fmt.Errorf("checking course %q: %w", c.Title, err)
	}
	if exists {
		l.logger.Debug("course already indexed", "title", c.Title)
		return 0, errAlreadyLoaded
	}

	chunks := l.buildChunks(c.Title, sections)

	lessons := make([]index.LessonInfo, 0, len(c.Lessons))
	for _, lesson := range c.Lessons {
		lessons = append(lessons, index.LessonInfo{
			Number: lesson.Number,
			Title:  lesson.Title,
			Link:   lesson.Link,
		})
	}

	err = l.ix.AddCourse(ctx, index.Course{
		Title:      c.Title,
		Instructor: c.Instructor,
		Link:       c.Link,
		Lessons:    lessons,
	}, chunks)
	if errors.Is(err, index.ErrDuplicateCourse) {
		return 0, errAlreadyLoaded
	}
	if err != nil {
		return 0, fmt.Errorf("indexing %q: %w", c.Title, err)
	}

	l.logger.Info("course loaded", "title", c.Title, "chunks", len(chunks))
	return len(chunks), nil
}

// buildChunks splits each section into sentence-aligned chunks and enriches
// them with course/lesson context. Chunk indexes are course-wide so the
// identity key {title}_{index} stays unique across sections.
func (l *Loader) buildChunks(title string, sections []course.Section) []index.ChunkInput {
	var chunks []index.ChunkInput
	idx := 0
	for _, sec := range sections {
		for text := range course.Chunks(sec.Text, l.chunkSize, l.chunkOverlap) {
			chunks = append(chunks, index.ChunkInput{
				Text:         course.Enrich(text, title, sec.Number),
				LessonNumber: sec.Number,
				ChunkIndex:   idx,
			})
			idx++
		}
	}
	return chunks
}
