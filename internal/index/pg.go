package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrNoCourseRow indicates a GetCourse miss for an exact title.
var ErrNoCourseRow = errors.New("no course row")

// PG implements Querier over PostgreSQL + pgvector. All statements are
// parameterized; relevance is 1 - cosine distance (the <=> operator), and
// content search breaks ties on chunk_index for deterministic ordering.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG creates a PG querier over an existing connection pool. The pool's
// lifecycle is managed by the caller (internal/app).
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

func (p *PG) InsertCourse(ctx context.Context, arg InsertCourseParams) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO courses (title, instructor, link, lessons, embedding)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)`,
		arg.Title, arg.Instructor, arg.Link, arg.Lessons, arg.Embedding)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

func (p *PG) InsertChunk(ctx context.Context, arg InsertChunkParams) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO chunks (id, course_title, lesson_number, chunk_index, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   course_title = EXCLUDED.course_title,
		   lesson_number = EXCLUDED.lesson_number,
		   chunk_index = EXCLUDED.chunk_index,
		   content = EXCLUDED.content,
		   embedding = EXCLUDED.embedding`,
		arg.ID, arg.CourseTitle, arg.LessonNumber, arg.ChunkIndex, arg.Content, arg.Embedding)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

func (p *PG) CourseExists(ctx context.Context, title string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM courses WHERE title = $1)`, title).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("course exists: %w", err)
	}
	return exists, nil
}

func (p *PG) GetCourse(ctx context.Context, title string) (CourseRow, error) {
	var row CourseRow
	err := p.pool.QueryRow(ctx,
		`SELECT title, instructor, link, lessons FROM courses WHERE title = $1`,
		title).Scan(&row.Title, &row.Instructor, &row.Link, &row.Lessons)
	if errors.Is(err, pgx.ErrNoRows) {
		return CourseRow{}, ErrNoCourseRow
	}
	if err != nil {
		return CourseRow{}, fmt.Errorf("get course: %w", err)
	}
	return row, nil
}

func (p *PG) SearchCourses(ctx context.Context, embedding pgvector.Vector, limit int) ([]CourseRow, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT title, instructor, link, lessons, 1 - (embedding <=> $1) AS similarity
		 FROM courses
		 ORDER BY embedding <=> $1, title
		 LIMIT $2`,
		embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	defer rows.Close()

	var out []CourseRow
	for rows.Next() {
		var row CourseRow
		if err := rows.Scan(&row.Title, &row.Instructor, &row.Link, &row.Lessons, &row.Similarity); err != nil {
			return nil, fmt.Errorf("scan course row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search courses rows: %w", err)
	}
	return out, nil
}

func (p *PG) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]ChunkRow, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, course_title, lesson_number, chunk_index, content,
	 1 - (embedding <=> $1) AS similarity FROM chunks`)

	args := []any{arg.Embedding}
	var conds []string
	if arg.CourseTitle != nil {
		args = append(args, *arg.CourseTitle)
		conds = append(conds, "course_title = $"+strconv.Itoa(len(args)))
	}
	if arg.LessonNumber != nil {
		args = append(args, *arg.LessonNumber)
		conds = append(conds, "lesson_number = $"+strconv.Itoa(len(args)))
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	args = append(args, arg.Limit)
	sb.WriteString(" ORDER BY embedding <=> $1, chunk_index LIMIT $" + strconv.Itoa(len(args)))

	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var row ChunkRow
		if err := rows.Scan(&row.ID, &row.CourseTitle, &row.LessonNumber,
			&row.ChunkIndex, &row.Content, &row.Similarity); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search chunks rows: %w", err)
	}
	return out, nil
}

func (p *PG) CountCourses(ctx context.Context) (int64, error) {
	var count int64
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM courses`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count courses: %w", err)
	}
	return count, nil
}

func (p *PG) ListCourseTitles(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT title FROM courses ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list course titles: %w", err)
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list course titles rows: %w", err)
	}
	return titles, nil
}
