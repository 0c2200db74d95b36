// Package course defines the course document model and the ingestion-side
// text processing: parsing structured course files, splitting lesson bodies
// into sentence-aligned chunks, and enriching chunks with course/lesson
// context before they are embedded.
//
// Course, Lesson and Section are transient in-memory values produced on
// the write path; the index (internal/index) is the durable store.
package course

import "errors"

// ErrMalformedDocument indicates a course file that cannot be parsed:
// a missing Course Title header or duplicate lesson numbers. Per-file and
// recoverable; the loader skips the file and continues.
var ErrMalformedDocument = errors.New("malformed course document")

// Lesson is one lesson of a course. Number is taken verbatim from the
// lesson marker and is unique within the course but not required to be
// contiguous.
type Lesson struct {
	Number int
	Title  string
	Link   string
}

// Course is a parsed course document. Title uniquely identifies the course
// across the corpus.
type Course struct {
	Title      string
	Instructor string
	Link       string
	Lessons    []Lesson
}

// Section is the verbatim body text belonging to one lesson marker.
// Number is nil for the preamble before the first marker.
type Section struct {
	Number *int
	Text   string
}
