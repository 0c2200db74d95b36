package course

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// lessonMarkerRe matches a lesson heading line: "Lesson <number>: <title>".
var lessonMarkerRe = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// Header keys of the leading metadata block.
const (
	headerTitle      = "Course Title"
	headerLink       = "Course Link"
	headerInstructor = "Course Instructor"
)

// Parse converts raw course file text into a Course plus the verbatim body
// text of each lesson. Text before the first lesson marker (after the
// metadata header) is returned as a Section with a nil lesson number.
//
// The file format is a header of "Key: value" lines (Course Title is
// mandatory, Course Link and Course Instructor optional), then zero or
// more lesson blocks each starting with "Lesson <number>: <title>" and
// optionally followed by a "Lesson Link: <url>" line.
//
// Parse performs no I/O and returns ErrMalformedDocument when the title is
// missing or a lesson number repeats.
func Parse(raw string) (*Course, []Section, error) {
	lines := strings.Split(raw, "\n")

	c := &Course{}
	i := parseHeader(lines, c)
	if c.Title == "" {
		return nil, nil, fmt.Errorf("%w: missing %q header", ErrMalformedDocument, headerTitle)
	}

	var (
		sections []Section
		body     []string
		current  *int // nil while collecting the preamble
		seen     = make(map[int]bool)
	)

	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text != "" {
			sections = append(sections, Section{Number: current, Text: text})
		}
		body = body[:0]
	}

	for ; i < len(lines); i++ {
		line := lines[i]

		m := lessonMarkerRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			body = append(body, line)
			continue
		}

		number, err := strconv.Atoi(m[1])
		if err != nil {
			// \d+ guarantees digits; only overflow can land here.
			return nil, nil, fmt.Errorf("%w: lesson number %q out of range", ErrMalformedDocument, m[1])
		}
		if seen[number] {
			return nil, nil, fmt.Errorf("%w: duplicate lesson number %d", ErrMalformedDocument, number)
		}
		seen[number] = true

		flush()

		lesson := Lesson{Number: number, Title: strings.TrimSpace(m[2])}
		// An optional "Lesson Link:" line directly follows the marker.
		if i+1 < len(lines) {
			if link, ok := cutHeaderValue(lines[i+1], "Lesson Link"); ok {
				lesson.Link = link
				i++
			}
		}
		c.Lessons = append(c.Lessons, lesson)

		n := number
		current = &n
	}
	flush()

	return c, sections, nil
}

// parseHeader consumes leading "Key: value" metadata lines and returns the
// index of the first body line. Blank lines between header entries are
// tolerated.
func parseHeader(lines []string, c *Course) int {
	i := 0
	for ; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if v, ok := cutHeaderValue(trimmed, headerTitle); ok {
			c.Title = v
			continue
		}
		if v, ok := cutHeaderValue(trimmed, headerLink); ok {
			c.Link = v
			continue
		}
		if v, ok := cutHeaderValue(trimmed, headerInstructor); ok {
			c.Instructor = v
			continue
		}
		break
	}
	return i
}

// cutHeaderValue returns the trimmed value of a "Key: value" line when the
// line starts with the given key.
func cutHeaderValue(line, key string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), key+":")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}
