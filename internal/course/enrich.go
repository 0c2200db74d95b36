package course

import "fmt"

// Enrich prepends the course/lesson context prefix to a chunk's raw text so
// every stored chunk is self-describing. Applied exactly once, before the
// chunk is committed to the content collection; the prefix is a permanent
// part of the chunk text and affects both embedding and display.
func Enrich(text, courseTitle string, lessonNumber *int) string {
	if lessonNumber != nil {
		return fmt.Sprintf("[%s, Lesson %d] %s", courseTitle, *lessonNumber, text)
	}
	return fmt.Sprintf("[%s] %s", courseTitle, text)
}
