package course

import (
	"iter"
	"regexp"
	"strings"
)

var (
	// whitespaceRe collapses runs of whitespace so chunk lengths are
	// measured on normalized text.
	whitespaceRe = regexp.MustCompile(`\s+`)

	// sentenceBoundaryRe matches sentence-terminal punctuation followed by
	// whitespace. Trailing text without terminal punctuation counts as the
	// final sentence.
	sentenceBoundaryRe = regexp.MustCompile(`[.!?]+\s+`)
)

// Chunks splits text into sentence-aligned chunks of at most maxChars
// characters, where each chunk after the first starts with roughly the
// trailing overlapChars of the previous one (respecting sentence
// boundaries). The sequence is lazy, finite and deterministic.
//
// A single sentence longer than maxChars is emitted whole rather than cut;
// dropping content would be worse than an oversized chunk. Empty input
// yields an empty sequence.
//
// maxChars must be positive and overlapChars must be smaller than maxChars;
// config.Validate enforces this before any chunking happens.
func Chunks(text string, maxChars, overlapChars int) iter.Seq[string] {
	return func(yield func(string) bool) {
		sentences := splitSentences(text)

		var cur []string
		curLen := 0
		for _, s := range sentences {
			add := len(s)
			if len(cur) > 0 {
				add++ // joining space
			}

			if curLen+add > maxChars && len(cur) > 0 {
				if !yield(strings.Join(cur, " ")) {
					return
				}
				cur, curLen = overlapTail(cur, overlapChars, maxChars, len(s))
				add = len(s)
				if len(cur) > 0 {
					add++
				}
			}

			cur = append(cur, s)
			curLen += add
		}

		if len(cur) > 0 {
			yield(strings.Join(cur, " "))
		}
	}
}

// splitSentences normalizes whitespace and splits text on sentence-terminal
// punctuation followed by whitespace. Returns nil for blank input.
func splitSentences(text string) []string {
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0
	for _, loc := range sentenceBoundaryRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// overlapTail selects the trailing sentences of the emitted chunk whose
// combined length fits overlapChars, to be carried into the next chunk.
// The tail shrinks further if it would push the next sentence past
// maxChars, so the budget holds for every multi-sentence chunk.
func overlapTail(cur []string, overlapChars, maxChars, nextLen int) ([]string, int) {
	var tail []string
	length := 0
	for i := len(cur) - 1; i >= 0; i-- {
		add := len(cur[i])
		if len(tail) > 0 {
			add++
		}
		if length+add > overlapChars {
			break
		}
		tail = append([]string{cur[i]}, tail...)
		length += add
	}

	for len(tail) > 0 && length+1+nextLen > maxChars {
		length -= len(tail[0])
		if len(tail) > 1 {
			length-- // joining space after the removed sentence
		}
		tail = tail[1:]
	}

	return tail, length
}
