// Package segment splits translated text into sentence-like display units.
package segment

import (
	"regexp"
	"strings"
)

// sentencePattern matches either a run ending in terminal punctuation or a
// trailing run without any.
var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`)

// Split returns the sentences of text, each keeping its trailing
// punctuation. Whitespace-only input yields an empty slice.
func Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []string{}
	}

	matches := sentencePattern.FindAllString(trimmed, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if s := strings.TrimSpace(m); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		// Punctuation-only input such as "..." has no match.
		return []string{trimmed}
	}
	return out
}

// Tail returns the last n sentences of text.
func Tail(text string, n int) []string {
	sentences := Split(text)
	if n <= 0 {
		return []string{}
	}
	if len(sentences) > n {
		sentences = sentences[len(sentences)-n:]
	}
	return sentences
}
