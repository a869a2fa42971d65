package coverage

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// NormalizeQuestion canonicalizes a question for use as a merge key:
// lowercase, trimmed, internal whitespace collapsed, trailing punctuation
// stripped. Stricter than plain case-insensitive trim to reduce key
// fragmentation across articles.
func NormalizeQuestion(q string) string {
	q = strings.ToLower(strings.TrimSpace(q))
	q = whitespaceRE.ReplaceAllString(q, " ")
	q = strings.TrimRightFunc(q, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return q
}

// IsFullQuestion reports whether a string looks like a complete interrogative
// sentence rather than a keyword fragment. Extractor output failing this shape
// is dropped, never stored verbatim.
func IsFullQuestion(q string) bool {
	q = strings.TrimSpace(q)
	if !strings.HasSuffix(q, "?") {
		return false
	}
	// A keyword fragment like "ai photo?" is not a question.
	return len(strings.Fields(q)) >= 3
}
