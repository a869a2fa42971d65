package opportunity

import "strings"

// normalizeKeyword canonicalizes a keyword for map lookup.
func normalizeKeyword(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// Lookup finds the scored result for a keyword, if any.
func Lookup(scored map[string]ScoredSignal, keyword string) (ScoredSignal, bool) {
	r, ok := scored[normalizeKeyword(keyword)]
	return r, ok
}
