package search

import (
	"strings"
	"unicode"
)

// Stop words ignored when checking for verbatim matches
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "at": true, "this": true, "but": true, "by": true, "from": true,
	"or": true, "what": true, "how": true, "which": true, "does": true,
}

// tokenize splits text on anything that isn't a letter or digit, lowercases,
// and drops stop words.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	filtered := words[:0]
	for _, word := range words {
		if !stopWords[word] {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// containsAllQueryWords reports whether every non-stop word of query appears in text.
func containsAllQueryWords(text, query string) bool {
	queryWords := tokenize(query)
	if len(queryWords) == 0 {
		return false
	}

	textWords := make(map[string]struct{})
	for _, word := range tokenize(text) {
		textWords[word] = struct{}{}
	}
	for _, word := range queryWords {
		if _, ok := textWords[word]; !ok {
			return false
		}
	}
	return true
}

// Preview returns the first width runes of text on a single line,
// with "..." appended when it was cut.
func Preview(text string, width int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if width <= 0 || len(runes) <= width {
		return flat
	}
	return string(runes[:width]) + "..."
}
