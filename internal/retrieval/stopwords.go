package retrieval

import (
	"strings"
	"unicode"
)

// #region stopwords
// stopwords contains common English words excluded from indexing and queries.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "what": true, "which": true, "who": true, "how": true,
	"when": true, "where": true, "why": true, "you": true, "me": true,
	"i": true, "my": true, "your": true, "we": true, "they": true,
	"he": true, "she": true, "her": true, "him": true, "us": true,
	"them": true,
}

// tokenize splits text into lowercase non-stopword tokens, keeping
// duplicates so term frequency is preserved for scoring.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var tokens []string
	for _, w := range words {
		if len(w) < 2 || stopwords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// uniqueTokens returns tokenize output with duplicates removed, preserving
// first-seen order. Used for query-side matching.
func uniqueTokens(text string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, t := range tokenize(text) {
		if seen[t] {
			continue
		}
		seen[t] = true
		tokens = append(tokens, t)
	}
	return tokens
}

// #endregion stopwords
