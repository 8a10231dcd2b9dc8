package sqlgen

// #region imports
import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// #endregion

// #region errors

// ErrSanitization marks a candidate that violates the read-only
// single-statement rule. Such a candidate never reaches the engine; the
// repair controller counts it as a failed attempt.
var ErrSanitization = errors.New("sqlgen: candidate failed sanitization")

// #endregion

// #region forbidden

// forbiddenVerbs are rejected anywhere in the candidate, as whole words.
// The list is deliberately broad: this agent only ever reads.
var forbiddenVerbs = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"ALTER": true, "CREATE": true, "REPLACE": true, "TRUNCATE": true,
	"ATTACH": true, "DETACH": true, "VACUUM": true, "PRAGMA": true,
	"REINDEX": true, "GRANT": true, "REVOKE": true,
}

// #endregion

// #region sanitize

// Sanitize validates that the candidate is exactly one read-only statement.
// It returns the trimmed statement or ErrSanitization.
func Sanitize(candidate string) (string, error) {
	// Exactly one trailing terminator is tolerated; more means chaining.
	stmt := strings.TrimSpace(candidate)
	stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	if stmt == "" {
		return "", fmt.Errorf("%w: empty statement", ErrSanitization)
	}

	// A remaining semicolon means statement chaining, regardless of what
	// the second statement is.
	if strings.ContainsRune(stmt, ';') {
		return "", fmt.Errorf("%w: multiple statements", ErrSanitization)
	}

	words := splitWords(stmt)
	if len(words) == 0 {
		return "", fmt.Errorf("%w: no keywords", ErrSanitization)
	}
	if first := words[0]; first != "SELECT" && first != "WITH" {
		return "", fmt.Errorf("%w: statement must start with SELECT or WITH, got %s", ErrSanitization, first)
	}
	for _, w := range words {
		if forbiddenVerbs[w] {
			return "", fmt.Errorf("%w: forbidden verb %s", ErrSanitization, w)
		}
	}
	return stmt, nil
}

// splitWords returns the uppercase word tokens of the statement. Word
// boundaries keep identifiers like LastUpdate from tripping UPDATE.
func splitWords(stmt string) []string {
	fields := strings.FieldsFunc(stmt, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	words := make([]string, len(fields))
	for i, f := range fields {
		words[i] = strings.ToUpper(f)
	}
	return words
}

// #endregion

// #region fences

// stripFences removes markdown code fences small models love to emit.
func stripFences(text string) string {
	text = strings.ReplaceAll(text, "```sql", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// #endregion
