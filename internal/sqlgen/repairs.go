package sqlgen

// #region imports
import (
	"regexp"
	"strings"
)

// #endregion

// #region repair-table

// IdentifierRepair is one known wrong→right identifier substitution.
type IdentifierRepair struct {
	From string
	To   string
}

// DefaultRepairs maps identifiers small models reliably get wrong on the
// retail schema. Applied before every execution, independent of any error
// feedback.
func DefaultRepairs() []IdentifierRepair {
	return []IdentifierRepair{
		{From: `"Order Details"`, To: "order_details"},
		{From: "Order Details", To: "order_details"},
		{From: "ShipDate", To: "OrderDate"},
	}
}

// #endregion

// #region apply

// ApplyRepairs rewrites every known-wrong identifier in the statement.
// Plain identifiers are replaced on word boundaries; quoted or multi-word
// forms are replaced literally.
func ApplyRepairs(stmt string, repairs []IdentifierRepair) string {
	for _, r := range repairs {
		if isPlainIdentifier(r.From) {
			re := regexp.MustCompile(`\b` + regexp.QuoteMeta(r.From) + `\b`)
			stmt = re.ReplaceAllString(stmt, r.To)
		} else {
			stmt = strings.ReplaceAll(stmt, r.From, r.To)
		}
	}
	return stmt
}

func isPlainIdentifier(s string) bool {
	for _, r := range s {
		if r == ' ' || r == '"' || r == '\'' || r == '`' || r == '[' {
			return false
		}
	}
	return true
}

// #endregion
