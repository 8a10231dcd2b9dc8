package sqlgen

import (
	"errors"
	"testing"
)

func TestSanitize_AcceptsSingleSelect(t *testing.T) {
	stmt, err := Sanitize("SELECT SUM(UnitPrice * Quantity) FROM order_details;")
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if stmt != "SELECT SUM(UnitPrice * Quantity) FROM order_details" {
		t.Errorf("stmt = %q", stmt)
	}
}

func TestSanitize_AcceptsCTE(t *testing.T) {
	if _, err := Sanitize("WITH summer AS (SELECT * FROM orders) SELECT COUNT(*) FROM summer"); err != nil {
		t.Errorf("CTE rejected: %v", err)
	}
}

func TestSanitize_RejectsWriteVerbs(t *testing.T) {
	cases := []string{
		"INSERT INTO orders VALUES (1)",
		"UPDATE orders SET Freight = 0",
		"DELETE FROM orders",
		"DROP TABLE orders",
		"ALTER TABLE orders ADD COLUMN x",
		"SELECT * FROM orders WHERE OrderID IN (DELETE FROM orders)",
		"PRAGMA table_info(orders)",
	}
	for _, c := range cases {
		if _, err := Sanitize(c); !errors.Is(err, ErrSanitization) {
			t.Errorf("Sanitize(%q) err = %v, want ErrSanitization", c, err)
		}
	}
}

func TestSanitize_RejectsStatementChaining(t *testing.T) {
	// The second statement is read-only, but chaining is still rejected.
	cases := []string{
		"SELECT 1; SELECT 2",
		"SELECT 1; DROP TABLE orders",
		"SELECT 1;;",
	}
	for _, c := range cases {
		if _, err := Sanitize(c); !errors.Is(err, ErrSanitization) {
			t.Errorf("Sanitize(%q) err = %v, want ErrSanitization", c, err)
		}
	}
}

func TestSanitize_RejectsNonSelectStart(t *testing.T) {
	if _, err := Sanitize("EXPLAIN SELECT 1"); !errors.Is(err, ErrSanitization) {
		t.Errorf("expected rejection for non-SELECT start, got %v", err)
	}
	if _, err := Sanitize(""); !errors.Is(err, ErrSanitization) {
		t.Errorf("expected rejection for empty candidate, got %v", err)
	}
}

func TestSanitize_WordBoundaries(t *testing.T) {
	// Identifiers containing forbidden verbs as substrings must pass.
	ok := []string{
		"SELECT LastUpdate FROM products",
		"SELECT Created, DeletedFlag FROM orders",
	}
	for _, c := range ok {
		if _, err := Sanitize(c); err != nil {
			t.Errorf("Sanitize(%q) rejected: %v", c, err)
		}
	}
}

func TestStripFences(t *testing.T) {
	got := stripFences("```sql\nSELECT 1\n```")
	if got != "SELECT 1" {
		t.Errorf("stripFences = %q", got)
	}
}
