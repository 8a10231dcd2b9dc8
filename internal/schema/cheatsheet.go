package schema

// #region imports
import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// #endregion

// #region types

// Column is one permitted column with its declared type.
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Table is one permitted table with its ordered column list.
type Table struct {
	Name    string   `yaml:"name"`
	Columns []Column `yaml:"columns"`
}

// CheatSheet is the complete schema surface exposed to SQL generation.
/// It is the only schema knowledge the generator ever sees: a column absent
// from this list does not exist as far as generation is concerned.
// Immutable after Load.
type CheatSheet struct {
	Tables []Table `yaml:"tables"`
}

// #endregion

// #region load

// Load reads the cheat sheet YAML at path. A missing or empty sheet is
// fatal: generation cannot be constrained without it.
func Load(path string) (*CheatSheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema sheet %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes cheat sheet YAML.
func Parse(data []byte) (*CheatSheet, error) {
	var cs CheatSheet
	if err := yaml.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("parse schema sheet: %w", err)
	}
	if len(cs.Tables) == 0 {
		return nil, fmt.Errorf("schema sheet lists no tables")
	}
	for _, t := range cs.Tables {
		if t.Name == "" || len(t.Columns) == 0 {
			return nil, fmt.Errorf("schema sheet table %q has no columns", t.Name)
		}
	}
	return &cs, nil
}

// #endregion

// #region lookups

// HasTable reports whether the sheet permits the table (case-insensitive).
func (cs *CheatSheet) HasTable(name string) bool {
	for _, t := range cs.Tables {
		if strings.EqualFold(t.Name, name) {
			return true
		}
	}
	return false
}

// HasColumn reports whether the sheet permits the column on the table.
func (cs *CheatSheet) HasColumn(table, column string) bool {
	for _, t := range cs.Tables {
		if !strings.EqualFold(t.Name, table) {
			continue
		}
		for _, c := range t.Columns {
			if strings.EqualFold(c.Name, column) {
				return true
			}
		}
	}
	return false
}

// #endregion

// #region render

// Render produces the schema block embedded in generation prompts,
// including the fixed query rules the retail database requires.
func (cs *CheatSheet) Render() string {
	var b strings.Builder
	b.WriteString("Database Schema (SQLite):\n")
	for _, t := range cs.Tables {
		fmt.Fprintf(&b, "Table: %s\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s (%s)\n", c.Name, c.Type)
		}
		b.WriteString("\n")
	}
	b.WriteString("Rules:\n")
	b.WriteString("- Use ONLY the tables and columns listed above.\n")
	b.WriteString("- For revenue: SUM(UnitPrice * Quantity * (1 - Discount)).\n")
	b.WriteString("- Dates are stored as 'YYYY-MM-DD' strings; compare them as strings, e.g. OrderDate >= '1997-06-01'.\n")
	b.WriteString("- Write exactly one SELECT statement. No INSERT, UPDATE, DELETE, or DDL.\n")
	return b.String()
}

// #endregion
