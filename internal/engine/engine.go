package engine

// #region imports
import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #endregion

// #region contract

// ErrExecution wraps engine failures. The wrapped message carries the
// engine's own text verbatim for repair feedback.
var ErrExecution = errors.New("execution failed")

// Result holds the rows of one successful execution. Values are formatted
// as strings: the synthesizer consumes them as prompt text and the batch
// contract serializes them as JSON.
type Result struct {
	Columns []string
	Rows    [][]string
	// Truncated is set when the row cap cut the result short.
	Truncated bool
}

// Engine is the data-engine boundary. The agent only ever reads.
type Engine interface {
	Execute(ctx context.Context, query string) (Result, error)
}

// Config configures the SQLite executor.
type Config struct {
	Path    string
	Timeout time.Duration
	MaxRows int
}

// #endregion

// #region friendly-views

// friendlyViews gives small models lowercase, space-free names for the
// awkward legacy tables. Idempotent startup bootstrap, not a migration.
var friendlyViews = []struct {
	name string
	stmt string
}{
	{"order_details", `CREATE VIEW IF NOT EXISTS order_details AS
		SELECT OrderID, ProductID, UnitPrice, Quantity, Discount FROM "Order Details"`},
	{"orders", `CREATE VIEW IF NOT EXISTS orders AS SELECT * FROM Orders`},
	{"products", `CREATE VIEW IF NOT EXISTS products AS SELECT * FROM Products`},
	{"categories", `CREATE VIEW IF NOT EXISTS categories AS SELECT * FROM Categories`},
}

// #endregion

// #region sqlite-engine

// SQLiteEngine executes read-only queries against a local SQLite database.
type SQLiteEngine struct {
	db      *sql.DB
	timeout time.Duration
	maxRows int
}

// Open opens the database, bootstraps the friendly views, then locks the
// connection into query-only mode for the rest of the process lifetime.
func Open(cfg Config) (*SQLiteEngine, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", cfg.Path, err)
	}
	// query_only is per-connection; a single pooled connection makes the
	// pragma stick for every subsequent Execute.
	db.SetMaxOpenConns(1)

	for _, v := range friendlyViews {
		if _, err := db.Exec(v.stmt); err != nil {
			// The underlying table may be absent in trimmed fixtures;
			// skip the view rather than failing startup.
			continue
		}
	}

	if _, err := db.Exec("PRAGMA query_only=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma query_only: %w", err)
	}

	return &SQLiteEngine{db: db, timeout: cfg.Timeout, maxRows: cfg.MaxRows}, nil
}

// Close closes the underlying database connection.
func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}

// #endregion

// #region execute

// Execute runs one query with the configured timeout. Engine errors come
// back verbatim in the error message so the repair loop can feed them to
// the generator.
func (e *SQLiteEngine) Execute(ctx context.Context, query string) (Result, error) {
	execCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rows, err := e.db.QueryContext(execCtx, query)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExecution, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("columns: %w", err)
	}

	result := Result{Columns: cols}
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}

	for rows.Next() {
		if e.maxRows > 0 && len(result.Rows) >= e.maxRows {
			result.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range raw {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// formatValue renders a scanned value for prompts and JSON output.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case float64:
		// %v keeps integers clean (10 not 10.000000) while preserving
		// fractional values.
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// #endregion
