package trace

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kdowney/storewise/internal/agent"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	query           TEXT NOT NULL,
	format_hint     TEXT,
	intent          TEXT NOT NULL,
	route_source    TEXT NOT NULL,
	route_rationale TEXT,
	chunk_ids       TEXT,
	constraints     TEXT,
	answer_text     TEXT,
	confidence      TEXT,
	citations       TEXT,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sql_attempts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL,
	attempt_number INTEGER NOT NULL,
	query          TEXT,
	status         TEXT NOT NULL,
	error          TEXT,
	row_count      INTEGER,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region records

// RunRecord is the stored form of one completed run.
type RunRecord struct {
	RunID          string
	Query          string
	FormatHint     string
	Intent         string
	RouteSource    string
	RouteRationale string
	ChunkIDs       []string
	Constraints    []ConstraintRecord
	AnswerText     string
	Confidence     string
	Citations      []agent.Citation
	CreatedAt      time.Time
	Attempts       []AttemptRecord
}

// ConstraintRecord is the stored form of one extracted constraint.
type ConstraintRecord struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Derivation string `json:"derivation,omitempty"`
}

// AttemptRecord is the stored form of one SQL attempt.
type AttemptRecord struct {
	Number   int
	Query    string
	Status   string
	Error    string
	RowCount int
}

// #endregion records

// #region store

// Store persists completed run traces in SQLite for later inspection.
// Writes are best-effort from the caller's point of view: a trace failure
// must never fail the run that produced it.
type Store struct {
	db *sql.DB
}

// Open opens the trace database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion store

// #region record

// Record persists the terminal state of one run, attempts included,
// atomically.
func (s *Store) Record(st *agent.State) error {
	if st.Routing == nil {
		return fmt.Errorf("record run %s: no routing decision", st.RunID)
	}

	chunkJSON, err := json.Marshal(st.ChunkIDs())
	if err != nil {
		return fmt.Errorf("marshal chunk ids: %w", err)
	}

	constraints := make([]ConstraintRecord, 0, len(st.Constraints))
	for _, c := range st.Constraints {
		constraints = append(constraints, ConstraintRecord{Name: c.Name, Value: c.Value, Derivation: c.Derivation})
	}
	constraintJSON, err := json.Marshal(constraints)
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}

	answerText, confidence := "", ""
	var citationJSON []byte
	if st.Answer != nil {
		answerText = st.Answer.Text
		confidence = string(st.Answer.Confidence)
		citationJSON, err = json.Marshal(st.Answer.Citations)
		if err != nil {
			return fmt.Errorf("marshal citations: %w", err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, query, format_hint, intent, route_source, route_rationale,
		                   chunk_ids, constraints, answer_text, confidence, citations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.RunID, st.Query, st.FormatHint,
		string(st.Routing.Intent), string(st.Routing.Source), st.Routing.Rationale,
		string(chunkJSON), string(constraintJSON),
		answerText, confidence, string(citationJSON),
		st.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, a := range st.Attempts {
		rowCount := 0
		if a.Result != nil {
			rowCount = len(a.Result.Rows)
		}
		_, err = tx.Exec(
			`INSERT INTO sql_attempts (run_id, attempt_number, query, status, error, row_count)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			st.RunID, a.Number, a.Query, string(a.Status), a.Error, rowCount,
		)
		if err != nil {
			return fmt.Errorf("insert attempt %d: %w", a.Number, err)
		}
	}

	return tx.Commit()
}

// #endregion record

// #region get-run

// GetRun retrieves a stored run with its attempts.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	var rec RunRecord
	var chunkJSON, constraintJSON, citationJSON sql.NullString
	var createdStr string

	err := s.db.QueryRow(
		`SELECT run_id, query, format_hint, intent, route_source, route_rationale,
		        chunk_ids, constraints, answer_text, confidence, citations, created_at
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&rec.RunID, &rec.Query, &rec.FormatHint, &rec.Intent, &rec.RouteSource,
		&rec.RouteRationale, &chunkJSON, &constraintJSON, &rec.AnswerText,
		&rec.Confidence, &citationJSON, &createdStr)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}

	if chunkJSON.Valid && chunkJSON.String != "" {
		if err := json.Unmarshal([]byte(chunkJSON.String), &rec.ChunkIDs); err != nil {
			return RunRecord{}, fmt.Errorf("unmarshal chunk ids: %w", err)
		}
	}
	if constraintJSON.Valid && constraintJSON.String != "" {
		if err := json.Unmarshal([]byte(constraintJSON.String), &rec.Constraints); err != nil {
			return RunRecord{}, fmt.Errorf("unmarshal constraints: %w", err)
		}
	}
	if citationJSON.Valid && citationJSON.String != "" {
		if err := json.Unmarshal([]byte(citationJSON.String), &rec.Citations); err != nil {
			return RunRecord{}, fmt.Errorf("unmarshal citations: %w", err)
		}
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	rows, err := s.db.Query(
		`SELECT attempt_number, query, status, error, row_count
		 FROM sql_attempts WHERE run_id = ? ORDER BY attempt_number`, runID,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a AttemptRecord
		if err := rows.Scan(&a.Number, &a.Query, &a.Status, &a.Error, &a.RowCount); err != nil {
			return RunRecord{}, fmt.Errorf("scan attempt: %w", err)
		}
		rec.Attempts = append(rec.Attempts, a)
	}
	return rec, rows.Err()
}

// #endregion get-run

// #region list-runs

// ListRuns returns the most recent runs, attempts omitted.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, query, intent, confidence, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var createdStr string
		if err := rows.Scan(&rec.RunID, &rec.Query, &rec.Intent, &rec.Confidence, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion list-runs
