package batch

// #region imports
import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/kdowney/storewise/internal/agent"
	"github.com/kdowney/storewise/internal/trace"
)

// #endregion

// #region contract

// Request is one input line of a batch file.
type Request struct {
	ID         string `json:"id"`
	Query      string `json:"query"`
	FormatHint string `json:"format_hint,omitempty"`
}

// Response is one output line. Error is set only for records that could not
// produce an answer; the batch itself continues regardless.
type Response struct {
	ID          string           `json:"id"`
	Answer      string           `json:"answer,omitempty"`
	Citations   []agent.Citation `json:"citations,omitempty"`
	Intent      string           `json:"intent,omitempty"`
	SQLAttempts int              `json:"sql_attempts"`
	Confidence  string           `json:"confidence,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// #endregion

// #region runner

// Runner processes JSONL question batches sequentially. Records are
// isolated: one malformed line or failed run is reported on its own output
// line and the rest of the batch proceeds.
type Runner struct {
	agent  *agent.Agent
	traces *trace.Store // optional
}

// NewRunner creates a Runner. traces may be nil to skip persistence.
func NewRunner(a *agent.Agent, traces *trace.Store) *Runner {
	return &Runner{agent: a, traces: traces}
}

// Run reads JSONL requests from in and writes one JSONL response per record
// to out, in input order. Only context cancellation aborts the batch.
func (r *Runner) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(out)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("batch aborted at line %d: %w", lineNo, err)
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			log.Printf("[BATCH] line %d: malformed record: %v", lineNo, err)
			if encErr := enc.Encode(Response{Error: fmt.Sprintf("malformed record: %v", err)}); encErr != nil {
				return fmt.Errorf("write response: %w", encErr)
			}
			continue
		}

		resp := r.process(ctx, req)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("batch aborted at line %d: %w", lineNo, err)
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read batch: %w", err)
	}
	log.Printf("[BATCH] processed %d lines", lineNo)
	return nil
}

// process runs one record through the workflow.
func (r *Runner) process(ctx context.Context, req Request) Response {
	if req.Query == "" {
		return Response{ID: req.ID, Error: "empty query"}
	}

	st, err := r.agent.Run(ctx, req.Query, req.FormatHint)
	if err != nil {
		return Response{ID: req.ID, Error: err.Error()}
	}

	if r.traces != nil {
		// Trace persistence never fails the record.
		if err := r.traces.Record(st); err != nil {
			log.Printf("[TRACE] record run %s: %v", st.RunID, err)
		}
	}

	return Response{
		ID:          req.ID,
		Answer:      st.Answer.Text,
		Citations:   st.Answer.Citations,
		Intent:      string(st.Routing.Intent),
		SQLAttempts: len(st.Attempts),
		Confidence:  string(st.Answer.Confidence),
	}
}

// #endregion
