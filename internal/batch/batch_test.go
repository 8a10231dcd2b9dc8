package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kdowney/storewise/internal/agent"
	"github.com/kdowney/storewise/internal/corpus"
	"github.com/kdowney/storewise/internal/engine"
	"github.com/kdowney/storewise/internal/llm"
	"github.com/kdowney/storewise/internal/planner"
	"github.com/kdowney/storewise/internal/retrieval"
	"github.com/kdowney/storewise/internal/router"
	"github.com/kdowney/storewise/internal/schema"
	"github.com/kdowney/storewise/internal/sqlgen"
	"github.com/kdowney/storewise/internal/trace"
)

type fixedEngine struct {
	res engine.Result
	err error
}

func (f *fixedEngine) Execute(ctx context.Context, query string) (engine.Result, error) {
	return f.res, f.err
}

func newTestAgent(t *testing.T, client *llm.ScriptedClient, eng engine.Engine) *agent.Agent {
	t.Helper()
	sheet, err := schema.Parse([]byte(`
tables:
  - name: Orders
    columns:
      - {name: OrderID, type: INTEGER}
      - {name: OrderDate, type: TEXT}
`))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}

	chunks := []corpus.Chunk{{
		ID:        "retail_policy.md::chunk0",
		Document:  "retail_policy.md",
		CleanName: "retail policy",
		Text:      "Source: retail policy\nContent: Returns accepted within 30 days.",
	}}
	timeout := time.Second

	return agent.New(agent.Deps{
		Router:           router.New(nil, client, timeout),
		Index:            retrieval.NewIndex(chunks, retrieval.DefaultConfig()),
		Planner:          planner.New(client, timeout),
		Generator:        sqlgen.New(client, sheet, nil, timeout),
		Engine:           eng,
		Client:           client,
		InferenceTimeout: timeout,
		MaxRepairs:       2,
	})
}

func decodeResponses(t *testing.T, out *bytes.Buffer) []Response {
	t.Helper()
	var responses []Response
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var resp Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("malformed output line %q: %v", line, err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestRun_ProcessesRecordsInOrder(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.Reply{Text: "sql"},
		llm.Reply{Text: "SELECT COUNT(*) FROM Orders"},
		llm.Reply{Text: `{"answer": "830", "citations": [{"claim": "830", "source": "sql-attempt-0"}]}`},
	)
	eng := &fixedEngine{res: engine.Result{Columns: []string{"n"}, Rows: [][]string{{"830"}}}}
	runner := NewRunner(newTestAgent(t, client, eng), nil)

	in := strings.NewReader(`{"id": "q1", "query": "How many orders?", "format_hint": "int"}` + "\n")
	var out bytes.Buffer
	if err := runner.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	responses := decodeResponses(t, &out)
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	r := responses[0]
	if r.ID != "q1" || r.Answer != "830" || r.Intent != "sql" || r.Confidence != "full" {
		t.Errorf("response = %+v", r)
	}
	if r.SQLAttempts != 1 || len(r.Citations) != 1 {
		t.Errorf("attempts=%d citations=%d", r.SQLAttempts, len(r.Citations))
	}
}

func TestRun_IsolatesBadRecords(t *testing.T) {
	// The good record comes after two bad ones and must still be answered.
	client := llm.NewScriptedClient(
		llm.Reply{Text: "sql"},
		llm.Reply{Text: "SELECT COUNT(*) FROM Orders"},
		llm.Reply{Text: `{"answer": "830", "citations": [{"claim": "830", "source": "sql-attempt-0"}]}`},
	)
	eng := &fixedEngine{res: engine.Result{Columns: []string{"n"}, Rows: [][]string{{"830"}}}}
	runner := NewRunner(newTestAgent(t, client, eng), nil)

	in := strings.NewReader(strings.Join([]string{
		`not json at all`,
		`{"id": "q-empty", "query": ""}`,
		``,
		`{"id": "q2", "query": "How many orders?"}`,
	}, "\n"))
	var out bytes.Buffer
	if err := runner.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	responses := decodeResponses(t, &out)
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3 (blank line skipped)", len(responses))
	}
	if responses[0].Error == "" {
		t.Error("malformed record produced no error response")
	}
	if responses[1].ID != "q-empty" || responses[1].Error == "" {
		t.Errorf("empty query response = %+v", responses[1])
	}
	if responses[2].ID != "q2" || responses[2].Answer != "830" {
		t.Errorf("good record response = %+v", responses[2])
	}
}

func TestRun_FailedRunIsReportedInLine(t *testing.T) {
	// Every attempt fails; the record still yields a well-formed response
	// with failed confidence, not a batch abort.
	client := llm.NewScriptedClient(
		llm.Reply{Text: "sql"},
		llm.Reply{Text: "SELECT Bad FROM Orders"},
		llm.Reply{Text: "SELECT Bad FROM Orders"},
		llm.Reply{Text: "SELECT Bad FROM Orders"},
	)
	eng := &fixedEngine{err: errors.New("no such column: Bad")}
	runner := NewRunner(newTestAgent(t, client, eng), nil)

	in := strings.NewReader(`{"id": "q3", "query": "select the bad column"}` + "\n")
	var out bytes.Buffer
	if err := runner.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	responses := decodeResponses(t, &out)
	if len(responses) != 1 {
		t.Fatalf("got %d responses", len(responses))
	}
	if responses[0].Confidence != "failed" || responses[0].SQLAttempts != 3 {
		t.Errorf("response = %+v", responses[0])
	}
}

func TestRun_PersistsTraces(t *testing.T) {
	client := llm.NewScriptedClient(
		llm.Reply{Text: "sql"},
		llm.Reply{Text: "SELECT COUNT(*) FROM Orders"},
		llm.Reply{Text: `{"answer": "830", "citations": [{"claim": "830", "source": "sql-attempt-0"}]}`},
	)
	eng := &fixedEngine{res: engine.Result{Columns: []string{"n"}, Rows: [][]string{{"830"}}}}

	store, err := trace.Open(filepath.Join(t.TempDir(), "trace.db"))
	if err != nil {
		t.Fatalf("open trace store: %v", err)
	}
	defer store.Close()

	runner := NewRunner(newTestAgent(t, client, eng), store)
	in := strings.NewReader(`{"id": "q4", "query": "How many orders?"}` + "\n")
	var out bytes.Buffer
	if err := runner.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	runs, err := store.ListRuns(10)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Query != "How many orders?" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestRun_CancelledContextAbortsBatch(t *testing.T) {
	runner := NewRunner(newTestAgent(t, llm.NewScriptedClient(), &fixedEngine{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := strings.NewReader(`{"id": "q5", "query": "anything"}` + "\n")
	var out bytes.Buffer
	if err := runner.Run(ctx, in, &out); err == nil {
		t.Fatal("expected cancellation error")
	}
}
