package agent

// #region imports
import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kdowney/storewise/internal/engine"
	"github.com/kdowney/storewise/internal/llm"
	"github.com/kdowney/storewise/internal/planner"
	"github.com/kdowney/storewise/internal/retrieval"
	"github.com/kdowney/storewise/internal/router"
	"github.com/kdowney/storewise/internal/sqlgen"
)

// #endregion

// #region agent

// Agent runs the question-answering workflow: route, retrieve, plan,
// generate+execute with bounded repair, synthesize. Each run owns its own
// State; the Agent itself holds only immutable collaborators and is safe
// for concurrent runs.
type Agent struct {
	router    *router.Router
	index     *retrieval.Index
	planner   *planner.Planner
	generator *sqlgen.Generator
	engine    engine.Engine

	client       llm.Client
	inferTimeout time.Duration
	maxTokens    int
	maxRepairs   int
}

// Deps are the collaborators an Agent needs. All fields are required except
// MaxTokens, which defaults to 1000.
type Deps struct {
	Router    *router.Router
	Index     *retrieval.Index
	Planner   *planner.Planner
	Generator *sqlgen.Generator
	Engine    engine.Engine

	Client           llm.Client
	InferenceTimeout time.Duration
	MaxTokens        int
	MaxRepairs       int
}

// New assembles an Agent from its dependencies.
func New(d Deps) *Agent {
	if d.MaxTokens <= 0 {
		d.MaxTokens = 1000
	}
	return &Agent{
		router:       d.Router,
		index:        d.Index,
		planner:      d.Planner,
		generator:    d.Generator,
		engine:       d.Engine,
		client:       d.Client,
		inferTimeout: d.InferenceTimeout,
		maxTokens:    d.MaxTokens,
		maxRepairs:   d.MaxRepairs,
	}
}

// #endregion

// #region run

// Run executes the full workflow for one query and returns the terminal
// state. Only context cancellation aborts a run; every node failure
// degrades into the answer instead of erroring out.
func (a *Agent) Run(ctx context.Context, query, formatHint string) (*State, error) {
	st := &State{
		RunID:      uuid.NewString(),
		Query:      query,
		FormatHint: formatHint,
		CreatedAt:  time.Now().UTC(),
	}
	log.Printf("[AGENT] run %s: %q", st.RunID, query)

	// Route. Never fails; unparseable classifications fall back to hybrid.
	decision := a.router.Route(ctx, query)
	st.apply(delta{routing: &decision})
	if err := ctx.Err(); err != nil {
		return st, fmt.Errorf("run %s: %w", st.RunID, err)
	}

	// Retrieve. Deterministic, no inference involved.
	if st.Routing.Intent.RequiresRetrieval() {
		chunks := a.index.Search(query)
		log.Printf("[AGENT] retrieved %d chunks", len(chunks))
		st.apply(delta{chunks: chunks, chunksSet: true})
	}
	if err := ctx.Err(); err != nil {
		return st, fmt.Errorf("run %s: %w", st.RunID, err)
	}

	// Plan. Skipped entirely when retrieval returned nothing (or never ran):
	// there is no context to derive constraints from.
	if len(st.Chunks) > 0 {
		constraints := a.planner.Extract(ctx, query, st.Chunks)
		st.apply(delta{constraints: constraints, constraintsSet: true})
	}
	if err := ctx.Err(); err != nil {
		return st, fmt.Errorf("run %s: %w", st.RunID, err)
	}

	// Generate and execute under the repair budget.
	if st.Routing.Intent.RequiresSQL() {
		attempts := a.runSQL(ctx, st)
		st.apply(delta{attempts: attempts})
	}
	if err := ctx.Err(); err != nil {
		return st, fmt.Errorf("run %s: %w", st.RunID, err)
	}

	// Synthesize from whatever evidence materialized.
	st.apply(delta{answer: a.synthesize(ctx, st)})
	log.Printf("[AGENT] run %s done: confidence=%s attempts=%d",
		st.RunID, st.Answer.Confidence, len(st.Attempts))
	return st, nil
}

// #endregion
