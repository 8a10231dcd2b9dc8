package agent

// #region imports
import (
	"fmt"
	"time"

	"github.com/kdowney/storewise/internal/engine"
	"github.com/kdowney/storewise/internal/planner"
	"github.com/kdowney/storewise/internal/retrieval"
	"github.com/kdowney/storewise/internal/router"
)

// #endregion

// #region attempt

// AttemptStatus is the lifecycle state of one SQL attempt.
type AttemptStatus string

const (
	AttemptPending AttemptStatus = "pending"
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
)

// SQLAttempt records one generation+execution attempt. The attempt list is
// append-only; entries are never mutated after creation. A successful
// attempt has Result and no Error; a failed attempt has Error and no Result.
type SQLAttempt struct {
	Number int
	Query  string
	Status AttemptStatus
	Error  string
	Result *engine.Result
}

// CitationID returns the identifier citations use to reference this attempt.
func (a SQLAttempt) CitationID() string {
	return fmt.Sprintf("sql-attempt-%d", a.Number)
}

// #endregion

// #region answer

// Confidence grades how fully the evidence supported the answer.
type Confidence string

const (
	ConfidenceFull    Confidence = "full"
	ConfidencePartial Confidence = "partial"
	ConfidenceFailed  Confidence = "failed"
)

// Citation ties a claim in the final answer to its evidence: a corpus chunk
// ID or a SQL attempt ID from the same run.
type Citation struct {
	Claim  string `json:"claim"`
	Source string `json:"source"`
}

// FinalAnswer is the terminal artifact of a run. Immutable once produced.
type FinalAnswer struct {
	Text       string
	Citations  []Citation
	Confidence Confidence
}

// #endregion

// #region state

// State is the single mutable record threaded through one workflow run.
// It is owned exclusively by the orchestrator: nodes receive a read view
// and return a delta the orchestrator merges. Nothing here is shared
// across concurrent runs.
type State struct {
	RunID      string
	Query      string
	FormatHint string
	CreatedAt  time.Time

	Routing     *router.Decision
	Chunks      []retrieval.ScoredChunk
	Constraints []planner.Constraint
	Attempts    []SQLAttempt
	Answer      *FinalAnswer
}

// delta is a node's contribution to the state. Nil/unset fields leave the
// state untouched; the *Set flags distinguish "empty result" from "not run".
type delta struct {
	routing        *router.Decision
	chunks         []retrieval.ScoredChunk
	chunksSet      bool
	constraints    []planner.Constraint
	constraintsSet bool
	attempts       []SQLAttempt
	answer         *FinalAnswer
}

// apply merges a delta. The routing decision is set exactly once per run;
// later deltas cannot overwrite it.
func (s *State) apply(d delta) {
	if d.routing != nil && s.Routing == nil {
		s.Routing = d.routing
	}
	if d.chunksSet {
		s.Chunks = d.chunks
	}
	if d.constraintsSet {
		s.Constraints = d.constraints
	}
	if len(d.attempts) > 0 {
		s.Attempts = append(s.Attempts, d.attempts...)
	}
	if d.answer != nil && s.Answer == nil {
		s.Answer = d.answer
	}
}

// ChunkIDs returns the IDs of all retrieved chunks, in rank order.
func (s *State) ChunkIDs() []string {
	ids := make([]string, len(s.Chunks))
	for i, c := range s.Chunks {
		ids[i] = c.Chunk.ID
	}
	return ids
}

// SuccessfulAttempt returns the successful attempt, if any.
func (s *State) SuccessfulAttempt() *SQLAttempt {
	for i := range s.Attempts {
		if s.Attempts[i].Status == AttemptSuccess {
			return &s.Attempts[i]
		}
	}
	return nil
}

// #endregion
