package agent

// #region imports
import (
	"context"
	"log"

	"github.com/kdowney/storewise/internal/sqlgen"
)

// #endregion

// #region phases

// sqlPhase is a state of the repair sub-machine.
type sqlPhase string

const (
	phaseGenerating sqlPhase = "generating"
	phaseExecuting  sqlPhase = "executing"
	phaseRetrying   sqlPhase = "retrying"
	phaseSuccess    sqlPhase = "success"
	phaseExhausted  sqlPhase = "exhausted"
)

// #endregion

// #region run-sql

// runSQL drives GENERATING → EXECUTING → {SUCCESS | RETRYING | EXHAUSTED}.
// A plain counter-guarded loop, not recursion: the attempt count can never
// exceed maxRepairs+1. Generation failures (timeout, malformed completion,
// sanitization) consume the same budget as execution failures. Each retry
// carries the failed attempt's query and error text back into generation.
func (a *Agent) runSQL(ctx context.Context, st *State) []SQLAttempt {
	var attempts []SQLAttempt
	prevQuery, prevError := "", ""

	phase := phaseGenerating
	for phase != phaseSuccess && phase != phaseExhausted {
		if err := ctx.Err(); err != nil {
			break
		}
		if phase == phaseRetrying {
			phase = phaseGenerating
		}

		n := len(attempts)
		log.Printf("[EXEC] attempt %d: phase=%s", n, phase)

		stmt, genErr := a.generator.Generate(ctx, sqlgen.Request{
			Query:       st.Query,
			Constraints: st.Constraints,
			PrevQuery:   prevQuery,
			PrevError:   prevError,
		})
		if genErr != nil {
			attempts = append(attempts, SQLAttempt{
				Number: n,
				Status: AttemptFailed,
				Error:  genErr.Error(),
			})
			prevError = genErr.Error()
			phase = a.afterFailure(n)
			continue
		}

		phase = phaseExecuting
		res, execErr := a.engine.Execute(ctx, stmt)
		if execErr != nil {
			log.Printf("[EXEC] attempt %d failed: %v", n, execErr)
			attempts = append(attempts, SQLAttempt{
				Number: n,
				Query:  stmt,
				Status: AttemptFailed,
				Error:  execErr.Error(),
			})
			prevQuery, prevError = stmt, execErr.Error()
			phase = a.afterFailure(n)
			continue
		}

		log.Printf("[EXEC] attempt %d succeeded: %d rows", n, len(res.Rows))
		attempts = append(attempts, SQLAttempt{
			Number: n,
			Query:  stmt,
			Status: AttemptSuccess,
			Result: &res,
		})
		phase = phaseSuccess
	}

	if phase == phaseExhausted {
		log.Printf("[EXEC] exhausted after %d attempts", len(attempts))
	}
	return attempts
}

// afterFailure decides the transition out of a failed attempt n.
func (a *Agent) afterFailure(n int) sqlPhase {
	if n < a.maxRepairs {
		return phaseRetrying
	}
	return phaseExhausted
}

// #endregion
