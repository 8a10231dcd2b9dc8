package llm

// #region imports
import (
	"context"
	"errors"
)

// #endregion

// #region contract

// Options holds the per-call completion parameters.
type Options struct {
	MaxTokens   int
	Temperature float32
}

// Client is the text-completion boundary. Every routing, planning,
// generation, and synthesis step issues exactly one Complete call.
// Implementations must honor ctx deadlines and cancellation.
type Client interface {
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// #endregion

// #region errors

// ErrTimeout marks a completion call that exceeded its deadline. Callers
// treat it the same as ErrMalformed: the owning component falls back.
var ErrTimeout = errors.New("llm: completion timed out")

// ErrMalformed marks a response the backend returned but that carries no
// usable text (empty choices, empty content).
var ErrMalformed = errors.New("llm: malformed completion")

// #endregion
