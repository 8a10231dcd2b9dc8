package llm

// #region imports
import (
	"context"
	"sync"
)

// #endregion

// #region scripted-client

// ScriptedClient returns queued completions in order. Used by tests to
// exercise the workflow without a live backend.
type ScriptedClient struct {
	mu      sync.Mutex
	replies []Reply
	Prompts []string // every prompt seen, in call order
}

// Reply is one scripted completion: either Text or Err.
type Reply struct {
	Text string
	Err  error
}

// NewScriptedClient builds a stub that replays the given replies. Once the
// script is exhausted, further calls return ErrMalformed.
func NewScriptedClient(replies ...Reply) *ScriptedClient {
	return &ScriptedClient{replies: replies}
}

// Complete pops the next scripted reply.
func (s *ScriptedClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, prompt)
	if len(s.replies) == 0 {
		return "", ErrMalformed
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	if next.Err != nil {
		return "", next.Err
	}
	return next.Text, nil
}

// #endregion
