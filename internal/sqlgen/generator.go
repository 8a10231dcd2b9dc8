package sqlgen

// #region imports
import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kdowney/storewise/internal/llm"
	"github.com/kdowney/storewise/internal/planner"
	"github.com/kdowney/storewise/internal/schema"
)

// #endregion

// #region generator

// Generator produces one sanitized, schema-constrained SQL candidate per
// invocation. The cheat sheet is the only schema knowledge it exposes to
// the model.
type Generator struct {
	client  llm.Client
	sheet   *schema.CheatSheet
	repairs []IdentifierRepair
	timeout time.Duration
}

// New creates a Generator.
func New(client llm.Client, sheet *schema.CheatSheet, repairs []IdentifierRepair, timeout time.Duration) *Generator {
	return &Generator{client: client, sheet: sheet, repairs: repairs, timeout: timeout}
}

// Request carries the inputs for one generation attempt. PrevQuery and
// PrevError are set only inside the repair loop.
type Request struct {
	Query       string
	Constraints []planner.Constraint
	PrevQuery   string
	PrevError   string
}

// #endregion

// #region generate

// Generate issues one completion and runs the post-processing pipeline:
// fence stripping, sanitization, then the heuristic identifier repairs.
// Any failure (timeout, malformed response, sanitization) is returned as an
// error for the repair controller to count against the budget.
func (g *Generator) Generate(ctx context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.client.Complete(callCtx, g.prompt(req), llm.Options{MaxTokens: 500})
	if err != nil {
		return "", fmt.Errorf("sql generation: %w", err)
	}

	stmt, err := Sanitize(stripFences(text))
	if err != nil {
		log.Printf("[SQL] candidate rejected: %v", err)
		return "", err
	}

	stmt = ApplyRepairs(stmt, g.repairs)
	log.Printf("[SQL] candidate: %s", stmt)
	return stmt, nil
}

// #endregion

// #region prompt

func (g *Generator) prompt(req Request) string {
	var b strings.Builder
	b.WriteString("Generate one executable SQLite SELECT query for the retail database.\n\n")
	b.WriteString(g.sheet.Render())
	b.WriteString("\n")

	if len(req.Constraints) > 0 {
		b.WriteString("Constraints derived from documentation (apply them exactly):\n")
		for _, c := range req.Constraints {
			if c.Name == "date_range" {
				lo, hi, ok := splitRange(c.Value)
				if ok {
					fmt.Fprintf(&b, "- filter dates with OrderDate >= '%s' AND OrderDate <= '%s' (string comparison)\n", lo, hi)
					continue
				}
			}
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Value)
		}
		b.WriteString("\n")
	}

	if req.PrevError != "" {
		b.WriteString("Your previous attempt failed. Rewrite it to fix the error.\n")
		fmt.Fprintf(&b, "Previous query: %s\n", req.PrevQuery)
		fmt.Fprintf(&b, "Error: %s\n\n", req.PrevError)
	}

	fmt.Fprintf(&b, "Question: %s\n", req.Query)
	b.WriteString("Reply with the SQL query only.\n")
	return b.String()
}

// splitRange parses "YYYY-MM-DD..YYYY-MM-DD".
func splitRange(v string) (string, string, bool) {
	parts := strings.SplitN(v, "..", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	lo := strings.TrimSpace(parts[0])
	hi := strings.TrimSpace(parts[1])
	if lo == "" || hi == "" {
		return "", "", false
	}
	return lo, hi, true
}

// #endregion
