package planner

// #region imports
import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/kdowney/storewise/internal/llm"
	"github.com/kdowney/storewise/internal/retrieval"
)

// #endregion

// #region constraint

// Constraint is a structured fact extracted from retrieved context, used to
// condition SQL generation. Constraints are only ever derived from the
// retrieved text plus the query, never invented without grounding.
type Constraint struct {
	Name       string
	Value      string
	Derivation string
}

// #endregion

// #region planner

// Planner extracts constraints from retrieved context via one inference
// call. The orchestrator only invokes it when retrieval returned chunks;
// with no context there is nothing to derive constraints from.
type Planner struct {
	client  llm.Client
	timeout time.Duration
}

// New creates a Planner.
func New(client llm.Client, timeout time.Duration) *Planner {
	return &Planner{client: client, timeout: timeout}
}

// #endregion

// #region extract

// Extract returns the constraints derivable from the chunks and query.
// Failure is non-fatal: a timed-out or unparseable extraction yields an
// empty set and generation proceeds unconstrained.
func (p *Planner) Extract(ctx context.Context, query string, chunks []retrieval.ScoredChunk) []Constraint {
	if len(chunks) == 0 {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := p.client.Complete(callCtx, extractPrompt(query, chunks), llm.Options{MaxTokens: 400})
	if err != nil {
		log.Printf("[PLAN] extraction failed (%v), proceeding without constraints", err)
		return nil
	}

	constraints := parseConstraints(text)
	log.Printf("[PLAN] extracted %d constraints", len(constraints))
	return constraints
}

// #endregion

// #region prompt

func extractPrompt(query string, chunks []retrieval.ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Extract filtering constraints for a SQL query from the context below.\n")
	b.WriteString("Look for date ranges, product categories, and KPI formulas the question depends on.\n")
	b.WriteString("Report each constraint on its own line as:\n")
	b.WriteString("  name = value because <which context sentence supports it>\n")
	b.WriteString("Date ranges use the form: date_range = YYYY-MM-DD..YYYY-MM-DD\n")
	b.WriteString("If the context supports no constraints, reply with the single word: none\n\n")
	b.WriteString("Context:\n")
	for _, sc := range chunks {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", sc.Chunk.ID, sc.Chunk.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n", query)
	return b.String()
}

// #endregion

// #region parse

// parseConstraints reads "name = value because derivation" lines.
// Malformed lines are skipped rather than failing the whole extraction, so a
// partially well-formed completion still contributes constraints.
func parseConstraints(text string) []Constraint {
	var out []Constraint
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line == "" || strings.EqualFold(line, "none") {
			continue
		}

		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		name := normalizeName(line[:eq])
		if name == "" {
			continue
		}

		rest := strings.TrimSpace(line[eq+1:])
		value := rest
		derivation := ""
		if i := indexWord(rest, "because"); i >= 0 {
			value = strings.TrimSpace(rest[:i])
			derivation = strings.TrimSpace(rest[i+len("because"):])
		}
		if value == "" {
			continue
		}
		out = append(out, Constraint{Name: name, Value: value, Derivation: derivation})
	}
	return out
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}

// indexWord finds needle as a lowercase whole word in s.
func indexWord(s, needle string) int {
	lower := strings.ToLower(s)
	from := 0
	for {
		i := strings.Index(lower[from:], needle)
		if i < 0 {
			return -1
		}
		i += from
		before := i == 0 || lower[i-1] == ' '
		after := i+len(needle) == len(lower) || lower[i+len(needle)] == ' '
		if before && after {
			return i
		}
		from = i + len(needle)
	}
}

// #endregion
