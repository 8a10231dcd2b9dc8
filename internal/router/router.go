package router

// #region imports
import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/kdowney/storewise/internal/llm"
)

// #endregion

// #region intent

// Intent is the handling path for a query.
type Intent string

const (
	IntentSQL    Intent = "sql"
	IntentRAG    Intent = "rag"
	IntentHybrid Intent = "hybrid"
)

// ParseIntent maps a config string to an Intent.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sql":
		return IntentSQL, nil
	case "rag":
		return IntentRAG, nil
	case "hybrid":
		return IntentHybrid, nil
	}
	return "", fmt.Errorf("unknown intent %q", s)
}

// RequiresSQL reports whether the intent needs a database query.
func (i Intent) RequiresSQL() bool { return i == IntentSQL || i == IntentHybrid }

// RequiresRetrieval reports whether the intent consults documentation.
func (i Intent) RequiresRetrieval() bool { return i == IntentRAG || i == IntentHybrid }

// #endregion

// #region decision

// Source records whether an override rule or the model produced the decision.
type Source string

const (
	SourceOverride Source = "override"
	SourceModel    Source = "model"
)

// Decision is the routing outcome for one run. Set exactly once per run.
type Decision struct {
	Intent    Intent
	Rationale string
	Source    Source
}

// OverrideRule is one entry of the ordered keyword→intent table.
type OverrideRule struct {
	Keyword string
	Intent  Intent
}

// #endregion

// #region router

// Router classifies query intent. Override rules always dominate model
// output: a matching keyword short-circuits the inference call entirely,
// which keeps high-stakes phrasings deterministic.
type Router struct {
	overrides []OverrideRule
	client    llm.Client
	timeout   time.Duration
}

// New creates a Router with the given ordered override table.
func New(overrides []OverrideRule, client llm.Client, timeout time.Duration) *Router {
	return &Router{overrides: overrides, client: client, timeout: timeout}
}

// #endregion

// #region route

// Route classifies the query. It never fails: an unparseable or timed-out
// classification falls back to HYBRID, the safest superset.
func (r *Router) Route(ctx context.Context, query string) Decision {
	normalized := strings.ToLower(strings.TrimSpace(query))

	for _, rule := range r.overrides {
		if strings.Contains(normalized, strings.ToLower(rule.Keyword)) {
			log.Printf("[ROUTE] intent=%s source=override keyword=%q", rule.Intent, rule.Keyword)
			return Decision{
				Intent:    rule.Intent,
				Rationale: fmt.Sprintf("override: keyword %q", rule.Keyword),
				Source:    SourceOverride,
			}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	text, err := r.client.Complete(callCtx, classifyPrompt(query), llm.Options{MaxTokens: 200})
	if err != nil {
		log.Printf("[ROUTE] classification failed (%v), defaulting to hybrid", err)
		return fallbackDecision()
	}

	intent, ok := parseClassification(text)
	if !ok {
		log.Printf("[ROUTE] unparseable classification %q, defaulting to hybrid", firstLine(text))
		return fallbackDecision()
	}

	log.Printf("[ROUTE] intent=%s source=model", intent)
	return Decision{
		Intent:    intent,
		Rationale: strings.TrimSpace(text),
		Source:    SourceModel,
	}
}

func fallbackDecision() Decision {
	return Decision{
		Intent:    IntentHybrid,
		Rationale: "fallback: unparseable classification",
		Source:    SourceModel,
	}
}

// #endregion

// #region prompt

func classifyPrompt(query string) string {
	var b strings.Builder
	b.WriteString("Classify the user question into exactly one category:\n")
	b.WriteString("- sql: needs database access (sales numbers, orders, customer data)\n")
	b.WriteString("- rag: needs text lookup (policies, calendars, definitions)\n")
	b.WriteString("- hybrid: needs both (e.g. \"sales during Summer 1997\", where the date range comes from a document)\n\n")
	b.WriteString("Think step by step, then answer with the single word sql, rag, or hybrid on the last line.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", query)
	return b.String()
}

// #endregion

// #region parse

var intentWord = regexp.MustCompile(`(?i)\b(sql|rag|hybrid)\b`)

// parseClassification takes the LAST intent word in the completion:
// reasoning-style output mentions candidate labels before settling on one.
func parseClassification(text string) (Intent, bool) {
	matches := intentWord.FindAllString(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	switch strings.ToLower(matches[len(matches)-1]) {
	case "sql":
		return IntentSQL, true
	case "rag":
		return IntentRAG, true
	case "hybrid":
		return IntentHybrid, true
	}
	return "", false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// #endregion
