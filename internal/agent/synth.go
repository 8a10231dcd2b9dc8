package agent

// #region imports
import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/kdowney/storewise/internal/llm"
)

// #endregion

// #region synthesize

// synthesize produces the FinalAnswer from materialized evidence only:
// retrieved chunk text and/or successful result rows. The model is never
// asked to invent numbers; when there is no evidence, no inference call is
// made at all.
func (a *Agent) synthesize(ctx context.Context, st *State) *FinalAnswer {
	intent := st.Routing.Intent

	var chunks = st.Chunks
	if !intent.RequiresRetrieval() {
		chunks = nil
	}

	// RAG runs consult no SQL evidence at all.
	var success *SQLAttempt
	if intent.RequiresSQL() {
		success = st.SuccessfulAttempt()
	}
	exhausted := intent.RequiresSQL() && success == nil && len(st.Attempts) > 0

	if exhausted {
		last := st.Attempts[len(st.Attempts)-1]
		log.Printf("[SYNTH] repair exhausted, reporting failure")
		return &FinalAnswer{
			Text: fmt.Sprintf(
				"I could not compute this answer: all %d database query attempts failed (last error: %s). No value is being guessed.",
				len(st.Attempts), last.Error),
			Confidence: ConfidenceFailed,
		}
	}

	if len(chunks) == 0 && success == nil {
		log.Printf("[SYNTH] no evidence available")
		return &FinalAnswer{
			Text:       "No supporting documentation or query results were found for this question, so no grounded answer can be given.",
			Confidence: ConfidencePartial,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, a.inferTimeout)
	defer cancel()

	text, err := a.client.Complete(callCtx, a.synthPrompt(st, success), llm.Options{MaxTokens: a.maxTokens})
	confidence := a.confidence(st, success)
	if err != nil {
		log.Printf("[SYNTH] synthesis failed (%v), returning evidence summary", err)
		answer := &FinalAnswer{
			Text:       "The answer could not be synthesized; the supporting evidence is cited below.",
			Confidence: degrade(confidence),
		}
		answer.Citations = autoCitations(answer.Text, st, success)
		return answer
	}

	answer := parseSynthesis(text)
	answer.Confidence = confidence
	answer.Citations = validCitations(answer.Citations, st, success)
	if len(answer.Citations) == 0 {
		// The model cited nothing usable; fall back to citing every piece
		// of evidence it was shown.
		answer.Citations = autoCitations(answer.Text, st, success)
	}
	log.Printf("[SYNTH] confidence=%s citations=%d", answer.Confidence, len(answer.Citations))
	return answer
}

// confidence grades the evidence against what the intent required.
func (a *Agent) confidence(st *State, success *SQLAttempt) Confidence {
	intent := st.Routing.Intent
	if intent.RequiresRetrieval() && len(st.Chunks) == 0 {
		return ConfidencePartial
	}
	if intent.RequiresSQL() && success == nil {
		return ConfidencePartial
	}
	return ConfidenceFull
}

func degrade(c Confidence) Confidence {
	if c == ConfidenceFull {
		return ConfidencePartial
	}
	return c
}

// #endregion

// #region prompt

func (a *Agent) synthPrompt(st *State, success *SQLAttempt) string {
	var b strings.Builder
	b.WriteString("Answer the question using ONLY the evidence below. Never invent a number or fact that is not in the evidence.\n")
	if st.FormatHint != "" {
		fmt.Fprintf(&b, "Required answer format: %s\n", st.FormatHint)
	}
	b.WriteString("\nEvidence:\n")

	if st.Routing.Intent.RequiresRetrieval() {
		for _, sc := range st.Chunks {
			fmt.Fprintf(&b, "[%s]\n%s\n\n", sc.Chunk.ID, sc.Chunk.Text)
		}
	}
	if success != nil {
		fmt.Fprintf(&b, "[%s] rows returned by: %s\n", success.CitationID(), success.Query)
		b.WriteString(renderResult(success))
		b.WriteString("\n")
	}

	if len(st.Constraints) > 0 {
		b.WriteString("Constraints already applied to the query:\n")
		for _, c := range st.Constraints {
			fmt.Fprintf(&b, "- %s = %s\n", c.Name, c.Value)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s\n\n", st.Query)
	b.WriteString("Reply with JSON only, in the exact form:\n")
	b.WriteString(`{"answer": "<the answer>", "citations": [{"claim": "<claim text>", "source": "<evidence id>"}]}`)
	b.WriteString("\nEvery numeric or factual claim must cite an evidence id shown above.\n")
	return b.String()
}

func renderResult(attempt *SQLAttempt) string {
	var b strings.Builder
	b.WriteString(strings.Join(attempt.Result.Columns, " | "))
	b.WriteString("\n")
	for _, row := range attempt.Result.Rows {
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}
	if attempt.Result.Truncated {
		b.WriteString("(result truncated)\n")
	}
	return b.String()
}

// #endregion

// #region parse

type synthesisPayload struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// parseSynthesis decodes the completion's JSON payload, tolerating prose
// around it. A completion with no usable JSON becomes the answer text
// verbatim with no citations (the caller auto-cites the evidence).
func parseSynthesis(text string) *FinalAnswer {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var payload synthesisPayload
		if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err == nil && payload.Answer != "" {
			return &FinalAnswer{Text: payload.Answer, Citations: payload.Citations}
		}
	}
	return &FinalAnswer{Text: strings.TrimSpace(text)}
}

// validCitations keeps only citations whose source resolves to a chunk or
// attempt in this run's state.
func validCitations(citations []Citation, st *State, success *SQLAttempt) []Citation {
	valid := make(map[string]bool)
	if st.Routing.Intent.RequiresRetrieval() {
		for _, id := range st.ChunkIDs() {
			valid[id] = true
		}
	}
	if success != nil {
		valid[success.CitationID()] = true
	}

	var out []Citation
	for _, c := range citations {
		if valid[c.Source] {
			out = append(out, c)
		}
	}
	return out
}

// autoCitations cites every piece of evidence the synthesizer was given.
func autoCitations(claim string, st *State, success *SQLAttempt) []Citation {
	claim = truncate(claim, 120)
	var out []Citation
	if st.Routing.Intent.RequiresRetrieval() {
		for _, id := range st.ChunkIDs() {
			out = append(out, Citation{Claim: claim, Source: id})
		}
	}
	if success != nil {
		out = append(out, Citation{Claim: claim, Source: success.CitationID()})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// #endregion
