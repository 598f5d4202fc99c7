package metrics

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kestrelai/kestrel/store"
	"github.com/kestrelai/kestrel/transport"
	"github.com/kestrelai/kestrel/wire"
)

// Refiner drives the §4.7 refinement cycle: build a meta-prompt
// embedding an agent's current prompt and its latest analysis, send it
// to the model, and persist a parsed suggestion as a new version.
type Refiner struct {
	client       *transport.Client
	model        string
	maxTokens    int64
	temperature  float64
	awaitTimeout time.Duration
}

// NewRefiner creates a Refiner bound to a transport.Client. awaitTimeout
// bounds the one-shot meta-prompt request (SPEC_FULL.md §9 Open
// Question #3).
func NewRefiner(client *transport.Client, model string, maxTokens int64, temperature float64, awaitTimeout time.Duration) *Refiner {
	return &Refiner{
		client:       client,
		model:        model,
		maxTokens:    maxTokens,
		temperature:  temperature,
		awaitTimeout: awaitTimeout,
	}
}

// Refine runs one refinement cycle for an agent. It returns true if a
// new version was written. A suggestion that parses to empty text (and
// the raw fallback trims to empty too) is treated as "no change" and
// returns false, nil.
func (r *Refiner) Refine(ctx context.Context, st *store.Store, agentID string) (bool, error) {
	version, err := st.GetCurrentAgentVersion(ctx, agentID)
	if err != nil {
		return false, err
	}
	analysis, err := Analyze(ctx, st, agentID)
	if err != nil {
		return false, err
	}

	metaPrompt := buildMetaPrompt(version.PromptText, analysis)

	reqCtx := ctx
	var cancel context.CancelFunc
	if r.awaitTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, r.awaitTimeout)
		defer cancel()
	}

	resp, err := r.client.SendUnary(reqCtx, wire.Request{
		Model:       r.model,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
		Messages:    []wire.Message{{Role: "user", Content: metaPrompt}},
		Stream:      true,
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return false, ErrRefinementTimeout
	}
	if err != nil {
		return false, err
	}

	suggestion := extractSuggestion(resp.Text)
	if suggestion == "" {
		return false, nil
	}

	_, err = st.AddAgentVersion(ctx, agentID, suggestion,
		"automated refinement", changeSummary(analysis), version.PerformanceScore)
	if err != nil {
		return false, err
	}
	return true, nil
}

// extractSuggestion pulls the body out of [SUGGESTION]...[/SUGGESTION],
// falling back to the raw trimmed text if the tag is absent.
func extractSuggestion(text string) string {
	const open, close = "[SUGGESTION]", "[/SUGGESTION]"
	start := strings.Index(text, open)
	if start == -1 {
		return strings.TrimSpace(text)
	}
	start += len(open)
	rel := strings.Index(text[start:], close)
	if rel == -1 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[start : start+rel])
}

func buildMetaPrompt(currentPrompt string, analysis AgentAnalysis) string {
	var b strings.Builder
	b.WriteString("Current system prompt:\n")
	b.WriteString(currentPrompt)
	b.WriteString("\n\nPerformance analysis:\n")
	fmt.Fprintf(&b, "overall success rate: %.4f\n", analysis.OverallSuccessRate)
	for _, tt := range analysis.TaskTypes {
		fmt.Fprintf(&b, "task %s: rate=%.4f classification=%s\n", tt.TaskType, tt.SuccessRate, classificationName(tt.Classification))
	}
	for _, c := range analysis.Capabilities {
		fmt.Fprintf(&b, "capability %s: rating=%.4f classification=%s\n", c.Name, c.Rating, classificationName(c.Classification))
	}
	b.WriteString("\nPropose an improved prompt. Respond with the new prompt text inside [SUGGESTION]...[/SUGGESTION].")
	return b.String()
}

func changeSummary(analysis AgentAnalysis) string {
	return "refinement from analysis: overall=" + strconv.FormatFloat(analysis.OverallSuccessRate, 'f', 4, 64)
}

func classificationName(c Classification) string {
	switch c {
	case ClassStrong:
		return "strong"
	case ClassWeak:
		return "weak"
	default:
		return "neutral"
	}
}
