package metrics

import (
	"context"

	"github.com/kestrelai/kestrel/store"
)

// Classification buckets a success rate or capability rating into
// strong, weak, or neutral.
type Classification int

const (
	ClassNeutral Classification = iota
	ClassStrong
	ClassWeak
)

func classifyRate(rate float64) Classification {
	switch {
	case rate > 0.8:
		return ClassStrong
	case rate < 0.6:
		return ClassWeak
	default:
		return ClassNeutral
	}
}

// TaskTypeAnalysis is one agent/taskType's computed success rate.
type TaskTypeAnalysis struct {
	TaskType       string
	SuccessRate    float64
	Classification Classification
}

// CapabilityAnalysis is one agent capability's rating classification.
type CapabilityAnalysis struct {
	Name           string
	Rating         float64
	Classification Classification
}

// AgentAnalysis is the full §4.7 "Analysis" result for one agent.
type AgentAnalysis struct {
	AgentID            string
	OverallSuccessRate float64
	TaskTypes          []TaskTypeAnalysis
	Capabilities       []CapabilityAnalysis
}

// Analyze computes overall and per-taskType success rates from an
// agent's persisted AgentPerformance rows, and classifies each
// taskType and capability as strong/weak/neutral.
func Analyze(ctx context.Context, st *store.Store, agentID string) (AgentAnalysis, error) {
	performance, err := st.ListPerformance(ctx, agentID)
	if err != nil {
		return AgentAnalysis{}, err
	}
	capabilities, err := st.ListCapabilities(ctx, agentID)
	if err != nil {
		return AgentAnalysis{}, err
	}

	analysis := AgentAnalysis{AgentID: agentID}

	// Rows are per (version, taskType); fold them into one tally per
	// taskType, in first-seen order.
	var order []string
	correct := make(map[string]int64)
	attempts := make(map[string]int64)
	for _, p := range performance {
		if _, seen := attempts[p.TaskType]; !seen {
			order = append(order, p.TaskType)
		}
		correct[p.TaskType] += p.CorrectResponses
		attempts[p.TaskType] += p.TotalAttempts
	}
	for _, taskType := range order {
		rate := 0.0
		if attempts[taskType] > 0 {
			rate = float64(correct[taskType]) / float64(attempts[taskType])
		}
		analysis.TaskTypes = append(analysis.TaskTypes, TaskTypeAnalysis{
			TaskType:       taskType,
			SuccessRate:    rate,
			Classification: classifyRate(rate),
		})
	}

	// OverallSuccessRate comes from the flat PerformanceSummary rollup
	// rather than summing the per-(version, taskType) rows above, so a
	// retired prompt version's history still counts toward "how is this
	// agent doing overall".
	summary, err := st.GetPerformanceSummary(ctx, agentID)
	if err != nil {
		return AgentAnalysis{}, err
	}
	if summary.TotalAttempts > 0 {
		analysis.OverallSuccessRate = float64(summary.TotalCorrect) / float64(summary.TotalAttempts)
	}

	for _, c := range capabilities {
		analysis.Capabilities = append(analysis.Capabilities, CapabilityAnalysis{
			Name:           c.Name,
			Rating:         c.Rating,
			Classification: classifyRate(c.Rating),
		})
	}

	return analysis, nil
}
