// Package metrics implements the Metrics & Refinement loop (C7):
// running per-agent aggregates, strong/weak analysis, meta-prompt
// refinement, and A/B testing of candidate prompts.
//
// Information Hiding:
// - Running-mean bookkeeping hidden behind Aggregator
// - A/B test state hidden behind ABTestRegistry's component-local lock
package metrics

import "strings"

// TaskType is the classification a piece of agent input falls into.
type TaskType int

const (
	TaskGeneral TaskType = iota
	TaskImplementation
	TaskAnalysis
	TaskDesign
	TaskTesting
	TaskOptimization
	TaskAddition
	TaskSubtraction
	TaskMultiplication
	TaskDivision
)

func (t TaskType) String() string {
	switch t {
	case TaskImplementation:
		return "Implementation"
	case TaskAnalysis:
		return "Analysis"
	case TaskDesign:
		return "Design"
	case TaskTesting:
		return "Testing"
	case TaskOptimization:
		return "Optimization"
	case TaskAddition:
		return "Addition"
	case TaskSubtraction:
		return "Subtraction"
	case TaskMultiplication:
		return "Multiplication"
	case TaskDivision:
		return "Division"
	default:
		return "General"
	}
}

type keywordFamily struct {
	taskType TaskType
	keywords []string
}

var keywordFamilies = []keywordFamily{
	{TaskImplementation, []string{"create", "generate", "implement", "build", "develop", "write"}},
	{TaskAnalysis, []string{"analyze", "evaluate", "assess", "examine", "review", "inspect"}},
	{TaskDesign, []string{"design", "architect", "plan", "structure", "layout"}},
	{TaskTesting, []string{"test", "verify", "validate", "check", "confirm"}},
	{TaskOptimization, []string{"improve", "optimize", "refactor", "enhance", "streamline"}},
}

// Classify assigns a TaskType to free text, testing keyword families in
// order, then math operators, falling back to General. Implements the
// §4.6 TaskType classification cascade exactly.
func Classify(text string) TaskType {
	lower := strings.ToLower(text)

	for _, family := range keywordFamilies {
		for _, kw := range family.keywords {
			if strings.Contains(lower, kw) {
				return family.taskType
			}
		}
	}

	switch {
	case strings.Contains(text, "+"):
		return TaskAddition
	case strings.Contains(text, "-") && !strings.Contains(text, "--"):
		return TaskSubtraction
	case strings.Contains(text, "*") || strings.Contains(text, "×"):
		return TaskMultiplication
	case strings.Contains(text, "/") || strings.Contains(text, "÷"):
		return TaskDivision
	default:
		return TaskGeneral
	}
}
