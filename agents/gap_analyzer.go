package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// gapAnalyzer compares the target state (requirements) against the
// current state (the five current-state analyzers plus external research)
// and produces the gap report that drives the design and planning phases.
type gapAnalyzer struct {
	*contract.BaseAgent
}

// NewGapAnalyzer constructs the GapAnalyzer agent.
func NewGapAnalyzer(deps contract.Deps) contract.Agent {
	return &gapAnalyzer{
		BaseAgent: contract.NewBaseAgent(contract.GapAnalyzer, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *gapAnalyzer) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("gap_report", 0)
	return a.Run(ctx, task, spec, buildGapAnalysisPrompt, parseGapAnalysisResponse)
}

func buildGapAnalysisPrompt(task contract.AgentTask, upstream map[string]any) (string, string) {
	system := "You are a gap analyst. Compare the target state to the current state and respond " +
		"with a single JSON object with keys: gaps (array of {description, severity}, severity " +
		"one of low/medium/high/critical), priority_matrix (array of {gap, priority}), " +
		"estimated_effort (string), success_criteria (array of strings)."

	prompt := fmt.Sprintf("Evolution intent: %s\n\nTarget and current-state reports: %v\n\nProduce the gap report.",
		task.Intent, upstream)
	return prompt, system
}

func parseGapAnalysisResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
