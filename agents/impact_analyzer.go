package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// impactAnalyzer estimates the blast radius a change to the current
// system would have: affected components, downstream consumers, and a
// coarse risk rating per affected area.
type impactAnalyzer struct {
	*contract.BaseAgent
}

// NewImpactAnalyzer constructs the ImpactAnalyzer current-state agent.
func NewImpactAnalyzer(deps contract.Deps) contract.Agent {
	return &impactAnalyzer{
		BaseAgent: contract.NewBaseAgent(contract.ImpactAnalyzer, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *impactAnalyzer) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("impact_analysis", 0)
	return a.Run(ctx, task, spec, buildImpactAnalysisPrompt, parseImpactAnalysisResponse)
}

func buildImpactAnalysisPrompt(task contract.AgentTask, _ map[string]any) (string, string) {
	system := "You are a change-impact analyst. Respond with a single JSON object with keys: " +
		"affected_components (array of strings), downstream_consumers (array of strings), " +
		"risk_ratings (array of {area, level}, level one of low/medium/high)."

	goal, _ := task.Inputs["goal"].(string)
	if goal == "" {
		goal = task.Intent
	}
	prompt := fmt.Sprintf("Evolution goal:\n%s\n\nProduce the change-impact analysis against the current system.", goal)
	return prompt, system
}

func parseImpactAnalysisResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
