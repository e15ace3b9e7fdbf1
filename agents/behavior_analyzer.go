package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// behaviorAnalyzer observes the system's current runtime behavior —
// request/response flows, side effects, externally-visible invariants —
// as distinct from its static structure.
type behaviorAnalyzer struct {
	*contract.BaseAgent
}

// NewBehaviorAnalyzer constructs the BehaviorAnalyzer current-state agent.
func NewBehaviorAnalyzer(deps contract.Deps) contract.Agent {
	return &behaviorAnalyzer{
		BaseAgent: contract.NewBaseAgent(contract.BehaviorAnalyzer, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *behaviorAnalyzer) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("behavior_analysis", 0)
	return a.Run(ctx, task, spec, buildBehaviorAnalysisPrompt, parseBehaviorAnalysisResponse)
}

func buildBehaviorAnalysisPrompt(task contract.AgentTask, _ map[string]any) (string, string) {
	system := "You are a runtime behavior analyst. Respond with a single JSON object with keys: " +
		"observed_flows (array of strings), side_effects (array of strings), " +
		"invariants (array of strings), edge_cases (array of strings)."

	behaviorNotes, _ := task.Inputs["behavior_notes"].(string)
	if behaviorNotes == "" {
		behaviorNotes = task.Intent
	}
	prompt := fmt.Sprintf("Observed runtime behavior notes:\n%s\n\nProduce the behavior analysis.", behaviorNotes)
	return prompt, system
}

func parseBehaviorAnalysisResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
