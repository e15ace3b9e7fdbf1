package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// requirementAnalyzer turns a natural-language evolution goal into a
// structured requirement specification: functional and non-functional
// requirements, constraints, assumptions, and the components/dependencies
// they imply. Has no upstream — it is the root of the report-flow graph.
type requirementAnalyzer struct {
	*contract.BaseAgent
}

// NewRequirementAnalyzer constructs the RequirementAnalyzer agent.
func NewRequirementAnalyzer(deps contract.Deps) contract.Agent {
	return &requirementAnalyzer{
		BaseAgent: contract.NewBaseAgent(contract.RequirementAnalyzer, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *requirementAnalyzer) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("requirement_analysis", 0)
	return a.Run(ctx, task, spec, buildRequirementPrompt, parseRequirementResponse)
}

func buildRequirementPrompt(task contract.AgentTask, _ map[string]any) (string, string) {
	system := "You are a requirements analyst. Decompose the evolution goal into a precise, " +
		"structured specification. Respond with a single JSON object with keys: " +
		"functional_requirements (array of strings), non_functional_requirements (array of strings), " +
		"constraints (array of strings), assumptions (array of strings), components (array of " +
		"{name, description}), dependencies (array of strings)."

	goal, _ := task.Inputs["goal"].(string)
	if goal == "" {
		goal = task.Intent
	}
	prompt := fmt.Sprintf("Evolution goal:\n%s\n\nProduce the structured requirement specification.", goal)
	return prompt, system
}

func parseRequirementResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
