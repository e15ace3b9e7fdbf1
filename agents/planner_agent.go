package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// plannerAgent turns the gap report, research pack, and (when present)
// orchestration design into a phased execution plan: goals, ordered
// phases, dependencies between them, and a confidence estimate.
type plannerAgent struct {
	*contract.BaseAgent
}

// NewPlannerAgent constructs the PlannerAgent agent.
func NewPlannerAgent(deps contract.Deps) contract.Agent {
	return &plannerAgent{
		BaseAgent: contract.NewBaseAgent(contract.PlannerAgent, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *plannerAgent) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("execution_plan", 0)
	return a.Run(ctx, task, spec, buildExecutionPlanPrompt, parseExecutionPlanResponse)
}

func buildExecutionPlanPrompt(task contract.AgentTask, upstream map[string]any) (string, string) {
	system := "You are an execution planner. Respond with a single JSON object with keys: " +
		"goals (array of strings), phases (array of {name, tasks, depends_on}), " +
		"timeline (string), risks (array of {risk, mitigation}), success_criteria " +
		"(array of strings), confidence (number 0-1)."

	prompt := fmt.Sprintf("Evolution intent: %s\n\nResearch, gap, and design reports: %v\n\nProduce the execution plan.",
		task.Intent, upstream)
	return prompt, system
}

func parseExecutionPlanResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
