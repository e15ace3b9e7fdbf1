package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// architectAgent turns a gap report into a system architecture: component
// boundaries, interfaces between them, and the technology choices that
// close the identified gaps. Grounded on the "SystemArchitect" role named
// alongside PlannerAgent in the distilled requirement_analyzer's output
// references.
type architectAgent struct {
	*contract.BaseAgent
}

// NewArchitectAgent constructs the ArchitectAgent agent.
func NewArchitectAgent(deps contract.Deps) contract.Agent {
	return &architectAgent{
		BaseAgent: contract.NewBaseAgent(contract.ArchitectAgent, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *architectAgent) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("architecture", 0)
	return a.Run(ctx, task, spec, buildArchitecturePrompt, parseArchitectureResponse)
}

func buildArchitecturePrompt(task contract.AgentTask, upstream map[string]any) (string, string) {
	system := "You are a software architect. Respond with a single JSON object with keys: " +
		"components (array of {name, responsibility, interfaces}), technology_choices " +
		"(array of {concern, choice, rationale}), integration_points (array of strings)."

	prompt := fmt.Sprintf("Evolution intent: %s\n\nGap report: %v\n\nProduce the target architecture.",
		task.Intent, upstream)
	return prompt, system
}

func parseArchitectureResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
