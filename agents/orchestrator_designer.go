package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// orchestratorDesigner is an optional design-phase step (SPEC_FULL §4.4
// step 5): given an architecture, it designs how its components are
// coordinated at runtime — workflow topology, synchronization points, and
// failure-containment boundaries between them.
type orchestratorDesigner struct {
	*contract.BaseAgent
}

// NewOrchestratorDesigner constructs the OrchestratorDesigner agent.
func NewOrchestratorDesigner(deps contract.Deps) contract.Agent {
	return &orchestratorDesigner{
		BaseAgent: contract.NewBaseAgent(contract.OrchestratorDesigner, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *orchestratorDesigner) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("orchestrator_design", 0)
	return a.Run(ctx, task, spec, buildOrchestratorDesignPrompt, parseOrchestratorDesignResponse)
}

func buildOrchestratorDesignPrompt(task contract.AgentTask, upstream map[string]any) (string, string) {
	system := "You are an orchestration designer. Respond with a single JSON object with keys: " +
		"workflow_topology (array of {step, depends_on}), synchronization_points (array of strings), " +
		"failure_containment (array of {component, strategy})."

	prompt := fmt.Sprintf("Evolution intent: %s\n\nTarget architecture: %v\n\nProduce the orchestration design.",
		task.Intent, upstream)
	return prompt, system
}

func parseOrchestratorDesignResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
