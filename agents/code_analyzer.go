package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// codeAnalyzer builds a structural map of the codebase: module boundaries,
// dependency edges between components, and coupling hotspots. Grounded on
// the distilled original's dependency_resolver module (requires/depends_on/
// conflicts_with edge types).
type codeAnalyzer struct {
	*contract.BaseAgent
}

// NewCodeAnalyzer constructs the CodeAnalyzer current-state agent.
func NewCodeAnalyzer(deps contract.Deps) contract.Agent {
	return &codeAnalyzer{
		BaseAgent: contract.NewBaseAgent(contract.CodeAnalyzer, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *codeAnalyzer) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("code_analysis", 0)
	return a.Run(ctx, task, spec, buildCodeAnalysisPrompt, parseCodeAnalysisResponse)
}

func buildCodeAnalysisPrompt(task contract.AgentTask, _ map[string]any) (string, string) {
	system := "You are a codebase structure analyst. Respond with a single JSON object with keys: " +
		"modules (array of {name, responsibility}), dependency_edges (array of " +
		"{from, to, kind}, kind one of requires/depends_on/conflicts_with/extends), " +
		"coupling_hotspots (array of strings)."

	codebase, _ := task.Inputs["codebase_summary"].(string)
	if codebase == "" {
		codebase = task.Intent
	}
	prompt := fmt.Sprintf("Codebase summary:\n%s\n\nProduce the code structure analysis.", codebase)
	return prompt, system
}

func parseCodeAnalysisResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
