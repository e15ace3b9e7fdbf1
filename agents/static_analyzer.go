package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// staticAnalyzer inspects the current codebase for structural/technical
// constraints without executing it: platform targets, language/framework
// footprint, and technical constraints the upgrade must respect.
type staticAnalyzer struct {
	*contract.BaseAgent
}

// NewStaticAnalyzer constructs the StaticAnalyzer current-state agent.
func NewStaticAnalyzer(deps contract.Deps) contract.Agent {
	return &staticAnalyzer{
		BaseAgent: contract.NewBaseAgent(contract.StaticAnalyzer, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *staticAnalyzer) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("static_analysis", 0)
	return a.Run(ctx, task, spec, buildStaticAnalysisPrompt, parseStaticAnalysisResponse)
}

func buildStaticAnalysisPrompt(task contract.AgentTask, _ map[string]any) (string, string) {
	system := "You are a static code analyst. Examine the described codebase structure without " +
		"running it. Respond with a single JSON object with keys: platforms (array of strings), " +
		"languages (array of strings), frameworks (array of strings), technical_constraints " +
		"(array of strings), structural_risks (array of strings)."

	codebase, _ := task.Inputs["codebase_summary"].(string)
	if codebase == "" {
		codebase = task.Intent
	}
	prompt := fmt.Sprintf("Codebase summary:\n%s\n\nProduce the static analysis report.", codebase)
	return prompt, system
}

func parseStaticAnalysisResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
