package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// qualityGate is the quality checkpoint: it runs once in the current-state
// phase against the pre-upgrade codebase, and again in the validate phase
// (§4.4 step 8) against CodeGenerator's output and StaticAnalyzer's
// baseline, per contract.UpstreamOf[contract.QualityGate]. The upstream
// read is simply soft-missing the first time it runs, before CodeGenerator
// has produced anything — no special-casing needed.
type qualityGate struct {
	*contract.BaseAgent
}

// NewQualityGate constructs the QualityGate agent.
func NewQualityGate(deps contract.Deps) contract.Agent {
	return &qualityGate{
		BaseAgent: contract.NewBaseAgent(contract.QualityGate, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *qualityGate) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("quality_report", 0)
	return a.Run(ctx, task, spec, buildQualityGatePrompt, parseQualityGateResponse)
}

func buildQualityGatePrompt(task contract.AgentTask, upstream map[string]any) (string, string) {
	system := "You are a code quality gate. Respond with a single JSON object with keys: " +
		"passed (bool), metrics ({complexity_score, docstring_coverage, security_score, " +
		"maintainability_index}, all numbers 0-100 except complexity_score), " +
		"issues (array of {severity, message, location}), suggestions (array of strings)."

	target, _ := task.Inputs["target"].(string)
	if target == "" {
		target = task.Intent
	}
	prompt := fmt.Sprintf("Target under review:\n%s\n\nUpstream context: %v\n\nProduce the quality verdict.", target, upstream)
	return prompt, system
}

func parseQualityGateResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
