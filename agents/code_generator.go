package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// codeGenerator produces the actual code changes implementing the
// executable task list: one generated artifact per task, each carrying
// its target file path, the generated code, and (optionally) tests.
type codeGenerator struct {
	*contract.BaseAgent
}

// NewCodeGenerator constructs the CodeGenerator agent.
func NewCodeGenerator(deps contract.Deps) contract.Agent {
	return &codeGenerator{
		BaseAgent: contract.NewBaseAgent(contract.CodeGenerator, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *codeGenerator) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("generated_code", 0)
	return a.Run(ctx, task, spec, buildCodeGenerationPrompt, parseCodeGenerationResponse)
}

func buildCodeGenerationPrompt(task contract.AgentTask, upstream map[string]any) (string, string) {
	system := "You are a code generation engine producing production-ready changes. Respond with " +
		"a single JSON object with keys: generated_files (array of {path, language, code, " +
		"test_code}), total_files (number), notes (array of strings)."

	prompt := fmt.Sprintf("Evolution intent: %s\n\nPlan, tasks, and requirements: %v\n\nProduce the generated code.",
		task.Intent, upstream)
	return prompt, system
}

func parseCodeGenerationResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
