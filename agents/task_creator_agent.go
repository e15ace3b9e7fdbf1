package agents

import (
	"context"
	"fmt"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// taskCreatorAgent decomposes PlannerAgent's phased plan into atomic,
// executable tasks: one unit of work each, with inputs/outputs, validation
// criteria, dependencies on other tasks, and an execution order.
type taskCreatorAgent struct {
	*contract.BaseAgent
}

// NewTaskCreatorAgent constructs the TaskCreatorAgent agent.
func NewTaskCreatorAgent(deps contract.Deps) contract.Agent {
	return &taskCreatorAgent{
		BaseAgent: contract.NewBaseAgent(contract.TaskCreatorAgent, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *taskCreatorAgent) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("executable_tasks", 0)
	return a.Run(ctx, task, spec, buildExecutableTasksPrompt, parseExecutableTasksResponse)
}

func buildExecutableTasksPrompt(task contract.AgentTask, upstream map[string]any) (string, string) {
	system := "You are a task decomposition specialist. Respond with a single JSON object with " +
		"keys: tasks (array of {id, name, description, type, inputs, expected_outputs, " +
		"validation_criteria, dependencies, priority}), execution_order (array of task ids), " +
		"critical_path (array of task ids)."

	prompt := fmt.Sprintf("Evolution intent: %s\n\nExecution plan and research context: %v\n\nProduce the executable task list.",
		task.Intent, upstream)
	return prompt, system
}

func parseExecutableTasksResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
