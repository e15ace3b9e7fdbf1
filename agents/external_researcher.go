package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/safety"
)

// externalResearcher gathers external technical references — best
// practices, prior art, reference implementations — relevant to the
// evolution goal and the current-state findings, and synthesizes them into
// a research pack the gap analysis and planning stages draw on.
type externalResearcher struct {
	*contract.BaseAgent
}

// NewExternalResearcher constructs the ExternalResearcher agent.
func NewExternalResearcher(deps contract.Deps) contract.Agent {
	return &externalResearcher{
		BaseAgent: contract.NewBaseAgent(contract.ExternalResearcher, "v1", deps, safety.DefaultBreakerConfig()),
	}
}

func (a *externalResearcher) Execute(ctx context.Context, task contract.AgentTask) (contract.AgentResult, error) {
	spec := a.CanonicalPersistSpec("external_research", externalResearchTTL)
	return a.Run(ctx, task, spec, buildExternalResearchPrompt, parseExternalResearchResponse)
}

// externalResearchTTL matches SPEC_FULL §4.2's key-naming convention:
// research artifacts carry a TTL of roughly 30 days.
const externalResearchTTL = 30 * 24 * time.Hour

func buildExternalResearchPrompt(task contract.AgentTask, upstream map[string]any) (string, string) {
	system := "You are a technical research analyst. Respond with a single JSON object with keys: " +
		"key_insights (array of strings), recommendations (array of strings), " +
		"best_practices (array of strings), implementation_roadmap (array of strings), " +
		"confidence_level (one of low/medium/high)."

	topic, _ := task.Inputs["topic"].(string)
	if topic == "" {
		topic = task.Intent
	}
	prompt := fmt.Sprintf("Research topic:\n%s\n\nCurrent-state findings: %v\n\nProduce the research pack.", topic, upstream)
	return prompt, system
}

func parseExternalResearchResponse(content string) (map[string]any, bool, error) {
	obj, ok := extractJSONObject(content)
	return obj, ok, nil
}
