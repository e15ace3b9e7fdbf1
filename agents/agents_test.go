package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/memoryhub"
	"github.com/tdevteam/upgradeforge/safety"
	"github.com/tdevteam/upgradeforge/testutil/mocks"
)

func newTestDeps(t *testing.T, provider *mocks.MockProvider) contract.Deps {
	t.Helper()
	storage, err := memoryhub.NewJSONFileStorage(t.TempDir())
	require.NoError(t, err)
	hub := memoryhub.NewHub(storage, zap.NewNop(), memoryhub.WithAutoCleanupInterval(0))
	require.NoError(t, hub.Initialize(context.Background()))
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	limiter := safety.NewResourceLimiter(safety.ResourceLimit{
		MaxMemoryMB:        1 << 20,
		MaxCPUPercent:      100,
		MaxFileHandles:     1 << 20,
		MaxExecutionTime:   5 * time.Second,
		MaxConcurrentTasks: 10,
		CheckInterval:      10 * time.Millisecond,
	}, zap.NewNop())

	return contract.Deps{Hub: hub, Limiter: limiter, Provider: provider, Logger: zap.NewNop()}
}

func TestRegistry_CoversAllThirteenAgents(t *testing.T) {
	expected := []string{
		contract.RequirementAnalyzer, contract.StaticAnalyzer, contract.CodeAnalyzer,
		contract.BehaviorAnalyzer, contract.ImpactAnalyzer, contract.QualityGate,
		contract.ExternalResearcher, contract.GapAnalyzer, contract.ArchitectAgent,
		contract.OrchestratorDesigner, contract.PlannerAgent, contract.TaskCreatorAgent,
		contract.CodeGenerator,
	}
	assert.Len(t, Registry, len(expected))
	for _, name := range expected {
		assert.Contains(t, Registry, name)
	}
}

func TestNew_ConstructsOneAgentPerRegistryEntry(t *testing.T) {
	deps := newTestDeps(t, mocks.NewMockProvider())
	built := New(deps)
	assert.Len(t, built, len(Registry))
	for name, agent := range built {
		assert.Equal(t, name, agent.Name())
		assert.Equal(t, "v1", agent.Version())
	}
}

func TestRequirementAnalyzer_ExecuteProducesStructuredResult(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(`here is the analysis: {"functional_requirements": ["login"], "components": []}`)
	agent := NewRequirementAnalyzer(newTestDeps(t, provider))

	res, err := agent.Execute(context.Background(), contract.AgentTask{
		Intent: "add SSO login",
		Inputs: map[string]any{"goal": "add SSO login"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, contract.StatusCompleted, res.Status)
	assert.Equal(t, []any{"login"}, res.Data["functional_requirements"])
}

func TestGapAnalyzer_ExecuteDegradesToRawAnalysisWhenUnparseable(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("no JSON here at all")
	agent := NewGapAnalyzer(newTestDeps(t, provider))

	res, err := agent.Execute(context.Background(), contract.AgentTask{Intent: "find gaps"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "no JSON here at all", res.Data["raw_analysis"])
	assert.Equal(t, true, res.Metadata["parse_degraded"])
}

func TestQualityGate_ExecuteAnnotatesMissingUpstreamBeforeCodeGeneratorRuns(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(`{"passed": true}`)
	agent := NewQualityGate(newTestDeps(t, provider))

	res, err := agent.Execute(context.Background(), contract.AgentTask{Intent: "pre-upgrade baseline"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	missing, ok := res.Metadata["missing_upstream"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{contract.CodeGenerator, contract.StaticAnalyzer}, missing)
}

func TestExternalResearcher_ExecutePersistsWithThirtyDayTTL(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(`{"key_insights": ["use OAuth2"]}`)
	deps := newTestDeps(t, provider)
	agent := NewExternalResearcher(deps)

	_, err := agent.Execute(context.Background(), contract.AgentTask{Intent: "research SSO"})
	require.NoError(t, err)

	val, ok, err := deps.Hub.Get(context.Background(), memoryhub.SharedCtx, contract.CanonicalKey[contract.ExternalResearcher])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{"use OAuth2"}, val.(map[string]any)["key_insights"])
}
