package contract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tdevteam/upgradeforge/llmprovider"
	"github.com/tdevteam/upgradeforge/memoryhub"
	"github.com/tdevteam/upgradeforge/safety"
	"github.com/tdevteam/upgradeforge/testutil/mocks"
)

func newTestHub(t *testing.T) *memoryhub.Hub {
	t.Helper()
	storage, err := memoryhub.NewJSONFileStorage(t.TempDir())
	require.NoError(t, err)
	hub := memoryhub.NewHub(storage, zap.NewNop(), memoryhub.WithAutoCleanupInterval(0))
	require.NoError(t, hub.Initialize(context.Background()))
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	return hub
}

func permissiveLimiter(t *testing.T) *safety.ResourceLimiter {
	t.Helper()
	return safety.NewResourceLimiter(safety.ResourceLimit{
		MaxMemoryMB:        1 << 20,
		MaxCPUPercent:      100,
		MaxFileHandles:     1 << 20,
		MaxExecutionTime:   5 * time.Second,
		MaxConcurrentTasks: 10,
		CheckInterval:      10 * time.Millisecond,
	}, zap.NewNop())
}

func newTestBaseAgent(t *testing.T, name string, provider *mocks.MockProvider) *BaseAgent {
	t.Helper()
	deps := Deps{
		Hub:      newTestHub(t),
		Limiter:  permissiveLimiter(t),
		Provider: provider,
		Logger:   zap.NewNop(),
	}
	return NewBaseAgent(name, "v1", deps, safety.DefaultBreakerConfig())
}

func echoParser(content string) (map[string]any, bool, error) {
	return map[string]any{"summary": content}, true, nil
}

func TestBaseAgent_RunPersistsToCanonicalKeyAndReportArchive(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("analysis complete")
	agent := newTestBaseAgent(t, StaticAnalyzer, provider)

	spec := agent.CanonicalPersistSpec("static_analysis", 0)
	res, err := agent.Run(context.Background(), AgentTask{Intent: "analyze"}, spec,
		func(task AgentTask, upstream map[string]any) (string, string) { return "analyze this", "" },
		echoParser,
	)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, "analysis complete", res.Data["summary"])
	assert.Equal(t, StaticAnalyzer, res.Metadata["agent_name"])

	val, ok, err := agent.hub.Get(context.Background(), memoryhub.SharedCtx, CanonicalKey[StaticAnalyzer])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "analysis complete", val.(map[string]any)["summary"])
}

func TestBaseAgent_RunAnnotatesMissingUpstreamWithoutFailing(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("gap report")
	agent := newTestBaseAgent(t, GapAnalyzer, provider)

	res, err := agent.Run(context.Background(), AgentTask{Intent: "find_gaps"}, agent.CanonicalPersistSpec("gap_report", 0),
		func(task AgentTask, upstream map[string]any) (string, string) { return "find gaps", "" },
		echoParser,
	)
	require.NoError(t, err)
	assert.True(t, res.Success)
	missing, ok := res.Metadata["missing_upstream"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, append([]string{RequirementAnalyzer, ExternalResearcher}, CurrentStateAnalyzers...), missing)
}

func TestBaseAgent_RunReadsUpstreamWhenPresent(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("architecture design")
	agent := newTestBaseAgent(t, ArchitectAgent, provider)

	require.NoError(t, agent.hub.Put(context.Background(), memoryhub.SharedCtx, CanonicalKey[GapAnalyzer], map[string]any{"gaps": []string{"auth"}}))

	var sawUpstream map[string]any
	_, err := agent.Run(context.Background(), AgentTask{Intent: "design"}, agent.CanonicalPersistSpec("architecture", 0),
		func(task AgentTask, upstream map[string]any) (string, string) {
			sawUpstream = upstream
			return "design", ""
		},
		echoParser,
	)
	require.NoError(t, err)
	require.Contains(t, sawUpstream, GapAnalyzer)
}

func TestBaseAgent_RunFallsBackToRawAnalysisOnParseFailure(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("not the shape we wanted")
	agent := newTestBaseAgent(t, CodeGenerator, provider)

	res, err := agent.Run(context.Background(), AgentTask{Intent: "generate"}, agent.CanonicalPersistSpec("generated_code", 0),
		func(task AgentTask, upstream map[string]any) (string, string) { return "generate code", "" },
		func(content string) (map[string]any, bool, error) { return nil, false, nil },
	)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "not the shape we wanted", res.Data["raw_analysis"])
	assert.Equal(t, true, res.Metadata["parse_degraded"])
}

func TestBaseAgent_RunReturnsFailedResultOnGenerateError(t *testing.T) {
	boom := &safety.ExceededError{Kind: safety.ViolationTime, Detail: "boom"}
	provider := mocks.NewMockProvider().WithError(boom)
	agent := newTestBaseAgent(t, QualityGate, provider)

	res, err := agent.Run(context.Background(), AgentTask{Intent: "validate"}, agent.CanonicalPersistSpec("quality_report", 0),
		func(task AgentTask, upstream map[string]any) (string, string) { return "validate", "" },
		echoParser,
	)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Error, "boom")
}

func TestBaseAgent_RunSurfacesRetryCountFromGenerateResultMetadata(t *testing.T) {
	provider := mocks.NewMockProvider().WithGenerateFunc(
		func(ctx context.Context, req llmprovider.GenerateRequest) (llmprovider.GenerateResult, error) {
			return llmprovider.GenerateResult{
				Content: "validated",
				Success: true,
				Metadata: map[string]any{"retry_count": 2},
			}, nil
		})
	agent := newTestBaseAgent(t, QualityGate, provider)

	res, err := agent.Run(context.Background(), AgentTask{Intent: "validate"}, agent.CanonicalPersistSpec("quality_report", 0),
		func(task AgentTask, upstream map[string]any) (string, string) { return "validate", "" },
		echoParser,
	)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Metadata["retry_count"])
}

func TestBaseAgent_NameAndVersion(t *testing.T) {
	agent := newTestBaseAgent(t, PlannerAgent, mocks.NewMockProvider())
	assert.Equal(t, PlannerAgent, agent.Name())
	assert.Equal(t, "v1", agent.Version())
}
