package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tdevteam/upgradeforge/agents"
	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/llmprovider"
	"github.com/tdevteam/upgradeforge/memoryhub"
	"github.com/tdevteam/upgradeforge/safety"
	"github.com/tdevteam/upgradeforge/testutil/mocks"
)

const genericJSONResponse = `{"gaps": [], "generated_files": [{"path": "main.go", "language": "go", "code": "package main"}],
"passed": true, "tasks": [{"name": "core"}], "functional_requirements": ["login"]}`

func newTestHub(t *testing.T) *memoryhub.Hub {
	t.Helper()
	storage, err := memoryhub.NewJSONFileStorage(t.TempDir())
	require.NoError(t, err)
	hub := memoryhub.NewHub(storage, zap.NewNop(), memoryhub.WithAutoCleanupInterval(0))
	require.NoError(t, hub.Initialize(context.Background()))
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	return hub
}

func newTestOrchestrator(t *testing.T, provider *mocks.MockProvider, cfg Config) (*Orchestrator, *memoryhub.Hub) {
	t.Helper()
	hub := newTestHub(t)
	limiter := safety.NewResourceLimiter(safety.ResourceLimit{
		MaxMemoryMB:        1 << 20,
		MaxCPUPercent:      100,
		MaxFileHandles:     1 << 20,
		MaxExecutionTime:   5 * time.Second,
		MaxConcurrentTasks: 10,
		CheckInterval:      10 * time.Millisecond,
	}, zap.NewNop())
	deps := contract.Deps{Hub: hub, Limiter: limiter, Provider: provider, Logger: zap.NewNop()}
	agentSet := agents.New(deps)
	return New(hub, agentSet, cfg, zap.NewNop()), hub
}

func TestOrchestrator_RunConvergesOnFirstIteration(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(genericJSONResponse)
	cfg := DefaultConfig()
	cfg.MaxIterations = 3
	orch, hub := newTestOrchestrator(t, provider, cfg)

	report, err := orch.Run(context.Background(), "task-1", contract.AgentTask{Intent: "add SSO login"})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Converged)
	assert.Equal(t, 1, report.Iterations)
	assert.True(t, report.GapReport.Success)
	assert.True(t, report.GeneratedCode.Success)

	state, ok := orch.Registry.Get("task-1")
	require.True(t, ok)
	assert.Equal(t, contract.StatusCompleted, state.Status)

	_, found, getErr := hub.Get(context.Background(), memoryhub.OrchestratorCtx, "task-1_report")
	require.NoError(t, getErr)
	assert.False(t, found, "report key should be namespaced as task_<id>_report")

	_, found, getErr = hub.Get(context.Background(), memoryhub.OrchestratorCtx, "task_task-1_report")
	require.NoError(t, getErr)
	assert.True(t, found)
}

func TestOrchestrator_RunAbortsWhenRequirementAnalyzerFails(t *testing.T) {
	provider := mocks.NewMockProvider().WithError(&safety.ExceededError{Kind: safety.ViolationTime, Detail: "boom"})
	orch, _ := newTestOrchestrator(t, provider, DefaultConfig())

	report, err := orch.Run(context.Background(), "task-2", contract.AgentTask{Intent: "add SSO login"})
	require.Error(t, err)
	assert.Nil(t, report)

	var failure *criticalFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, contract.RequirementAnalyzer, failure.agent)

	state, ok := orch.Registry.Get("task-2")
	require.True(t, ok)
	assert.Equal(t, contract.StatusFailed, state.Status)
	assert.Contains(t, state.Error, "boom")
}

func TestOrchestrator_RunAbortsWhenGapAnalyzerFails(t *testing.T) {
	provider := mocks.NewMockProvider().WithGenerateFunc(func(_ context.Context, req llmprovider.GenerateRequest) (llmprovider.GenerateResult, error) {
		if strings.Contains(req.SystemPrompt, "gap analyst") {
			return llmprovider.GenerateResult{}, &safety.ExceededError{Kind: safety.ViolationTime, Detail: "gap analysis unavailable"}
		}
		return llmprovider.GenerateResult{Content: genericJSONResponse, Success: true}, nil
	})
	orch, _ := newTestOrchestrator(t, provider, DefaultConfig())

	report, err := orch.Run(context.Background(), "task-3", contract.AgentTask{Intent: "add SSO login"})
	require.Error(t, err)
	assert.Nil(t, report)

	var failure *criticalFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, contract.GapAnalyzer, failure.agent)
}

func TestOrchestrator_RunExhaustsIterationCapWhenGapsNeverClear(t *testing.T) {
	neverConverges := `{"gaps": [{"description": "still missing auth", "severity": "high"}],
"generated_files": [{"path": "main.go"}], "passed": false, "tasks": [{"name": "core"}]}`
	provider := mocks.NewMockProvider().WithResponse(neverConverges)
	cfg := DefaultConfig()
	cfg.MaxIterations = 2
	orch, _ := newTestOrchestrator(t, provider, cfg)

	report, err := orch.Run(context.Background(), "task-4", contract.AgentTask{Intent: "add SSO login"})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.False(t, report.Converged)
	assert.Equal(t, cfg.MaxIterations, report.Iterations)
}

func TestOrchestrator_RunToleratesNonCriticalAnalyzerFailure(t *testing.T) {
	provider := mocks.NewMockProvider().WithGenerateFunc(func(_ context.Context, req llmprovider.GenerateRequest) (llmprovider.GenerateResult, error) {
		if strings.Contains(req.SystemPrompt, "static analyst") {
			return llmprovider.GenerateResult{}, &safety.ExceededError{Kind: safety.ViolationTime, Detail: "static analysis down"}
		}
		return llmprovider.GenerateResult{Content: genericJSONResponse, Success: true}, nil
	})
	orch, _ := newTestOrchestrator(t, provider, DefaultConfig())

	report, err := orch.Run(context.Background(), "task-5", contract.AgentTask{Intent: "add SSO login"})
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.True(t, report.Converged)

	staticResult, ok := report.CurrentState[contract.StaticAnalyzer]
	require.True(t, ok)
	assert.False(t, staticResult.Success)
}

func TestOrchestrator_RegistryTracksPhaseAndIteration(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(genericJSONResponse)
	orch, _ := newTestOrchestrator(t, provider, DefaultConfig())

	_, err := orch.Run(context.Background(), "task-6", contract.AgentTask{Intent: "add SSO login"})
	require.NoError(t, err)

	state, ok := orch.Registry.Get("task-6")
	require.True(t, ok)
	assert.Equal(t, "completed", state.CurrentPhase)
	assert.Equal(t, float64(1), state.Progress)

	all := orch.Registry.List()
	assert.Len(t, all, 1)
}
