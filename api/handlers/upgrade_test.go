package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tdevteam/upgradeforge/agents"
	"github.com/tdevteam/upgradeforge/api"
	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/memoryhub"
	"github.com/tdevteam/upgradeforge/orchestrator"
	"github.com/tdevteam/upgradeforge/safety"
	"github.com/tdevteam/upgradeforge/testutil/mocks"
)

const upgradeGenericResponse = `{"gaps": [], "generated_files": [{"path": "main.go", "language": "go", "code": "package main"}],
"passed": true, "tasks": [{"name": "core"}], "functional_requirements": ["login"]}`

func newTestUpgradeHandler(t *testing.T, provider *mocks.MockProvider) *UpgradeHandler {
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
	deps := contract.Deps{Hub: hub, Limiter: limiter, Provider: provider, Logger: zap.NewNop()}
	agentSet := agents.New(deps)

	cfg := orchestrator.DefaultConfig()
	cfg.MaxIterations = 1
	orch := orchestrator.New(hub, agentSet, cfg, zap.NewNop())
	return NewUpgradeHandler(orch, "", zap.NewNop())
}

func awaitTerminal(t *testing.T, h *UpgradeHandler, taskID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		state, ok := h.orch.Registry.Get(taskID)
		if ok && (state.Status == contract.StatusCompleted || state.Status == contract.StatusFailed) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run %s did not reach a terminal state in time", taskID)
}

func TestUpgradeHandler_HandleAnalyze(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(upgradeGenericResponse)
	h := newTestUpgradeHandler(t, provider)

	body, err := json.Marshal(api.AnalyzeRequest{Requirements: "add SSO login", ProjectPath: "/workspace/svc"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/upgrade/analyze", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	h.HandleAnalyze(w, r)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	taskID, _ := data["task_id"].(string)
	assert.NotEmpty(t, taskID)

	awaitTerminal(t, h, taskID)
}

func TestUpgradeHandler_HandleAnalyze_RejectsMissingFields(t *testing.T) {
	h := newTestUpgradeHandler(t, mocks.NewMockProvider().WithResponse(upgradeGenericResponse))

	body, err := json.Marshal(api.AnalyzeRequest{Requirements: "", ProjectPath: ""})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/upgrade/analyze", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")

	h.HandleAnalyze(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpgradeHandler_HandleStatus_UnknownTask(t *testing.T) {
	h := newTestUpgradeHandler(t, mocks.NewMockProvider().WithResponse(upgradeGenericResponse))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/upgrade/status/does-not-exist", nil)
	r.SetPathValue("task_id", "does-not-exist")

	h.HandleStatus(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpgradeHandler_HandleReport_NotReadyThenReady(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(upgradeGenericResponse)
	h := newTestUpgradeHandler(t, provider)

	taskID := "task-report-1"
	h.orch.Registry.Start(taskID, time.Now())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/upgrade/report/"+taskID, nil)
	r.SetPathValue("task_id", taskID)
	h.HandleReport(w, r)
	assert.Equal(t, http.StatusConflict, w.Code)

	_, err := h.orch.Run(context.Background(), taskID, contract.AgentTask{Intent: "add SSO login"})
	require.NoError(t, err)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/api/upgrade/report/"+taskID, nil)
	r.SetPathValue("task_id", taskID)
	h.HandleReport(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
}

func TestUpgradeHandler_HandleDocument(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(upgradeGenericResponse)
	h := newTestUpgradeHandler(t, provider)

	taskID := "task-doc-1"
	_, err := h.orch.Run(context.Background(), taskID, contract.AgentTask{Intent: "add SSO login"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/upgrade/document/"+taskID+"/"+contract.GapAnalyzer, nil)
	r.SetPathValue("task_id", taskID)
	r.SetPathValue("doc_name", contract.GapAnalyzer)
	h.HandleDocument(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/api/upgrade/document/"+taskID+"/NotAnAgent", nil)
	r.SetPathValue("task_id", taskID)
	r.SetPathValue("doc_name", "NotAnAgent")
	h.HandleDocument(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpgradeHandler_HandleList(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(upgradeGenericResponse)
	h := newTestUpgradeHandler(t, provider)

	h.orch.Registry.Start("task-a", time.Now())
	h.orch.Registry.Start("task-b", time.Now())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/upgrade/list", nil)
	h.HandleList(w, r)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
}
