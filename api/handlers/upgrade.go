package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tdevteam/upgradeforge/api"
	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/internal/ctxkeys"
	"github.com/tdevteam/upgradeforge/orchestrator"
	"github.com/tdevteam/upgradeforge/types"
)

// topLevelDocs maps a document name accepted by HandleDocument to the
// top-level UpgradeReport result it renders. Current-state documents are
// not in this map: resolveDocument looks them up in
// UpgradeReport.CurrentState under the same agent-name keys.
var topLevelDocs = map[string]func(*orchestrator.UpgradeReport) contract.AgentResult{
	contract.GapAnalyzer:          func(r *orchestrator.UpgradeReport) contract.AgentResult { return r.GapReport },
	contract.ArchitectAgent:       func(r *orchestrator.UpgradeReport) contract.AgentResult { return r.Architecture },
	contract.OrchestratorDesigner: func(r *orchestrator.UpgradeReport) contract.AgentResult { return r.OrchestratorDesign },
	contract.PlannerAgent:         func(r *orchestrator.UpgradeReport) contract.AgentResult { return r.Plan },
	contract.TaskCreatorAgent:     func(r *orchestrator.UpgradeReport) contract.AgentResult { return r.Tasks },
	contract.CodeGenerator:        func(r *orchestrator.UpgradeReport) contract.AgentResult { return r.GeneratedCode },
	contract.QualityGate:          func(r *orchestrator.UpgradeReport) contract.AgentResult { return r.QualityVerdict },
	contract.ExternalResearcher:   func(r *orchestrator.UpgradeReport) contract.AgentResult { return r.Research },
}

// UpgradeHandler serves the Control API's launch-and-poll surface over an
// Orchestrator: analyze launches a run, the rest inspect its progress and
// artifacts via the run registry.
type UpgradeHandler struct {
	orch       *orchestrator.Orchestrator
	logger     *zap.Logger
	reportsDir string
}

// NewUpgradeHandler builds an UpgradeHandler over an already-constructed
// Orchestrator. reportsDir is only used to render on-demand document
// artifacts (contract.GenerateReport); it may be empty to disable
// HandleDocument's markdown rendering path.
func NewUpgradeHandler(orch *orchestrator.Orchestrator, reportsDir string, logger *zap.Logger) *UpgradeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpgradeHandler{orch: orch, logger: logger, reportsDir: reportsDir}
}

// HandleAnalyze handles POST /api/upgrade/analyze: it validates the
// request, registers a new run, and launches the Orchestrator in the
// background, returning the run's initial status immediately.
//
// @Summary Launch an upgrade orchestration run
// @Description Starts the 9-phase orchestrator loop against a target project
// @Tags upgrade
// @Accept json
// @Produce json
// @Param request body api.AnalyzeRequest true "Evolution goal and target project"
// @Success 202 {object} Response{data=api.RunStatus}
// @Failure 400 {object} Response
// @Router /api/upgrade/analyze [post]
func (h *UpgradeHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.AnalyzeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Requirements == "" || req.ProjectPath == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest,
			"requirements and project_path are required", h.logger)
		return
	}

	taskID := "task-" + uuid.NewString()
	h.orch.Registry.Start(taskID, time.Now())

	task := contract.AgentTask{
		Intent:        req.Requirements,
		CorrelationID: taskID,
		Inputs: map[string]any{
			"project_path":              req.ProjectPath,
			"enable_dynamic_analysis":   req.EnableDynamicAnalysis,
			"include_behavior_analysis": req.IncludeBehaviorAnalysis,
			"generate_impact_matrix":    req.GenerateImpactMatrix,
		},
	}

	// The request's OTel span dies with the request; capture its trace ID
	// now so the detached run below can still be correlated back to it.
	runCtx := context.Background()
	if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
		runCtx = ctxkeys.WithTraceID(runCtx, sc.TraceID().String())
	}

	go func() {
		// Runs detached from the request's context: the orchestrator
		// owns its own MaxExecutionTime bound (SPEC_FULL §4.4).
		if _, err := h.orch.Run(runCtx, taskID, task); err != nil {
			h.logger.Warn("upgrade run ended with error", zap.String("task_id", taskID), zap.Error(err))
		}
	}()

	WriteJSON(w, http.StatusAccepted, Response{
		Success:   true,
		Data:      api.RunStatus{TaskID: taskID, Status: string(contract.StatusPending)},
		Timestamp: time.Now(),
	})
}

// HandleStatus handles GET /api/upgrade/status/{task_id}.
//
// @Summary Poll an upgrade run's status
// @Tags upgrade
// @Produce json
// @Param task_id path string true "Run identifier"
// @Success 200 {object} Response{data=api.RunStatus}
// @Failure 404 {object} Response
// @Router /api/upgrade/status/{task_id} [get]
func (h *UpgradeHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	state, ok := h.orch.Registry.Get(taskID)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest, "unknown task_id", h.logger)
		return
	}

	WriteSuccess(w, api.RunStatus{
		TaskID:       state.TaskID,
		Status:       string(state.Status),
		Progress:     state.Progress,
		CurrentPhase: state.CurrentPhase,
		Message:      state.Error,
	})
}

// HandleReport handles GET /api/upgrade/report/{task_id}, returning the
// full UpgradeReport once the run has completed.
//
// @Summary Retrieve a completed run's UpgradeReport
// @Tags upgrade
// @Produce json
// @Param task_id path string true "Run identifier"
// @Success 200 {object} Response{data=orchestrator.UpgradeReport}
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Router /api/upgrade/report/{task_id} [get]
func (h *UpgradeHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	state, ok := h.orch.Registry.Get(taskID)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest, "unknown task_id", h.logger)
		return
	}
	if state.Report == nil {
		WriteErrorMessage(w, http.StatusConflict, types.ErrInvalidRequest, "run has not completed yet", h.logger)
		return
	}

	WriteSuccess(w, state.Report)
}

// HandleDocument handles GET /api/upgrade/document/{task_id}/{doc_name},
// rendering one sub-result of a completed UpgradeReport as a standalone
// markdown report via contract.GenerateReport. doc_name is one of the
// agent name constants in package contract (e.g. "GapAnalyzer",
// "ArchitectAgent", "CodeGenerator", or a current-state analyzer name).
//
// @Summary Retrieve one generated document from a completed run
// @Tags upgrade
// @Produce json
// @Param task_id path string true "Run identifier"
// @Param doc_name path string true "Agent name whose result to render"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Router /api/upgrade/document/{task_id}/{doc_name} [get]
func (h *UpgradeHandler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("task_id")
	docName := r.PathValue("doc_name")

	state, ok := h.orch.Registry.Get(taskID)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest, "unknown task_id", h.logger)
		return
	}
	if state.Report == nil {
		WriteErrorMessage(w, http.StatusConflict, types.ErrInvalidRequest, "run has not completed yet", h.logger)
		return
	}

	result, ok := resolveDocument(state.Report, docName)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrInvalidRequest, "unknown doc_name", h.logger)
		return
	}

	if h.reportsDir == "" {
		WriteSuccess(w, result)
		return
	}

	ref, err := contract.GenerateReport(h.reportsDir, docName, "upgrade_document", result, contract.ReportMarkdown, time.Now())
	if err != nil {
		WriteErrorMessage(w, http.StatusInternalServerError, types.ErrInternalError, "failed to render document", h.logger)
		return
	}

	WriteSuccess(w, map[string]any{"result": result, "report_ref": ref})
}

func resolveDocument(report *orchestrator.UpgradeReport, docName string) (contract.AgentResult, bool) {
	if res, ok := report.CurrentState[docName]; ok {
		return res, true
	}
	if fn, ok := topLevelDocs[docName]; ok {
		return fn(report), true
	}
	return contract.AgentResult{}, false
}

// HandleList handles GET /api/upgrade/list, returning every run known to
// the registry (of any status) in no particular order.
//
// @Summary List known upgrade runs
// @Tags upgrade
// @Produce json
// @Success 200 {object} Response{data=api.TaskListResponse}
// @Router /api/upgrade/list [get]
func (h *UpgradeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	states := h.orch.Registry.List()
	summaries := make([]api.TaskSummary, 0, len(states))
	for _, s := range states {
		summaries = append(summaries, api.TaskSummary{
			TaskID:       s.TaskID,
			Status:       string(s.Status),
			CurrentPhase: s.CurrentPhase,
			StartedAt:    s.StartedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}

	WriteSuccess(w, api.TaskListResponse{Tasks: summaries})
}
