package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tdevteam/upgradeforge/contract"
	"github.com/tdevteam/upgradeforge/internal/ctxkeys"
	"github.com/tdevteam/upgradeforge/internal/metrics"
	"github.com/tdevteam/upgradeforge/internal/pool"
	"github.com/tdevteam/upgradeforge/memoryhub"
	"github.com/tdevteam/upgradeforge/workflow"
)

// Config tunes one Orchestrator's phase policy (SPEC_FULL §4.4).
type Config struct {
	// MaxIterations caps the design→plan→build→validate→convergence loop.
	MaxIterations int
	// ConvergenceFloor is the GapAnalyzer severity rank ("low"/"medium"/
	// "high"/"critical") at or below which the loop is considered converged.
	ConvergenceFloor string
	// MaxConcurrentTasks sizes the GoroutinePool bounding the current-state
	// fan-out; it should match ResourceLimiter.MaxConcurrentTasks.
	MaxConcurrentTasks int
	// EnableResearch toggles the optional ExternalResearcher phase.
	EnableResearch bool
	// EnableOrchestratorDesign toggles the optional OrchestratorDesigner step.
	EnableOrchestratorDesign bool
	// MaxExecutionTime bounds the whole run via context.WithTimeout.
	MaxExecutionTime time.Duration
}

// DefaultConfig mirrors the reference implementation's defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:            3,
		ConvergenceFloor:         "low",
		MaxConcurrentTasks:       5,
		EnableResearch:           true,
		EnableOrchestratorDesign: false,
		MaxExecutionTime:         30 * time.Minute,
	}
}

// Orchestrator drives one upgrade run end to end through the agent
// registry, writing status transitions to the Registry and to O_CTX.
type Orchestrator struct {
	hub      *memoryhub.Hub
	agents   map[string]contract.Agent
	pool     *pool.GoroutinePool
	cfg      Config
	logger   *zap.Logger
	Registry *Registry
	metrics  *metrics.Collector
}

// SetMetrics attaches a Collector so runAgent and the phase loop report
// agent_executions_total and orchestrator_phase_duration_seconds. Optional:
// a nil or never-set Collector disables metrics recording.
func (o *Orchestrator) SetMetrics(c *metrics.Collector) {
	o.metrics = c
}

// New constructs an Orchestrator over a fully-built agent set (see
// agents.New) and a shared MemoryHub for run-status mirroring.
func New(hub *memoryhub.Hub, agentSet map[string]contract.Agent, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = DefaultConfig().MaxConcurrentTasks
	}
	if cfg.MaxExecutionTime <= 0 {
		cfg.MaxExecutionTime = DefaultConfig().MaxExecutionTime
	}
	if cfg.ConvergenceFloor == "" {
		cfg.ConvergenceFloor = DefaultConfig().ConvergenceFloor
	}
	return &Orchestrator{
		hub:    hub,
		agents: agentSet,
		pool: pool.NewGoroutinePool(pool.GoroutinePoolConfig{
			MaxWorkers: cfg.MaxConcurrentTasks,
			QueueSize:  len(contract.CurrentStateAnalyzers) * 2,
		}),
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "orchestrator")),
		Registry: NewRegistry(),
	}
}

// criticalFailure short-circuits Run when a critical agent (SPEC_FULL §4.4
// "Failure semantics") does not succeed.
type criticalFailure struct {
	agent  string
	result contract.AgentResult
}

func (e *criticalFailure) Error() string {
	return fmt.Sprintf("critical agent %s failed: %s", e.agent, e.result.Error)
}

// Run executes the full phase sequence for taskID and returns the assembled
// UpgradeReport, or an error if a critical agent failed or the run timed
// out. The run's state is visible via o.Registry and mirrored into O_CTX
// throughout.
func (o *Orchestrator) Run(ctx context.Context, taskID string, task contract.AgentTask) (*UpgradeReport, error) {
	now := time.Now()
	o.Registry.Start(taskID, now)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.MaxExecutionTime)
	defer cancel()
	ctx = ctxkeys.WithRunID(ctx, taskID)

	o.setPhase(taskID, "requirement", contract.StatusRunning)
	requirement := o.runAgent(ctx, contract.RequirementAnalyzer, task)
	if !requirement.Success {
		return o.fail(taskID, &criticalFailure{agent: contract.RequirementAnalyzer, result: requirement})
	}
	o.persistStatusSnapshot(ctx, taskID)

	o.setPhase(taskID, "current_state", contract.StatusRunning)
	currentState := o.runCurrentStatePhase(ctx, task)

	var research contract.AgentResult
	if o.cfg.EnableResearch {
		o.setPhase(taskID, "research", contract.StatusRunning)
		research = o.runAgent(ctx, contract.ExternalResearcher, task)
	}

	o.setPhase(taskID, "gap", contract.StatusRunning)
	gap := o.runAgent(ctx, contract.GapAnalyzer, task)
	if !gap.Success {
		return o.fail(taskID, &criticalFailure{agent: contract.GapAnalyzer, result: gap})
	}

	var (
		architecture, orchestratorDesign, plan, tasksResult, code, quality contract.AgentResult
		converged_                                                        bool
		iteration                                                         int
		phaseTimings                                                      []PhaseTiming
	)

	floor := SeverityFloor(o.cfg.ConvergenceFloor)

	for iteration = 0; iteration < o.cfg.MaxIterations; iteration++ {
		o.setIteration(taskID, iteration)

		start := time.Now()
		o.setPhase(taskID, "design", contract.StatusRunning)
		architecture = o.runAgent(ctx, contract.ArchitectAgent, task)
		if o.cfg.EnableOrchestratorDesign {
			orchestratorDesign = o.runAgent(ctx, contract.OrchestratorDesigner, task)
		}
		phaseTimings = append(phaseTimings, PhaseTiming{Phase: "design", Elapsed: time.Since(start), Started: start})
		o.recordPhaseDuration("design", time.Since(start))

		start = time.Now()
		o.setPhase(taskID, "plan", contract.StatusRunning)
		plan = o.runAgent(ctx, contract.PlannerAgent, task)
		if !plan.Success {
			return o.fail(taskID, &criticalFailure{agent: contract.PlannerAgent, result: plan})
		}
		tasksResult = o.runAgent(ctx, contract.TaskCreatorAgent, task)
		phaseTimings = append(phaseTimings, PhaseTiming{Phase: "plan", Elapsed: time.Since(start), Started: start})
		o.recordPhaseDuration("plan", time.Since(start))

		start = time.Now()
		o.setPhase(taskID, "build", contract.StatusRunning)
		code = o.runBuildPhase(ctx, task, tasksResult)
		if !code.Success {
			return o.fail(taskID, &criticalFailure{agent: contract.CodeGenerator, result: code})
		}
		phaseTimings = append(phaseTimings, PhaseTiming{Phase: "build", Elapsed: time.Since(start), Started: start})
		o.recordPhaseDuration("build", time.Since(start))

		start = time.Now()
		o.setPhase(taskID, "validate", contract.StatusRunning)
		quality = o.runAgent(ctx, contract.QualityGate, task)
		phaseTimings = append(phaseTimings, PhaseTiming{Phase: "validate", Elapsed: time.Since(start), Started: start})
		o.recordPhaseDuration("validate", time.Since(start))

		start = time.Now()
		o.setPhase(taskID, "convergence", contract.StatusRunning)
		currentState = o.runCurrentStatePhase(ctx, task)
		gap = o.runAgent(ctx, contract.GapAnalyzer, task)
		phaseTimings = append(phaseTimings, PhaseTiming{Phase: "convergence", Elapsed: time.Since(start), Started: start})
		o.recordPhaseDuration("convergence", time.Since(start))

		var severityMax int
		converged_, severityMax = converged(gap.Data, floor)
		o.logger.Info("convergence check",
			zap.String("task_id", taskID), zap.Int("iteration", iteration),
			zap.Int("severity_max", severityMax), zap.Bool("converged", converged_))
		if converged_ {
			break
		}
	}

	report := &UpgradeReport{
		TaskID:             taskID,
		EvolutionGoal:      task.Intent,
		CurrentState:       currentState,
		Research:           research,
		GapReport:          gap,
		Architecture:       architecture,
		OrchestratorDesign: orchestratorDesign,
		Plan:               plan,
		Tasks:              tasksResult,
		GeneratedCode:      code,
		QualityVerdict:     quality,
		PhaseTimings:       phaseTimings,
		Converged:          converged_,
		Iterations:         min(iteration+1, o.cfg.MaxIterations),
	}

	o.Registry.update(taskID, time.Now(), func(s *RunState) {
		s.Status = contract.StatusCompleted
		s.Progress = 1
		s.CurrentPhase = "completed"
		s.Report = report
	})
	o.persistStatusSnapshot(ctx, taskID)
	o.persistReport(ctx, taskID, report)

	return report, nil
}

// recordPhaseDuration reports one design/plan/build/validate/convergence
// phase's wall-clock time, a no-op when no Collector is attached.
func (o *Orchestrator) recordPhaseDuration(phase string, elapsed time.Duration) {
	if o.metrics != nil {
		o.metrics.RecordPhaseDuration(phase, elapsed)
	}
}

func (o *Orchestrator) runAgent(ctx context.Context, name string, task contract.AgentTask) contract.AgentResult {
	agent, ok := o.agents[name]
	if !ok {
		return contract.AgentResult{Success: false, Status: contract.StatusFailed, Error: fmt.Sprintf("orchestrator: no agent registered for %q", name)}
	}
	start := time.Now()
	res, err := agent.Execute(ctx, task)
	elapsed := time.Since(start)

	if o.metrics != nil {
		status := "success"
		if err != nil || !res.Success {
			status = "failure"
		}
		o.metrics.RecordAgentExecution(name, "orchestrator_agent", status, elapsed)
	}

	if err != nil {
		o.recordObservation(ctx, name, err)
		return contract.AgentResult{Success: false, Status: contract.StatusFailed, Error: err.Error()}
	}
	if !res.Success {
		o.recordObservation(ctx, name, fmt.Errorf("%s", res.Error))
	}
	return res
}

// runCurrentStatePhase fans the four current-state analyzers plus
// QualityGate out across the GoroutinePool-bounded ParallelWorkflow
// (SPEC_FULL §4.4 concurrency policy).
func (o *Orchestrator) runCurrentStatePhase(ctx context.Context, task contract.AgentTask) map[string]contract.AgentResult {
	tasks := make([]workflow.Task, 0, len(contract.CurrentStateAnalyzers))
	for _, name := range contract.CurrentStateAnalyzers {
		name := name
		tasks = append(tasks, workflow.NewFuncTask(name, func(ctx context.Context, _ any) (any, error) {
			var result contract.AgentResult
			err := o.pool.SubmitWait(ctx, func(ctx context.Context) error {
				result = o.runAgent(ctx, name, task)
				return nil
			})
			return result, err
		}))
	}

	aggregator := workflow.NewFuncAggregator(func(_ context.Context, results []workflow.TaskResult) (any, error) {
		collected := make(map[string]contract.AgentResult, len(results))
		for _, r := range results {
			if res, ok := r.Result.(contract.AgentResult); ok {
				collected[r.TaskName] = res
			}
		}
		return collected, nil
	})

	wf := workflow.NewParallelWorkflow("current_state_phase", "runs the current-state analyzers concurrently", aggregator, tasks...)
	out, err := wf.Execute(ctx, nil)
	if err != nil {
		o.logger.Warn("current-state phase reported errors", zap.Error(err))
	}
	collected, _ := out.(map[string]contract.AgentResult)
	return collected
}

// runBuildPhase invokes CodeGenerator once per planned component
// (SPEC_FULL §4.4 step 7) and merges the generated files of every
// successful invocation into a single canonical result.
func (o *Orchestrator) runBuildPhase(ctx context.Context, task contract.AgentTask, plannedTasks contract.AgentResult) contract.AgentResult {
	components := extractComponents(plannedTasks)
	if len(components) == 0 {
		components = []string{"default"}
	}

	var mergedFiles []any
	var lastSuccess contract.AgentResult
	succeeded := 0
	for _, component := range components {
		compTask := task
		compTask.Inputs = cloneInputs(task.Inputs)
		compTask.Inputs["component"] = component

		res := o.runAgent(ctx, contract.CodeGenerator, compTask)
		if !res.Success {
			continue
		}
		succeeded++
		lastSuccess = res
		if files, ok := res.Data["generated_files"].([]any); ok {
			mergedFiles = append(mergedFiles, files...)
		}
	}

	if succeeded == 0 {
		return contract.AgentResult{Success: false, Status: contract.StatusFailed, Error: "code generation failed for every planned component"}
	}

	merged := contract.AgentResult{
		Success: true,
		Status:  contract.StatusCompleted,
		Data: map[string]any{
			"generated_files": mergedFiles,
			"total_files":     float64(len(mergedFiles)),
		},
		Metadata: lastSuccess.Metadata,
	}

	if o.hub != nil {
		_ = o.hub.Put(ctx, memoryhub.SharedCtx, contract.CanonicalKey[contract.CodeGenerator], merged.Data,
			memoryhub.WithTags(contract.CodeGenerator, "generated_code"))
	}

	return merged
}

func extractComponents(plannedTasks contract.AgentResult) []string {
	raw, ok := plannedTasks.Data["tasks"].([]any)
	if !ok {
		return nil
	}
	components := make([]string, 0, len(raw))
	for _, t := range raw {
		entry, ok := t.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := entry["name"].(string); ok && name != "" {
			components = append(components, name)
		}
	}
	return components
}

func cloneInputs(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (o *Orchestrator) setPhase(taskID, phase string, status contract.Status) {
	o.Registry.update(taskID, time.Now(), func(s *RunState) {
		s.CurrentPhase = phase
		s.Status = status
	})
}

func (o *Orchestrator) setIteration(taskID string, iteration int) {
	o.Registry.update(taskID, time.Now(), func(s *RunState) {
		s.Iteration = iteration
	})
}

func (o *Orchestrator) fail(taskID string, err *criticalFailure) (*UpgradeReport, error) {
	o.Registry.update(taskID, time.Now(), func(s *RunState) {
		s.Status = contract.StatusFailed
		s.Error = err.Error()
	})
	o.logger.Error("run aborted: critical agent failed", zap.String("task_id", taskID), zap.Error(err))
	return nil, err
}

// recordObservation appends a failure note to OBS_CTX (SPEC_FULL §4.4
// "A single agent failure records to OBS_CTX").
func (o *Orchestrator) recordObservation(ctx context.Context, agent string, cause error) {
	if o.hub == nil {
		return
	}
	key := fmt.Sprintf("%s:failure:%d", agent, time.Now().UnixNano())
	_ = o.hub.Put(ctx, memoryhub.ObserverCtx, key, map[string]any{
		"agent": agent,
		"error": cause.Error(),
		"at":    time.Now().UTC().Format(time.RFC3339),
	})
}

// persistStatusSnapshot mirrors the run's status into O_CTX under
// task_{task_id}_status with a ~1 day TTL (SPEC_FULL §6).
func (o *Orchestrator) persistStatusSnapshot(ctx context.Context, taskID string) {
	if o.hub == nil {
		return
	}
	state, ok := o.Registry.Get(taskID)
	if !ok {
		return
	}
	snapshot := map[string]any{
		"task_id":       state.TaskID,
		"status":        string(state.Status),
		"progress":      state.Progress,
		"current_phase": state.CurrentPhase,
		"iteration":     state.Iteration,
		"error":         state.Error,
	}
	_ = o.hub.Put(ctx, memoryhub.OrchestratorCtx, fmt.Sprintf("task_%s_status", taskID), snapshot,
		memoryhub.WithTTL(24*time.Hour))
}

// persistReport mirrors the final UpgradeReport into O_CTX under
// task_{task_id}_report with a ~7 day TTL (SPEC_FULL §6).
func (o *Orchestrator) persistReport(ctx context.Context, taskID string, report *UpgradeReport) {
	if o.hub == nil {
		return
	}
	_ = o.hub.Put(ctx, memoryhub.OrchestratorCtx, fmt.Sprintf("task_%s_report", taskID), report,
		memoryhub.WithTTL(7*24*time.Hour))
}
