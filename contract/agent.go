// Package contract defines the uniform execution contract every analysis
// and generation component satisfies: a stable identity, a single
// Execute(task) -> result operation, and the report-flow discipline by
// which agents discover each other's work through MemoryHub instead of
// holding direct references to one another.
package contract

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tdevteam/upgradeforge/internal/ctxkeys"
	"github.com/tdevteam/upgradeforge/llmprovider"
	"github.com/tdevteam/upgradeforge/memoryhub"
	"github.com/tdevteam/upgradeforge/safety"
)

// Status is the lifecycle state of an AgentResult.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// AgentTask is the immutable input to one Agent.Execute invocation.
type AgentTask struct {
	Intent        string
	Inputs        map[string]any
	CorrelationID string
}

// AgentResult is the outcome of one Agent.Execute invocation. Success is
// true iff Status is StatusCompleted and Error is empty.
type AgentResult struct {
	Success  bool
	Status   Status
	Data     map[string]any
	Error    string
	Metadata map[string]any
}

// Agent is the single behavior every analysis/generation component
// implements: a stable name and version, and one execution operation.
type Agent interface {
	Name() string
	Version() string
	Execute(ctx context.Context, task AgentTask) (AgentResult, error)
}

// Deps bundles the shared collaborators every concrete agent is
// constructed from — the factory registry referenced by orchestrator
// passes one Deps to each agent constructor, per the injected-singletons
// design (no package-level shared state).
type Deps struct {
	Hub      *memoryhub.Hub
	Limiter  *safety.ResourceLimiter
	Provider llmprovider.Provider
	Logger   *zap.Logger
}

// PromptBuilder constructs the LLM prompt for one agent invocation from
// the task and the upstream reports it was able to read. It returns the
// user prompt and an optional system prompt.
type PromptBuilder func(task AgentTask, upstream map[string]any) (prompt, systemPrompt string)

// ResponseParser turns raw LLM content into structured data. A parser
// that cannot find the shape it expects should return (nil, false, nil):
// BaseAgent then falls back to a raw_analysis result rather than failing
// the whole invocation, per the spec's "parse degraded, not parse failed"
// rule.
type ResponseParser func(content string) (data map[string]any, ok bool, err error)

// PersistSpec tells BaseAgent.Run where to write the parsed result.
type PersistSpec struct {
	// SharedKey, when non-empty, is the S_CTX key the structured result is
	// written to (the "current working set" other agents read).
	SharedKey string
	// ReportType tags the A_CTX report artifact, e.g. "requirement_analysis".
	ReportType string
	// TTL applied to the shared-key write, if any.
	TTL time.Duration
}

// BaseAgent supplies the plumbing shared by every concrete agent: reading
// declared upstream reports, invoking the LLM through the breaker/limiter
// stack, persisting results, and shaping the AgentResult. Concrete agents
// embed BaseAgent and call Run with their own PromptBuilder/ResponseParser,
// matching the teacher's agent/base.go template-method shape generalized
// from a single-provider chat loop to the report-flow contract (SPEC_FULL
// §4.2).
type BaseAgent struct {
	name    string
	version string
	hub     *memoryhub.Hub
	breaker *safety.CircuitBreaker
	limiter *safety.ResourceLimiter
	provider llmprovider.Provider
	logger  *zap.Logger
}

// NewBaseAgent constructs a BaseAgent. breaker is exclusively owned by the
// returned agent; limiter and hub are process-shared, per §3's Ownership
// rules.
func NewBaseAgent(name, version string, deps Deps, breakerCfg safety.BreakerConfig) *BaseAgent {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseAgent{
		name:     name,
		version:  version,
		hub:      deps.Hub,
		breaker:  safety.NewCircuitBreaker(name, breakerCfg, logger),
		limiter:  deps.Limiter,
		provider: deps.Provider,
		logger:   logger.With(zap.String("agent", name)),
	}
}

func (b *BaseAgent) Name() string    { return b.name }
func (b *BaseAgent) Version() string { return b.version }

// Breaker returns the agent's own circuit breaker, e.g. for health
// endpoints that report per-agent breaker state.
func (b *BaseAgent) Breaker() *safety.CircuitBreaker { return b.breaker }

// Logger returns the agent-scoped logger.
func (b *BaseAgent) Logger() *zap.Logger { return b.logger }

// readUpstream implements contract step 1: read every report this agent
// declares in UpstreamOf, from the shared working set in S_CTX. A missing
// upstream is soft — it's recorded in missing, never an error.
func (b *BaseAgent) readUpstream(ctx context.Context) (upstream map[string]any, consumed []string, missing []string) {
	upstream = make(map[string]any)
	for _, producer := range UpstreamOf[b.name] {
		key, ok := CanonicalKey[producer]
		if !ok {
			missing = append(missing, producer)
			continue
		}
		val, found, err := b.hub.Get(ctx, memoryhub.SharedCtx, key)
		if err != nil || !found {
			missing = append(missing, producer)
			continue
		}
		upstream[producer] = val
		consumed = append(consumed, key)
	}
	return upstream, consumed, missing
}

// generate implements contract step 2: invoke the LLM through
// breaker.Call(limiter.Execute(...)), matching the spec's mandatory
// composition discipline (§4.3).
func (b *BaseAgent) generate(ctx context.Context, req llmprovider.GenerateRequest) (llmprovider.GenerateResult, error) {
	if req.ModelID == "" {
		if model, ok := ctxkeys.LLMModel(ctx); ok {
			req.ModelID = model
		}
	}
	var result llmprovider.GenerateResult
	err := b.breaker.Call(ctx, func(ctx context.Context) error {
		v, err := b.limiter.Execute(ctx, func(ctx context.Context) (any, error) {
			return b.provider.Generate(ctx, req)
		})
		if err != nil {
			return err
		}
		result = v.(llmprovider.GenerateResult)
		return nil
	})
	return result, err
}

// persist implements contract step 4: write the structured result to its
// designated S_CTX key (if any) and append a report artifact in A_CTX
// tagged {agent_name, report_type}.
func (b *BaseAgent) persist(ctx context.Context, spec PersistSpec, data map[string]any, now time.Time) error {
	if spec.SharedKey != "" {
		opts := []memoryhub.PutOption{memoryhub.WithTags(b.name, spec.ReportType)}
		if spec.TTL > 0 {
			opts = append(opts, memoryhub.WithTTL(spec.TTL))
		}
		if err := b.hub.Put(ctx, memoryhub.SharedCtx, spec.SharedKey, data, opts...); err != nil {
			return fmt.Errorf("contract: persist shared key %q: %w", spec.SharedKey, err)
		}
	}

	reportKey := fmt.Sprintf("%s:report:%d", b.name, now.Unix())
	return b.hub.Put(ctx, memoryhub.AgentCtx, reportKey, data,
		memoryhub.WithTags(b.name, spec.ReportType))
}

// CanonicalPersistSpec builds a PersistSpec that writes to this agent's
// CanonicalKey in S_CTX (so downstream agents' readUpstream finds it) plus
// the A_CTX report archive, tagged reportType.
func (b *BaseAgent) CanonicalPersistSpec(reportType string, ttl time.Duration) PersistSpec {
	return PersistSpec{SharedKey: CanonicalKey[b.name], ReportType: reportType, TTL: ttl}
}

// Run executes the full 5-step contract: read upstream, generate, parse,
// persist, shape result. Concrete agents call this from their Execute
// method, supplying only the prompt-construction and response-parsing
// steps.
func (b *BaseAgent) Run(ctx context.Context, task AgentTask, spec PersistSpec, build PromptBuilder, parse ResponseParser) (AgentResult, error) {
	start := time.Now()

	upstream, consumed, missing := b.readUpstream(ctx)

	prompt, systemPrompt := build(task, upstream)
	genReq := llmprovider.GenerateRequest{Prompt: prompt, SystemPrompt: systemPrompt}

	runID, _ := ctxkeys.RunID(ctx)
	traceID, _ := ctxkeys.TraceID(ctx)

	genRes, err := b.generate(ctx, genReq)
	if err != nil {
		result := AgentResult{
			Success: false,
			Status:  StatusFailed,
			Error:   err.Error(),
			Metadata: map[string]any{
				"agent_name":       b.name,
				"agent_version":    b.version,
				"run_id":           runID,
				"trace_id":         traceID,
				"elapsed":          time.Since(start).String(),
				"missing_upstream": missing,
			},
		}
		return result, nil
	}

	data, ok, parseErr := parse(genRes.Content)
	degraded := parseErr != nil || !ok
	if degraded {
		data = map[string]any{"raw_analysis": genRes.Content}
	}

	if err := b.persist(ctx, spec, data, start); err != nil {
		b.logger.Warn("failed to persist agent result", zap.Error(err))
	}

	metadata := map[string]any{
		"agent_name":        b.name,
		"agent_version":     b.version,
		"run_id":            runID,
		"trace_id":          traceID,
		"model":             genRes.Model,
		"elapsed":           time.Since(start).String(),
		"upstream_consumed": consumed,
	}
	if len(missing) > 0 {
		metadata["missing_upstream"] = missing
	}
	if degraded {
		metadata["parse_degraded"] = true
	}
	if retryCount, ok := genRes.Metadata["retry_count"]; ok {
		metadata["retry_count"] = retryCount
	}

	return AgentResult{
		Success:  true,
		Status:   StatusCompleted,
		Data:     data,
		Metadata: metadata,
	}, nil
}
