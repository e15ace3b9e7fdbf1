// Package ctxkeys defines the request-scoped values threaded through
// context.Context across the HTTP boundary and the detached orchestrator
// runs it launches (upgrade handlers hand the orchestrator a
// context.Background(), so anything it needs to correlate back to the
// originating request has to travel this way, not via the request's own
// context).
package ctxkeys

import "context"

// contextKey is the key type for every value this package stores on a
// context.Context.
type contextKey string

const (
	traceIDKey  contextKey = "trace_id"
	runIDKey    contextKey = "run_id"
	llmModelKey contextKey = "llm_model"
)

// WithTraceID attaches the originating request's trace ID so it survives
// the HTTP-handler-to-background-goroutine boundary.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace ID attached by WithTraceID, if any.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithRunID attaches the orchestrator run (task) ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID returns the run ID attached by WithRunID, if any.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithLLMModel attaches a model ID that overrides an agent's configured
// default for this call.
func WithLLMModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, llmModelKey, model)
}

// LLMModel returns the model override attached by WithLLMModel, if any.
func LLMModel(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(llmModelKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
