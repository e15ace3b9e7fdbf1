// Package llmprovider implements the single-capability LLM abstraction
// every agent's Execute step calls through: Generate (and its streaming
// counterpart), regardless of which vendor SDK backs it.
package llmprovider

import (
	"context"
	"time"

	"github.com/tdevteam/upgradeforge/types"
)

// GenerateRequest is the uniform request shape accepted by every Provider.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	ModelID      string // overrides the provider's configured default model
}

func (r GenerateRequest) withDefaults() GenerateRequest {
	if r.MaxTokens <= 0 {
		r.MaxTokens = 4096
	}
	if r.Temperature == 0 {
		r.Temperature = 0.7
	}
	return r
}

// GenerateResult is the uniform response returned by a successful (or
// locally-recovered) Generate call.
type GenerateResult struct {
	Content  string
	Success  bool
	Error    string
	Model    string
	Usage    types.TokenUsage
	Metadata map[string]any
}

// GenerateChunk is one piece of a streamed response. A non-streaming
// fallback implementation yields the full content as a single chunk with
// Done=true.
type GenerateChunk struct {
	Delta string
	Done  bool
	Usage *types.TokenUsage
	Err   error
}

// Provider is the single capability every LLM adapter exposes: Generate
// for a synchronous call, StreamGenerate for incremental delivery.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	StreamGenerate(ctx context.Context, req GenerateRequest) (<-chan GenerateChunk, error)
	Name() string
}

// StreamFallback turns a single GenerateResult into a one-chunk stream, for
// providers (or tests) that only implement Generate.
func StreamFallback(ctx context.Context, p Provider, req GenerateRequest) (<-chan GenerateChunk, error) {
	ch := make(chan GenerateChunk, 1)
	go func() {
		defer close(ch)
		res, err := p.Generate(ctx, req)
		if err != nil {
			ch <- GenerateChunk{Done: true, Err: err}
			return
		}
		usage := res.Usage
		ch <- GenerateChunk{Delta: res.Content, Done: true, Usage: &usage}
	}()
	return ch, nil
}

// RateLimitError marks a provider error as transient and retryable by the
// RetryingProvider's exponential backoff.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Cause      error
}

func (e *RateLimitError) Error() string {
	if e.Cause != nil {
		return "llmprovider: " + e.Provider + " rate limited: " + e.Cause.Error()
	}
	return "llmprovider: " + e.Provider + " rate limited"
}

func (e *RateLimitError) Unwrap() error { return e.Cause }
