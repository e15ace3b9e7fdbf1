package llmprovider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdevteam/upgradeforge/types"
)

func TestGenerateRequest_WithDefaultsFillsZeroValues(t *testing.T) {
	req := GenerateRequest{}.withDefaults()
	assert.Equal(t, 4096, req.MaxTokens)
	assert.InDelta(t, 0.7, req.Temperature, 0.0001)
}

func TestGenerateRequest_WithDefaultsPreservesExplicitValues(t *testing.T) {
	req := GenerateRequest{MaxTokens: 256, Temperature: 0.2}.withDefaults()
	assert.Equal(t, 256, req.MaxTokens)
	assert.InDelta(t, 0.2, req.Temperature, 0.0001)
}

func TestStreamFallback_YieldsSingleDoneChunkOnSuccess(t *testing.T) {
	stub := &stubProvider{results: []GenerateResult{{
		Content: "hello",
		Usage:   types.TokenUsage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
	}}}

	ch, err := StreamFallback(context.Background(), stub, GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)

	var chunks []GenerateChunk
	for c := range ch {
		chunks = append(chunks, c)
	}

	require.Len(t, chunks, 1)
	assert.Equal(t, "hello", chunks[0].Delta)
	assert.True(t, chunks[0].Done)
	require.NotNil(t, chunks[0].Usage)
	assert.Equal(t, 8, chunks[0].Usage.TotalTokens)
}

func TestStreamFallback_PropagatesGenerateError(t *testing.T) {
	boom := errors.New("boom: provider down")
	stub := &stubProvider{errs: []error{boom}}

	ch, err := StreamFallback(context.Background(), stub, GenerateRequest{Prompt: "hi"})
	require.NoError(t, err) // StreamFallback itself never errors synchronously

	chunk := <-ch
	assert.True(t, chunk.Done)
	assert.ErrorIs(t, chunk.Err, boom)
}

func TestRateLimitError_ErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("429 too many requests")
	err := &RateLimitError{Provider: "anthropic", Cause: cause}
	assert.Contains(t, err.Error(), "anthropic")
	assert.Contains(t, err.Error(), "429")
	assert.ErrorIs(t, err, cause)
}

func TestRateLimitError_ErrorMessageWithoutCause(t *testing.T) {
	err := &RateLimitError{Provider: "openai"}
	assert.Contains(t, err.Error(), "openai")
	assert.Nil(t, err.Unwrap())
}
