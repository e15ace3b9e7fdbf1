package llmprovider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	results []GenerateResult
	errs    []error
	calls   int
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return GenerateResult{}, s.errs[i]
	}
	if i < len(s.results) {
		return s.results[i], nil
	}
	return GenerateResult{}, errors.New("stubProvider: no more scripted results")
}

func (s *stubProvider) StreamGenerate(ctx context.Context, req GenerateRequest) (<-chan GenerateChunk, error) {
	return StreamFallback(ctx, s, req)
}

func noSleep(time.Duration) {}

func TestRetryingProvider_SucceedsImmediatelyWithoutError(t *testing.T) {
	stub := &stubProvider{results: []GenerateResult{{Content: "ok", Success: true}}}
	p := NewRetryingProvider(stub, DefaultRetryPolicy(), zap.NewNop())
	p.sleep = noSleep

	res, err := p.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, 0, res.Metadata["retry_count"])
}

func TestRetryingProvider_RetriesOnRateLimitThenSucceeds(t *testing.T) {
	stub := &stubProvider{
		errs: []error{
			&RateLimitError{Provider: "stub"},
			&RateLimitError{Provider: "stub"},
		},
		results: []GenerateResult{{}, {}, {Content: "recovered", Success: true}},
	}
	p := NewRetryingProvider(stub, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, zap.NewNop())
	p.sleep = noSleep

	res, err := p.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Content)
	assert.Equal(t, 3, stub.calls)
	assert.Equal(t, 2, res.Metadata["retry_count"])
}

func TestRetryingProvider_ExhaustsRetriesAndReturnsLastRateLimitError(t *testing.T) {
	stub := &stubProvider{
		errs: []error{
			&RateLimitError{Provider: "stub"},
			&RateLimitError{Provider: "stub"},
			&RateLimitError{Provider: "stub"},
		},
	}
	p := NewRetryingProvider(stub, RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, zap.NewNop())
	p.sleep = noSleep

	_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	var rle *RateLimitError
	assert.ErrorAs(t, err, &rle)
	assert.Equal(t, 3, stub.calls) // initial attempt + 2 retries
}

func TestRetryingProvider_NonRateLimitErrorPropagatesImmediately(t *testing.T) {
	boom := errors.New("boom: upstream exploded")
	stub := &stubProvider{errs: []error{boom}}
	p := NewRetryingProvider(stub, DefaultRetryPolicy(), zap.NewNop())
	p.sleep = func(time.Duration) { t.Fatal("sleep should not be called for non-rate-limit errors") }

	_, err := p.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, stub.calls)
}

func TestRetryingProvider_BackoffDoublesPerAttemptAndCapsAtMaxDelay(t *testing.T) {
	p := NewRetryingProvider(&stubProvider{}, RetryPolicy{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: 3 * time.Second}, zap.NewNop())

	assert.Equal(t, time.Second, p.backoff(0))
	assert.Equal(t, 2*time.Second, p.backoff(1))
	assert.Equal(t, 3*time.Second, p.backoff(2)) // would be 4s, capped at MaxDelay
	assert.Equal(t, 3*time.Second, p.backoff(3))
}

func TestRetryingProvider_RespectsContextCancellationDuringBackoff(t *testing.T) {
	stub := &stubProvider{errs: []error{&RateLimitError{Provider: "stub"}, &RateLimitError{Provider: "stub"}}}
	p := NewRetryingProvider(stub, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, zap.NewNop())
	p.sleep = noSleep

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Generate(ctx, GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryingProvider_NameDelegatesToInner(t *testing.T) {
	p := NewRetryingProvider(&stubProvider{}, DefaultRetryPolicy(), zap.NewNop())
	assert.Equal(t, "stub", p.Name())
}
