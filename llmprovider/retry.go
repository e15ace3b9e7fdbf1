package llmprovider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy configures RetryingProvider's backoff on rate-limit errors.
type RetryPolicy struct {
	MaxRetries int
	// BaseDelay is the unit multiplied by 2^attempt; the spec names this
	// wait as "2^attempt seconds", so the default is one second.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy mirrors the reference implementation's defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// RetryingProvider wraps a Provider with exponential backoff on
// RateLimitError; every other error propagates immediately, matching
// SPEC_FULL §4.5's "all other provider errors propagate immediately" rule.
type RetryingProvider struct {
	inner  Provider
	policy RetryPolicy
	logger *zap.Logger
	sleep  func(time.Duration) // overridable in tests
}

// NewRetryingProvider wraps inner with policy's backoff behavior.
func NewRetryingProvider(inner Provider, policy RetryPolicy, logger *zap.Logger) *RetryingProvider {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = DefaultRetryPolicy().MaxRetries
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultRetryPolicy().BaseDelay
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultRetryPolicy().MaxDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingProvider{inner: inner, policy: policy, logger: logger, sleep: time.Sleep}
}

func (p *RetryingProvider) Name() string { return p.inner.Name() }

func (p *RetryingProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	req = req.withDefaults()

	var lastErr error
	for attempt := 0; attempt <= p.policy.MaxRetries; attempt++ {
		res, err := p.inner.Generate(ctx, req)
		if err == nil {
			if res.Metadata == nil {
				res.Metadata = make(map[string]any, 1)
			}
			res.Metadata["retry_count"] = attempt
			return res, nil
		}

		var rateLimitErr *RateLimitError
		if !errors.As(err, &rateLimitErr) {
			return GenerateResult{}, err
		}
		lastErr = err

		if attempt == p.policy.MaxRetries {
			break
		}

		delay := p.backoff(attempt)
		p.logger.Warn("llmprovider: rate limited, backing off",
			zap.String("provider", p.inner.Name()),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return GenerateResult{}, ctx.Err()
		default:
			p.sleep(delay)
		}
	}

	return GenerateResult{}, lastErr
}

func (p *RetryingProvider) StreamGenerate(ctx context.Context, req GenerateRequest) (<-chan GenerateChunk, error) {
	return StreamFallback(ctx, p.inner, req.withDefaults())
}

func (p *RetryingProvider) backoff(attempt int) time.Duration {
	delay := p.policy.BaseDelay * time.Duration(1<<uint(attempt))
	if delay > p.policy.MaxDelay {
		delay = p.policy.MaxDelay
	}
	return delay
}
