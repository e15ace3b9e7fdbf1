// Package safety implements the per-agent circuit breaker and the
// process-shared resource limiter that every LLM invocation is routed
// through: circuit_breaker.Call(resource_limiter.Execute(llmCall)).
package safety

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the breaker
// is open, or half-open with its probe quota exhausted.
var ErrCircuitOpen = errors.New("safety: circuit breaker is open")

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker to Open.
	FailureThreshold int
	// ErrorRateThreshold trips the breaker when the failure rate over the
	// last WindowSize calls reaches this fraction (0..1).
	ErrorRateThreshold float64
	// WindowSize is the number of most recent call outcomes retained for
	// the error-rate calculation.
	WindowSize int
	// RecoveryTimeout is how long the breaker stays Open before allowing a
	// probe call (Open -> HalfOpen).
	RecoveryTimeout time.Duration
	// SuccessThreshold is the number of consecutive successes in HalfOpen
	// required to close the breaker.
	SuccessThreshold int
	// HalfOpenMaxCalls caps the probe calls admitted during one HalfOpen
	// period (a finished probe does not free its slot); a success recorded
	// once the cap is reached without SuccessThreshold met reopens the breaker.
	HalfOpenMaxCalls int
}

// DefaultBreakerConfig mirrors the reference implementation's defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:   5,
		ErrorRateThreshold: 0.5,
		WindowSize:         10,
		RecoveryTimeout:    60 * time.Second,
		SuccessThreshold:   2,
		HalfOpenMaxCalls:   3,
	}
}

// Stats exposes circuit breaker counters for observability.
type Stats struct {
	TotalCalls           int64
	SuccessfulCalls      int64
	FailedCalls          int64
	ConsecutiveFailures  int
	ConsecutiveSuccesses int
	LastFailureTime      time.Time
	LastSuccessTime      time.Time
	ErrorRate            float64
}

// CircuitBreaker is a per-agent, three-state failure-containment gate.
// State transitions are serialized behind a single mutex; no interleaved
// intermediate state is ever observable to callers.
type CircuitBreaker struct {
	name   string
	cfg    BreakerConfig
	logger *zap.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	consecutiveOK   int
	lastFailure     time.Time
	lastSuccess     time.Time
	recentCalls     []bool // true = success; bounded to WindowSize
	totalCalls      int64
	totalSuccess    int64
	totalFailed     int64
	halfOpenInFlight int
}

// NewCircuitBreaker creates a breaker in the Closed state.
func NewCircuitBreaker(name string, cfg BreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultBreakerConfig().WindowSize
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultBreakerConfig().SuccessThreshold
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = DefaultBreakerConfig().HalfOpenMaxCalls
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Call runs fn, gated by the breaker's state, and records the outcome.
// fn receives a context that is cancelled if the caller's ctx is cancelled;
// cancellation of fn itself is the caller's responsibility (e.g. via the
// ResourceLimiter wrapping fn below it).
func (b *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err == nil)
	return err
}

// admit checks (and lazily advances) state, returning ErrCircuitOpen if the
// call must be rejected.
func (b *CircuitBreaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeTransitionFromOpenLocked()

	switch b.state {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return ErrCircuitOpen
		}
		b.halfOpenInFlight++
		return nil
	default:
		return nil
	}
}

func (b *CircuitBreaker) maybeTransitionFromOpenLocked() {
	if b.state != StateOpen {
		return
	}
	if b.lastFailure.IsZero() {
		return
	}
	if b.now().Sub(b.lastFailure) >= b.cfg.RecoveryTimeout {
		b.setStateLocked(StateHalfOpen)
		b.halfOpenInFlight = 0
		b.consecutiveFail = 0
		b.consecutiveOK = 0
	}
}

func (b *CircuitBreaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	b.recentCalls = append(b.recentCalls, success)
	if len(b.recentCalls) > b.cfg.WindowSize {
		b.recentCalls = b.recentCalls[1:]
	}

	if success {
		b.totalSuccess++
		b.consecutiveOK++
		b.consecutiveFail = 0
		b.lastSuccess = b.now()
		b.onSuccessLocked()
	} else {
		b.totalFailed++
		b.consecutiveFail++
		b.consecutiveOK = 0
		b.lastFailure = b.now()
		b.onFailureLocked()
	}
}

func (b *CircuitBreaker) onSuccessLocked() {
	if b.state != StateHalfOpen {
		return
	}
	if b.consecutiveOK >= b.cfg.SuccessThreshold {
		b.setStateLocked(StateClosed)
		b.halfOpenInFlight = 0
		b.consecutiveFail = 0
		return
	}
	if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
		b.setStateLocked(StateOpen)
		b.halfOpenInFlight = 0
	}
}

func (b *CircuitBreaker) onFailureLocked() {
	if b.state == StateHalfOpen {
		b.setStateLocked(StateOpen)
		b.halfOpenInFlight = 0
		return
	}
	if b.shouldOpenLocked() {
		b.setStateLocked(StateOpen)
		b.halfOpenInFlight = 0
	}
}

func (b *CircuitBreaker) shouldOpenLocked() bool {
	if b.consecutiveFail >= b.cfg.FailureThreshold {
		return true
	}
	if len(b.recentCalls) >= b.cfg.WindowSize {
		failed := 0
		for _, ok := range b.recentCalls {
			if !ok {
				failed++
			}
		}
		rate := float64(failed) / float64(len(b.recentCalls))
		if rate >= b.cfg.ErrorRateThreshold {
			return true
		}
	}
	return false
}

func (b *CircuitBreaker) setStateLocked(s State) {
	if s == b.state {
		return
	}
	from := b.state
	b.state = s
	b.logger.Info("circuit breaker state transition",
		zap.String("breaker", b.name),
		zap.String("from", from.String()),
		zap.String("to", s.String()),
	)
}

// State returns the current state.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeTransitionFromOpenLocked()
	return b.state
}

// Stats returns a snapshot of observability counters.
func (b *CircuitBreaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errRate float64
	if len(b.recentCalls) > 0 {
		failed := 0
		for _, ok := range b.recentCalls {
			if !ok {
				failed++
			}
		}
		errRate = float64(failed) / float64(len(b.recentCalls))
	}

	return Stats{
		TotalCalls:           b.totalCalls,
		SuccessfulCalls:      b.totalSuccess,
		FailedCalls:          b.totalFailed,
		ConsecutiveFailures:  b.consecutiveFail,
		ConsecutiveSuccesses: b.consecutiveOK,
		LastFailureTime:      b.lastFailure,
		LastSuccessTime:      b.lastSuccess,
		ErrorRate:            errRate,
	}
}

// Reset forces the breaker back to Closed and clears all counters.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setStateLocked(StateClosed)
	b.consecutiveFail = 0
	b.consecutiveOK = 0
	b.halfOpenInFlight = 0
	b.recentCalls = nil
}

// Open forces the breaker to Open regardless of counters.
func (b *CircuitBreaker) Open() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setStateLocked(StateOpen)
	b.lastFailure = b.now()
}

// Close forces the breaker to Closed regardless of counters.
func (b *CircuitBreaker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setStateLocked(StateClosed)
	b.consecutiveFail = 0
	b.halfOpenInFlight = 0
}
