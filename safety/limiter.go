package safety

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// ErrResourceExceeded is returned when a task is admitted-but-cancelled
// because it breached a resource cap, or rejected outright at admission.
var ErrResourceExceeded = errors.New("safety: resource limit exceeded")

// ViolationKind identifies which cap a ResourceExceeded error breached.
type ViolationKind string

const (
	ViolationMemory     ViolationKind = "memory"
	ViolationCPU        ViolationKind = "cpu"
	ViolationFileHandle ViolationKind = "file_handles"
	ViolationTime       ViolationKind = "time"
	ViolationConcurrent ViolationKind = "concurrent"
)

// ExceededError wraps ErrResourceExceeded with the kind of violation and a
// human-readable detail, so callers can branch with errors.Is(err,
// ErrResourceExceeded) while still recovering the kind via errors.As.
type ExceededError struct {
	Kind   ViolationKind
	Detail string
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("safety: resource limit exceeded (%s): %s", e.Kind, e.Detail)
}

func (e *ExceededError) Unwrap() error { return ErrResourceExceeded }

// ResourceLimit caps the resources a single task may consume.
type ResourceLimit struct {
	MaxMemoryMB       float64
	MaxCPUPercent     float64
	MaxFileHandles    int
	MaxExecutionTime  time.Duration
	MaxConcurrentTasks int
	CheckInterval     time.Duration
}

// DefaultResourceLimit mirrors the reference implementation's defaults.
func DefaultResourceLimit() ResourceLimit {
	return ResourceLimit{
		MaxMemoryMB:        500,
		MaxCPUPercent:       80,
		MaxFileHandles:      100,
		MaxExecutionTime:    300 * time.Second,
		MaxConcurrentTasks:  10,
		CheckInterval:       500 * time.Millisecond,
	}
}

// ResourceStats accumulates violation counters across the limiter's lifetime.
type ResourceStats struct {
	TotalTasksExecuted int64
	TotalViolations    int64
	MemoryViolations   int64
	CPUViolations      int64
	TimeViolations     int64
	ConcurrentViolations int64
	FileViolations     int64
}

// ResourceLimiter is the process-shared admission controller: every agent's
// LLM call is wrapped in a ResourceLimiter.Execute before (and inside) the
// per-agent CircuitBreaker.Call.
type ResourceLimiter struct {
	limits atomicLimits
	proc   *process.Process
	logger *zap.Logger

	mu           sync.Mutex
	currentTasks int
	stats        ResourceStats
}

// atomicLimits guards ResourceLimit with its own mutex since UpdateLimits
// may race with concurrent Execute calls reading the limits.
type atomicLimits struct {
	mu sync.RWMutex
	v  ResourceLimit
}

func (a *atomicLimits) get() ResourceLimit {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.v
}

func (a *atomicLimits) set(v ResourceLimit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.v = v
}

// NewResourceLimiter creates a limiter sampling the current process via
// gopsutil. If process introspection is unavailable, samples read as zero
// rather than failing admission.
func NewResourceLimiter(limits ResourceLimit, logger *zap.Logger) *ResourceLimiter {
	if limits.MaxConcurrentTasks <= 0 {
		limits = DefaultResourceLimit()
	}
	if limits.CheckInterval <= 0 {
		limits.CheckInterval = DefaultResourceLimit().CheckInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("resource limiter: failed to attach to current process", zap.Error(err))
		proc = nil
	}

	rl := &ResourceLimiter{logger: logger, proc: proc}
	rl.limits.set(limits)
	return rl
}

// UpdateLimits swaps the active ResourceLimit in place.
func (r *ResourceLimiter) UpdateLimits(limits ResourceLimit) {
	r.limits.set(limits)
	r.logger.Info("resource limiter limits updated",
		zap.Float64("max_memory_mb", limits.MaxMemoryMB),
		zap.Float64("max_cpu_percent", limits.MaxCPUPercent),
		zap.Int("max_concurrent_tasks", limits.MaxConcurrentTasks),
	)
}

// Execute runs fn under the resource envelope: it fails fast if the
// concurrency cap or an already-breached sample is hit, then races fn
// against a monitor goroutine; whichever finishes first decides the
// outcome and the loser is cancelled cooperatively via ctx.
func (r *ResourceLimiter) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	limits := r.limits.get()

	r.mu.Lock()
	if r.currentTasks >= limits.MaxConcurrentTasks {
		r.stats.ConcurrentViolations++
		r.stats.TotalViolations++
		r.mu.Unlock()
		return nil, &ExceededError{Kind: ViolationConcurrent, Detail: fmt.Sprintf("%d >= %d", r.currentTasks, limits.MaxConcurrentTasks)}
	}
	r.currentTasks++
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.currentTasks--
		r.mu.Unlock()
	}()

	if v := r.checkResources(limits); v != nil {
		return nil, v
	}

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		val any
		err error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		v, err := fn(taskCtx)
		resultCh <- outcome{val: v, err: err}
	}()

	violationCh := make(chan error, 1)
	go r.monitor(taskCtx, limits, violationCh)

	select {
	case res := <-resultCh:
		cancel()
		r.mu.Lock()
		r.stats.TotalTasksExecuted++
		r.mu.Unlock()
		return res.val, res.err
	case v := <-violationCh:
		cancel()
		<-resultCh // drain so fn's goroutine does not leak
		return nil, v
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

func (r *ResourceLimiter) monitor(ctx context.Context, limits ResourceLimit, out chan<- error) {
	start := time.Now()
	ticker := time.NewTicker(limits.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if elapsed := time.Since(start); elapsed > limits.MaxExecutionTime {
				r.mu.Lock()
				r.stats.TimeViolations++
				r.stats.TotalViolations++
				r.mu.Unlock()
				out <- &ExceededError{Kind: ViolationTime, Detail: fmt.Sprintf("%s > %s", elapsed, limits.MaxExecutionTime)}
				return
			}
			if v := r.checkResources(limits); v != nil {
				out <- v
				return
			}
		}
	}
}

func (r *ResourceLimiter) checkResources(limits ResourceLimit) error {
	memMB := r.memoryUsageMB()
	if memMB > limits.MaxMemoryMB {
		r.mu.Lock()
		r.stats.MemoryViolations++
		r.stats.TotalViolations++
		r.mu.Unlock()
		return &ExceededError{Kind: ViolationMemory, Detail: fmt.Sprintf("%.1fMB > %.1fMB", memMB, limits.MaxMemoryMB)}
	}

	cpuPct := r.cpuPercent()
	if cpuPct > limits.MaxCPUPercent {
		r.mu.Lock()
		r.stats.CPUViolations++
		r.stats.TotalViolations++
		r.mu.Unlock()
		return &ExceededError{Kind: ViolationCPU, Detail: fmt.Sprintf("%.1f%% > %.1f%%", cpuPct, limits.MaxCPUPercent)}
	}

	files := r.openFileCount()
	if files > limits.MaxFileHandles {
		r.mu.Lock()
		r.stats.FileViolations++
		r.stats.TotalViolations++
		r.mu.Unlock()
		return &ExceededError{Kind: ViolationFileHandle, Detail: fmt.Sprintf("%d > %d", files, limits.MaxFileHandles)}
	}
	return nil
}

func (r *ResourceLimiter) memoryUsageMB() float64 {
	if r.proc == nil {
		return 0
	}
	info, err := r.proc.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return float64(info.RSS) / (1024 * 1024)
}

func (r *ResourceLimiter) cpuPercent() float64 {
	if r.proc == nil {
		return 0
	}
	pct, err := r.proc.CPUPercent()
	if err != nil {
		return 0
	}
	return pct
}

func (r *ResourceLimiter) openFileCount() int {
	if r.proc == nil {
		return 0
	}
	files, err := r.proc.OpenFiles()
	if err != nil {
		return 0
	}
	return len(files)
}

// CurrentTasks returns the number of in-flight tasks admitted right now.
func (r *ResourceLimiter) CurrentTasks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currentTasks
}

// Stats returns a snapshot of accumulated violation counters.
func (r *ResourceLimiter) Stats() ResourceStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
