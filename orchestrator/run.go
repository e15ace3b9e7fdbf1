// Package orchestrator drives the full upgrade cycle end-to-end: phase
// ordering, convergence detection, and final report assembly (SPEC_FULL
// §4.4). It dispatches agents through the factory-registry pattern rather
// than holding direct references between agent kinds.
package orchestrator

import (
	"sync"
	"time"

	"github.com/tdevteam/upgradeforge/contract"
)

// RunState is the orchestrator's in-memory view of one upgrade run,
// mirrored into O_CTX so the Control API and direct MemoryHub inspection
// agree (SPEC_FULL §4.4 "Run registry").
type RunState struct {
	TaskID       string
	Status       contract.Status
	Progress     float64
	CurrentPhase string
	Iteration    int
	StartedAt    time.Time
	UpdatedAt    time.Time
	Error        string
	Report       *UpgradeReport
}

// Registry is the orchestrator's thread-safe run table: task_id → status,
// guarded by a single sync.RWMutex per SPEC_FULL §4.4.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*RunState
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*RunState)}
}

// Start registers a new run in StatusPending and returns its state.
func (r *Registry) Start(taskID string, now time.Time) *RunState {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := &RunState{
		TaskID:    taskID,
		Status:    contract.StatusPending,
		StartedAt: now,
		UpdatedAt: now,
	}
	r.runs[taskID] = state
	return state
}

// Get returns the run state for taskID, or (nil, false) if unknown.
func (r *Registry) Get(taskID string) (*RunState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.runs[taskID]
	return s, ok
}

// List returns every known run state, in no particular order.
func (r *Registry) List() []*RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RunState, 0, len(r.runs))
	for _, s := range r.runs {
		out = append(out, s)
	}
	return out
}

// update mutates a run's state under the registry lock. fn must not block.
func (r *Registry) update(taskID string, now time.Time, fn func(*RunState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.runs[taskID]
	if !ok {
		return
	}
	fn(s)
	s.UpdatedAt = now
}
