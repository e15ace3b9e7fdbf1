// Package memoryhub implements the five-context Memory Hub: the shared
// store through which the Orchestrator and every agent read and write
// state across a run. Contexts are held in memory and persisted through a
// pluggable Storage backend.
package memoryhub

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ContextType identifies one of the five memory contexts.
type ContextType string

const (
	// OrchestratorCtx holds orchestrator decisions and gate records.
	OrchestratorCtx ContextType = "orchestrator"
	// AgentCtx holds per-agent history and learning.
	AgentCtx ContextType = "agent"
	// SharedCtx is the working memory shared across agents for the
	// current run.
	SharedCtx ContextType = "shared"
	// UserCtx holds user/team specific preferences and history.
	UserCtx ContextType = "user"
	// ObserverCtx holds observability data: metrics and anomalies.
	ObserverCtx ContextType = "observer"
)

// AllContextTypes lists the five contexts in a stable order, used when a
// Hub initializes or enumerates its state.
var AllContextTypes = []ContextType{OrchestratorCtx, AgentCtx, SharedCtx, UserCtx, ObserverCtx}

// MemoryEntry is a single value stored under a key in a MemoryContext.
type MemoryEntry struct {
	ID          string
	ContextType ContextType
	Key         string
	Value       any
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
	TTL         time.Duration // zero means no expiry
	Tags        []string
}

// IsExpired reports whether the entry has outlived its TTL. Entries with a
// zero TTL never expire.
func (e *MemoryEntry) IsExpired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > e.TTL
}

func (e *MemoryEntry) update(value any, metadata map[string]any, now time.Time) {
	e.Value = value
	e.UpdatedAt = now
	if len(metadata) > 0 {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			e.Metadata[k] = v
		}
	}
}

// MemoryContext holds the entries for one ContextType, guarded by its own
// RWMutex so a sweep of one context never blocks reads of another.
type MemoryContext struct {
	Type          ContextType
	MaxEntries    int // zero means unlimited
	MaxSizeBytes  int64
	TotalSizeBytes int64

	mu      sync.RWMutex
	entries map[string]*MemoryEntry
}

// NewMemoryContext returns an empty context of the given type.
func NewMemoryContext(t ContextType) *MemoryContext {
	return &MemoryContext{Type: t, entries: make(map[string]*MemoryEntry)}
}

// ErrContextFull is returned by addEntry when MaxEntries would be exceeded.
type ErrContextFull struct{ ContextType ContextType }

func (e *ErrContextFull) Error() string {
	return "memoryhub: context " + string(e.ContextType) + " has reached its maximum entries limit"
}

func (c *MemoryContext) addEntry(key string, value any, ttl time.Duration, tags []string, metadata map[string]any, now time.Time) (*MemoryEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.MaxEntries > 0 && len(c.entries) >= c.MaxEntries {
		return nil, &ErrContextFull{ContextType: c.Type}
	}

	entry := &MemoryEntry{
		ID:          uuid.NewString(),
		ContextType: c.Type,
		Key:         key,
		Value:       value,
		Metadata:    metadata,
		CreatedAt:   now,
		UpdatedAt:   now,
		TTL:         ttl,
		Tags:        tags,
	}
	c.entries[key] = entry
	return entry, nil
}

// getEntry returns the entry for key, lazily deleting it first if expired.
func (c *MemoryContext) getEntry(key string, now time.Time) *MemoryEntry {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	if entry.IsExpired(now) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil
	}
	return entry
}

func (c *MemoryContext) removeEntry(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	return true
}

// cleanupExpired removes every expired entry and returns how many were
// removed.
func (c *MemoryContext) cleanupExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.IsExpired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// searchByTags returns non-expired entries that carry at least one of the
// given tags (OR match).
func (c *MemoryContext) searchByTags(tags []string, now time.Time) []*MemoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var results []*MemoryEntry
	for _, entry := range c.entries {
		if entry.IsExpired(now) {
			continue
		}
		if hasAnyTag(entry.Tags, tags) {
			results = append(results, entry)
		}
	}
	return results
}

// allEntries returns every non-expired entry, skipping expired ones without
// deleting them (deletion happens lazily on get or on a cleanup sweep).
func (c *MemoryContext) allEntries(now time.Time) []*MemoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var results []*MemoryEntry
	for _, entry := range c.entries {
		if !entry.IsExpired(now) {
			results = append(results, entry)
		}
	}
	return results
}

func (c *MemoryContext) entryCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryContext) snapshotEntries() map[string]*MemoryEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*MemoryEntry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

func (c *MemoryContext) replaceEntries(entries map[string]*MemoryEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
