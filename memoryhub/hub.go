package memoryhub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SearchResult is the JSON-friendly projection of a MemoryEntry returned
// by Hub.Search.
type SearchResult struct {
	Key       string         `json:"key"`
	Value     any            `json:"value"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ContextStats summarizes one context's occupancy.
type ContextStats struct {
	Exists         bool        `json:"exists"`
	Type           ContextType `json:"type,omitempty"`
	TotalEntries   int         `json:"total_entries,omitempty"`
	MaxEntries     int         `json:"max_entries,omitempty"`
	TotalSizeBytes int64       `json:"total_size_bytes,omitempty"`
	MaxSizeBytes   int64       `json:"max_size_bytes,omitempty"`
}

// PutOption configures a Hub.Put call.
type PutOption func(*putOptions)

type putOptions struct {
	ttl      time.Duration
	tags     []string
	metadata map[string]any
}

// WithTTL sets the entry's time-to-live.
func WithTTL(ttl time.Duration) PutOption {
	return func(o *putOptions) { o.ttl = ttl }
}

// WithTags attaches search tags to the entry.
func WithTags(tags ...string) PutOption {
	return func(o *putOptions) { o.tags = tags }
}

// WithMetadata attaches metadata to the entry. On update, metadata is
// merged into the existing map rather than replacing it.
func WithMetadata(metadata map[string]any) PutOption {
	return func(o *putOptions) { o.metadata = metadata }
}

// ErrNotInitialized is returned by every Hub operation invoked before
// Initialize or after Shutdown.
var ErrNotInitialized = fmt.Errorf("memoryhub: hub not initialized")

// Hub is the central memory management system: the single place every
// agent and the orchestrator read and write run state through. It wraps
// five in-memory MemoryContexts backed by a pluggable Storage, and runs a
// background sweeper that evicts expired entries on a fixed interval.
type Hub struct {
	storage             Storage
	logger              *zap.Logger
	autoCleanupInterval time.Duration

	mu          sync.RWMutex
	contexts    map[ContextType]*MemoryContext
	initialized bool

	sweepStop chan struct{}
	sweepDone sync.WaitGroup

	now func() time.Time
}

// Option configures a Hub at construction time.
type Option func(*Hub)

// WithAutoCleanupInterval overrides the default sweep interval. A
// non-positive value disables the background sweeper.
func WithAutoCleanupInterval(d time.Duration) Option {
	return func(h *Hub) { h.autoCleanupInterval = d }
}

// NewHub creates a Hub over the given storage backend. Call Initialize
// before using it and Shutdown when done.
func NewHub(storage Storage, logger *zap.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		storage:             storage,
		logger:              logger.With(zap.String("component", "memory_hub")),
		autoCleanupInterval: time.Hour,
		contexts:            make(map[ContextType]*MemoryContext),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Initialize loads every context from storage (or creates it empty if
// absent) and starts the background sweeper. Calling it more than once is
// a no-op.
func (h *Hub) Initialize(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	for _, t := range AllContextTypes {
		mc, err := h.storage.LoadContext(ctx, t)
		if err != nil {
			if err != ErrContextNotFound {
				h.logger.Warn("failed to load context, starting empty", zap.String("context", string(t)), zap.Error(err))
			}
			mc = NewMemoryContext(t)
		}
		h.contexts[t] = mc
	}

	if h.autoCleanupInterval > 0 {
		h.sweepStop = make(chan struct{})
		h.sweepDone.Add(1)
		go h.sweepLoop()
	}

	h.initialized = true
	h.logger.Info("memory hub initialized", zap.Duration("auto_cleanup_interval", h.autoCleanupInterval))
	return nil
}

// Shutdown stops the sweeper and persists every context to storage.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if !h.initialized {
		h.mu.Unlock()
		return nil
	}
	stop := h.sweepStop
	h.initialized = false
	h.mu.Unlock()

	if stop != nil {
		close(stop)
		h.sweepDone.Wait()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	var firstErr error
	for _, mc := range h.contexts {
		if err := h.storage.SaveContext(ctx, mc); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.logger.Info("memory hub shut down")
	return firstErr
}

func (h *Hub) sweepLoop() {
	defer h.sweepDone.Done()
	ticker := time.NewTicker(h.autoCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.sweepStop:
			return
		case <-ticker.C:
			h.sweepOnce()
		}
	}
}

func (h *Hub) sweepOnce() {
	h.mu.RLock()
	contexts := make([]*MemoryContext, 0, len(h.contexts))
	for _, mc := range h.contexts {
		contexts = append(contexts, mc)
	}
	h.mu.RUnlock()

	for _, mc := range contexts {
		removed := mc.cleanupExpired(h.now())
		if removed == 0 {
			continue
		}
		if err := h.storage.SaveContext(context.Background(), mc); err != nil {
			h.logger.Error("auto cleanup: failed to persist context", zap.String("context", string(mc.Type)), zap.Error(err))
			continue
		}
		h.logger.Debug("auto cleanup removed expired entries", zap.String("context", string(mc.Type)), zap.Int("removed", removed))
	}
}

func (h *Hub) context(t ContextType) (*MemoryContext, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.initialized {
		return nil, ErrNotInitialized
	}
	mc, ok := h.contexts[t]
	if !ok {
		return nil, fmt.Errorf("memoryhub: unknown context type %q", t)
	}
	return mc, nil
}

// Put stores or updates a value under key in the given context. An
// existing entry is updated in place (value replaced, metadata merged);
// a new entry picks up the TTL/tags/metadata from opts.
func (h *Hub) Put(ctx context.Context, t ContextType, key string, value any, opts ...PutOption) error {
	mc, err := h.context(t)
	if err != nil {
		return err
	}

	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}

	now := h.now()
	if existing := mc.getEntry(key, now); existing != nil {
		existing.update(value, o.metadata, now)
	} else if _, err := mc.addEntry(key, value, o.ttl, o.tags, o.metadata, now); err != nil {
		return err
	}

	return h.storage.SaveContext(ctx, mc)
}

// Get retrieves the value stored under key in the given context. It
// returns (nil, false) if the key is absent or has expired.
func (h *Hub) Get(ctx context.Context, t ContextType, key string) (any, bool, error) {
	mc, err := h.context(t)
	if err != nil {
		return nil, false, err
	}
	entry := mc.getEntry(key, h.now())
	if entry == nil {
		return nil, false, nil
	}
	return entry.Value, true, nil
}

// Search returns entries from the given context, optionally filtered by
// tags (OR match), capped at limit results.
func (h *Hub) Search(ctx context.Context, t ContextType, tags []string, limit int) ([]SearchResult, error) {
	mc, err := h.context(t)
	if err != nil {
		return nil, err
	}

	now := h.now()
	var entries []*MemoryEntry
	if len(tags) > 0 {
		entries = mc.searchByTags(tags, now)
	} else {
		entries = mc.allEntries(now)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	results := make([]SearchResult, 0, len(entries))
	for _, e := range entries {
		results = append(results, SearchResult{
			Key:       e.Key,
			Value:     e.Value,
			Tags:      e.Tags,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		})
	}
	return results, nil
}

// Delete removes a key from the given context, persisting the change if
// the key was present.
func (h *Hub) Delete(ctx context.Context, t ContextType, key string) (bool, error) {
	mc, err := h.context(t)
	if err != nil {
		return false, err
	}
	if !mc.removeEntry(key) {
		return false, nil
	}
	return true, h.storage.SaveContext(ctx, mc)
}

// ClearContext replaces a context with an empty one and deletes its
// persisted state.
func (h *Hub) ClearContext(ctx context.Context, t ContextType) error {
	h.mu.Lock()
	if !h.initialized {
		h.mu.Unlock()
		return ErrNotInitialized
	}
	if _, ok := h.contexts[t]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("memoryhub: unknown context type %q", t)
	}
	h.contexts[t] = NewMemoryContext(t)
	h.mu.Unlock()

	return h.storage.DeleteContext(ctx, t)
}

// GetContextStats returns occupancy stats for the given context, running a
// cleanup sweep first so the count reflects live entries only.
func (h *Hub) GetContextStats(ctx context.Context, t ContextType) (ContextStats, error) {
	mc, err := h.context(t)
	if err != nil {
		return ContextStats{}, err
	}

	mc.cleanupExpired(h.now())

	return ContextStats{
		Exists:         true,
		Type:           mc.Type,
		TotalEntries:   mc.entryCount(),
		MaxEntries:     mc.MaxEntries,
		TotalSizeBytes: mc.TotalSizeBytes,
		MaxSizeBytes:   mc.MaxSizeBytes,
	}, nil
}
