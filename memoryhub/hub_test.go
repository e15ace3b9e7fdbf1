package memoryhub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	storage, err := NewJSONFileStorage(t.TempDir())
	require.NoError(t, err)

	h := NewHub(storage, zap.NewNop(), WithAutoCleanupInterval(0))
	require.NoError(t, h.Initialize(context.Background()))
	t.Cleanup(func() { _ = h.Shutdown(context.Background()) })
	return h
}

func TestHub_PutGetRoundTrip(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Put(ctx, SharedCtx, "task-1", map[string]any{"status": "running"}))

	v, ok, err := h.Get(ctx, SharedCtx, "task-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"status": "running"}, v)
}

func TestHub_GetMissingKeyReturnsFalse(t *testing.T) {
	h := newTestHub(t)
	v, ok, err := h.Get(context.Background(), SharedCtx, "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestHub_PutUpdatesExistingEntryInPlace(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Put(ctx, AgentCtx, "planner", "v1", WithMetadata(map[string]any{"run": 1})))
	require.NoError(t, h.Put(ctx, AgentCtx, "planner", "v2", WithMetadata(map[string]any{"attempt": 2})))

	v, ok, err := h.Get(ctx, AgentCtx, "planner")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestHub_TTLExpiryIsLazy(t *testing.T) {
	h := newTestHub(t)
	fixed := time.Now()
	h.now = func() time.Time { return fixed }

	ctx := context.Background()
	require.NoError(t, h.Put(ctx, ObserverCtx, "anomaly-1", "spike", WithTTL(10*time.Millisecond)))

	v, ok, err := h.Get(ctx, ObserverCtx, "anomaly-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "spike", v)

	h.now = func() time.Time { return fixed.Add(50 * time.Millisecond) }
	_, ok, err = h.Get(ctx, ObserverCtx, "anomaly-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHub_SearchByTagsIsOrMatch(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Put(ctx, SharedCtx, "a", 1, WithTags("critical")))
	require.NoError(t, h.Put(ctx, SharedCtx, "b", 2, WithTags("minor")))
	require.NoError(t, h.Put(ctx, SharedCtx, "c", 3, WithTags("critical", "minor")))

	results, err := h.Search(ctx, SharedCtx, []string{"critical"}, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHub_SearchWithoutTagsReturnsAll(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Put(ctx, SharedCtx, "a", 1))
	require.NoError(t, h.Put(ctx, SharedCtx, "b", 2))

	results, err := h.Search(ctx, SharedCtx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHub_SearchRespectsLimit(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Put(ctx, SharedCtx, string(rune('a'+i)), i))
	}

	results, err := h.Search(ctx, SharedCtx, nil, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestHub_Delete(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Put(ctx, UserCtx, "pref", "dark-mode"))

	deleted, err := h.Delete(ctx, UserCtx, "pref")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = h.Delete(ctx, UserCtx, "pref")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestHub_ClearContext(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Put(ctx, OrchestratorCtx, "gate-1", "approved"))
	require.NoError(t, h.ClearContext(ctx, OrchestratorCtx))

	_, ok, err := h.Get(ctx, OrchestratorCtx, "gate-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHub_GetContextStats(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	require.NoError(t, h.Put(ctx, SharedCtx, "x", 1))
	require.NoError(t, h.Put(ctx, SharedCtx, "y", 2))

	stats, err := h.GetContextStats(ctx, SharedCtx)
	require.NoError(t, err)
	assert.True(t, stats.Exists)
	assert.Equal(t, 2, stats.TotalEntries)
}

func TestHub_OperationsFailBeforeInitialize(t *testing.T) {
	storage, err := NewJSONFileStorage(t.TempDir())
	require.NoError(t, err)
	h := NewHub(storage, zap.NewNop())

	_, _, err = h.Get(context.Background(), SharedCtx, "x")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestHub_ContextMaxEntriesRejectsNewKeys(t *testing.T) {
	storage, err := NewJSONFileStorage(t.TempDir())
	require.NoError(t, err)
	h := NewHub(storage, zap.NewNop(), WithAutoCleanupInterval(0))
	require.NoError(t, h.Initialize(context.Background()))
	t.Cleanup(func() { _ = h.Shutdown(context.Background()) })

	mc, err := h.context(SharedCtx)
	require.NoError(t, err)
	mc.MaxEntries = 1

	require.NoError(t, h.Put(context.Background(), SharedCtx, "first", 1))
	err = h.Put(context.Background(), SharedCtx, "second", 2)
	var full *ErrContextFull
	require.ErrorAs(t, err, &full)
}

func TestHub_SweeperRemovesExpiredEntries(t *testing.T) {
	storage, err := NewJSONFileStorage(t.TempDir())
	require.NoError(t, err)

	h := NewHub(storage, zap.NewNop(), WithAutoCleanupInterval(10*time.Millisecond))
	require.NoError(t, h.Initialize(context.Background()))
	defer func() { _ = h.Shutdown(context.Background()) }()

	fixed := time.Now()
	h.now = func() time.Time { return fixed }
	require.NoError(t, h.Put(context.Background(), SharedCtx, "ephemeral", "v", WithTTL(5*time.Millisecond)))

	h.now = func() time.Time { return fixed.Add(time.Second) }
	time.Sleep(50 * time.Millisecond)

	mc, err := h.context(SharedCtx)
	require.NoError(t, err)
	assert.Equal(t, 0, mc.entryCount())
}

func TestHub_ShutdownPersistsContexts(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewJSONFileStorage(dir)
	require.NoError(t, err)

	h := NewHub(storage, zap.NewNop(), WithAutoCleanupInterval(0))
	require.NoError(t, h.Initialize(context.Background()))
	require.NoError(t, h.Put(context.Background(), SharedCtx, "persisted", "value"))
	require.NoError(t, h.Shutdown(context.Background()))

	h2 := NewHub(storage, zap.NewNop(), WithAutoCleanupInterval(0))
	require.NoError(t, h2.Initialize(context.Background()))
	defer func() { _ = h2.Shutdown(context.Background()) }()

	v, ok, err := h2.Get(context.Background(), SharedCtx, "persisted")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "value", v)
}
