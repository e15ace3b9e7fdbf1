package memoryhub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedisStorage(t *testing.T) (*miniredis.Miniredis, *RedisStorage) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	storage, err := NewRedisStorage(RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)

	return mr, storage
}

func TestRedisStorage_SaveAndLoadContext(t *testing.T) {
	mr, storage := setupTestRedisStorage(t)
	defer mr.Close()
	defer storage.Close()

	ctx := context.Background()
	mc := NewMemoryContext(SharedCtx)
	_, err := mc.addEntry("k", "v", 0, []string{"tag1"}, nil, time.Now())
	require.NoError(t, err)

	require.NoError(t, storage.SaveContext(ctx, mc))

	loaded, err := storage.LoadContext(ctx, SharedCtx)
	require.NoError(t, err)
	entry := loaded.getEntry("k", time.Now())
	require.NotNil(t, entry)
	assert.Equal(t, "v", entry.Value)
	assert.Equal(t, []string{"tag1"}, entry.Tags)
}

func TestRedisStorage_LoadMissingContextReturnsNotFound(t *testing.T) {
	mr, storage := setupTestRedisStorage(t)
	defer mr.Close()
	defer storage.Close()

	_, err := storage.LoadContext(context.Background(), UserCtx)
	assert.ErrorIs(t, err, ErrContextNotFound)
}

func TestRedisStorage_DeleteContext(t *testing.T) {
	mr, storage := setupTestRedisStorage(t)
	defer mr.Close()
	defer storage.Close()

	ctx := context.Background()
	mc := NewMemoryContext(ObserverCtx)
	require.NoError(t, storage.SaveContext(ctx, mc))

	exists, err := storage.Exists(ctx, ObserverCtx)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, storage.DeleteContext(ctx, ObserverCtx))

	exists, err = storage.Exists(ctx, ObserverCtx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisStorage_ConnectFailureReturnsError(t *testing.T) {
	_, err := NewRedisStorage(RedisConfig{Addr: "localhost:1"}, zap.NewNop())
	assert.Error(t, err)
}

func TestHub_WithRedisStorageRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	storage, err := NewRedisStorage(RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer storage.Close()

	h := NewHub(storage, zap.NewNop(), WithAutoCleanupInterval(0))
	require.NoError(t, h.Initialize(context.Background()))
	defer func() { _ = h.Shutdown(context.Background()) }()

	require.NoError(t, h.Put(context.Background(), AgentCtx, "k", "v"))
	v, ok, err := h.Get(context.Background(), AgentCtx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)
}
