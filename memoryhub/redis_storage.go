package memoryhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig configures a RedisStorage backend.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
	KeyPrefix    string
}

// DefaultRedisConfig returns sane defaults for local development.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "upgradeforge:memory:",
	}
}

// RedisStorage persists contexts as Redis string keys holding the same
// JSON shape JSONFileStorage writes to disk, so the two backends are
// interchangeable without a migration step.
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStorage dials Redis and verifies connectivity with a bounded
// Ping before returning.
func NewRedisStorage(cfg RedisConfig, logger *zap.Logger) (*RedisStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("memoryhub: connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisConfig().KeyPrefix
	}

	logger.Info("memory hub redis storage connected", zap.String("addr", cfg.Addr))
	return &RedisStorage{client: client, prefix: prefix, logger: logger}, nil
}

func (s *RedisStorage) key(t ContextType) string {
	return s.prefix + string(t)
}

func (s *RedisStorage) SaveContext(ctx context.Context, mc *MemoryContext) error {
	wire := contextToWire(mc)
	data, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("memoryhub: marshal context %s: %w", mc.Type, err)
	}
	if err := s.client.Set(ctx, s.key(mc.Type), data, 0).Err(); err != nil {
		return fmt.Errorf("memoryhub: redis set context %s: %w", mc.Type, err)
	}
	return nil
}

func (s *RedisStorage) LoadContext(ctx context.Context, t ContextType) (*MemoryContext, error) {
	data, err := s.client.Get(ctx, s.key(t)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("memoryhub: redis get context %s: %w", t, err)
	}

	var wire serializedContext
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("memoryhub: unmarshal context %s: %w", t, err)
	}
	wire.Type = t
	return contextFromWire(wire), nil
}

func (s *RedisStorage) DeleteContext(ctx context.Context, t ContextType) error {
	return s.client.Del(ctx, s.key(t)).Err()
}

func (s *RedisStorage) Exists(ctx context.Context, t ContextType) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(t)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ping verifies the Redis connection is alive, for use as a readiness
// check (api/handlers.RedisHealthCheck).
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection pool.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
