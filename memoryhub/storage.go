package memoryhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Storage is the persistence backend a Hub saves and loads contexts
// through. JSONFileStorage and RedisStorage both satisfy it.
type Storage interface {
	SaveContext(ctx context.Context, mc *MemoryContext) error
	LoadContext(ctx context.Context, t ContextType) (*MemoryContext, error)
	DeleteContext(ctx context.Context, t ContextType) error
	Exists(ctx context.Context, t ContextType) (bool, error)
}

// ErrContextNotFound is returned by LoadContext when no persisted state
// exists yet for a context type; callers treat it the same as an empty
// context.
var ErrContextNotFound = errors.New("memoryhub: context not found in storage")

type serializedEntry struct {
	ID          string         `json:"id"`
	ContextType ContextType    `json:"context_type"`
	Key         string         `json:"key"`
	Value       any            `json:"value"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	TTLSeconds  float64        `json:"ttl_seconds,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
}

func toSerialized(e *MemoryEntry) serializedEntry {
	return serializedEntry{
		ID:          e.ID,
		ContextType: e.ContextType,
		Key:         e.Key,
		Value:       e.Value,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		TTLSeconds:  e.TTL.Seconds(),
		Tags:        e.Tags,
	}
}

func fromSerialized(s serializedEntry) *MemoryEntry {
	var ttl time.Duration
	if s.TTLSeconds > 0 {
		ttl = time.Duration(s.TTLSeconds * float64(time.Second))
	}
	return &MemoryEntry{
		ID:          s.ID,
		ContextType: s.ContextType,
		Key:         s.Key,
		Value:       s.Value,
		Metadata:    s.Metadata,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		TTL:         ttl,
		Tags:        s.Tags,
	}
}

type serializedContext struct {
	Type         ContextType                `json:"type"`
	MaxEntries   int                        `json:"max_entries,omitempty"`
	MaxSizeBytes int64                      `json:"max_size_bytes,omitempty"`
	Entries      map[string]serializedEntry `json:"entries"`
}

func contextToWire(mc *MemoryContext) serializedContext {
	entries := mc.snapshotEntries()
	wire := serializedContext{
		Type:         mc.Type,
		MaxEntries:   mc.MaxEntries,
		MaxSizeBytes: mc.MaxSizeBytes,
		Entries:      make(map[string]serializedEntry, len(entries)),
	}
	for k, e := range entries {
		wire.Entries[k] = toSerialized(e)
	}
	return wire
}

func contextFromWire(wire serializedContext) *MemoryContext {
	mc := NewMemoryContext(wire.Type)
	mc.MaxEntries = wire.MaxEntries
	mc.MaxSizeBytes = wire.MaxSizeBytes
	entries := make(map[string]*MemoryEntry, len(wire.Entries))
	for k, e := range wire.Entries {
		entries[k] = fromSerialized(e)
	}
	mc.replaceEntries(entries)
	return mc
}

// JSONFileStorage persists each context as one JSON file under BasePath,
// the MVP storage backend for local development and small deployments.
type JSONFileStorage struct {
	BasePath string
}

// NewJSONFileStorage creates the base directory if needed and returns a
// JSONFileStorage rooted at it.
func NewJSONFileStorage(basePath string) (*JSONFileStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("memoryhub: create storage dir: %w", err)
	}
	return &JSONFileStorage{BasePath: basePath}, nil
}

func (s *JSONFileStorage) filePath(t ContextType) string {
	return filepath.Join(s.BasePath, string(t)+".json")
}

func (s *JSONFileStorage) SaveContext(ctx context.Context, mc *MemoryContext) error {
	wire := contextToWire(mc)
	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("memoryhub: marshal context %s: %w", mc.Type, err)
	}
	tmp := s.filePath(mc.Type) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("memoryhub: write context %s: %w", mc.Type, err)
	}
	return os.Rename(tmp, s.filePath(mc.Type))
}

func (s *JSONFileStorage) LoadContext(ctx context.Context, t ContextType) (*MemoryContext, error) {
	data, err := os.ReadFile(s.filePath(t))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrContextNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("memoryhub: read context %s: %w", t, err)
	}

	var wire serializedContext
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("memoryhub: unmarshal context %s: %w", t, err)
	}
	wire.Type = t
	return contextFromWire(wire), nil
}

func (s *JSONFileStorage) DeleteContext(ctx context.Context, t ContextType) error {
	err := os.Remove(s.filePath(t))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *JSONFileStorage) Exists(ctx context.Context, t ContextType) (bool, error) {
	_, err := os.Stat(s.filePath(t))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
