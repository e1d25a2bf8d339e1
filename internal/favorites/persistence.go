package favorites

import (
	"context"
	"errors"
	"sync"
	"time"

	"DoeInteligente/pkg/cache"
)

// MemoryPersistence хранит блобы в памяти процесса
type MemoryPersistence struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryPersistence создаёт пустое хранилище в памяти
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{blobs: make(map[string][]byte)}
}

func (m *MemoryPersistence) Read(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[name]
	if !ok {
		return nil, ErrNoBlob
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryPersistence) Write(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[name] = append([]byte(nil), data...)
	return nil
}

// Blobs описывает кэш, через который RedisPersistence читает и пишет блобы
type Blobs interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// RedisPersistence хранит блоб в Redis без срока жизни
type RedisPersistence struct {
	c Blobs
}

// NewRedisPersistence создаёт адаптер поверх клиента Redis
func NewRedisPersistence(c Blobs) *RedisPersistence {
	return &RedisPersistence{c: c}
}

func (r *RedisPersistence) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := r.c.Get(ctx, name)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrNoBlob
	}
	return data, err
}

func (r *RedisPersistence) Write(ctx context.Context, name string, data []byte) error {
	// ttl 0: избранное не истекает
	return r.c.Set(ctx, name, data, 0)
}
