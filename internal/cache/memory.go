package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryCacheSize = 10_000

// MemoryProvider is an in-process LRU with per-entry TTLs. Suitable for a
// single instance; multi-instance deployments should use redis so webhook
// dedupe is shared.
type MemoryProvider struct {
	mu    sync.Mutex
	cache *lru.Cache[string, item]
}

type item struct {
	value     string
	expiresAt time.Time
}

func NewMemoryProvider() (*MemoryProvider, error) {
	c, err := lru.New[string, item](defaultMemoryCacheSize)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{cache: c}, nil
}

func (m *MemoryProvider) Get(ctx context.Context, key string) (string, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	cached, exists := m.cache.Get(key)
	if !exists {
		return "", ErrNotFound
	}
	if time.Now().After(cached.expiresAt) {
		m.cache.Remove(key)
		return "", ErrNotFound
	}
	return cached.value, nil
}

func (m *MemoryProvider) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Add(key, item{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

func (m *MemoryProvider) Add(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, exists := m.cache.Get(key); exists && time.Now().Before(cached.expiresAt) {
		return false, nil
	}
	m.cache.Add(key, item{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	return true, nil
}

func (m *MemoryProvider) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache.Remove(key)
	return nil
}

func (m *MemoryProvider) Close() error {
	return nil
}
