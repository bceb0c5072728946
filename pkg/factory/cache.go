package factory

import (
	"sync"

	"github.com/geogismaps/geoadapter/pkg/adapters"
)

// Cache - кеш подключенных адаптеров
type Cache interface {
	Get(key string) (adapters.Adapter, bool)
	Put(key string, a adapters.Adapter)
	Invalidate(key string)
	InvalidateAll()
	Keys() []string
}

// Compile-time check
var _ Cache = (*MemoryCache)(nil)

// MemoryCache - потокобезопасный кеш в памяти
type MemoryCache struct {
	mu       sync.RWMutex
	adapters map[string]adapters.Adapter
}

// NewMemoryCache создает пустой кеш
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{adapters: make(map[string]adapters.Adapter)}
}

func (c *MemoryCache) Get(key string) (adapters.Adapter, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.adapters[key]
	return a, ok
}

func (c *MemoryCache) Put(key string, a adapters.Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapters[key] = a
}

func (c *MemoryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.adapters, key)
}

func (c *MemoryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adapters = make(map[string]adapters.Adapter)
}

func (c *MemoryCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.adapters))
	for k := range c.adapters {
		keys = append(keys, k)
	}
	return keys
}
