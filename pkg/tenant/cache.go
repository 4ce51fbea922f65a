package tenant

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Cache is the interface for tenant caching implementations.
type Cache interface {
	// Get retrieves a tenant from cache by key.
	Get(ctx context.Context, key string) (*Tenant, bool)

	// Set stores a tenant in cache with the given TTL.
	Set(ctx context.Context, key string, tenant *Tenant, ttl time.Duration)

	// Delete removes a tenant from cache.
	Delete(ctx context.Context, key string)
}

// DefaultCacheSize is the default maximum number of items in the cache.
const DefaultCacheSize = 1000

// InMemoryCache is an LRU cache with per-item TTL. Expired items are dropped
// lazily on access.
type InMemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List // front is most recently used
	maxSize int
	now     func() time.Time
}

type cacheItem struct {
	key       string
	tenant    *Tenant
	expiresAt time.Time
}

// NewInMemoryCache creates a cache holding at most maxSize tenants.
func NewInMemoryCache(maxSize int) *InMemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &InMemoryCache{
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get retrieves a tenant from cache.
func (c *InMemoryCache) Get(_ context.Context, key string) (*Tenant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	item := el.Value.(*cacheItem)
	if c.now().After(item.expiresAt) {
		c.remove(el)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return item.tenant, true
}

// Set stores a tenant in cache, evicting the least recently used entry when full.
func (c *InMemoryCache) Set(_ context.Context, key string, tenant *Tenant, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if el, ok := c.items[key]; ok {
		item := el.Value.(*cacheItem)
		item.tenant, item.expiresAt = tenant, expiresAt
		c.lru.MoveToFront(el)
		return
	}

	if c.lru.Len() >= c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
	c.items[key] = c.lru.PushFront(&cacheItem{key: key, tenant: tenant, expiresAt: expiresAt})
}

// Delete removes a tenant from cache.
func (c *InMemoryCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Len returns the number of cached entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *InMemoryCache) remove(el *list.Element) {
	c.lru.Remove(el)
	delete(c.items, el.Value.(*cacheItem).key)
}

// noOpCache is a cache that doesn't cache anything.
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache.
func NewNoOpCache() Cache {
	return noOpCache{}
}

func (noOpCache) Get(context.Context, string) (*Tenant, bool) { return nil, false }

func (noOpCache) Set(context.Context, string, *Tenant, time.Duration) {}

func (noOpCache) Delete(context.Context, string) {}
