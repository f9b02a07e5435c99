package registry

import (
	"context"
	"sync"

	"github.com/couchcryptid/climate-data-monitor/internal/observability"
)

// CachedRegistry wraps a Registry with an in-memory LRU of manifests keyed by
// top hash. Manifests are immutable, so entries never go stale; only the
// ref-to-hash resolution hits the backend on every call.
type CachedRegistry struct {
	*Registry
	cache   *lruCache[*Manifest]
	metrics *observability.Metrics
}

// NewCachedRegistry creates a cache decorator around r.
func NewCachedRegistry(r *Registry, maxEntries int, metrics *observability.Metrics) *CachedRegistry {
	return &CachedRegistry{
		Registry: r,
		cache:    newLRUCache[*Manifest](maxEntries),
		metrics:  metrics,
	}
}

// Browse resolves ref and serves the manifest from cache when possible.
func (c *CachedRegistry) Browse(ctx context.Context, name, ref string) (*Manifest, error) {
	hash, err := c.Resolve(ctx, name, ref)
	if err != nil {
		return nil, err
	}
	if m, ok := c.cache.get(hash); ok {
		c.metrics.RegistryCache.WithLabelValues("hit").Inc()
		return m, nil
	}
	c.metrics.RegistryCache.WithLabelValues("miss").Inc()

	m, err := c.manifest(ctx, name, hash)
	if err != nil {
		return nil, err
	}
	c.cache.put(hash, m)
	return m, nil
}

// lruCache is a small thread-safe LRU cache.
type lruCache[V any] struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*lruEntry[V]
	head       *lruEntry[V] // most recently used
	tail       *lruEntry[V] // least recently used
}

type lruEntry[V any] struct {
	key   string
	value V
	prev  *lruEntry[V]
	next  *lruEntry[V]
}

func newLRUCache[V any](maxEntries int) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		entries:    make(map[string]*lruEntry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &lruEntry[V]{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *lruEntry[V]) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *lruEntry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) unlink(e *lruEntry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
