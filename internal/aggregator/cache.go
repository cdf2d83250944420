// internal/aggregator/cache.go
package aggregator

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value   V
	expires time.Time
}

// DefaultCacheEntries bounds a TTLCache unless WithMaxEntries says otherwise.
const DefaultCacheEntries = 64

// TTLCache is a small mutex-guarded map whose entries expire after ttl.
// A non-positive ttl disables caching. At most maxEntries keys are held;
// when full, expired entries are swept and then the oldest entry is evicted.
type TTLCache[K comparable, V any] struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	items      map[K]ttlEntry[V]
	now        func() time.Time
}

func NewTTLCache[K comparable, V any](ttl time.Duration, now func() time.Time) *TTLCache[K, V] {
	if now == nil {
		now = time.Now
	}
	return &TTLCache[K, V]{
		ttl:        ttl,
		maxEntries: DefaultCacheEntries,
		items:      make(map[K]ttlEntry[V]),
		now:        now,
	}
}

// WithMaxEntries overrides the entry bound. n <= 0 keeps the current one.
func (c *TTLCache[K, V]) WithMaxEntries(n int) *TTLCache[K, V] {
	if n > 0 {
		c.mu.Lock()
		c.maxEntries = n
		c.mu.Unlock()
	}
	return c
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	var zero V
	if c.ttl <= 0 {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.items, key)
		return zero, false
	}
	return entry.value, true
}

func (c *TTLCache[K, V]) Set(key K, value V) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.items[key] = ttlEntry[V]{value: value, expires: now.Add(c.ttl)}
}

// evictLocked drops expired entries; if none were expired it drops the one
// closest to expiry, which is the oldest since ttl is fixed.
func (c *TTLCache[K, V]) evictLocked(now time.Time) {
	var (
		oldest    K
		oldestExp time.Time
		found     bool
	)
	for k, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, k)
			continue
		}
		if !found || e.expires.Before(oldestExp) {
			oldest, oldestExp, found = k, e.expires, true
		}
	}
	if len(c.items) >= c.maxEntries && found {
		delete(c.items, oldest)
	}
}

// Purge drops every entry.
func (c *TTLCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]ttlEntry[V])
}

func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
