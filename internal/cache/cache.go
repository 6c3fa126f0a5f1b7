// Package cache implements the bounded, TTL'd, LRU-evicted key/value store
// used for both the engine's positive and negative caches (spec component
// C3). Capacity-based eviction is delegated to hashicorp/golang-lru/v2;
// this package layers per-entry TTL and an eviction hook on top of it, the
// way the teacher's pkg/history/cache/l1_cache.go layers TTL logic over a
// plain map -- except here the LRU bookkeeping itself is not hand-rolled.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// EvictFunc is invoked whenever an entry leaves the cache, for any reason:
// LRU eviction on overflow, explicit Remove, Clear, or TTL expiry found by
// Flush. The negative cache wires this to LockoutState's Dispose semantics
// so a lock-released event can fire when a locked entry's final reference
// dies (spec §4.4, §9).
type EvictFunc[V any] func(key string, value V)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a generic TTL+LRU store. A zero-value Cache is not usable; build
// one with New. A configured size of 0 disables caching per spec §4.3 --
// callers in the engine skip allocating a Cache at all in that case. New
// still tolerates maxItems <= 0 defensively by clamping the capacity to 1.
type Cache[V any] struct {
	mu         sync.Mutex
	backing    *lru.Cache[string, *entry[V]]
	defaultTTL time.Duration
	onEvict    EvictFunc[V]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// New builds a Cache bounded to maxItems entries with defaultTTL applied to
// inserts that don't specify their own TTL. onEvict may be nil.
func New[V any](maxItems int, defaultTTL time.Duration, onEvict EvictFunc[V]) *Cache[V] {
	c := &Cache[V]{defaultTTL: defaultTTL, onEvict: onEvict}
	if maxItems <= 0 {
		maxItems = 1
	}
	backing, err := lru.NewWithEvict[string, *entry[V]](maxItems, func(key string, e *entry[V]) {
		if c.onEvict != nil {
			c.onEvict(key, e.value)
		}
	})
	if err != nil {
		// lru.NewWithEvict only errors on size <= 0, already guarded above.
		panic(err)
	}
	c.backing = backing
	return c
}

// TryGet returns the live value for key, or ok == false if absent or
// expired. An expired hit is treated as a miss but is not removed here --
// Flush reclaims it -- so a racing writer that re-adds the same key inside
// the same critical section never fights background cleanup.
func (c *Cache[V]) TryGet(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.backing.Peek(key)
	if !ok || c.expired(e) {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	// Promote to most-recently-used on a real hit.
	c.backing.Get(key)
	c.hits.Add(1)
	return e.value, true
}

// Add inserts value under key with ttl (or the cache's defaultTTL if
// ttl <= 0). If an entry already exists for key, the existing entry's TTL
// is left untouched and Add reports false -- callers that want to refresh
// an existing entry's TTL use Touch explicitly (spec §4.5 step 7: "only if
// absent -- existing entries keep their TTL unless refreshed via
// addCredentials").
func (c *Cache[V]) Add(key string, value V, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.backing.Peek(key); ok && !c.expired(e) {
		return false
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.backing.Add(key, &entry[V]{value: value, expiresAt: time.Now().Add(ttl)})
	return true
}

// Set unconditionally inserts or replaces the entry for key, used by
// mutation paths (lockAccount, incrementFailCount) that must overwrite
// regardless of what's already cached.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.backing.Add(key, &entry[V]{value: value, expiresAt: time.Now().Add(ttl)})
}

// Touch updates an existing entry's TTL without evicting or replacing its
// value. Returns false if the key is absent.
func (c *Cache[V]) Touch(key string, newTTL time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.backing.Peek(key)
	if !ok {
		return false
	}
	e.expiresAt = time.Now().Add(newTTL)
	return true
}

// Remove deletes key, running the eviction hook if it was present.
func (c *Cache[V]) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backing.Remove(key)
}

// RemovePrefix deletes every key beginning with prefix -- used to implement
// realm-scoped flush (flushCache(realm), flushNakCache(realm)).
func (c *Cache[V]) RemovePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.backing.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.backing.Remove(key)
		}
	}
}

// Clear empties the cache, running the eviction hook for every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backing.Purge()
}

// Keys returns a snapshot of the current key set. Per spec §4.3, iterating
// while another goroutine mutates the cache is only well-defined when the
// caller holds the engine lock; Keys itself is atomic but the snapshot can
// be stale the instant it's returned.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backing.Keys()
}

// Flush removes every expired entry in one pass, running the eviction hook
// for each. This is the background task's per-cache cleanup call (spec §2,
// §4.5 "Background task").
func (c *Cache[V]) Flush() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.backing.Keys() {
		if e, ok := c.backing.Peek(key); ok && c.expired(e) {
			c.backing.Remove(key)
			removed++
		}
	}
	return removed
}

// Len returns the current entry count, including not-yet-flushed expired
// entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backing.Len()
}

// HitStats returns cumulative hit/miss counters since construction.
func (c *Cache[V]) HitStats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return time.Now().After(e.expiresAt)
}
