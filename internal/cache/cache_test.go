package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_AddAndTryGet(t *testing.T) {
	c := New[string](10, time.Minute, nil)

	_, ok := c.TryGet("missing")
	assert.False(t, ok)

	assert.True(t, c.Add("k1", "v1", 0))
	v, ok := c.TryGet("k1")
	require.True(t, ok)
	assert.Equal(t, "v1", v)

	// Add on an existing, unexpired key is a no-op.
	assert.False(t, c.Add("k1", "v2", 0))
	v, _ = c.TryGet("k1")
	assert.Equal(t, "v1", v)
}

func TestCache_SetOverwrites(t *testing.T) {
	c := New[string](10, time.Minute, nil)
	c.Set("k1", "v1", 0)
	c.Set("k1", "v2", 0)

	v, ok := c.TryGet("k1")
	require.True(t, ok)
	assert.Equal(t, "v2", v)
}

func TestCache_ExpiryIsTreatedAsMiss(t *testing.T) {
	c := New[string](10, time.Millisecond, nil)
	c.Set("k1", "v1", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.TryGet("k1")
	assert.False(t, ok)
}

func TestCache_TouchExtendsTTL(t *testing.T) {
	c := New[string](10, time.Millisecond, nil)
	c.Set("k1", "v1", time.Millisecond)

	assert.True(t, c.Touch("k1", time.Minute))
	time.Sleep(5 * time.Millisecond)

	_, ok := c.TryGet("k1")
	assert.True(t, ok)

	assert.False(t, c.Touch("missing", time.Minute))
}

func TestCache_RemoveRunsEvictHook(t *testing.T) {
	var evicted []string
	c := New[string](10, time.Minute, func(key string, value string) {
		evicted = append(evicted, key)
	})
	c.Set("k1", "v1", 0)
	c.Remove("k1")

	assert.Equal(t, []string{"k1"}, evicted)
	_, ok := c.TryGet("k1")
	assert.False(t, ok)
}

func TestCache_RemovePrefix(t *testing.T) {
	c := New[string](10, time.Minute, nil)
	c.Set("realma:alice", "v", 0)
	c.Set("realma:bob", "v", 0)
	c.Set("realmb:carol", "v", 0)

	c.RemovePrefix("realma:")

	_, ok := c.TryGet("realma:alice")
	assert.False(t, ok)
	_, ok = c.TryGet("realma:bob")
	assert.False(t, ok)
	_, ok = c.TryGet("realmb:carol")
	assert.True(t, ok)
}

func TestCache_ClearRunsEvictHookForEveryEntry(t *testing.T) {
	var evicted int
	c := New[string](10, time.Minute, func(key string, value string) {
		evicted++
	})
	c.Set("k1", "v1", 0)
	c.Set("k2", "v2", 0)

	c.Clear()

	assert.Equal(t, 2, evicted)
	assert.Equal(t, 0, c.Len())
}

func TestCache_FlushRemovesOnlyExpired(t *testing.T) {
	c := New[string](10, time.Minute, nil)
	c.Set("stale", "v", time.Millisecond)
	c.Set("fresh", "v", time.Minute)
	time.Sleep(5 * time.Millisecond)

	removed := c.Flush()

	assert.Equal(t, 1, removed)
	_, ok := c.TryGet("fresh")
	assert.True(t, ok)
}

func TestCache_LRUEvictsOnOverflow(t *testing.T) {
	var evicted []string
	c := New[string](2, time.Minute, func(key string, value string) {
		evicted = append(evicted, key)
	})
	c.Set("k1", "v1", 0)
	c.Set("k2", "v2", 0)
	c.Set("k3", "v3", 0)

	assert.Equal(t, []string{"k1"}, evicted)
	assert.Equal(t, 2, c.Len())
}

func TestCache_HitStats(t *testing.T) {
	c := New[string](10, time.Minute, nil)
	c.Set("k1", "v1", 0)

	c.TryGet("k1")
	c.TryGet("missing")

	hits, misses := c.HitStats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestNew_ZeroMaxItemsDefaultsToOne(t *testing.T) {
	c := New[string](0, time.Minute, nil)
	c.Set("k1", "v1", 0)
	c.Set("k2", "v2", 0)
	assert.Equal(t, 1, c.Len())
}
