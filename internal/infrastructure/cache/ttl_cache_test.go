package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_GetSet(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache[string, int](10*time.Minute, TTLCacheOptions{Clock: clock.Now})
	defer c.Close()

	t.Run("miss on empty cache", func(t *testing.T) {
		_, ok := c.Get("missing")
		assert.False(t, ok)
	})

	t.Run("hit before expiry", func(t *testing.T) {
		c.Set("a", 1)
		clock.Advance(9 * time.Minute)

		v, ok := c.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
	})

	t.Run("expired entry is purged on read", func(t *testing.T) {
		clock.Advance(time.Minute)

		_, ok := c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("set replaces the whole entry and its expiry", func(t *testing.T) {
		c.Set("b", 1)
		clock.Advance(5 * time.Minute)
		c.Set("b", 2)
		clock.Advance(6 * time.Minute)

		v, ok := c.Get("b")
		require.True(t, ok)
		assert.Equal(t, 2, v)
	})
}

func TestTTLCache_DeleteAndClear(t *testing.T) {
	c := NewTTLCache[string, string](time.Minute, TTLCacheOptions{})
	defer c.Close()

	c.Set("x", "1")
	c.Set("y", "2")
	c.Delete("x")

	_, ok := c.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_Cleanup(t *testing.T) {
	clock := newFakeClock()
	c := NewTTLCache[int, int](time.Minute, TTLCacheOptions{Clock: clock.Now})
	defer c.Close()

	for i := range 5 {
		c.Set(i, i)
	}
	clock.Advance(2 * time.Minute)
	c.Set(99, 99)

	c.cleanup()
	assert.Equal(t, 1, c.Len())
}

func TestTTLCache_CloseIsIdempotent(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute, TTLCacheOptions{CleanupInterval: 10 * time.Millisecond})

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestTTLCache_ConcurrentAccess(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute, TTLCacheOptions{})
	defer c.Close()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k-%d", n%5)
			c.Set(key, n)
			_, _ = c.Get(key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, c.Len())
}
