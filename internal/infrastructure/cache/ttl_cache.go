package cache

import (
	"sync"
	"time"
)

// ttlEntry is a stored value with its expiration
type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCacheOptions configures a TTLCache
type TTLCacheOptions struct {
	// CleanupInterval enables a background sweep of expired entries when positive
	CleanupInterval time.Duration
	Clock           Clock
}

// TTLCache is an in-memory map whose entries expire after a fixed TTL.
// Expired entries are purged lazily on read, and periodically when a cleanup
// interval is configured. Writes replace whole entries.
type TTLCache[K comparable, V any] struct {
	mu        sync.RWMutex
	entries   map[K]ttlEntry[V]
	ttl       time.Duration
	clock     Clock
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewTTLCache creates a cache whose entries live for ttl
func NewTTLCache[K comparable, V any](ttl time.Duration, opts TTLCacheOptions) *TTLCache[K, V] {
	c := &TTLCache[K, V]{
		entries:  make(map[K]ttlEntry[V]),
		ttl:      ttl,
		clock:    opts.Clock,
		stopChan: make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		c.wg.Add(1)
		go c.cleanupLoop(opts.CleanupInterval)
	}

	return c
}

// Get returns the value stored under key if it has not expired
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !exists {
		return zero, false
	}
	if !c.clock.Now().Before(e.expiresAt) {
		c.mu.Lock()
		// Only drop the entry we saw; a concurrent Set may have replaced it
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = ttlEntry[V]{
		value:     value,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Delete removes key
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes every entry
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]ttlEntry[V])
}

// Len returns the number of stored entries, expired ones included
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *TTLCache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *TTLCache[K, V]) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes expired entries
func (c *TTLCache[K, V]) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}
