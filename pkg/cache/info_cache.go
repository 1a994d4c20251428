package cache

import (
	"context"
	"sync"
	"time"
)

// InfoCache is an in-process TTL cache for computed display information
// (class labels, credit strings). Expired entries are invisible to Get and
// are removed by Cleanup or by the periodic task started with StartCleanup.
type InfoCache[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]infoEntry[V]

	stopMu sync.Mutex
	cancel context.CancelFunc
}

type infoEntry[V any] struct {
	value   V
	expires time.Time
}

// NewInfoCache returns an empty cache whose entries live for ttl.
func NewInfoCache[V any](ttl time.Duration) *InfoCache[V] {
	return &InfoCache[V]{ttl: ttl, now: time.Now, items: make(map[string]infoEntry[V])}
}

// Get returns the live value stored under key.
func (c *InfoCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expires) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key.
func (c *InfoCache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.items[key] = infoEntry[V]{value: value, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (c *InfoCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Cleanup removes expired entries and returns how many were removed.
func (c *InfoCache[V]) Cleanup() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until Stop. Calling it while the
// task is already running is a no-op.
func (c *InfoCache[V]) StartCleanup(interval time.Duration) {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	if c.cancel != nil || interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup()
			}
		}
	}()
}

// Running reports whether the cleanup task is active.
func (c *InfoCache[V]) Running() bool {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	return c.cancel != nil
}

// Stop signals the cleanup task to exit. It does not wait for it.
func (c *InfoCache[V]) Stop() {
	c.stopMu.Lock()
	defer c.stopMu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
