// Package quotecache holds the latest top-of-book quote for every tracked
// symbol, updated by the Wire Client's read loop and read concurrently by
// the Signal Rules and Execution Coordinator.
package quotecache

import (
	"sync"

	"github.com/fransolofran/mesita-go/internal/core"
)

// Cache is a concurrent-safe map of symbol to its latest top-of-book quote.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]core.TopOfBook
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{quotes: make(map[string]core.TopOfBook)}
}

// Update replaces the cached quote for a symbol.
func (c *Cache) Update(q core.TopOfBook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[q.Symbol] = q
}

// Get returns the cached quote for a symbol, or false if none has arrived.
func (c *Cache) Get(symbol string) (core.TopOfBook, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[symbol]
	return q, ok
}

// Snapshot returns a copy of every cached quote, safe to read without
// holding the cache's lock.
func (c *Cache) Snapshot() map[string]core.TopOfBook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]core.TopOfBook, len(c.quotes))
	for k, v := range c.quotes {
		out[k] = v
	}
	return out
}

// Evict removes every symbol not present in keep, used when instrument
// discovery drops a pair from the tracked universe.
func (c *Cache) Evict(keep map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for symbol := range c.quotes {
		if _, ok := keep[symbol]; !ok {
			delete(c.quotes, symbol)
		}
	}
}

// Len returns the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.quotes)
}
