package sitematrix

import "sync"

// Cache stores the site table between lookups.
type Cache interface {
	Get() (*Table, bool)
	Set(table *Table)
	Reset()
}

// MemoryCache keeps the table in-memory and guards access with a RWMutex.
// It never expires.
type MemoryCache struct {
	mu    sync.RWMutex
	table *Table
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Get returns the cached table, if any.
func (c *MemoryCache) Get() (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.table, c.table != nil
}

// Set replaces the cached table.
func (c *MemoryCache) Set(table *Table) {
	c.mu.Lock()
	c.table = table
	c.mu.Unlock()
}

// Reset drops the cached table so the next lookup fetches again.
func (c *MemoryCache) Reset() {
	c.Set(nil)
}
