// Package cache holds the process-wide full-text content cache.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"feedrelay/internal/observability/metrics"
)

// DefaultContentCapacity is the number of article bodies kept before the
// least recently used entry is evicted.
const DefaultContentCapacity = 5000

// ContentCache maps article identifiers to sanitized HTML bodies.
// It is safe for concurrent use; entries never expire, they are only evicted for capacity.
type ContentCache struct {
	lru *lru.Cache[string, string]
}

// NewContentCache creates a cache holding at most capacity entries.
// A non-positive capacity selects DefaultContentCapacity.
func NewContentCache(capacity int) (*ContentCache, error) {
	if capacity <= 0 {
		capacity = DefaultContentCapacity
	}
	c, err := lru.NewWithEvict(capacity, func(string, string) {
		metrics.RecordCacheEviction()
	})
	if err != nil {
		return nil, fmt.Errorf("NewContentCache: %w", err)
	}
	return &ContentCache{lru: c}, nil
}

// Get returns the cached body for id and marks it recently used.
func (c *ContentCache) Get(id string) (string, bool) {
	body, ok := c.lru.Get(id)
	metrics.RecordCacheLookup(ok)
	return body, ok
}

// Set stores body under id, overwriting any previous value.
func (c *ContentCache) Set(id, body string) {
	c.lru.Add(id, body)
	metrics.UpdateCacheEntries(c.lru.Len())
}

// Contains reports whether id is cached without touching recency.
func (c *ContentCache) Contains(id string) bool {
	return c.lru.Contains(id)
}

// Remove drops id from the cache.
func (c *ContentCache) Remove(id string) {
	c.lru.Remove(id)
	metrics.UpdateCacheEntries(c.lru.Len())
}

// Len returns the number of cached entries.
func (c *ContentCache) Len() int {
	return c.lru.Len()
}
