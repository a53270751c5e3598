package conversation

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds a Cache built with a non-positive size.
const DefaultCacheSize = 1000

// Cache is a bounded LRU of live conversations. Adding to a full cache
// evicts the least recently used entry synchronously.
type Cache struct {
	lru     *lru.Cache[string, *Conversation]
	metrics *Metrics
}

// NewCache returns a cache holding at most size conversations.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c := &Cache{metrics: NewMetrics()}
	// Only fails for a non-positive size.
	c.lru, _ = lru.NewWithEvict(size, func(string, *Conversation) {
		c.metrics.CacheEvictions.Inc()
	})
	return c
}

// Get returns the cached conversation and marks it recently used.
func (c *Cache) Get(id string) (*Conversation, bool) {
	conv, ok := c.lru.Get(id)
	if ok {
		c.metrics.CacheHits.Inc()
	} else {
		c.metrics.CacheMisses.Inc()
	}
	return conv, ok
}

// Put inserts or refreshes conv. It reports whether an entry was evicted.
func (c *Cache) Put(conv *Conversation) bool {
	evicted := c.lru.Add(conv.ID(), conv)
	c.metrics.CacheEntries.Set(float64(c.lru.Len()))
	return evicted
}

// Remove drops id from the cache.
func (c *Cache) Remove(id string) {
	c.lru.Remove(id)
	c.metrics.CacheEntries.Set(float64(c.lru.Len()))
}

// Len returns the number of cached conversations.
func (c *Cache) Len() int { return c.lru.Len() }

// Contains reports whether id is cached without touching its recency.
func (c *Cache) Contains(id string) bool { return c.lru.Contains(id) }
