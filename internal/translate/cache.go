package translate

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheCapacity matches the bound the engine has always shipped with.
const DefaultCacheCapacity = 512

// Cache memoizes translation results with strict least-recently-used
// eviction. It is safe for concurrent use by any number of in-flight
// pipelines. Entries never expire; they only leave via eviction.
type Cache struct {
	entries *lru.Cache[Key, Result]
}

// NewCache creates a cache bounded to capacity entries.
func NewCache(capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be greater than 0, got %d", capacity)
	}
	entries, err := lru.New[Key, Result](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Get returns the cached result for key and marks it most-recently-used.
func (c *Cache) Get(key Key) (Result, bool) {
	return c.entries.Get(key)
}

// Put stores result under key, marks it most-recently-used, and evicts the
// least-recently-used entry if the cache is over capacity.
func (c *Cache) Put(key Key, result Result) {
	c.entries.Add(key, result)
}

// Len reports the current number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}
