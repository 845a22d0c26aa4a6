// Package cache provides a small TTL cache for ranked search responses.
// Entries are invalidated in bulk whenever a sync cycle lands new data.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"itemsearch/internal/domain"
)

type QueryCache struct {
	mu       sync.RWMutex
	entries  map[string]*cacheEntry
	order    []string
	maxSize  int
	ttl      time.Duration
	indexGen uint64
}

type cacheEntry struct {
	results   []domain.ScoredItem
	timestamp time.Time
	indexGen  uint64
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(query string, k int, filters domain.SearchFilters) string {
	data := []byte(query)
	data = append(data, byte(k>>8), byte(k))
	if filters.Members != nil {
		data = append(data, []byte(fmt.Sprintf("|members=%v", *filters.Members))...)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func (c *QueryCache) Get(query string, k int, filters domain.SearchFilters) ([]domain.ScoredItem, bool) {
	key := cacheKey(query, k, filters)

	c.mu.RLock()
	entry, exists := c.entries[key]
	currentGen := c.indexGen
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if entry.indexGen != currentGen || time.Since(entry.timestamp) > c.ttl {
		return nil, false
	}

	return entry.results, true
}

func (c *QueryCache) Put(query string, k int, filters domain.SearchFilters, results []domain.ScoredItem) {
	key := cacheKey(query, k, filters)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.maxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}

	c.entries[key] = &cacheEntry{
		results:   results,
		timestamp: time.Now(),
		indexGen:  c.indexGen,
	}
}

// Invalidate marks all cached entries stale. Called after every sync cycle
// that persisted data.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexGen++
}

// Len returns the number of resident entries, stale included.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
