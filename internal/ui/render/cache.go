// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

// DefaultCacheSize bounds the number of cached blocks.
const DefaultCacheSize = 2048

// =============================================================================
// BLOCK CACHE
// =============================================================================

// cacheKey identifies one rendering of one message.
type cacheKey struct {
	fingerprint string
	revision    int
	width       int
	separator   bool
}

// blockCache maps rendered messages to their blocks. When full it drops
// the oldest half, which keeps the recently scrolled window warm.
type blockCache struct {
	max     int
	entries map[cacheKey]cacheEntry
	clock   uint64

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	block string
	used  uint64
}

func newBlockCache(max int) *blockCache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &blockCache{max: max, entries: make(map[cacheKey]cacheEntry)}
}

func (c *blockCache) get(k cacheKey) (string, bool) {
	e, ok := c.entries[k]
	if !ok {
		c.misses++
		return "", false
	}
	c.hits++
	c.clock++
	e.used = c.clock
	c.entries[k] = e
	return e.block, true
}

func (c *blockCache) put(k cacheKey, block string) {
	if len(c.entries) >= c.max {
		c.evictOldest()
	}
	c.clock++
	c.entries[k] = cacheEntry{block: block, used: c.clock}
}

// evictOldest drops every entry used before the median use time.
func (c *blockCache) evictOldest() {
	var cutoff uint64
	if half := uint64(c.max / 2); c.clock > half {
		cutoff = c.clock - half
	}
	for k, e := range c.entries {
		if e.used <= cutoff {
			delete(c.entries, k)
		}
	}
}

func (c *blockCache) reset() {
	c.entries = make(map[cacheKey]cacheEntry)
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}
