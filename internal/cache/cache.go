// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache provides an in-memory TTL + LRU cache for normalized
// search results.
//
// Entries expire TTL after creation; Get never returns an expired entry,
// whether or not the background sweep has run. When the cache is full,
// inserting a new key evicts the entry with the oldest last access.
package cache

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/ndl-search/pkg/types"
)

type entry[V any] struct {
	value        V
	createdAt    time.Time
	lastAccessed time.Time
	ttl          time.Duration
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Size        int    `json:"size" yaml:"size"`
	MaxSize     int    `json:"max_size" yaml:"max_size"`
	Hits        uint64 `json:"hits" yaml:"hits"`
	Misses      uint64 `json:"misses" yaml:"misses"`
	Evictions   uint64 `json:"evictions" yaml:"evictions"`
	Expirations uint64 `json:"expirations" yaml:"expirations"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a bounded TTL/LRU cache safe for concurrent use.
type Cache[V any] struct {
	maxSize    int
	defaultTTL time.Duration
	interval   time.Duration

	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry[V]
	stats   Stats

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
	started  bool
}

// New creates a cache. Zero values in cfg fall back to 1000 entries, a
// 30 minute TTL and a 5 minute sweep interval.
func New[V any](cfg types.CacheConfig) *Cache[V] {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &Cache[V]{
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.TTL,
		interval:   cfg.CleanupInterval,
		now:        time.Now,
		entries:    make(map[string]*entry[V]),
		stop:       make(chan struct{}),
	}
}

// Set stores value under key. A ttl of zero uses the default TTL.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}

	now := c.now()
	c.entries[key] = &entry[V]{
		value:        value,
		createdAt:    now,
		lastAccessed: now,
		ttl:          ttl,
	}
}

// Get returns the value for key. Expired entries are removed and
// reported as absent.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return zero, false
	}

	now := c.now()
	if e.expired(now) {
		delete(c.entries, key)
		c.stats.Expirations++
		c.stats.Misses++
		return zero, false
	}

	e.lastAccessed = now
	c.stats.Hits++
	return e.value, true
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry[V])
}

// Size returns the number of stored entries, expired or not.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	s.MaxSize = c.maxSize
	return s
}

// Sweep removes every expired entry and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.stats.Expirations += uint64(removed)
	return removed
}

// Start runs Sweep on the configured interval until Stop is called.
func (c *Cache[V]) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		t := time.NewTicker(c.interval)
		defer t.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-t.C:
				c.Sweep()
			}
		}
	}()
}

// Stop ends the background sweep and waits for it to exit.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}

// evictLRU removes the entry with the oldest last access. Caller holds mu.
func (c *Cache[V]) evictLRU() {
	var oldestKey string
	var oldest time.Time
	found := false
	for key, e := range c.entries {
		if !found || e.lastAccessed.Before(oldest) {
			oldestKey, oldest, found = key, e.lastAccessed, true
		}
	}
	if found {
		delete(c.entries, oldestKey)
		c.stats.Evictions++
	}
}

// SearchKey builds the cache key for a search of text returning up to
// maxResults records.
func SearchKey(text string, maxResults int) string {
	return fmt.Sprintf("ndl:search:%s:%d", base64.StdEncoding.EncodeToString([]byte(text)), maxResults)
}
