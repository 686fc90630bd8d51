// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package x509chain

import (
	"container/list"
	"context"
	"crypto/x509"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// CRLCacheEntry represents a cached CRL with metadata
type CRLCacheEntry struct {
	List       *x509.RevocationList // Parsed CRL
	Size       int                  // Length of the raw CRL
	FetchedAt  time.Time            // When this CRL was fetched
	NextUpdate time.Time            // When this CRL expires (from CRL.NextUpdate)
	URL        string               // Source URL for debugging
}

// isFresh checks if the cached CRL is still fresh
func (entry *CRLCacheEntry) isFresh(now time.Time) bool {
	// A CRL without NextUpdate is only trusted for a day after fetching.
	if entry.NextUpdate.IsZero() {
		return entry.FetchedAt.After(now.Add(-24 * time.Hour))
	}
	return entry.NextUpdate.After(now) && entry.FetchedAt.After(now.Add(-24*time.Hour))
}

// isExpired checks if the CRL has expired and should be cleaned up
func (entry *CRLCacheEntry) isExpired(now time.Time) bool {
	if entry.NextUpdate.IsZero() {
		return entry.FetchedAt.Before(now.Add(-24 * time.Hour))
	}
	// Allow 1 hour grace period
	return entry.NextUpdate.Before(now.Add(-1 * time.Hour))
}

// CRLCacheConfig holds configuration for the CRL cache
type CRLCacheConfig struct {
	MaxSize         int           // Maximum number of CRLs to cache (0 = unlimited, but not recommended)
	CleanupInterval time.Duration // How often to run cleanup (default: 1 hour)
}

// CRLCacheMetrics tracks cache performance and usage
type CRLCacheMetrics struct {
	Size        int64 // Current number of cached CRLs
	Hits        int64 // Number of cache hits
	Misses      int64 // Number of cache misses
	Evictions   int64 // Number of LRU evictions
	Cleanups    int64 // Number of expired CRL cleanups
	TotalMemory int64 // Approximate memory usage in bytes
}

// DefaultCRLCacheConfig is used by [NewCRLCache] when no configuration is given.
var DefaultCRLCacheConfig = CRLCacheConfig{
	MaxSize:         100,
	CleanupInterval: 1 * time.Hour,
}

// CRLCache is an LRU cache of parsed CRLs keyed by distribution point URL.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type CRLCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element // values are *CRLCacheEntry
	order   *list.List               // front is least recently used
	config  atomic.Pointer[CRLCacheConfig]
	metrics CRLCacheMetrics
	running atomic.Bool

	now func() time.Time
}

// NewCRLCache creates an empty cache. A nil config selects [DefaultCRLCacheConfig].
func NewCRLCache(config *CRLCacheConfig) *CRLCache {
	c := &CRLCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
	c.SetConfig(config)
	return c
}

// SetConfig replaces the cache configuration and prunes entries above the new size.
func (c *CRLCache) SetConfig(config *CRLCacheConfig) {
	cfg := DefaultCRLCacheConfig
	if config != nil {
		cfg = *config
	}

	// Validate configuration
	if cfg.MaxSize < 0 {
		cfg.MaxSize = 0
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 1 * time.Hour
	}

	c.config.Store(&cfg)
	c.prune(cfg.MaxSize)
}

// Config returns a copy of the current configuration.
func (c *CRLCache) Config() CRLCacheConfig {
	return *c.config.Load()
}

func (c *CRLCache) prune(maxSize int) {
	if maxSize <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.entries) > maxSize && c.order.Len() > 0 {
		c.evictLocked()
	}
}

func (c *CRLCache) evictLocked() {
	c.removeLocked(c.order.Front())
	atomic.AddInt64(&c.metrics.Evictions, 1)
}

func (c *CRLCache) removeLocked(elem *list.Element) {
	entry := c.order.Remove(elem).(*CRLCacheEntry)
	delete(c.entries, entry.URL)
}

// urlsLocked lists cached URLs from least to most recently used.
func (c *CRLCache) urlsLocked() []string {
	urls := make([]string, 0, c.order.Len())
	for e := c.order.Front(); e != nil; e = e.Next() {
		urls = append(urls, e.Value.(*CRLCacheEntry).URL)
	}
	return urls
}

// Metrics returns current cache metrics
func (c *CRLCache) Metrics() CRLCacheMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	var totalMemory int64
	for e := c.order.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*CRLCacheEntry)
		totalMemory += int64(entry.Size) + int64(len(entry.URL)) + 24 // Approximate overhead
	}

	return CRLCacheMetrics{
		Size:        int64(len(c.entries)),
		Hits:        atomic.LoadInt64(&c.metrics.Hits),
		Misses:      atomic.LoadInt64(&c.metrics.Misses),
		Evictions:   atomic.LoadInt64(&c.metrics.Evictions),
		Cleanups:    atomic.LoadInt64(&c.metrics.Cleanups),
		TotalMemory: totalMemory,
	}
}

// StartCleanup runs periodic cleanup of expired CRLs until ctx is done.
// Only one cleanup goroutine runs per cache; extra calls return immediately.
func (c *CRLCache) StartCleanup(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer c.running.Store(false)

		ticker := time.NewTicker(c.Config().CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Cleanup()
				// Update ticker interval in case config changed
				ticker.Reset(c.Config().CleanupInterval)
			}
		}
	}()
}

// CleanupRunning reports whether a [CRLCache.StartCleanup] goroutine is active.
func (c *CRLCache) CleanupRunning() bool { return c.running.Load() }

// Cleanup removes CRLs that have expired beyond their NextUpdate time and
// returns how many were removed.
func (c *CRLCache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for e := c.order.Front(); e != nil; {
		next := e.Next()
		if e.Value.(*CRLCacheEntry).isExpired(now) {
			c.removeLocked(e)
			removed++
		}
		e = next
	}

	if removed > 0 {
		atomic.AddInt64(&c.metrics.Cleanups, int64(removed))
	}
	return removed
}

// Get retrieves a fresh CRL and updates the access order.
func (c *CRLCache) Get(url string) (*x509.RevocationList, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.entries[url]
	if !exists || !elem.Value.(*CRLCacheEntry).isFresh(c.now()) {
		atomic.AddInt64(&c.metrics.Misses, 1)
		return nil, false
	}

	atomic.AddInt64(&c.metrics.Hits, 1)
	c.order.MoveToBack(elem)
	return elem.Value.(*CRLCacheEntry).List, true
}

// Set stores a parsed CRL, evicting the least recently used entry when full.
func (c *CRLCache) Set(url string, crl *x509.RevocationList) {
	c.mu.Lock()
	defer c.mu.Unlock()

	config := c.Config()

	entry := &CRLCacheEntry{
		List:       crl,
		Size:       len(crl.Raw),
		FetchedAt:  c.now(),
		NextUpdate: crl.NextUpdate,
		URL:        url,
	}

	if elem, exists := c.entries[url]; exists {
		elem.Value = entry
		c.order.MoveToBack(elem)
		return
	}

	for config.MaxSize > 0 && len(c.entries) >= config.MaxSize && c.order.Len() > 0 {
		c.evictLocked()
	}
	c.entries[url] = c.order.PushBack(entry)
}

// Clear drops every entry and resets the metrics.
func (c *CRLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()

	atomic.StoreInt64(&c.metrics.Hits, 0)
	atomic.StoreInt64(&c.metrics.Misses, 0)
	atomic.StoreInt64(&c.metrics.Evictions, 0)
	atomic.StoreInt64(&c.metrics.Cleanups, 0)
}

// Stats returns a formatted string with cache statistics
func (c *CRLCache) Stats() string {
	metrics := c.Metrics()
	config := c.Config()

	hitRate := float64(0)
	totalRequests := metrics.Hits + metrics.Misses
	if totalRequests > 0 {
		hitRate = float64(metrics.Hits) / float64(totalRequests) * 100
	}

	return fmt.Sprintf("CRL Cache Statistics:\n"+
		"  Size: %d/%d entries\n"+
		"  Memory Usage: %.2f KB\n"+
		"  Hit Rate: %.1f%% (%d hits, %d misses)\n"+
		"  Evictions: %d\n"+
		"  Cleanups: %d\n"+
		"  Cleanup Interval: %v",
		metrics.Size, config.MaxSize,
		float64(metrics.TotalMemory)/1024,
		hitRate, metrics.Hits, metrics.Misses,
		metrics.Evictions,
		metrics.Cleanups,
		config.CleanupInterval)
}
