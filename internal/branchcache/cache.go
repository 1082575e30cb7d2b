// Package branchcache implements the Branch Cache spec.md §4.10
// describes: an LRU + TTL store of QuantumBranches keyed by
// "location::action_type::target::decision", tagged with the
// state_version it was generated against so a collapse can detect
// staleness at lookup time. Grounded on cklxx-elephant.ai's dependency
// on hashicorp/golang-lru/v2 (its own cache source wasn't retrievable,
// only tests, so this is library adoption rather than file
// adaptation) plus spec.md §4.10's eviction/metrics contract.
package branchcache

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quantumturn/engine/internal/domain"
)

// entry wraps a cached branch with the bookkeeping fields spec.md §4.10
// lists: created_at, last_accessed, access_count, ttl_seconds.
type entry struct {
	branch       domain.QuantumBranch
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int
}

// Stats mirrors the metrics spec.md §4.10 and §6.2's get_cache_stats
// call for.
type Stats struct {
	Size            int
	MaxSize         int
	Hits            int64
	Misses          int64
	Expirations     int64
	Evictions       int64
	StaleEvictions  int64
	Invalidations   int64
}

// HitRate returns Hits / (Hits + Misses), or 0 if nothing was looked up.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is the size- and time-bounded LRU backing anticipated
// QuantumBranches. All operations are guarded by one mutex, matching
// spec.md §5's "Branch Cache ... protected by an async mutex".
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, *entry]
	ttl     time.Duration
	maxSize int
	stats   Stats

	// suppressEvictMetric is set around caller-initiated removals.
	// hashicorp/golang-lru/v2's onEvict callback fires on every Remove,
	// not just capacity-based eviction, so without this flag every TTL
	// expiry/stale-state/invalidation removal below would also count
	// against Evictions, collapsing spec.md's six distinct metrics into
	// one.
	suppressEvictMetric bool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Cache bounded to size entries, each expiring ttl
// after creation.
func New(size int, ttl time.Duration) (*Cache, error) {
	c := &Cache{ttl: ttl, maxSize: size, stopCh: make(chan struct{})}
	backing, err := lru.NewWithEvict[string, *entry](size, func(key string, value *entry) {
		if !c.suppressEvictMetric {
			c.stats.Evictions++
		}
	})
	if err != nil {
		return nil, err
	}
	c.lru = backing
	return c, nil
}

// removeSuppressed removes key from the backing LRU without attributing
// the removal to the capacity-based Evictions counter. Callers must
// already hold c.mu.
func (c *Cache) removeSuppressed(key string) {
	c.suppressEvictMetric = true
	c.lru.Remove(key)
	c.suppressEvictMetric = false
}

// Get looks up branchKey, returning (branch, true) on a live hit. A hit
// whose branch.StateVersion no longer matches currentStateVersion is
// dropped and counted as a stale_eviction rather than returned, per
// spec.md §4.10 "On state_version mismatch at lookup time".
func (c *Cache) Get(branchKey string, currentStateVersion int64) (domain.QuantumBranch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(branchKey)
	if !ok {
		c.stats.Misses++
		return domain.QuantumBranch{}, false
	}

	if time.Since(e.createdAt) > c.ttl {
		c.removeSuppressed(branchKey)
		c.stats.Expirations++
		c.stats.Misses++
		return domain.QuantumBranch{}, false
	}

	if e.branch.StateVersion != currentStateVersion {
		c.removeSuppressed(branchKey)
		c.stats.StaleEvictions++
		c.stats.Misses++
		return domain.QuantumBranch{}, false
	}

	e.lastAccessed = time.Now()
	e.accessCount++
	c.stats.Hits++
	return e.branch, true
}

// Has reports whether branchKey is already cached and still fresh
// against currentStateVersion, without recording a hit/miss metric —
// used by the anticipation loop to skip regenerating what it already
// has (spec.md §4.13 "Skip any (action, decision) already cached").
func (c *Cache) Has(branchKey string, currentStateVersion int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Peek(branchKey)
	if !ok {
		return false
	}
	if time.Since(e.createdAt) > c.ttl {
		return false
	}
	return e.branch.StateVersion == currentStateVersion
}

// Put inserts or replaces the cached branch for its BranchKey.
func (c *Cache) Put(branch domain.QuantumBranch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.lru.Add(branch.BranchKey, &entry{branch: branch, createdAt: now, lastAccessed: now})
}

// InvalidateLocation drops every cached branch whose key begins with
// "location::", per spec.md §4.10's invalidate_location hook.
func (c *Cache) InvalidateLocation(location string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := location + "::"
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.removeSuppressed(key)
			c.stats.Invalidations++
		}
	}
}

// Stats returns a snapshot of the cache's current size and metrics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.lru.Len()
	s.MaxSize = c.maxSize
	return s
}

// StartCleanup runs a background goroutine that sweeps expired entries
// every interval, per spec.md §4.10's cleanup_interval. Call Stop to
// end it; it is safe to never call StartCleanup at all (Get still
// expires lazily on lookup).
func (c *Cache) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweepExpired()
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop ends the background cleanup goroutine started by StartCleanup.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *Cache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if !ok {
			continue
		}
		if time.Since(e.createdAt) > c.ttl {
			c.removeSuppressed(key)
			c.stats.Expirations++
		}
	}
}
