package systems

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/exp/slices"

	"github.com/lodestone-engine/lodestone/engine/core"
	"github.com/lodestone-engine/lodestone/engine/resources"
)

// evictFraction is the share of entries removed per eviction pass, at minimum.
const evictFraction = 0.2

type cacheEntry struct {
	resource    *resources.Resource
	size        int64
	lastAccess  time.Time
	accessCount uint64
}

// CacheStats is the snapshot returned by Stats.
type CacheStats struct {
	// TotalKnown and TotalBytesKnown cover every registered descriptor,
	// cached or not. Zero when no known-stats provider is wired.
	TotalKnown      int
	TotalBytesKnown uint64
	CachedCount     int
	CachedBytes     int64
	HitRate         float64
}

// ResourceCacheConfig configures the resource cache.
type ResourceCacheConfig struct {
	// SoftCapBytes triggers an eviction pass directly on Put once exceeded.
	// Zero disables the cap.
	SoftCapBytes int64
}

// ResourceCache maps resource ids to decoded payloads with access-recency
// metadata. It exclusively owns payload lifetime while an entry is cached.
// Eviction picks candidates only; callers holding a payload reference across
// an eviction must re-Get it before reuse (usage contract, not a lock).
type ResourceCache struct {
	config ResourceCacheConfig

	mutex      sync.Mutex
	entries    map[string]*cacheEntry
	totalBytes int64
	hits       uint64
	misses     uint64

	clock clock.Clock
	bus   *core.Bus

	// knownStats reports registry-wide totals for Stats. Optional.
	knownStats func() (count int, bytes uint64)
}

func NewResourceCache(config ResourceCacheConfig, clk clock.Clock, bus *core.Bus) *ResourceCache {
	return &ResourceCache{
		config:  config,
		entries: make(map[string]*cacheEntry),
		clock:   clk,
		bus:     bus,
	}
}

// SetKnownStatsProvider wires the registry totals used by Stats.
func (rc *ResourceCache) SetKnownStatsProvider(f func() (int, uint64)) {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	rc.knownStats = f
}

// Get returns the cached resource and refreshes its recency metadata.
func (rc *ResourceCache) Get(id string) (*resources.Resource, bool) {
	rc.mutex.Lock()
	entry, ok := rc.entries[id]
	if ok {
		entry.lastAccess = rc.clock.Now()
		entry.accessCount++
		rc.hits++
	} else {
		rc.misses++
	}
	rc.mutex.Unlock()

	if ok {
		rc.bus.Publish(core.EventCacheHit, core.ResourceEvent{ID: id, Kind: entry.resource.Kind.String()})
		return entry.resource, true
	}
	rc.bus.Publish(core.EventCacheMiss, core.ResourceEvent{ID: id})
	return nil, false
}

// Put inserts or replaces the resource and updates the aggregate byte count.
// Exceeding the soft cap triggers an eviction pass before Put returns.
func (rc *ResourceCache) Put(id string, res *resources.Resource) {
	size := int64(res.Size)

	rc.mutex.Lock()
	if old, ok := rc.entries[id]; ok {
		rc.totalBytes -= old.size
	}
	rc.entries[id] = &cacheEntry{
		resource:   res,
		size:       size,
		lastAccess: rc.clock.Now(),
	}
	rc.totalBytes += size

	if rc.config.SoftCapBytes > 0 && rc.totalBytes > rc.config.SoftCapBytes {
		rc.evictLocked()
	}
	rc.mutex.Unlock()
}

// Remove deletes one entry. Returns false if the id is not cached.
func (rc *ResourceCache) Remove(id string) bool {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	entry, ok := rc.entries[id]
	if !ok {
		return false
	}
	rc.totalBytes -= entry.size
	delete(rc.entries, id)
	return true
}

// Clear empties the cache and resets the aggregate byte counter.
func (rc *ResourceCache) Clear() {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	rc.entries = make(map[string]*cacheEntry)
	rc.totalBytes = 0
}

// Evict removes the least-recently-used entries: the oldest 20%, or enough
// to return under the soft cap, whichever is more. Returns the number of
// entries removed.
func (rc *ResourceCache) Evict() int {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()
	return rc.evictLocked()
}

func (rc *ResourceCache) evictLocked() int {
	if len(rc.entries) == 0 {
		return 0
	}

	type candidate struct {
		id         string
		size       int64
		lastAccess time.Time
	}
	candidates := make([]candidate, 0, len(rc.entries))
	for id, e := range rc.entries {
		candidates = append(candidates, candidate{id: id, size: e.size, lastAccess: e.lastAccess})
	}
	slices.SortFunc(candidates, func(a, b candidate) int {
		return a.lastAccess.Compare(b.lastAccess)
	})

	minEvict := int(math.Ceil(float64(len(candidates)) * evictFraction))
	removed := 0
	for _, c := range candidates {
		underCap := rc.config.SoftCapBytes <= 0 || rc.totalBytes <= rc.config.SoftCapBytes
		if removed >= minEvict && underCap {
			break
		}
		delete(rc.entries, c.id)
		rc.totalBytes -= c.size
		removed++
	}

	if removed > 0 {
		core.LogDebug("cache evicted %d entries, %d bytes cached", removed, rc.totalBytes)
	}
	return removed
}

// Stats returns a consistent snapshot of cache counters.
func (rc *ResourceCache) Stats() CacheStats {
	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	stats := CacheStats{
		CachedCount: len(rc.entries),
		CachedBytes: rc.totalBytes,
	}
	if total := rc.hits + rc.misses; total > 0 {
		stats.HitRate = float64(rc.hits) / float64(total)
	}
	if rc.knownStats != nil {
		stats.TotalKnown, stats.TotalBytesKnown = rc.knownStats()
	}
	return stats
}
