package service

import (
	"sort"
	"sync"
	"time"
)

// snapshotRetentionDays is how many daily snapshots are kept as fallback
// when the downstream dependency is unavailable.
const snapshotRetentionDays = 7

// SnapshotCache keeps the last successful result per calendar day.
// Eviction is oldest-first by date key once retention is exceeded.
type SnapshotCache struct {
	mu      sync.RWMutex
	entries map[string]any // key: YYYY-MM-DD
}

// NewSnapshotCache creates an empty SnapshotCache.
func NewSnapshotCache() *SnapshotCache {
	return &SnapshotCache{entries: make(map[string]any)}
}

// Put stores a snapshot under the given day, evicting the oldest days
// beyond the retention window.
func (c *SnapshotCache) Put(day time.Time, v any) {
	key := day.Format("2006-01-02")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = v

	if len(c.entries) <= snapshotRetentionDays {
		return
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys[:len(c.entries)-snapshotRetentionDays] {
		delete(c.entries, k)
	}
}

// Get returns the snapshot for the given day, if present.
func (c *SnapshotCache) Get(day time.Time) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[day.Format("2006-01-02")]
	return v, ok
}

// Latest returns the most recent snapshot, if any.
func (c *SnapshotCache) Latest() (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.entries) == 0 {
		return nil, false
	}
	var latest string
	for k := range c.entries {
		if k > latest {
			latest = k
		}
	}
	return c.entries[latest], true
}

// Len returns how many daily snapshots are held.
func (c *SnapshotCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
