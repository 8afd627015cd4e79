package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// cacheTTL bounds how long a probed duration is kept. Fingerprints change
// whenever a file's content changes, so time-based expiry is the only
// invalidation the cache needs.
const cacheTTL = 30 * 24 * time.Hour

type cacheEntry struct {
	Duration float64   `json:"duration"`
	StoredAt time.Time `json:"storedAt"`
}

// DurationCache is a persisted fingerprint -> duration map. It is the one
// piece of shared mutable state between concurrent catalog requests: reads
// and writes are serialized by a mutex and the file is replaced atomically
// so a crash mid-write never corrupts it. Read and write failures degrade to
// cache misses; they never fail a catalog request.
type DurationCache struct {
	mu      sync.Mutex
	path    string
	entries map[string]cacheEntry
}

// NewDurationCache loads the cache file, pruning entries past the TTL. A
// missing or unreadable file starts an empty cache.
func NewDurationCache(path string) *DurationCache {
	c := &DurationCache{path: path, entries: make(map[string]cacheEntry)}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		c.entries = make(map[string]cacheEntry)
		return c
	}
	cutoff := time.Now().Add(-cacheTTL)
	for k, e := range c.entries {
		if e.StoredAt.Before(cutoff) {
			delete(c.entries, k)
		}
	}
	return c
}

func fingerprint(path string, size int64, mtime time.Time) string {
	return fmt.Sprintf("%s|%d|%d", path, size, mtime.Unix())
}

// Get returns the cached duration for the (path, size, mtime) fingerprint.
func (c *DurationCache) Get(path string, size int64, mtime time.Time) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fingerprint(path, size, mtime)]
	return e.Duration, ok
}

// Put stores a duration and persists the cache via temp file + rename.
func (c *DurationCache) Put(path string, size int64, mtime time.Time, duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint(path, size, mtime)] = cacheEntry{Duration: duration, StoredAt: time.Now()}
	c.saveLocked()
}

func (c *DurationCache) saveLocked() {
	data, err := json.Marshal(c.entries)
	if err != nil {
		return
	}
	tmp := c.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, c.path)
}
