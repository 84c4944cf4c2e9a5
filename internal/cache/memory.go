package cache

import (
	"fmt"
	"sync"
	"time"
)

// Family identifies an independently invalidated set of per-user entries
type Family int

const (
	// FamilySeen caches the per-user seen-repo-id union
	FamilySeen Family = iota
	// FamilySaved caches the per-user saved/liked repo-id sets
	FamilySaved
)

func (f Family) String() string {
	switch f {
	case FamilySeen:
		return "seen"
	case FamilySaved:
		return "saved"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

type resultEntry struct {
	ids        map[int64]struct{}
	insertedAt time.Time
}

// ResultCache is the per-process cache for expensive derived id sets.
// The two families expire independently, and any interaction write must
// invalidate its family synchronously; staleness inside the TTL window is
// only acceptable in the absence of writes.
type ResultCache struct {
	mu      sync.RWMutex
	ttls    map[Family]time.Duration
	entries map[string]resultEntry
	now     func() time.Time
}

// NewResultCache creates a result cache with per-family TTLs
func NewResultCache(seenTTL, savedTTL time.Duration) *ResultCache {
	return &ResultCache{
		ttls: map[Family]time.Duration{
			FamilySeen:  seenTTL,
			FamilySaved: savedTTL,
		},
		entries: make(map[string]resultEntry),
		now:     time.Now,
	}
}

func (c *ResultCache) key(userID string, family Family) string {
	return family.String() + ":" + userID
}

// Get returns the cached id set for a user and family, or a miss when the
// entry is absent or past its TTL
func (c *ResultCache) Get(userID string, family Family) (map[int64]struct{}, bool) {
	c.mu.RLock()
	entry, ok := c.entries[c.key(userID, family)]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.insertedAt) > c.ttls[family] {
		// Expired; evict lazily
		c.mu.Lock()
		delete(c.entries, c.key(userID, family))
		c.mu.Unlock()
		return nil, false
	}
	return entry.ids, true
}

// Set stores an id set for a user and family
func (c *ResultCache) Set(userID string, family Family, ids map[int64]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(userID, family)] = resultEntry{
		ids:        ids,
		insertedAt: c.now(),
	}
}

// Invalidate drops a user's entry for one family. Callers on the write
// path must not report the write as successful if this returns an error.
func (c *ResultCache) Invalidate(userID string, family Family) error {
	if c == nil {
		return fmt.Errorf("result cache not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, c.key(userID, family))
	return nil
}

// Len reports the number of live entries (expired entries may be counted
// until their next read)
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
