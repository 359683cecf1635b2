// Package viewer implements the multi-view part cache: view storage, load
// coordination, idle eviction and drag interaction.
package viewer

import "sync"

// PartID identifies a part in the external store.
type PartID string

// NumViews is the number of camera stations captured per part.
const NumViews = 8

// Cache maps parts to their cached view images. Index 0 is the eagerly
// loaded representative view and is always present while a part has an
// entry; indices 1-7 may be absent or evicted.
type Cache struct {
	mu   sync.RWMutex
	sets map[PartID]map[int]*Handle

	hits   int
	misses int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		sets: make(map[PartID]map[int]*Handle),
	}
}

// View returns the handle for one view of a part.
func (c *Cache) View(part PartID, index int) (*Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.sets[part][index]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return h, ok
}

// Has reports whether a live view exists for the part and index.
func (c *Cache) Has(part PartID, index int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sets[part][index]
	return ok
}

// Put stores an image for one view, wrapping it in a fresh handle. A handle
// already stored at that index is revoked first so the old raster bytes are
// never leaked.
func (c *Cache) Put(part PartID, index int, data []byte) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[part]
	if !ok {
		set = make(map[int]*Handle, NumViews)
		c.sets[part] = set
	}
	if old, ok := set[index]; ok {
		old.revoke()
	}
	h := newHandle(data)
	set[index] = h
	return h
}

// EvictExceptFirst revokes and removes views 1 and up for a part, keeping
// the representative view 0. No-op when the part has no entry.
func (c *Cache) EvictExceptFirst(part PartID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.sets[part]
	if !ok {
		return
	}
	for index, h := range set {
		if index == 0 {
			continue
		}
		h.revoke()
		delete(set, index)
	}
}

// Remove revokes every view of a part and drops its entry.
func (c *Cache) Remove(part PartID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, h := range c.sets[part] {
		h.revoke()
	}
	delete(c.sets, part)
}

// Parts returns the parts that currently have cached views.
func (c *Cache) Parts() []PartID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	parts := make([]PartID, 0, len(c.sets))
	for part := range c.sets {
		parts = append(parts, part)
	}
	return parts
}

// Clear revokes all handles and empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, set := range c.sets {
		for _, h := range set {
			h.revoke()
		}
	}
	c.sets = make(map[PartID]map[int]*Handle)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache hit/miss counters.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
