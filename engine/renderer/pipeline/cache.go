package pipeline

import "sync"

// Cache holds created pipelines keyed by Key. A deferred frame touches a small, fixed set of
// program/state/target combinations so the cache settles after the first frame.
type Cache struct {
	mu      *sync.Mutex
	entries map[uint64]Pipeline
	misses  int
}

// NewCache creates an empty pipeline cache.
//
// Returns:
//   - *Cache: the cache
func NewCache() *Cache {
	return &Cache{
		mu:      &sync.Mutex{},
		entries: make(map[uint64]Pipeline),
	}
}

// Get looks up a pipeline by key. A miss is counted.
//
// Parameters:
//   - key: the cache key
//
// Returns:
//   - Pipeline: the cached pipeline, or nil
//   - bool: true when found
func (c *Cache) Get(key uint64) (Pipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[key]
	if !ok {
		c.misses++
	}
	return p, ok
}

// Put stores a pipeline under its own key, releasing any pipeline it replaces.
func (c *Cache) Put(p Pipeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[p.Key()]; ok && old != p {
		old.Release()
	}
	c.entries[p.Key()] = p
}

// EvictProgram releases and removes every pipeline built from the given program.
//
// Parameters:
//   - programID: the program whose pipelines are dropped
//
// Returns:
//   - int: the number of pipelines evicted
func (c *Cache) EvictProgram(programID uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k, p := range c.entries {
		if p.ProgramID() == programID {
			p.Release()
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached pipelines.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Misses returns how many lookups missed since the cache was created.
func (c *Cache) Misses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.misses
}

// Release releases every cached pipeline and empties the cache.
func (c *Cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.entries {
		p.Release()
		delete(c.entries, k)
	}
}
