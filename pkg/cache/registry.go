package cache

import (
	"container/list"
	"sync"
)

// DefaultCapacity is the per-cache entry limit used when no explicit
// capacity is configured.
const DefaultCapacity = 200

// Pool is a cached value owned by the registry. The registry destroys a
// pool when its entry is evicted or replaced; reclaim lets the registry
// ask idle pools to release memory without giving up their slot.
type Pool interface {
	Destroy()
	ReclaimIdle() int
}

// Registry holds named LRU caches of expression pools. Each named cache
// has its own lock and capacity; a miss runs the caller's constructor
// inside the cache lock, which is cheap because pools defer compilation
// until first borrow.
type Registry struct {
	mu              sync.Mutex
	defaultCapacity int
	capacities      map[string]int
	caches          map[string]*lruCache
}

// Stats is a point-in-time snapshot of one named cache.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Stale     uint64
}

// NewRegistry creates a registry. capacities overrides the per-cache entry
// limit by cache name; unlisted caches use defaultCapacity, and a
// defaultCapacity of zero or below falls back to DefaultCapacity.
func NewRegistry(defaultCapacity int, capacities map[string]int) *Registry {
	if defaultCapacity <= 0 {
		defaultCapacity = DefaultCapacity
	}
	caps := make(map[string]int, len(capacities))
	for name, c := range capacities {
		caps[name] = c
	}
	return &Registry{
		defaultCapacity: defaultCapacity,
		capacities:      caps,
		caches:          make(map[string]*lruCache),
	}
}

// Acquire returns the pool for key in the named cache, creating it with
// create on a miss. A cached entry whose stamp differs from the caller's
// is stale: its pool is destroyed and a fresh one takes its place. The
// returned pool stays valid even if the entry is later evicted; eviction
// destroys the pool, which detaches outstanding borrows rather than
// invalidating them.
func (r *Registry) Acquire(cacheName string, key Key, stamp int64, create func() Pool) Pool {
	c := r.cache(cacheName)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry)
		if ent.stamp == stamp {
			c.order.MoveToFront(elem)
			c.hits++
			cacheHits.WithLabelValues(cacheName).Inc()
			return ent.pool
		}
		// Newer stamp: the old compiled form must never be served again.
		c.removeLocked(elem)
		ent.pool.Destroy()
		c.stale++
		cacheStale.WithLabelValues(cacheName).Inc()
	}

	c.misses++
	cacheMisses.WithLabelValues(cacheName).Inc()

	pool := create()
	elem := c.order.PushFront(&entry{key: key, stamp: stamp, pool: pool})
	c.entries[key] = elem
	cachePools.WithLabelValues(cacheName).Set(float64(len(c.entries)))

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		ent := oldest.Value.(*entry)
		c.removeLocked(oldest)
		ent.pool.Destroy()
		c.evictions++
		cacheEvictions.WithLabelValues(cacheName).Inc()
	}
	return pool
}

// Stats returns a snapshot of the named cache. An unknown name returns
// zero stats with the capacity it would be created with.
func (r *Registry) Stats(cacheName string) Stats {
	r.mu.Lock()
	c, ok := r.caches[cacheName]
	r.mu.Unlock()
	if !ok {
		return Stats{Capacity: r.capacityFor(cacheName)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      len(c.entries),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Stale:     c.stale,
	}
}

// ReclaimIdle asks every cached pool to drop its idle instances, returning
// the number of instances reclaimed. Cached entries keep their slots.
func (r *Registry) ReclaimIdle() int {
	var total int
	for _, c := range r.snapshot() {
		c.mu.Lock()
		for _, elem := range c.entries {
			total += elem.Value.(*entry).pool.ReclaimIdle()
		}
		c.mu.Unlock()
	}
	return total
}

// Close destroys every pool in every cache and empties the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	caches := r.caches
	r.caches = make(map[string]*lruCache)
	r.mu.Unlock()

	for name, c := range caches {
		c.mu.Lock()
		for _, elem := range c.entries {
			elem.Value.(*entry).pool.Destroy()
		}
		c.entries = make(map[Key]*list.Element)
		c.order.Init()
		cachePools.WithLabelValues(name).Set(0)
		c.mu.Unlock()
	}
}

func (r *Registry) cache(name string) *lruCache {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.caches[name]; ok {
		return c
	}
	c := &lruCache{
		name:     name,
		capacity: r.capacityFor(name),
		order:    list.New(),
		entries:  make(map[Key]*list.Element),
	}
	r.caches[name] = c
	return c
}

func (r *Registry) capacityFor(name string) int {
	if c, ok := r.capacities[name]; ok && c > 0 {
		return c
	}
	return r.defaultCapacity
}

func (r *Registry) snapshot() []*lruCache {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*lruCache, 0, len(r.caches))
	for _, c := range r.caches {
		out = append(out, c)
	}
	return out
}

// lruCache is one named cache: a recency list plus a key index.
type lruCache struct {
	mu       sync.Mutex
	name     string
	capacity int
	order    *list.List // front is most recently used
	entries  map[Key]*list.Element

	hits      uint64
	misses    uint64
	evictions uint64
	stale     uint64
}

func (c *lruCache) removeLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.entries, ent.key)
	cachePools.WithLabelValues(c.name).Set(float64(len(c.entries)))
}

type entry struct {
	key   Key
	stamp int64
	pool  Pool
}
