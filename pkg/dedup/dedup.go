package dedup

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	id         string
	insertedAt time.Time
}

// Cache is a bounded, time-limited set of recently observed message ids.
// Entries expire after the TTL; when the size cap is reached, expired
// entries are evicted first, then the oldest insertion. Safe for
// concurrent use.
type Cache struct {
	ttl      time.Duration
	capacity int

	mu       sync.Mutex
	items    map[string]*list.Element
	eviction *list.List // front = newest insertion, back = oldest
	hits     uint64
	now      func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a dedup cache with the given TTL and maximum size.
// Both must be positive, otherwise it panics.
func New(ttl time.Duration, capacity int, opts ...Option) *Cache {
	if ttl <= 0 || capacity <= 0 {
		panic("dedup cache TTL and capacity must be positive")
	}
	c := &Cache{
		ttl:      ttl,
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seen reports whether id was observed within the TTL and records it.
// A fresh or expired id is (re-)inserted with the current time and
// reported as unseen.
func (c *Cache) Seen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.items[id]; ok {
		e := elem.Value.(*entry)
		if now.Sub(e.insertedAt) < c.ttl {
			c.hits++
			return true
		}
		// Expired: treat as unseen and restart its TTL window.
		e.insertedAt = now
		c.eviction.MoveToFront(elem)
		return false
	}

	c.insert(id, now)
	return false
}

// Contains reports whether id is currently tracked and unexpired, without
// mutating the cache.
func (c *Cache) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[id]
	if !ok {
		return false
	}
	return c.now().Sub(elem.Value.(*entry).insertedAt) < c.ttl
}

// Len returns the number of tracked ids, including not-yet-evicted
// expired entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Hits returns the number of duplicate observations so far.
func (c *Cache) Hits() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// Clear drops all tracked ids.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.eviction.Init()
}

// Must be called with lock held.
func (c *Cache) insert(id string, now time.Time) {
	if c.eviction.Len() >= c.capacity {
		c.evictOne()
	}
	elem := c.eviction.PushFront(&entry{id: id, insertedAt: now})
	c.items[id] = elem
}

// evictOne removes the oldest entry. Entries sit in insertion order, so
// the back of the list is always the next to expire. Must be called with
// lock held.
func (c *Cache) evictOne() {
	oldest := c.eviction.Back()
	if oldest == nil {
		return
	}
	c.eviction.Remove(oldest)
	delete(c.items, oldest.Value.(*entry).id)
}
