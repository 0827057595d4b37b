// Package cache provides the small in-process caches used by the pipeline.
package cache

import (
	"container/list"
	"sync"
)

// Cache is a bounded key/value cache with insertion-ordered eviction.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Len() int
	Purge()
}

type entry struct {
	key     string
	value   any
	element *list.Element
}

// fifoCache evicts the oldest-inserted entry once capacity is exceeded.
// Lookups do not refresh recency; it is a best-effort performance cache,
// not a correctness-bearing store.
type fifoCache struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*entry
	order    *list.List
}

// NewFIFO creates a bounded insertion-ordered cache.
func NewFIFO(capacity int) Cache {
	if capacity <= 0 {
		capacity = 256
	}
	return &fifoCache{
		capacity: capacity,
		items:    make(map[string]*entry, capacity),
		order:    list.New(),
	}
}

func (c *fifoCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		return ent.value, true
	}
	return nil, false
}

func (c *fifoCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		ent.value = value
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	elem := c.order.PushFront(key)
	c.items[key] = &entry{key: key, value: value, element: elem}
}

func (c *fifoCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *fifoCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry, c.capacity)
	c.order.Init()
}

func (c *fifoCache) evictOldest() {
	elem := c.order.Back()
	if elem == nil {
		return
	}
	key := elem.Value.(string)
	if ent, ok := c.items[key]; ok {
		c.order.Remove(ent.element)
		delete(c.items, key)
	}
}
