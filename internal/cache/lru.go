// Package cache is the bounded in-process embedding cache: an LRU with
// per-entry TTL, keyed by (model, fingerprint).
package cache

import (
	"sync"
	"time"

	"github.com/iskng/embed-star/internal/domain"
)

type entry struct {
	key       domain.CacheKey
	vector    []float32
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// Cache is a bounded, intrusive doubly-linked-list LRU with TTL eviction.
// Get, Set and eviction all hold one mutex for the duration of the
// operation, since a hit also moves the entry to the head.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[domain.CacheKey]*entry
	head     *entry
	tail     *entry

	hits   uint64
	misses uint64
}

// New constructs a cache bounded to capacity entries, each valid for ttl.
func New(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[domain.CacheKey]*entry),
	}
}

// Get returns the cached vector for key if present and not expired. A hit
// moves the entry to the head (most recently used).
func (c *Cache) Get(key domain.CacheKey) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(node.expiresAt) {
		c.removeNode(node)
		delete(c.items, key)
		c.misses++
		return nil, false
	}

	c.moveToHead(node)
	c.hits++
	return node.vector, true
}

// Set inserts or refreshes the cached vector for key, evicting the least
// recently used entry if the cache is at capacity.
func (c *Cache) Set(key domain.CacheKey, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		node.vector = vector
		node.expiresAt = time.Now().Add(c.ttl)
		c.moveToHead(node)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	node := &entry{key: key, vector: vector, expiresAt: time.Now().Add(c.ttl)}
	c.items[key] = node
	c.addToHead(node)
}

// Stats reports current size, capacity, and cumulative hit/miss counts.
func (c *Cache) Stats() (size, capacity int, hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items), c.capacity, c.hits, c.misses
}

func (c *Cache) addToHead(node *entry) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

func (c *Cache) removeNode(node *entry) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
}

func (c *Cache) moveToHead(node *entry) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

func (c *Cache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.items, c.tail.key)
	c.removeNode(c.tail)
}
