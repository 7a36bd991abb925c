package artwork

import (
	"container/list"
	"sync"
)

// LRU is a fixed-capacity, least-recently-used cache of artwork bytes keyed by artwork URL.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recently used
	items    map[string]*list.Element
}

type lruEntry struct {
	key  string
	data []byte
}

func NewLRU(capacity int) *LRU {
	if capacity < 1 {
		capacity = DefaultCacheSize
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached bytes and marks the entry as most recently used.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).data, true
}

// Put stores data, evicting the least recently used entries when full.
func (c *LRU) Put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry).data = data
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}

	c.items[key] = c.order.PushFront(&lruEntry{key: key, data: data})
}

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.items)
}

// NegativeCache remembers artwork URLs whose fetch failed.
//
// It never evicts individual entries: once full, the next insert clears it.
type NegativeCache struct {
	mu       sync.Mutex
	capacity int
	urls     map[string]struct{}
}

func NewNegativeCache(capacity int) *NegativeCache {
	if capacity < 1 {
		capacity = DefaultNegativeCacheSize
	}
	return &NegativeCache{capacity: capacity, urls: make(map[string]struct{})}
}

func (n *NegativeCache) Contains(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.urls[key]
	return ok
}

func (n *NegativeCache) Add(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.urls[key]; ok {
		return
	}
	if len(n.urls) >= n.capacity {
		clear(n.urls)
	}
	n.urls[key] = struct{}{}
}

func (n *NegativeCache) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.urls)
}

func (n *NegativeCache) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	clear(n.urls)
}
