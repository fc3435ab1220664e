package aeris

import (
	"container/list"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// routeMatchLRU is a bounded cache of (method, raw_path) -> *RouteMatch,
// guarded by a mutex per spec.md §5 ("The LRU route-match cache uses a
// lock for mutation"). Keys are hashed with xxhash to keep the map key a
// fixed-size uint64 regardless of path length.
type routeMatchLRU struct {
	mu       sync.Mutex
	capacity int
	items    map[uint64]*list.Element
	order    *list.List
}

type lruEntry struct {
	key   uint64
	value *RouteMatch
}

func newRouteMatchLRU(capacity int) *routeMatchLRU {
	return &routeMatchLRU{
		capacity: capacity,
		items:    make(map[uint64]*list.Element, capacity),
		order:    list.New(),
	}
}

func lruKey(method, rawPath string) uint64 {
	h := xxhash.New()
	h.WriteString(method)
	h.Write([]byte{0})
	h.WriteString(rawPath)
	return h.Sum64()
}

func (c *routeMatchLRU) Get(method, rawPath string) (*RouteMatch, bool) {
	if c.capacity <= 0 {
		return nil, false
	}

	key := lruKey(method, rawPath)

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}

	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

func (c *routeMatchLRU) Put(method, rawPath string, match *RouteMatch) {
	if c.capacity <= 0 {
		return
	}

	key := lruKey(method, rawPath)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry).value = match
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&lruEntry{key: key, value: match})
	c.items[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).key)
		}
	}
}
