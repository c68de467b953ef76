package objstore

import (
	"container/list"
	"sync"
)

// perEntryOverhead is charged against capacity for every cached entry in
// addition to its body size, approximating map/list bookkeeping cost.
const perEntryOverhead = 64

type cacheKey struct{ bucket, key string }

type lruEntry struct {
	key cacheKey
	val Outcome
}

// lru is a (bucket,key) -> Outcome cache, sized by total cached body bytes
// plus per-entry overhead, evicting from the tail on overflow. get and put
// take mu, since GetMany/PutMany reach the cache from concurrent
// goroutines.
type lru struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	ll       *list.List // front = most recently used
	index    map[cacheKey]*list.Element
}

func newLRU(capacityBytes int64) *lru {
	return &lru{
		capacity: capacityBytes,
		ll:       list.New(),
		index:    make(map[cacheKey]*list.Element),
	}
}

func (c *lru) get(bucket, key string) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey{bucket, key}
	el, ok := c.index[k]
	if !ok {
		return Outcome{}, false
	}
	return el.Value.(*lruEntry).val, true
}

// put inserts or updates the (bucket,key) entry: existing keys move to
// the front (most-recently-used) with their body replaced; new keys are
// inserted at the front. Eviction from the back then runs until the
// capacity bound holds.
func (c *lru) put(bucket, key string, val Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey{bucket, key}
	if el, ok := c.index[k]; ok {
		c.size -= entryCost(el.Value.(*lruEntry).val)
		el.Value.(*lruEntry).val = val
		c.ll.MoveToFront(el)
		c.size += entryCost(val)
	} else {
		el := c.ll.PushFront(&lruEntry{key: k, val: val})
		c.index[k] = el
		c.size += entryCost(val)
	}
	c.evict()
}

func (c *lru) evict() {
	for c.size > c.capacity {
		back := c.ll.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*lruEntry)
		c.size -= entryCost(entry.val)
		c.ll.Remove(back)
		delete(c.index, entry.key)
	}
}

func entryCost(o Outcome) int64 { return int64(len(o.Body)) + perEntryOverhead }
