package object

import (
	"container/list"
	"sync"
)

// DefaultBaseCacheSize bounds the bytes of reconstructed delta bases kept by a
// Resolver when no size is configured.
const DefaultBaseCacheSize = 64 * 1024 * 1024

type baseKey struct {
	pack   *packFile
	offset uint64
}

type baseEntry struct {
	key  baseKey
	typ  ObjectType
	data []byte
}

// baseCache is a byte-bounded LRU of reconstructed pack entries so walking
// many trees that share delta bases does not re-apply whole chains. The front
// of order is the most recently used entry.
type baseCache struct {
	mu          sync.Mutex
	entries     map[baseKey]*list.Element
	order       *list.List
	maxSize     int64
	currentSize int64
}

func newBaseCache(maxSize int64) *baseCache {
	if maxSize <= 0 {
		maxSize = DefaultBaseCacheSize
	}
	return &baseCache{
		entries: make(map[baseKey]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
	}
}

func (c *baseCache) get(key baseKey) (ObjectType, []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return "", nil, false
	}
	c.order.MoveToFront(el)
	e := el.Value.(*baseEntry)
	return e.typ, e.data, true
}

func (c *baseCache) put(key baseKey, typ ObjectType, data []byte) {
	size := int64(len(data))
	if size > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return
	}
	for c.currentSize+size > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		victim := c.order.Remove(oldest).(*baseEntry)
		delete(c.entries, victim.key)
		c.currentSize -= int64(len(victim.data))
	}
	c.entries[key] = c.order.PushFront(&baseEntry{key: key, typ: typ, data: data})
	c.currentSize += size
}
