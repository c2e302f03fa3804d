// Package cache provides the memoization used by the tokenizer, stemmer and
// taxonomy. Callers only see the Cache interface so the eviction policy can be
// swapped without touching the algorithms that use it.
package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"
)

type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Clear()
}

// New returns an unbounded cache when size <= 0 and an LRU cache holding at
// most size entries otherwise.
func New[K comparable, V any](size int) Cache[K, V] {
	if size <= 0 {
		return NewMap[K, V]()
	}
	return NewLRU[K, V](size)
}

// Map never evicts. It is meant for batch indexing runs whose lifetime bounds
// the number of distinct keys.
type Map[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{items: make(map[K]V)}
}

func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *Map[K, V]) Put(key K, value V) {
	m.mu.Lock()
	m.items[key] = value
	m.mu.Unlock()
}

func (m *Map[K, V]) Clear() {
	m.mu.Lock()
	m.items = make(map[K]V)
	m.mu.Unlock()
}

func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// LRU wraps groupcache's lru.Cache, which is not safe for concurrent use.
type LRU[K comparable, V any] struct {
	mu    sync.Mutex
	items *lru.Cache
}

func NewLRU[K comparable, V any](size int) *LRU[K, V] {
	return &LRU[K, V]{items: lru.New(size)}
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	c.items.Add(key, value)
	c.mu.Unlock()
}

func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	c.items.Clear()
	c.mu.Unlock()
}

func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}
