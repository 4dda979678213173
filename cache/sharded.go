// Package cache provides a generic, thread-safe sharded LRU cache.
//
// It backs the shader program cache: composed sources are keyed by a string
// that covers the program's chunks, token values and registry revision, so
// stale entries are never returned and simply age out.
package cache

import (
	"container/list"
	"hash/maphash"
	"sync"
	"sync/atomic"
)

const (
	// ShardCount is the number of independently locked shards. It is a
	// power of two so shard selection is a mask.
	ShardCount = 16

	// DefaultCapacity is the per-shard capacity used when none is given.
	DefaultCapacity = 64
)

// Stats is a snapshot of cache counters.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Sharded is an LRU cache split across ShardCount shards. Keys are strings;
// values are stored as-is and must not be mutated once cached.
type Sharded[V any] struct {
	seed     maphash.Seed
	capacity int
	shards   [ShardCount]shard[V]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type shard[V any] struct {
	mu      sync.Mutex
	order   *list.List // front is most recently used
	entries map[string]*list.Element
}

type entry[V any] struct {
	key   string
	value V
}

// NewSharded returns a cache holding at most capacity entries per shard.
// A capacity <= 0 selects DefaultCapacity.
func NewSharded[V any](capacity int) *Sharded[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Sharded[V]{seed: maphash.MakeSeed(), capacity: capacity}
	for i := range c.shards {
		c.shards[i].order = list.New()
		c.shards[i].entries = make(map[string]*list.Element)
	}
	return c
}

func (c *Sharded[V]) shardFor(key string) *shard[V] {
	return &c.shards[maphash.String(c.seed, key)&(ShardCount-1)]
}

// Get returns the value cached under key.
func (c *Sharded[V]) Get(key string) (V, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	s.order.MoveToFront(el)
	c.hits.Add(1)
	return el.Value.(*entry[V]).value, true
}

// Set stores value under key, evicting the least recently used entries of
// the shard when it is full.
func (c *Sharded[V]) Set(key string, value V) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		el.Value.(*entry[V]).value = value
		s.order.MoveToFront(el)
		return
	}
	for s.order.Len() >= c.capacity {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*entry[V]).key)
		c.evictions.Add(1)
	}
	s.entries[key] = s.order.PushFront(&entry[V]{key: key, value: value})
}

// Delete removes key and reports whether it was present.
func (c *Sharded[V]) Delete(key string) bool {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.entries, key)
	return true
}

// Clear drops every entry. Counters are kept.
func (c *Sharded[V]) Clear() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.order.Init()
		clear(s.entries)
		s.mu.Unlock()
	}
}

// Len returns the number of cached entries.
func (c *Sharded[V]) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

// Stats returns the current counters.
func (c *Sharded[V]) Stats() Stats {
	return Stats{
		Len:       c.Len(),
		Capacity:  c.capacity * ShardCount,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
