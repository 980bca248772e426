// Package cache provides a small thread-safe LRU cache used to memoise
// bibliography lookups.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Cache is a generic LRU cache.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Put(key K, value V)
	Remove(key K)
	Clear()
	Len() int
	Stats() Stats
}

// Stats contains cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
	MaxSize   int
}

// HitRatio returns hits / (hits + misses), or 0 when nothing was looked up.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Config contains cache configuration options.
type Config struct {
	// MaxSize is the maximum number of entries (0 = unlimited).
	MaxSize int

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration

	// OnEvict is called when an entry leaves the cache for any reason.
	OnEvict func(key, value interface{})
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{MaxSize: 256}
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

type lruCache[K comparable, V any] struct {
	mu      sync.Mutex
	config  Config
	entries map[K]*list.Element
	order   *list.List
	stats   Stats
	now     func() time.Time
}

// NewLRUCache creates a new LRU cache with the given configuration.
func NewLRUCache[K comparable, V any](config Config) Cache[K, V] {
	return newLRU[K, V](config)
}

func newLRU[K comparable, V any](config Config) *lruCache[K, V] {
	if config.MaxSize < 0 {
		config.MaxSize = 0
	}
	return &lruCache[K, V]{
		config:  config,
		entries: make(map[K]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

func (c *lruCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if c.config.TTL > 0 && c.now().After(e.expiresAt) {
		c.removeElement(el)
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.value, true
}

func (c *lruCache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = c.expiry()
		return
	}

	c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, expiresAt: c.expiry()})
	if c.config.MaxSize > 0 && c.order.Len() > c.config.MaxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
			c.stats.Evictions++
		}
	}
}

func (c *lruCache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
}

func (c *lruCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element)
	c.order.Init()
}

func (c *lruCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *lruCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.order.Len()
	s.MaxSize = c.config.MaxSize
	return s
}

func (c *lruCache[K, V]) expiry() time.Time {
	if c.config.TTL <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.config.TTL)
}

func (c *lruCache[K, V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	e := el.Value.(*entry[K, V])
	delete(c.entries, e.key)
	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
}

// Memo caches the results of a fallible loader, including negative results.
// Errors are not cached.
type Memo[K comparable, V any] struct {
	cache Cache[K, memoResult[V]]
	load  func(context.Context, K) (V, bool, error)
}

type memoResult[V any] struct {
	value V
	found bool
}

// NewMemo returns a Memo that calls load on cache misses.
func NewMemo[K comparable, V any](config Config, load func(context.Context, K) (V, bool, error)) *Memo[K, V] {
	return &Memo[K, V]{
		cache: NewLRUCache[K, memoResult[V]](config),
		load:  load,
	}
}

// Get returns the cached result for key, loading it on a miss.
func (m *Memo[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	if r, ok := m.cache.Get(key); ok {
		return r.value, r.found, nil
	}
	v, found, err := m.load(ctx, key)
	if err != nil {
		var zero V
		return zero, false, err
	}
	m.cache.Put(key, memoResult[V]{value: v, found: found})
	return v, found, nil
}

// Stats returns the underlying cache statistics.
func (m *Memo[K, V]) Stats() Stats {
	return m.cache.Stats()
}
