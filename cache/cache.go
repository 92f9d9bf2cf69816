// Package cache provides the bounded key/value stores used to avoid redundant
// elevation and terrain tile lookups.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxSize is the capacity used when WithMaxSize is not given.
const DefaultMaxSize = 1000

// MemoryCache is a bounded, optionally time-limited cache.
//
// Eviction is FIFO by insertion order: a Get hit never refreshes an entry.
// Expiry is lazy; expired entries are removed on access or by CleanupExpired.
type MemoryCache[K comparable, V any] struct {
	mu      sync.Mutex
	items   map[K]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	stats   Stats
}

type cacheItem[K comparable, V any] struct {
	key    K
	value  V
	expiry time.Time // zero when no TTL is configured
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size      int           `json:"size"`
	MaxSize   int           `json:"max_size"`
	TTL       time.Duration `json:"ttl"`
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	Evictions uint64        `json:"evictions"`
	Expired   uint64        `json:"expired"`
}

// Option configures a MemoryCache.
type Option func(*options)

type options struct {
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// WithMaxSize bounds the number of entries. Zero disables storage entirely.
func WithMaxSize(n int) Option {
	return func(o *options) { o.maxSize = n }
}

// WithTTL makes entries expire d after they were set. Zero means never.
func WithTTL(d time.Duration) Option {
	return func(o *options) { o.ttl = d }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a MemoryCache.
func New[K comparable, V any](opts ...Option) *MemoryCache[K, V] {
	o := options{maxSize: DefaultMaxSize, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxSize < 0 {
		o.maxSize = 0
	}
	if o.now == nil {
		o.now = time.Now
	}
	return &MemoryCache[K, V]{
		items:   make(map[K]*list.Element),
		order:   list.New(),
		maxSize: o.maxSize,
		ttl:     o.ttl,
		now:     o.now,
	}
}

// Get returns the value for key, dropping it first if it has expired.
func (c *MemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, found := c.items[key]
	if !found {
		c.stats.Misses++
		return zero, false
	}
	item := e.Value.(*cacheItem[K, V])
	if c.expired(item, c.now()) {
		c.remove(e)
		c.stats.Expired++
		c.stats.Misses++
		return zero, false
	}
	c.stats.Hits++
	return item.value, true
}

// Has reports whether Get would return a value. It also triggers lazy expiry.
func (c *MemoryCache[K, V]) Has(key K) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores value under key, evicting the oldest inserted entry when full.
// Overwriting an existing key keeps its original insertion position.
func (c *MemoryCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize == 0 {
		return
	}

	var expiry time.Time
	if c.ttl > 0 {
		expiry = c.now().Add(c.ttl)
	}

	if e, found := c.items[key]; found {
		item := e.Value.(*cacheItem[K, V])
		item.value = value
		item.expiry = expiry
		return
	}

	if len(c.items) >= c.maxSize {
		if oldest := c.order.Front(); oldest != nil {
			c.remove(oldest)
			c.stats.Evictions++
		}
	}
	c.items[key] = c.order.PushBack(&cacheItem[K, V]{key: key, value: value, expiry: expiry})
}

// Delete removes key. It reports whether an entry was present.
func (c *MemoryCache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.items[key]
	if !found {
		return false
	}
	c.remove(e)
	return true
}

// Clear drops every entry. Counters are kept.
func (c *MemoryCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.order.Init()
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *MemoryCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CleanupExpired removes every expired entry and returns how many were removed.
func (c *MemoryCache[K, V]) CleanupExpired() int {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for e := c.order.Front(); e != nil; {
		next := e.Next()
		if c.expired(e.Value.(*cacheItem[K, V]), now) {
			c.remove(e)
			removed++
		}
		e = next
	}
	c.stats.Expired += uint64(removed)
	return removed
}

// Stats returns the current counters.
func (c *MemoryCache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.items)
	s.MaxSize = c.maxSize
	s.TTL = c.ttl
	return s
}

func (c *MemoryCache[K, V]) expired(item *cacheItem[K, V], now time.Time) bool {
	return !item.expiry.IsZero() && now.After(item.expiry)
}

func (c *MemoryCache[K, V]) remove(e *list.Element) {
	item := c.order.Remove(e).(*cacheItem[K, V])
	delete(c.items, item.key)
}
