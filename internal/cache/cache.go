// Package cache provides a generic, thread-safe cache with per-entry expiry,
// an optional size bound with least-recently-used eviction, and
// single-flight get-or-compute semantics.
//
// It backs both the upstream response caches of the weather providers and the
// authentication cache of the HTTP surface.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// entry is a cached value with its expiry. A zero expiresAt never expires.
type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is a string-keyed cache of V values.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element // key -> list element
	order   *list.List               // most recently used at the front
	now     func() time.Time

	flight singleflight.Group

	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	maxSize int
	now     func() time.Time
}

// WithMaxSize bounds the cache to n entries. The least recently used entry is
// evicted when the bound is exceeded. n <= 0 means unbounded.
func WithMaxSize(n int) Option {
	return func(o *options) {
		o.maxSize = n
	}
}

// WithClock replaces the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an empty cache.
func New[V any](opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return &Cache[V]{
		maxSize: o.maxSize,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     o.now,
	}
}

// Get returns the value stored for key if it is present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lookupLocked(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores value under key. A ttl <= 0 stores the value without expiry.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.items[key]; exists {
		e := element.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(element)
		return
	}

	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})

	for c.maxSize > 0 && len(c.items) > c.maxSize {
		c.removeLocked(c.order.Back())
		c.evictions.Add(1)
	}
}

// GetOrCompute returns the cached value for key, calling compute when the key
// is absent or expired. Concurrent callers for the same key share a single
// call to compute; callers for other keys are not blocked by it. Errors
// returned by compute are passed to every waiting caller and are not cached.
func (c *Cache[V]) GetOrCompute(key string, ttl time.Duration, compute func() (V, error)) (V, error) {
	return c.GetOrComputeIf(key, ttl, compute, nil)
}

// GetOrComputeIf behaves like GetOrCompute but also recomputes when recompute
// reports true for the currently cached value.
func (c *Cache[V]) GetOrComputeIf(
	key string, ttl time.Duration, compute func() (V, error), recompute func(V) bool,
) (V, error) {
	usable := func(v V) bool {
		return recompute == nil || !recompute(v)
	}

	if v, ok := c.Get(key); ok && usable(v) {
		return v, nil
	}

	result, err, _ := c.flight.Do(key, func() (any, error) {
		// Another flight may have stored a value since the lookup above.
		c.mu.Lock()
		v, ok := c.lookupLocked(key)
		c.mu.Unlock()
		if ok && usable(v) {
			return v, nil
		}

		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	v, _ := result.(V)
	return v, nil
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		return false
	}
	c.removeLocked(element)
	return true
}

// Purge removes all expired entries and returns how many were removed.
func (c *Cache[V]) Purge() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for element := c.order.Back(); element != nil; {
		prev := element.Prev()
		if element.Value.(*entry[V]).expired(now) {
			c.removeLocked(element)
			removed++
		}
		element = prev
	}

	c.expirations.Add(uint64(removed))
	return removed
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of stored entries, including expired entries that
// have not been purged yet.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
		Size:        c.Len(),
	}
}

// lookupLocked returns a live value and refreshes its recency. Expired
// entries are dropped. Must be called with mu held.
func (c *Cache[V]) lookupLocked(key string) (V, bool) {
	element, exists := c.items[key]
	if !exists {
		var zero V
		return zero, false
	}

	e := element.Value.(*entry[V])
	if e.expired(c.now()) {
		c.removeLocked(element)
		c.expirations.Add(1)
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	return e.value, true
}

// removeLocked must be called with mu held.
func (c *Cache[V]) removeLocked(element *list.Element) {
	if element == nil {
		return
	}
	delete(c.items, element.Value.(*entry[V]).key)
	c.order.Remove(element)
}
