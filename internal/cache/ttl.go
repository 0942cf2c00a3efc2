// Package cache provides the in-process TTL cache shared across requests.
package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries bounds a cache built with a non-positive size.
const DefaultMaxEntries = 1024

type entry[V any] struct {
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

// TTL is a keyed, time-bounded store. Entries are visible only while
// now-insertedAt <= ttl and are deleted by the lookup that finds them stale;
// there is no background sweep. The entry count is capped, least recently
// used entries are evicted first. Safe for concurrent use.
type TTL[V any] struct {
	name   string
	store  *lru.Cache[string, entry[V]]
	// mu orders writers against stale removal; readers go straight to store.
	mu     sync.Mutex
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

// Option customizes a TTL cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// NewTTL builds a cache holding at most maxEntries live keys.
func NewTTL[V any](name string, maxEntries int, opts ...Option) (*TTL[V], error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	store, err := lru.New[string, entry[V]](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create %s cache: %w", name, err)
	}
	return &TTL[V]{name: name, store: store, now: o.now}, nil
}

// Name identifies the cache in logs and metrics.
func (c *TTL[V]) Name() string { return c.name }

// Put stores value under key for ttl. A non-positive ttl stores nothing.
func (c *TTL[V]) Put(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl <= 0 {
		c.store.Remove(key)
		return
	}
	c.store.Add(key, entry[V]{value: value, insertedAt: c.now(), ttl: ttl})
}

// Get returns the value if it is still within its stored ttl.
func (c *TTL[V]) Get(key string) (V, bool) {
	return c.GetFresh(key, 0)
}

// GetFresh is Get with an optional tighter freshness bound: the entry is
// accepted only while its age is within min(maxAge, entry ttl). A
// non-positive maxAge means no extra bound.
func (c *TTL[V]) GetFresh(key string, maxAge time.Duration) (V, bool) {
	var zero V
	e, ok := c.store.Get(key)
	if !ok {
		c.misses.Add(1)
		return zero, false
	}

	limit := e.ttl
	if maxAge > 0 && maxAge < limit {
		limit = maxAge
	}
	if c.now().Sub(e.insertedAt) > limit {
		// Only the entry's own ttl makes it garbage; a tighter caller bound just misses.
		if c.now().Sub(e.insertedAt) > e.ttl {
			c.removeStale(key, e.insertedAt)
		}
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// removeStale drops key only if it still holds the entry inserted at
// insertedAt, so a value Put after the stale read survives.
func (c *TTL[V]) removeStale(key string, insertedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.store.Peek(key); ok && cur.insertedAt.Equal(insertedAt) {
		c.store.Remove(key)
	}
}

// Delete removes key.
func (c *TTL[V]) Delete(key string) {
	c.store.Remove(key)
}

// Len reports stored entries, including stale ones not yet looked up.
func (c *TTL[V]) Len() int {
	return c.store.Len()
}

// Stats returns hit and miss counts since creation.
func (c *TTL[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
