// Package cache holds short-lived copies of catalog documents (mirror lists
// and manifests) so repeated catalog loads do not refetch unchanged data.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Layer is a thread-safe cache with TTL expiration and LRU eviction.
// Callers check the cache first, then fall back to the network and populate
// the cache on miss.
type Layer[V any] struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	eviction   *list.List // front = most recently used
	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time

	hits      int64
	misses    int64
	evictions int64
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Config configures a cache layer.
type Config struct {
	// MaxSize is the maximum number of items in the cache.
	MaxSize int `yaml:"max_size"`
	// DefaultTTL is the time-to-live applied by Set.
	DefaultTTL time.Duration `yaml:"ttl"`
}

// DefaultConfig returns the defaults used for catalog documents.
func DefaultConfig() Config {
	return Config{
		MaxSize:    512,
		DefaultTTL: 5 * time.Minute,
	}
}

// NewLayer creates a cache layer. Non-positive settings fall back to DefaultConfig.
func NewLayer[V any](cfg Config) *Layer[V] {
	d := DefaultConfig()
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = d.MaxSize
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = d.DefaultTTL
	}
	return &Layer[V]{
		items:      make(map[string]*list.Element, cfg.MaxSize),
		eviction:   list.New(),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
	}
}

// Get returns the value and true when present and not expired.
func (c *Layer[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if c.now().After(e.expiresAt) {
		c.removeLocked(elem)
		c.misses++
		return zero, false
	}
	c.eviction.MoveToFront(elem)
	c.hits++
	return e.value, true
}

// Set stores a value with the default TTL.
func (c *Layer[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with a specific TTL.
func (c *Layer[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.expiresAt = c.now().Add(ttl)
		c.eviction.MoveToFront(elem)
		return
	}
	for c.eviction.Len() >= c.maxSize {
		c.evictLocked()
	}
	elem := c.eviction.PushFront(&entry[V]{key: key, value: value, expiresAt: c.now().Add(ttl)})
	c.items[key] = elem
}

// Delete removes a key.
func (c *Layer[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.removeLocked(elem)
	}
}

// Clear removes all entries.
func (c *Layer[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.maxSize)
	c.eviction.Init()
}

// Len returns the number of items, including expired ones not yet purged.
func (c *Layer[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eviction.Len()
}

// Stats holds cache statistics.
type Stats struct {
	Size      int
	MaxSize   int
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

// Stats returns a snapshot of the cache counters.
func (c *Layer[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Size:      c.eviction.Len(),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// PurgeExpired removes every expired entry and returns how many were dropped.
func (c *Layer[V]) PurgeExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	purged := 0
	var next *list.Element
	for e := c.eviction.Front(); e != nil; e = next {
		next = e.Next()
		if now.After(e.Value.(*entry[V]).expiresAt) {
			c.removeLocked(e)
			purged++
		}
	}
	return purged
}

// GetOrSet returns the cached value or calls loader on miss and stores its
// result. Loader errors are returned and nothing is cached.
func (c *Layer[V]) GetOrSet(key string, loader func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := loader()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}

func (c *Layer[V]) evictLocked() {
	back := c.eviction.Back()
	if back == nil {
		return
	}
	c.removeLocked(back)
	c.evictions++
}

func (c *Layer[V]) removeLocked(elem *list.Element) {
	delete(c.items, elem.Value.(*entry[V]).key)
	c.eviction.Remove(elem)
}
