// Package cache provides a small expiring LRU cache.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config represents cache configuration
type Config struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"` // used when Put is given no expiry
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 256,
		TTL:        5 * time.Minute,
	}
}

// Stats tracks cache statistics
type Stats struct {
	Entries   int     `json:"entries"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

// LRU is a thread-safe LRU cache whose entries also expire. Expired entries
// are dropped lazily on access.
type LRU[K comparable, V any] struct {
	mu        sync.Mutex
	config    Config
	items     map[K]*list.Element
	evictList *list.List
	now       func() time.Time
	stats     Stats
}

// New creates a cache. Zero config fields take their defaults.
func New[K comparable, V any](config Config) *LRU[K, V] {
	defaults := DefaultConfig()
	if config.MaxEntries <= 0 {
		config.MaxEntries = defaults.MaxEntries
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	return &LRU[K, V]{
		config:    config,
		items:     make(map[K]*list.Element),
		evictList: list.New(),
		now:       time.Now,
	}
}

// Get returns the value for key if present and unexpired.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.miss()
		return zero, false
	}
	e := el.Value.(*entry[K, V])
	if !c.now().Before(e.expiresAt) {
		c.removeElement(el)
		c.miss()
		return zero, false
	}

	c.evictList.MoveToFront(el)
	c.stats.Hits++
	c.updateHitRate()
	return e.value, true
}

// Put stores value until expiresAt, or for the configured TTL when
// expiresAt is zero.
func (c *LRU[K, V]) Put(key K, value V, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiresAt.IsZero() {
		expiresAt = c.now().Add(c.config.TTL)
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[K, V])
		e.value = value
		e.expiresAt = expiresAt
		c.evictList.MoveToFront(el)
		return
	}

	c.items[key] = c.evictList.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	for c.evictList.Len() > c.config.MaxEntries {
		c.removeElement(c.evictList.Back())
		c.stats.Evictions++
	}
}

// Delete removes key.
func (c *LRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Len returns the number of entries, expired ones included.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Clear removes every entry.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.evictList.Init()
}

// Stats returns cache statistics
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = c.evictList.Len()
	return s
}

func (c *LRU[K, V]) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}

func (c *LRU[K, V]) miss() {
	c.stats.Misses++
	c.updateHitRate()
}

func (c *LRU[K, V]) updateHitRate() {
	total := c.stats.Hits + c.stats.Misses
	if total > 0 {
		c.stats.HitRate = float64(c.stats.Hits) / float64(total)
	}
}
