// Package cache implements the evaluation result cache: a TTL- and
// size-bounded map from (evaluator identity, context metadata fingerprint,
// input probability) to a previously computed result.
//
// The cache is an optimization only: disabling it never changes an
// evaluator's observable output, only latency. Eviction is least-recently-
// used beyond the entry cap; expired entries are treated as misses on
// access and reclaimed by Sweep.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/probmesh/logging"
)

// Key identifies one cached result. Probability is pre-quantized by the
// caller (QuantizeProbability); exact float bits are the default.
type Key struct {
	// Evaluator is the identity key.
	Evaluator string
	// Fingerprint digests the evaluator's declared metadata inputs.
	Fingerprint uint64
	// Probability is the (possibly quantized) input probability.
	Probability float64
}

func (k Key) flightKey() string {
	return fmt.Sprintf("%s/%x/%x", k.Evaluator, k.Fingerprint, k.Probability)
}

// CachedResult is the stored outcome of one successful evaluator run.
type CachedResult struct {
	// OutputProbability is the evaluator's output for the keyed input.
	OutputProbability float64
}

type entry struct {
	key        Key
	result     CachedResult
	insertedAt time.Time
	ttl        time.Duration
	lruElement *list.Element
}

func (e *entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.insertedAt) > e.ttl
}

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxEntries caps the number of cached results. Zero means unlimited.
	MaxEntries int
	// Logger receives sweep diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Stats summarizes cache effectiveness.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Expired   int64
	Size      int
}

// Cache is the process-local evaluation result cache. Get and Put are
// internally synchronized; readers never observe a partially evicted entry.
type Cache struct {
	mu         sync.Mutex
	entries    map[Key]*entry
	lru        *list.List
	maxEntries int
	flight     singleflight.Group
	logger     logging.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	expired   atomic.Int64
}

// New constructs an empty cache.
func New(optFns ...func(o *Options)) *Cache {
	opts := Options{MaxEntries: 1024, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Cache{
		entries:    make(map[Key]*entry),
		lru:        list.New(),
		maxEntries: opts.MaxEntries,
		logger:     opts.Logger,
	}
}

// Get returns the cached result for key. An expired-but-not-yet-swept entry
// is treated as a miss (and reclaimed), never as a stale hit.
func (c *Cache) Get(key Key) (CachedResult, bool) {
	c.mu.Lock()

	e, ok := c.entries[key]
	if !ok {
		c.mu.Unlock()
		c.misses.Add(1)
		return CachedResult{}, false
	}

	if e.expired(time.Now()) {
		c.removeLocked(e)
		c.mu.Unlock()
		c.expired.Add(1)
		c.misses.Add(1)
		return CachedResult{}, false
	}

	c.lru.MoveToFront(e.lruElement)
	res := e.result
	c.mu.Unlock()

	c.hits.Add(1)

	return res, true
}

// Put stores a result under key with the given TTL, evicting least-recently-
// used entries while the cache exceeds its cap.
func (c *Cache) Put(key Key, result CachedResult, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.result = result
		e.insertedAt = time.Now()
		e.ttl = ttl
		c.lru.MoveToFront(e.lruElement)
		return
	}

	e := &entry{key: key, result: result, insertedAt: time.Now(), ttl: ttl}
	e.lruElement = c.lru.PushFront(e)
	c.entries[key] = e

	for c.maxEntries > 0 && len(c.entries) > c.maxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry))
		c.evictions.Add(1)
	}
}

// GetOrCompute returns the cached result for key or computes it, deduping
// concurrent computations for the same key via singleflight. The compute
// function reports whether its result may be stored (failed evaluations are
// not cached). The returned bool is true for a cache hit.
func (c *Cache) GetOrCompute(key Key, ttl time.Duration, compute func() (CachedResult, bool)) (CachedResult, bool) {
	if res, ok := c.Get(key); ok {
		return res, true
	}

	v, _, shared := c.flight.Do(key.flightKey(), func() (any, error) {
		res, store := compute()
		if store {
			c.Put(key, res, ttl)
		}
		return res, nil
	})

	return v.(CachedResult), shared
}

// Sweep removes every expired entry and returns (expired, remaining).
// Intended for periodic invocation; Get already treats expired entries as
// misses, so sweeping only reclaims memory earlier.
func (c *Cache) Sweep() (int, int) {
	start := time.Now()

	c.mu.Lock()
	removed := 0
	for _, e := range c.entries {
		if e.expired(start) {
			c.removeLocked(e)
			removed++
		}
	}
	remaining := len(c.entries)
	c.mu.Unlock()

	c.expired.Add(int64(removed))
	if removed > 0 {
		c.logger.Debug("cache sweep reclaimed entries", "expired", removed, "remaining", remaining, "duration", time.Since(start))
	}

	return removed, remaining
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*entry)
	c.lru.Init()
}

// Stats returns current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	size := len(c.entries)
	c.mu.Unlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Expired:   c.expired.Load(),
		Size:      size,
	}
}

// removeLocked deletes an entry; caller must hold the lock.
func (c *Cache) removeLocked(e *entry) {
	c.lru.Remove(e.lruElement)
	delete(c.entries, e.key)
}
