package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(evaluator string, fp uint64, p float64) Key {
	return Key{Evaluator: evaluator, Fingerprint: fp, Probability: p}
}

func TestGetMissThenHit(t *testing.T) {
	c := New()
	k := key("Scale", 1, 0.5)

	_, ok := c.Get(k)
	assert.False(t, ok)

	c.Put(k, CachedResult{OutputProbability: 0.6}, time.Minute)

	res, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, 0.6, res.OutputProbability)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, 1, st.Size)
}

func TestDistinctKeysDoNotCollide(t *testing.T) {
	c := New()

	c.Put(key("Scale", 1, 0.5), CachedResult{OutputProbability: 0.6}, time.Minute)

	_, ok := c.Get(key("Scale", 2, 0.5))
	assert.False(t, ok)
	_, ok = c.Get(key("Scale", 1, 0.4))
	assert.False(t, ok)
	_, ok = c.Get(key("Other", 1, 0.5))
	assert.False(t, ok)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := New()
	k := key("Scale", 1, 0.5)

	c.Put(k, CachedResult{OutputProbability: 0.6}, time.Nanosecond)
	time.Sleep(time.Millisecond)

	_, ok := c.Get(k)
	assert.False(t, ok)

	st := c.Stats()
	assert.Equal(t, int64(1), st.Expired)
	assert.Equal(t, 0, st.Size)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := New()
	k := key("Scale", 1, 0.5)

	c.Put(k, CachedResult{OutputProbability: 0.6}, 0)

	_, ok := c.Get(k)
	assert.True(t, ok)
}

func TestLRUEviction(t *testing.T) {
	c := New(func(o *Options) { o.MaxEntries = 2 })

	c.Put(key("A", 0, 0), CachedResult{OutputProbability: 0.1}, time.Minute)
	c.Put(key("B", 0, 0), CachedResult{OutputProbability: 0.2}, time.Minute)

	// Touch A so B becomes the least recently used.
	_, ok := c.Get(key("A", 0, 0))
	require.True(t, ok)

	c.Put(key("C", 0, 0), CachedResult{OutputProbability: 0.3}, time.Minute)

	_, ok = c.Get(key("B", 0, 0))
	assert.False(t, ok)
	_, ok = c.Get(key("A", 0, 0))
	assert.True(t, ok)
	_, ok = c.Get(key("C", 0, 0))
	assert.True(t, ok)

	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestPutUpdatesExistingEntry(t *testing.T) {
	c := New()
	k := key("Scale", 1, 0.5)

	c.Put(k, CachedResult{OutputProbability: 0.6}, time.Minute)
	c.Put(k, CachedResult{OutputProbability: 0.7}, time.Minute)

	res, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, 0.7, res.OutputProbability)
	assert.Equal(t, 1, c.Stats().Size)
}

func TestGetOrComputeStoresSuccess(t *testing.T) {
	c := New()
	k := key("Scale", 1, 0.5)

	computes := 0
	res, hit := c.GetOrCompute(k, time.Minute, func() (CachedResult, bool) {
		computes++
		return CachedResult{OutputProbability: 0.6}, true
	})
	assert.False(t, hit)
	assert.Equal(t, 0.6, res.OutputProbability)
	assert.Equal(t, 1, computes)

	// Second call is served from cache.
	res, hit = c.GetOrCompute(k, time.Minute, func() (CachedResult, bool) {
		computes++
		return CachedResult{}, true
	})
	assert.True(t, hit)
	assert.Equal(t, 0.6, res.OutputProbability)
	assert.Equal(t, 1, computes)
}

func TestGetOrComputeDoesNotStoreFailures(t *testing.T) {
	c := New()
	k := key("Scale", 1, 0.5)

	c.GetOrCompute(k, time.Minute, func() (CachedResult, bool) {
		return CachedResult{}, false
	})

	_, ok := c.Get(k)
	assert.False(t, ok)
}

func TestGetOrComputeDedupesConcurrentCallers(t *testing.T) {
	c := New()
	k := key("Scale", 1, 0.5)

	var computes atomic.Int64
	gate := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := c.GetOrCompute(k, time.Minute, func() (CachedResult, bool) {
				computes.Add(1)
				<-gate
				return CachedResult{OutputProbability: 0.6}, true
			})
			if res.OutputProbability != 0.6 {
				t.Errorf("unexpected result %v", res.OutputProbability)
			}
		}()
	}

	// Let the in-flight computation finish once every caller is queued.
	time.Sleep(10 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int64(1), computes.Load())
}

func TestSweep(t *testing.T) {
	c := New()

	c.Put(key("A", 0, 0), CachedResult{}, time.Nanosecond)
	c.Put(key("B", 0, 0), CachedResult{}, time.Minute)
	time.Sleep(time.Millisecond)

	expired, remaining := c.Sweep()

	assert.Equal(t, 1, expired)
	assert.Equal(t, 1, remaining)
	assert.Equal(t, int64(1), c.Stats().Expired)
}

func TestClear(t *testing.T) {
	c := New()

	c.Put(key("A", 0, 0), CachedResult{}, time.Minute)
	c.Clear()

	assert.Equal(t, 0, c.Stats().Size)
	_, ok := c.Get(key("A", 0, 0))
	assert.False(t, ok)
}
