// Package pool implements bounded reuse of evaluator instances. Instances
// are bucketed by evaluator identity; each bucket hands out previously
// released instances before constructing new ones and refuses construction
// beyond its per-type cap. Checkout is exclusive: an acquired instance is
// never handed to a second caller until it is released.
package pool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/probmesh/core"
	"github.com/hupe1980/probmesh/logging"
)

// ErrUnknownIdentity is returned when acquiring an identity no factory has
// been registered for.
var ErrUnknownIdentity = fmt.Errorf("no factory registered for identity")

// bucket is the per-identity free list plus accounting.
type bucket struct {
	factory     core.Factory
	free        []core.Evaluator
	checkedOut  map[core.Evaluator]struct{}
	constructed int
}

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxPerType caps live instances per identity. Zero means unlimited.
	MaxPerType int
	// Logger receives pool diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// BucketStats summarizes one identity's bucket.
type BucketStats struct {
	// Free is the number of released instances awaiting reuse.
	Free int
	// CheckedOut is the number of instances currently on loan.
	CheckedOut int
	// Constructed is the lifetime number of instances built.
	Constructed int
}

// Stats summarizes the pool.
type Stats struct {
	// Buckets maps identity keys to per-bucket stats.
	Buckets map[string]BucketStats
	// Exhausted counts acquires rejected because the per-type cap was
	// reached with no free instance.
	Exhausted int64
}

// Pool is the process-local evaluator instance pool. Acquire and Release
// are internally synchronized; the execution of an acquired instance is
// not: evaluators touching shared state beyond their own scratch fields
// must synchronize it themselves.
type Pool struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxPerType int
	exhausted  atomic.Int64
	logger     logging.Logger
}

// New constructs an empty pool.
func New(optFns ...func(o *Options)) *Pool {
	opts := Options{MaxPerType: 32, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Pool{
		buckets:    make(map[string]*bucket),
		maxPerType: opts.MaxPerType,
		logger:     opts.Logger,
	}
}

// RegisterFactory installs the constructor for an identity, replacing any
// previous registration. Instances already on loan are unaffected.
func (p *Pool) RegisterFactory(id core.Identity, factory core.Factory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bucketLocked(id.Key()).factory = factory
}

// Acquire returns an exclusive evaluator instance for the identity: a
// previously released instance when one is free, otherwise a freshly
// constructed one while the bucket is below the per-type cap. At the cap it
// fails with core.ErrPoolExhausted; the caller decides whether to construct
// unpooled and proceed or to reject the call.
func (p *Pool) Acquire(id core.Identity) (core.Evaluator, error) {
	key := id.Key()

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[key]
	if !ok || b.factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, key)
	}

	if n := len(b.free); n > 0 {
		ev := b.free[n-1]
		b.free = b.free[:n-1]
		b.checkedOut[ev] = struct{}{}
		return ev, nil
	}

	if p.maxPerType > 0 && b.constructed >= p.maxPerType {
		p.exhausted.Add(1)
		p.logger.Debug("pool exhausted", "identity", key, "max_per_type", p.maxPerType)
		return nil, fmt.Errorf("%w: %s", core.ErrPoolExhausted, key)
	}

	ev := b.factory()
	b.constructed++
	b.checkedOut[ev] = struct{}{}

	return ev, nil
}

// Release returns an instance to its identity's free list. The instance is
// Reset first so no per-call scratch state leaks between unrelated
// evaluations. Releasing an instance the pool did not hand out (or one
// already released) fails with core.ErrNotCheckedOut.
func (p *Pool) Release(ev core.Evaluator) error {
	key := ev.Identity().Key()

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[key]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotCheckedOut, key)
	}
	if _, out := b.checkedOut[ev]; !out {
		return fmt.Errorf("%w: %s", core.ErrNotCheckedOut, key)
	}

	ev.Reset()
	delete(b.checkedOut, ev)
	b.free = append(b.free, ev)

	return nil
}

// Prewarm eagerly constructs count instances for the identity so first-use
// latency spikes are absorbed at startup. Prewarming never exceeds the
// per-type cap.
func (p *Pool) Prewarm(id core.Identity, count int) error {
	key := id.Key()

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[key]
	if !ok || b.factory == nil {
		return fmt.Errorf("%w: %s", ErrUnknownIdentity, key)
	}

	for i := 0; i < count; i++ {
		if p.maxPerType > 0 && b.constructed >= p.maxPerType {
			break
		}
		b.free = append(b.free, b.factory())
		b.constructed++
	}

	return nil
}

// Stats returns a point-in-time summary of every bucket.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := Stats{Buckets: make(map[string]BucketStats, len(p.buckets)), Exhausted: p.exhausted.Load()}
	for key, b := range p.buckets {
		st.Buckets[key] = BucketStats{Free: len(b.free), CheckedOut: len(b.checkedOut), Constructed: b.constructed}
	}

	return st
}

// bucketLocked returns the bucket for key, allocating it on first use;
// caller must hold the lock.
func (p *Pool) bucketLocked(key string) *bucket {
	b, ok := p.buckets[key]
	if !ok {
		b = &bucket{checkedOut: make(map[core.Evaluator]struct{})}
		p.buckets[key] = b
	}
	return b
}
