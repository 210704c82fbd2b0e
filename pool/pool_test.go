package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/probmesh/core"
	"github.com/hupe1980/probmesh/internal/testutil"
)

var scaleID = core.Identity{Type: "Scale"}

func newScalePool(maxPerType int) *Pool {
	p := New(func(o *Options) { o.MaxPerType = maxPerType })
	p.RegisterFactory(scaleID, func() core.Evaluator { return testutil.NewScriptedEvaluator("Scale") })
	return p
}

func TestAcquireUnknownIdentity(t *testing.T) {
	p := New()

	_, err := p.Acquire(core.Identity{Type: "Nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownIdentity)
}

func TestAcquireReusesReleasedInstance(t *testing.T) {
	p := newScalePool(4)

	first, err := p.Acquire(scaleID)
	require.NoError(t, err)
	require.NoError(t, p.Release(first))

	second, err := p.Acquire(scaleID)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, p.Stats().Buckets[scaleID.Key()].Constructed)
}

func TestReleaseResetsInstance(t *testing.T) {
	p := newScalePool(4)

	ev, err := p.Acquire(scaleID)
	require.NoError(t, err)
	require.NoError(t, p.Release(ev))

	assert.Equal(t, int64(1), ev.(*testutil.ScriptedEvaluator).ResetCalls.Load())
}

func TestAcquireExhaustion(t *testing.T) {
	p := newScalePool(2)

	a, err := p.Acquire(scaleID)
	require.NoError(t, err)
	_, err = p.Acquire(scaleID)
	require.NoError(t, err)

	_, err = p.Acquire(scaleID)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPoolExhausted)
	assert.Equal(t, int64(1), p.Stats().Exhausted)

	// Releasing frees capacity again.
	require.NoError(t, p.Release(a))
	_, err = p.Acquire(scaleID)
	assert.NoError(t, err)
}

func TestDoubleReleaseRejected(t *testing.T) {
	p := newScalePool(4)

	ev, err := p.Acquire(scaleID)
	require.NoError(t, err)
	require.NoError(t, p.Release(ev))

	err = p.Release(ev)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotCheckedOut)
}

func TestForeignReleaseRejected(t *testing.T) {
	p := newScalePool(4)

	err := p.Release(testutil.NewScriptedEvaluator("Scale"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotCheckedOut)
}

func TestPrewarm(t *testing.T) {
	p := newScalePool(4)

	require.NoError(t, p.Prewarm(scaleID, 8))

	st := p.Stats().Buckets[scaleID.Key()]
	// Prewarming never exceeds the per-type cap.
	assert.Equal(t, 4, st.Free)
	assert.Equal(t, 4, st.Constructed)
	assert.Equal(t, 0, st.CheckedOut)

	require.Error(t, p.Prewarm(core.Identity{Type: "Nope"}, 1))
}

func TestExclusiveCheckoutUnderConcurrency(t *testing.T) {
	p := newScalePool(64)

	var mu sync.Mutex
	inUse := make(map[core.Evaluator]bool)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				ev, err := p.Acquire(scaleID)
				if err != nil {
					t.Errorf("acquire: %v", err)
					return
				}

				mu.Lock()
				if inUse[ev] {
					mu.Unlock()
					t.Errorf("instance handed out twice concurrently")
					return
				}
				inUse[ev] = true
				mu.Unlock()

				mu.Lock()
				inUse[ev] = false
				mu.Unlock()

				if err := p.Release(ev); err != nil {
					t.Errorf("release: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	st := p.Stats().Buckets[scaleID.Key()]
	assert.Equal(t, 0, st.CheckedOut)
	assert.LessOrEqual(t, st.Constructed, 64)
}

func TestBucketsIsolatedByIdentity(t *testing.T) {
	p := New(func(o *Options) { o.MaxPerType = 1 })
	p.RegisterFactory(core.Identity{Type: "A"}, func() core.Evaluator { return testutil.NewScriptedEvaluator("A") })
	p.RegisterFactory(core.Identity{Type: "A", Tag: "alt"}, func() core.Evaluator {
		return testutil.NewScriptedEvaluator("A").WithTag("alt")
	})

	_, err := p.Acquire(core.Identity{Type: "A"})
	require.NoError(t, err)

	// The tagged variant has its own bucket and its own cap.
	_, err = p.Acquire(core.Identity{Type: "A", Tag: "alt"})
	assert.NoError(t, err)
}
