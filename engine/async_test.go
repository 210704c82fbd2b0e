package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/probmesh/core"
	"github.com/hupe1980/probmesh/internal/testutil"
)

func TestEvaluateAsyncDeliversOneResult(t *testing.T) {
	e, store := newTestEngine(nil)

	e.RegisterGlobal("bonus", func() core.Evaluator {
		return testutil.NewScriptedEvaluator("Bonus").WithTransform(func(p float64) float64 { return p + 0.1 })
	}, core.PriorityNormal)

	ec := registerContext(t, store, nil)

	handle, results, err := e.EvaluateAsync(context.Background(), 0.5, ec)
	require.NoError(t, err)
	assert.NotEmpty(t, handle)

	res, ok := <-results
	require.True(t, ok)
	require.True(t, res.Success)
	assert.InDelta(t, 0.6, res.Probability, 1e-9)

	// Exactly one result, then the channel closes.
	_, ok = <-results
	assert.False(t, ok)

	// The handle is gone once the evaluation completed.
	assert.ErrorIs(t, e.Cancel(handle), ErrEvaluationNotFound)
}

func TestEvaluateAsyncCancelledParentContext(t *testing.T) {
	e, _ := newTestEngine(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := e.EvaluateAsync(ctx, 0.5, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCancelStopsInFlightEvaluation(t *testing.T) {
	e, store := newTestEngine(nil)

	started := make(chan struct{}, 1)
	e.RegisterGlobal("slow", func() core.Evaluator {
		return testutil.NewScriptedEvaluator("Slow").WithTransform(func(p float64) float64 {
			select {
			case started <- struct{}{}:
			default:
			}
			time.Sleep(20 * time.Millisecond)
			return p + 0.1
		})
	}, core.PriorityCritical)
	e.RegisterGlobal("after", func() core.Evaluator {
		return testutil.NewScriptedEvaluator("After").WithTransform(func(p float64) float64 { return p + 0.1 })
	}, core.PriorityNormal)

	ec := registerContext(t, store, nil)

	handle, results, err := e.EvaluateAsync(context.Background(), 0.5, ec)
	require.NoError(t, err)

	<-started
	require.NoError(t, e.Cancel(handle))

	// Cancellation is best-effort: the running evaluator completes, the
	// rest of the chain is skipped and the result reports a timeout.
	res, ok := <-results
	require.True(t, ok)
	assert.False(t, res.Success)
	require.NotNil(t, res.Failure)
	assert.Equal(t, core.FailureTimeout, res.Failure.Kind)
}

func TestCancelUnknownHandle(t *testing.T) {
	e, _ := newTestEngine(nil)

	err := e.Cancel("no-such-handle")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEvaluationNotFound)
}

func TestConcurrentAsyncEvaluations(t *testing.T) {
	e, store := newTestEngine(nil)

	e.RegisterGlobal("bonus", func() core.Evaluator {
		return testutil.NewScriptedEvaluator("Bonus").WithTransform(func(p float64) float64 { return p + 0.1 })
	}, core.PriorityNormal)

	ec := registerContext(t, store, nil)

	type pending struct {
		handle  string
		results <-chan core.Result
	}

	var calls []pending
	for i := 0; i < 8; i++ {
		handle, results, err := e.EvaluateAsync(context.Background(), 0.5, ec)
		require.NoError(t, err)
		calls = append(calls, pending{handle: handle, results: results})
	}

	seen := make(map[string]struct{})
	for _, c := range calls {
		res := <-c.results
		require.True(t, res.Success)
		assert.InDelta(t, 0.6, res.Probability, 1e-9)
		seen[c.handle] = struct{}{}
	}
	assert.Len(t, seen, 8)
}
