package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/probmesh/core"
)

// ErrEvaluationNotFound is returned when cancelling a handle that is not
// (or no longer) in flight.
var ErrEvaluationNotFound = fmt.Errorf("evaluation not found")

// asyncTracker holds the cancellation functions of in-flight asynchronous
// evaluations, keyed by handle.
type asyncTracker struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func newAsyncTracker() *asyncTracker {
	return &asyncTracker{active: make(map[string]context.CancelFunc)}
}

func (t *asyncTracker) add(handle string, cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[handle] = cancel
}

func (t *asyncTracker) remove(handle string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, handle)
}

func (t *asyncTracker) cancel(handle string) bool {
	t.mu.Lock()
	cancel, ok := t.active[handle]
	t.mu.Unlock()

	if ok {
		cancel()
	}

	return ok
}

func (t *asyncTracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// EvaluateAsync starts the global evaluator set on a worker goroutine and
// returns immediately with a handle and a result channel. Exactly one
// result is delivered on the channel before it closes; it arrives even
// when the evaluation fails or is cancelled (a cancelled run reports a
// timeout failure).
//
// Cancellation via Cancel is best-effort: the deadline is checked between
// evaluators, so an evaluator already mid-phase runs to completion before
// the chain stops.
//
// Example:
//
//	handle, results, err := e.EvaluateAsync(ctx, 0.5, ec)
//	if err != nil {
//	    return err
//	}
//	res := <-results
//	_ = handle // keep for Cancel
func (e *Engine) EvaluateAsync(ctx context.Context, probability float64, ec *core.Context) (string, <-chan core.Result, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, fmt.Errorf("start evaluation: %w", err)
	}

	handle := uuid.NewString()
	results := make(chan core.Result, e.resultBuffer())

	evalCtx, cancel := context.WithCancel(ctx)
	e.async.add(handle, cancel)
	if e.metrics != nil {
		e.metrics.ActiveEvaluations.Inc()
	}

	go func() {
		defer func() {
			e.async.remove(handle)
			cancel()
			close(results)
			if e.metrics != nil {
				e.metrics.ActiveEvaluations.Dec()
			}
		}()

		res := e.Evaluate(evalCtx, probability, ec)

		select {
		case results <- res:
		case <-ctx.Done():
			// Caller abandoned the call; drop the result.
		}
	}()

	return handle, results, nil
}

// Cancel requests termination of an in-flight asynchronous evaluation. It
// fails with ErrEvaluationNotFound when the handle is unknown or the
// evaluation already completed.
func (e *Engine) Cancel(handle string) error {
	if !e.async.cancel(handle) {
		return fmt.Errorf("%w: %s", ErrEvaluationNotFound, handle)
	}

	e.logger.Debug("evaluation cancelled", "handle", handle)

	return nil
}

func (e *Engine) resultBuffer() int {
	if e.cfg.Engine.ResultBufferSize > 0 {
		return e.cfg.Engine.ResultBufferSize
	}
	return 1
}
