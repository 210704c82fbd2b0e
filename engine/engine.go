package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/probmesh/cache"
	"github.com/hupe1980/probmesh/config"
	"github.com/hupe1980/probmesh/core"
	"github.com/hupe1980/probmesh/logging"
	"github.com/hupe1980/probmesh/metrics"
	"github.com/hupe1980/probmesh/pipeline"
	"github.com/hupe1980/probmesh/pool"
	"github.com/hupe1980/probmesh/tracker"
)

// Options configures an Engine instance using the functional options
// pattern. All dependencies have in-process defaults, so New() with no
// options yields a fully working engine for development and testing.
//
// Example:
//
//	e := engine.New(func(o *engine.Options) {
//	    o.Config = cfg
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains the tuning parameters for every subsystem.
	// Defaults to config.Default().
	Config config.Config

	// Tracker is the context tracking store evaluations resolve effective
	// metadata against. Defaults to a fresh in-memory store.
	Tracker *tracker.Store

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger

	// Metrics receives Prometheus instrumentation. Nil disables metric
	// recording entirely; construct with metrics.New() to enable.
	Metrics *metrics.Metrics
}

// Engine orchestrates probability evaluations. It owns the evaluator
// registry, the instance pool and the result cache, and coordinates them
// per call; the evaluation semantics themselves live in the pipeline and
// in the evaluators.
//
// The zero value is not usable; construct with New. All methods are safe
// for concurrent use.
type Engine struct {
	cfg     config.Config
	tracker *tracker.Store
	pool    *pool.Pool
	cache   *cache.Cache
	chain   *pipeline.Chain
	logger  logging.Logger
	metrics *metrics.Metrics

	registry *registry

	evaluations atomic.Int64
	successes   atomic.Int64
	failures    atomic.Int64

	async *asyncTracker
}

// Stats is a point-in-time aggregate across the engine's subsystems.
type Stats struct {
	// Evaluations counts completed calls; Successes + Failures.
	Evaluations int64
	Successes   int64
	Failures    int64

	// Registered is the number of global evaluator registrations.
	Registered int

	// ActiveAsync is the number of in-flight asynchronous evaluations.
	ActiveAsync int

	Cache   cache.Stats
	Pool    pool.Stats
	Tracker tracker.Stats
}

// New constructs an Engine. Unset options fall back to in-process
// defaults: config.Default(), a fresh tracker store, a NoOp logger and no
// metrics.
//
// The engine wires its own pool and cache from the configuration; callers
// interact with those only through engine calls and Stats(). The tracker
// is deliberately shared: callers register contexts there and pass them
// into evaluations.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: config.Default(),
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Tracker == nil {
		opts.Tracker = tracker.New(func(o *tracker.Options) { o.Logger = opts.Logger })
	}

	e := &Engine{
		cfg:     opts.Config,
		tracker: opts.Tracker,
		logger:  opts.Logger,
		metrics: opts.Metrics,

		registry: newRegistry(),
		async:    newAsyncTracker(),
	}

	e.pool = pool.New(func(o *pool.Options) {
		o.MaxPerType = opts.Config.Pool.MaxPerType
		o.Logger = opts.Logger
	})

	var chainCache pipeline.ResultCache
	if opts.Config.Cache.Enabled {
		e.cache = cache.New(func(o *cache.Options) {
			o.MaxEntries = opts.Config.Cache.MaxEntries
			o.Logger = opts.Logger
		})
		chainCache = &resultCache{
			cache:        e.cache,
			reader:       opts.Tracker,
			ttl:          opts.Config.Cache.TTL,
			quantizeStep: opts.Config.Cache.QuantizeStep,
			metrics:      opts.Metrics,
		}
	}

	policy := pipeline.ContinueOnFailure
	if opts.Config.Pipeline.StopOnFirstFailure {
		policy = pipeline.StopOnFirstFailure
	}
	e.chain = pipeline.NewChain(policy, func(o *pipeline.Options) {
		o.Logger = opts.Logger
		o.Cache = chainCache
	})

	return e
}

// Tracker returns the context tracking store the engine evaluates against.
func (e *Engine) Tracker() *tracker.Store { return e.tracker }

// RegisterGlobal installs an evaluator factory under tag with the given
// priority, replacing any previous registration for that tag. Global
// evaluators participate in every Evaluate call, ordered critical-first.
//
// The factory is also registered with the instance pool; when the
// configuration asks for prewarming, instances are constructed eagerly
// here so first-use latency is absorbed at registration time.
func (e *Engine) RegisterGlobal(tag string, factory core.Factory, priority core.Priority) {
	reg := e.registry.register(tag, factory, priority)
	e.pool.RegisterFactory(reg.identity, factory)

	if e.cfg.Pool.Enabled && e.cfg.Pool.PrewarmCount > 0 {
		if err := e.pool.Prewarm(reg.identity, e.cfg.Pool.PrewarmCount); err != nil {
			e.logger.Warn("prewarm failed", "tag", tag, "error", err.Error())
		}
	}

	e.logger.Debug("evaluator registered", "tag", tag, "identity", reg.identity.Key(), "priority", priority.String())
}

// UnregisterGlobal removes the registration for tag. In-flight evaluations
// that already snapshotted the registry are unaffected.
func (e *Engine) UnregisterGlobal(tag string) bool {
	ok := e.registry.unregister(tag)
	if ok {
		e.logger.Debug("evaluator unregistered", "tag", tag)
	}
	return ok
}

// Evaluate runs the full global evaluator set against one probability.
//
// A nil evaluation context makes the engine create and register a fresh
// one; its ID is reported on the result. A non-nil context must already be
// registered with the tracker, otherwise the call fails with
// FailureInvalidContext; the tracker is the source of truth for effective
// metadata, and evaluating against an untracked context would silently
// drop inherited values.
func (e *Engine) Evaluate(ctx context.Context, probability float64, ec *core.Context) core.Result {
	ec, failure := e.resolveContext(ec)
	if failure == nil {
		failure = validateProbability(probability)
	}
	if failure != nil {
		return e.failedResult(probability, ec, failure)
	}

	entries, releases, failure := e.checkout(e.registry.snapshot())
	if failure != nil {
		return e.failedResult(probability, ec, failure)
	}
	defer releases()

	return e.run(ctx, entries, probability, ec)
}

// EvaluateTagged runs the single evaluator registered under tag. The error
// is non-nil only for call-setup problems (unknown tag); evaluation
// failures are reported on the result.
func (e *Engine) EvaluateTagged(ctx context.Context, probability float64, ec *core.Context, tag string) (core.Result, error) {
	reg, ok := e.registry.lookup(tag)
	if !ok {
		return core.Result{}, fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}

	ec, failure := e.resolveContext(ec)
	if failure == nil {
		failure = validateProbability(probability)
	}
	if failure != nil {
		return e.failedResult(probability, ec, failure), nil
	}

	entries, releases, failure := e.checkout([]*registration{reg})
	if failure != nil {
		return e.failedResult(probability, ec, failure), nil
	}
	defer releases()

	return e.run(ctx, entries, probability, ec), nil
}

// EvaluateWith runs one ad hoc evaluator instance the caller constructed
// and owns. The instance bypasses the pool; its lifecycle stays with the
// caller.
func (e *Engine) EvaluateWith(ctx context.Context, probability float64, ec *core.Context, ev core.Evaluator) core.Result {
	ec, failure := e.resolveContext(ec)
	if failure == nil {
		failure = validateProbability(probability)
	}
	if failure != nil {
		return e.failedResult(probability, ec, failure)
	}

	entries := []pipeline.Entry{{Evaluator: ev, Priority: core.PriorityNormal}}

	return e.run(ctx, entries, probability, ec)
}

// EvaluateBatch runs the global evaluator set independently against each
// probability, all sharing one evaluation context. Fan-out is bounded by
// MaxConcurrentBatch. Results are positional; every item gets one even
// when it fails. The returned error is non-nil only when every single item
// failed.
func (e *Engine) EvaluateBatch(ctx context.Context, probabilities []float64, ec *core.Context) ([]core.Result, error) {
	ec, failure := e.resolveContext(ec)
	if failure != nil {
		results := make([]core.Result, len(probabilities))
		for i, p := range probabilities {
			results[i] = e.failedResult(p, ec, failure)
		}
		return results, fmt.Errorf("batch evaluation: %w", failure)
	}

	results := make([]core.Result, len(probabilities))

	g := new(errgroup.Group)
	if e.cfg.Engine.MaxConcurrentBatch > 0 {
		g.SetLimit(e.cfg.Engine.MaxConcurrentBatch)
	}

	for i, p := range probabilities {
		i, p := i, p
		g.Go(func() error {
			results[i] = e.Evaluate(ctx, p, ec)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	if len(results) > 0 && failed == len(results) {
		return results, fmt.Errorf("batch evaluation: all %d items failed", len(results))
	}

	return results, nil
}

// Stats returns a point-in-time aggregate across all subsystems.
func (e *Engine) Stats() Stats {
	st := Stats{
		Evaluations: e.evaluations.Load(),
		Successes:   e.successes.Load(),
		Failures:    e.failures.Load(),
		Registered:  e.registry.size(),
		ActiveAsync: e.async.count(),
		Pool:        e.pool.Stats(),
		Tracker:     e.tracker.Stats(),
	}
	if e.cache != nil {
		st.Cache = e.cache.Stats()
	}

	return st
}

// run executes the chain with the engine's timeout applied and records the
// outcome on counters and metrics.
func (e *Engine) run(ctx context.Context, entries []pipeline.Entry, probability float64, ec *core.Context) core.Result {
	if e.cfg.Engine.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Engine.Timeout)
		defer cancel()
	}

	start := time.Now()
	res := e.chain.Run(ctx, entries, probability, ec)
	e.record(res, time.Since(start))

	return res
}

// resolveContext returns a registered evaluation context for the call: the
// supplied one when the tracker knows it, a freshly created one when nil.
func (e *Engine) resolveContext(ec *core.Context) (*core.Context, *core.Failure) {
	if ec == nil {
		ec = e.tracker.Create("engine evaluation")
		if err := e.tracker.Register(ec); err != nil {
			return nil, core.NewFailure(core.FailureInvalidContext, "register context: %v", err)
		}
		return ec, nil
	}

	if !e.tracker.Exists(ec.ID) {
		return ec, core.NewFailure(core.FailureInvalidContext, "context %s is not tracked", ec.ID)
	}

	return ec, nil
}

// checkout acquires one instance per registration, preferring the pool and
// falling back to direct construction when a bucket is exhausted, unless
// the configuration demands rejection, in which case the whole call fails
// with FailurePoolExhausted. The returned release function hands every
// pooled instance back; unpooled fallbacks are simply dropped.
func (e *Engine) checkout(regs []*registration) ([]pipeline.Entry, func(), *core.Failure) {
	entries := make([]pipeline.Entry, 0, len(regs))
	var pooled []core.Evaluator

	releaseAll := func() {
		for _, ev := range pooled {
			if err := e.pool.Release(ev); err != nil {
				e.logger.Warn("release failed", "identity", ev.Identity().Key(), "error", err.Error())
			}
		}
	}

	for _, reg := range regs {
		if !e.cfg.Pool.Enabled {
			entries = append(entries, pipeline.Entry{Evaluator: reg.factory(), Priority: reg.priority})
			continue
		}

		ev, err := e.pool.Acquire(reg.identity)
		switch {
		case err == nil:
			pooled = append(pooled, ev)

		case errors.Is(err, core.ErrPoolExhausted):
			if e.metrics != nil {
				e.metrics.PoolExhausted.Inc()
			}
			if e.cfg.Pool.RejectWhenExhausted {
				releaseAll()
				return nil, nil, core.NewFailure(core.FailurePoolExhausted, "pool exhausted for %s", reg.identity.Key())
			}
			e.logger.Debug("pool exhausted, constructing unpooled instance", "identity", reg.identity.Key())
			ev = reg.factory()

		default:
			releaseAll()
			return nil, nil, core.NewFailure(core.FailureEvaluator, "acquire %s: %v", reg.identity.Key(), err)
		}

		entries = append(entries, pipeline.Entry{Evaluator: ev, Priority: reg.priority})
	}

	return entries, releaseAll, nil
}

// failedResult builds the uniform failure result: the input probability is
// carried through unchanged and the outcome is counted.
func (e *Engine) failedResult(probability float64, ec *core.Context, failure *core.Failure) core.Result {
	res := core.Result{Success: false, Probability: probability, Failure: failure}
	if ec != nil {
		res.ContextID = ec.ID
	}
	e.record(res, 0)

	return res
}

// record updates the aggregate counters and metrics for one completed call.
func (e *Engine) record(res core.Result, elapsed time.Duration) {
	e.evaluations.Add(1)
	if res.Success {
		e.successes.Add(1)
	} else {
		e.failures.Add(1)
	}

	if e.metrics != nil {
		kind := ""
		if res.Failure != nil {
			kind = res.Failure.Kind.String()
		}
		e.metrics.RecordOutcome(res.Success, kind)
		if elapsed > 0 {
			e.metrics.EvaluationDuration.Observe(elapsed.Seconds())
		}
		e.metrics.ActiveContexts.Set(float64(e.tracker.Stats().ActiveCount))
	}

	if res.Failure != nil {
		e.logger.Debug("evaluation failed", "context_id", res.ContextID, "kind", res.Failure.Kind.String(), "message", res.Failure.Message)
	}
}

func validateProbability(p float64) *core.Failure {
	if p < 0 || p > 1 {
		return core.NewFailure(core.FailureInvalidProbability, "input probability %v outside [0,1]", p)
	}
	return nil
}
