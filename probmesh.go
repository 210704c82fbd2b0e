// Package probmesh provides a high-level façade over the core Engine and
// its supporting services (context tracking, evaluator pooling, result
// caching & logging) enabling rapid construction of probability evaluation
// systems. Most applications interact with this package by:
//  1. Creating a ProbMesh via New() (optionally overriding configuration)
//  2. Registering one or more evaluator factories with priorities
//  3. Creating evaluation contexts and evaluating probabilities through
//     them (Evaluate, EvaluateBatch, EvaluateAsync)
//
// The façade delegates orchestration to engine.Engine while keeping setup
// and usage ergonomics concise. All defaults are safe for local development
// and testing; production deployments typically supply tuned configuration
// and a structured logger.
package probmesh

import (
	"context"

	"github.com/hupe1980/probmesh/config"
	"github.com/hupe1980/probmesh/core"
	"github.com/hupe1980/probmesh/engine"
	"github.com/hupe1980/probmesh/logging"
	"github.com/hupe1980/probmesh/metrics"
	"github.com/hupe1980/probmesh/tracker"
)

// Options configures the ProbMesh instance.
type Options struct {
	// Config contains tuning parameters for every subsystem (cache, pool,
	// tracker, pipeline, engine). Defaults to config.Default().
	Config config.Config

	// Tracker is the context tracking store. Defaults to a fresh in-memory
	// store owned by the instance.
	Tracker *tracker.Store

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// Metrics enables Prometheus instrumentation when non-nil.
	Metrics *metrics.Metrics

	// StartCleanupLoop starts the tracker's background cleanup loop with
	// the configured cadence. Call Close() to stop it.
	StartCleanupLoop bool
}

// ProbMesh is the high-level façade aggregating the underlying engine and
// its context tracking store.
type ProbMesh struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new ProbMesh instance with optional overrides. Any unset
// dependency is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *ProbMesh {
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

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.Config
		o.Tracker = opts.Tracker
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	if opts.StartCleanupLoop {
		opts.Tracker.StartCleanupLoop(
			opts.Config.Tracker.CleanupInterval,
			opts.Config.Tracker.MaxLifetime,
			opts.Config.Tracker.MaxContexts,
		)
	}

	return &ProbMesh{opts: opts, engine: e}
}

// Close stops background work owned by the instance.
func (m *ProbMesh) Close() {
	m.opts.Tracker.StopCleanupLoop()
}

// RegisterEvaluator adds an evaluator factory to the underlying engine's
// global registry.
func (m *ProbMesh) RegisterEvaluator(tag string, factory core.Factory, priority core.Priority) {
	m.engine.RegisterGlobal(tag, factory, priority)
}

// UnregisterEvaluator removes a global registration.
func (m *ProbMesh) UnregisterEvaluator(tag string) bool {
	return m.engine.UnregisterGlobal(tag)
}

// NewContext creates and registers a root evaluation context.
func (m *ProbMesh) NewContext(reason string) (*core.Context, error) {
	ec := m.opts.Tracker.Create(reason)
	if err := m.opts.Tracker.Register(ec); err != nil {
		return nil, err
	}
	return ec, nil
}

// NewChildContext creates and registers a context inheriting from parentID.
func (m *ProbMesh) NewChildContext(parentID, reason string) (*core.Context, error) {
	ec := m.opts.Tracker.CreateChild(parentID, reason)
	if err := m.opts.Tracker.Register(ec); err != nil {
		return nil, err
	}
	return ec, nil
}

// Tracker exposes the context tracking store for metadata queries, search
// and manual cleanup.
func (m *ProbMesh) Tracker() *tracker.Store { return m.opts.Tracker }

// Evaluate runs the full global evaluator set against one probability.
func (m *ProbMesh) Evaluate(ctx context.Context, probability float64, ec *core.Context) core.Result {
	return m.engine.Evaluate(ctx, probability, ec)
}

// EvaluateWith runs one caller-owned evaluator instance.
func (m *ProbMesh) EvaluateWith(ctx context.Context, probability float64, ec *core.Context, ev core.Evaluator) core.Result {
	return m.engine.EvaluateWith(ctx, probability, ec, ev)
}

// EvaluateTagged runs the single evaluator registered under tag.
func (m *ProbMesh) EvaluateTagged(ctx context.Context, probability float64, ec *core.Context, tag string) (core.Result, error) {
	return m.engine.EvaluateTagged(ctx, probability, ec, tag)
}

// EvaluateBatch runs the global set independently against each probability,
// sharing one context. The error is non-nil only when every item failed.
func (m *ProbMesh) EvaluateBatch(ctx context.Context, probabilities []float64, ec *core.Context) ([]core.Result, error) {
	return m.engine.EvaluateBatch(ctx, probabilities, ec)
}

// EvaluateAsync starts an asynchronous evaluation returning a handle and a
// single-result channel.
func (m *ProbMesh) EvaluateAsync(ctx context.Context, probability float64, ec *core.Context) (string, <-chan core.Result, error) {
	return m.engine.EvaluateAsync(ctx, probability, ec)
}

// Cancel requests best-effort termination of an asynchronous evaluation.
func (m *ProbMesh) Cancel(handle string) error {
	return m.engine.Cancel(handle)
}

// Stats returns a point-in-time aggregate across all subsystems.
func (m *ProbMesh) Stats() engine.Stats {
	return m.engine.Stats()
}
