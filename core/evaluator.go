package core

import "fmt"

// Priority orders global evaluators relative to each other. It never breaks
// ties within the same priority; stable registration order is the tiebreak.
type Priority int

const (
	// PriorityCritical runs before all other priorities.
	PriorityCritical Priority = iota
	// PriorityHigh runs after critical evaluators.
	PriorityHigh
	// PriorityNormal is the default priority.
	PriorityNormal
	// PriorityLow runs last.
	PriorityLow
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Identity is the stable key of an evaluator: type plus optional tag. Two
// instances with the same identity are interchangeable for pooling; cached
// results are additionally keyed by a metadata fingerprint.
type Identity struct {
	// Type is the evaluator's logical type name.
	Type string
	// Tag optionally distinguishes configurations of the same type.
	Tag string
}

// Key returns the canonical string form used for pool bucketing and cache
// keying.
func (id Identity) Key() string {
	if id.Tag == "" {
		return id.Type
	}
	return fmt.Sprintf("%s#%s", id.Type, id.Tag)
}

// Evaluator is a pluggable unit that modifies a probability through three
// strictly sequential phases. Implementations must keep per-call scratch
// state inside the instance (cleared by Reset) so instances can be pooled.
//
// Phase contract:
//   - PreEvaluate performs validation/setup only and must not touch the
//     probability. A failure skips Evaluate and PostEvaluate.
//   - Evaluate is the sole phase permitted to change the value and must keep
//     its output within [0,1]; an out-of-range output is a contract
//     violation surfaced as FailureInvalidProbability, not corrected.
//   - PostEvaluate performs side effects only (stats, derived metadata,
//     child contexts). Its failure is logged but does not revert a prior
//     successful Evaluate.
//
// Any phase may create and register new child contexts of the one passed
// in; that is a supported pattern, subject to the metadata concurrency rule
// documented on Context.
type Evaluator interface {
	// Identity returns the evaluator's stable identity.
	Identity() Identity

	// PreEvaluate validates the context and prepares scratch state.
	PreEvaluate(ec *Context) OperationResult

	// Evaluate transforms the probability.
	Evaluate(probability float64, ec *Context) (float64, OperationResult)

	// PostEvaluate records side effects after the evaluate phase.
	PostEvaluate(ec *Context, success bool) OperationResult

	// Reset clears per-call scratch state so the instance can be reused by
	// an unrelated evaluation. Called by the pool on release.
	Reset()
}

// CacheableEvaluator is implemented by evaluators whose results may be
// cached. CacheInputs declares every metadata key the evaluator reads; the
// cache fingerprints the effective values of exactly those keys. An
// evaluator reading context data outside its declared inputs must not
// implement this interface (or must return false from Cacheable) to avoid
// silently stale hits.
type CacheableEvaluator interface {
	Evaluator

	// CacheInputs returns the metadata keys the evaluator depends on.
	CacheInputs() []string

	// Cacheable reports whether caching is currently permitted.
	Cacheable() bool
}

// Factory constructs new evaluator instances for the pool and the global
// registry. Factories must return instances that are independent of each
// other; any shared state behind them is the evaluator's responsibility.
type Factory func() Evaluator
