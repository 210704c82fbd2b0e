package pipeline

import (
	"context"
	"sort"

	"github.com/hupe1980/probmesh/core"
	"github.com/hupe1980/probmesh/logging"
)

// Policy controls how an evaluator failure propagates through the chain.
type Policy int

const (
	// ContinueOnFailure skips the failed evaluator (it contributes no
	// change) and proceeds with the next. This is the default policy.
	ContinueOnFailure Policy = iota
	// StopOnFirstFailure aborts the remaining chain; the last successful
	// probability is returned alongside the failure.
	StopOnFirstFailure
)

// String returns the string representation of the policy.
func (p Policy) String() string {
	if p == StopOnFirstFailure {
		return "stop_on_first_failure"
	}
	return "continue_on_failure"
}

// Entry pairs an evaluator with the priority it was registered under.
type Entry struct {
	Evaluator core.Evaluator
	Priority  core.Priority
}

// ResultCache serves previously computed per-evaluator outcomes. A Fetch hit
// short-circuits the evaluator entirely; no phase runs. Store is only called
// for evaluators whose run succeeded. Implementations decide key derivation
// and which evaluators are cacheable at all.
type ResultCache interface {
	Fetch(ev core.Evaluator, probability float64, ec *core.Context) (float64, bool)
	Store(ev core.Evaluator, probability, output float64, ec *core.Context)
}

// Options holds configuration overrides passed to NewChain().
type Options struct {
	// Logger receives per-evaluator diagnostics. Defaults to NoOp.
	Logger logging.Logger
	// Cache optionally serves per-evaluator results. Nil disables caching.
	Cache ResultCache
}

// Chain composes evaluators in priority order (critical first), ties broken
// by the stable order entries were supplied in. Each evaluator runs its full
// three-phase sequence before the next begins; the output probability of one
// becomes the input of the next.
type Chain struct {
	runner *Runner
	policy Policy
	cache  ResultCache
}

// NewChain constructs a Chain with the given failure policy.
func NewChain(policy Policy, optFns ...func(o *Options)) *Chain {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Chain{runner: NewRunner(opts.Logger), policy: policy, cache: opts.Cache}
}

// Policy returns the configured failure policy.
func (c *Chain) Policy() Policy { return c.policy }

// Run executes the chain against one probability and context. The supplied
// context.Context bounds the run cooperatively: it is checked between
// evaluators, never interrupting one mid-phase; on expiry the remaining
// evaluators are marked skipped and the result reports a timeout.
//
// The overall result succeeds iff every consulted evaluator's evaluate
// phase succeeded. On failure the probability is the last-known-good value
// (the base probability when nothing succeeded) and Failure carries the
// first failure encountered.
func (c *Chain) Run(ctx context.Context, entries []Entry, probability float64, ec *core.Context) core.Result {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	res := core.Result{Success: true, Probability: probability}
	if ec != nil {
		res.ContextID = ec.ID
	}

	aborted := false
	for _, entry := range ordered {
		if aborted {
			res.Trail = append(res.Trail, skippedTrace(entry, res.Probability))
			continue
		}

		if err := ctx.Err(); err != nil {
			res.Success = false
			if res.Failure == nil {
				res.Failure = core.NewFailure(core.FailureTimeout, "evaluation deadline elapsed: %v", err)
			}
			aborted = true
			res.Trail = append(res.Trail, skippedTrace(entry, res.Probability))
			continue
		}

		if c.cache != nil {
			if out, ok := c.cache.Fetch(entry.Evaluator, res.Probability, ec); ok {
				res.Trail = append(res.Trail, hitTrace(entry, res.Probability, out))
				res.Probability = out
				continue
			}
		}

		out, trace := c.runner.RunOne(entry.Evaluator, res.Probability, ec)
		trace.Priority = entry.Priority
		res.Trail = append(res.Trail, trace)

		if trace.Failed() {
			res.Success = false
			if res.Failure == nil {
				res.Failure = trace.FirstFailure()
			}
			if c.policy == StopOnFirstFailure {
				aborted = true
			}
			continue
		}

		if c.cache != nil {
			c.cache.Store(entry.Evaluator, res.Probability, out, ec)
		}

		res.Probability = out
	}

	return res
}

func hitTrace(entry Entry, in, out float64) core.EvaluatorTrace {
	return core.EvaluatorTrace{
		Evaluator:         entry.Evaluator.Identity().Key(),
		Priority:          entry.Priority,
		InputProbability:  in,
		OutputProbability: out,
		CacheHit:          true,
	}
}

func skippedTrace(entry Entry, probability float64) core.EvaluatorTrace {
	return core.EvaluatorTrace{
		Evaluator:         entry.Evaluator.Identity().Key(),
		Priority:          entry.Priority,
		InputProbability:  probability,
		OutputProbability: probability,
		Skipped:           true,
	}
}
