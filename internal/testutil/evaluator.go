package testutil

import (
	"sync/atomic"

	"github.com/hupe1980/probmesh/core"
)

// ScriptedEvaluator is a configurable core.Evaluator for tests. Each phase
// can be failed or scripted independently; call counts are recorded with
// atomics so the evaluator is safe under concurrent pipeline runs.
// Example:
//
//	ev := NewScriptedEvaluator("Scale").WithTransform(func(p float64) float64 { return p * 1.2 })
type ScriptedEvaluator struct {
	identity  core.Identity
	cacheable bool
	inputs    []string

	preFailure  *core.Failure
	evalFailure *core.Failure
	postFailure *core.Failure
	transform   func(probability float64, ec *core.Context) float64

	PreCalls   atomic.Int64
	EvalCalls  atomic.Int64
	PostCalls  atomic.Int64
	ResetCalls atomic.Int64
	PostOK     atomic.Int64
}

var (
	_ core.Evaluator          = (*ScriptedEvaluator)(nil)
	_ core.CacheableEvaluator = (*ScriptedEvaluator)(nil)
)

// NewScriptedEvaluator creates an evaluator of the given type that passes
// probabilities through unchanged until scripted otherwise.
func NewScriptedEvaluator(evalType string) *ScriptedEvaluator {
	return &ScriptedEvaluator{identity: core.Identity{Type: evalType}}
}

// WithTag sets the identity tag (chainable).
func (s *ScriptedEvaluator) WithTag(tag string) *ScriptedEvaluator {
	s.identity.Tag = tag
	return s
}

// WithTransform sets the evaluate-phase probability function (chainable).
func (s *ScriptedEvaluator) WithTransform(fn func(p float64) float64) *ScriptedEvaluator {
	s.transform = func(p float64, _ *core.Context) float64 { return fn(p) }
	return s
}

// WithContextTransform sets an evaluate function that also sees the
// evaluation context (chainable).
func (s *ScriptedEvaluator) WithContextTransform(fn func(p float64, ec *core.Context) float64) *ScriptedEvaluator {
	s.transform = fn
	return s
}

// FailPre makes PreEvaluate fail with the given failure (chainable).
func (s *ScriptedEvaluator) FailPre(f *core.Failure) *ScriptedEvaluator { s.preFailure = f; return s }

// FailEvaluate makes Evaluate fail with the given failure (chainable).
func (s *ScriptedEvaluator) FailEvaluate(f *core.Failure) *ScriptedEvaluator {
	s.evalFailure = f
	return s
}

// FailPost makes PostEvaluate fail with the given failure (chainable).
func (s *ScriptedEvaluator) FailPost(f *core.Failure) *ScriptedEvaluator { s.postFailure = f; return s }

// CacheableOn opts the evaluator into result caching with the declared
// metadata input keys (chainable).
func (s *ScriptedEvaluator) CacheableOn(inputs ...string) *ScriptedEvaluator {
	s.cacheable = true
	s.inputs = inputs
	return s
}

func (s *ScriptedEvaluator) Identity() core.Identity { return s.identity }

func (s *ScriptedEvaluator) PreEvaluate(_ *core.Context) core.OperationResult {
	s.PreCalls.Add(1)
	if s.preFailure != nil {
		return core.OperationResult{Failure: s.preFailure}
	}
	return core.OK()
}

func (s *ScriptedEvaluator) Evaluate(probability float64, ec *core.Context) (float64, core.OperationResult) {
	s.EvalCalls.Add(1)
	if s.evalFailure != nil {
		return probability, core.OperationResult{Failure: s.evalFailure}
	}
	if s.transform != nil {
		return s.transform(probability, ec), core.OK()
	}
	return probability, core.OK()
}

func (s *ScriptedEvaluator) PostEvaluate(_ *core.Context, success bool) core.OperationResult {
	s.PostCalls.Add(1)
	if success {
		s.PostOK.Add(1)
	}
	if s.postFailure != nil {
		return core.OperationResult{Failure: s.postFailure}
	}
	return core.OK()
}

func (s *ScriptedEvaluator) Reset() { s.ResetCalls.Add(1) }

func (s *ScriptedEvaluator) CacheInputs() []string { return s.inputs }

func (s *ScriptedEvaluator) Cacheable() bool { return s.cacheable }
