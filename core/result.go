package core

import "time"

// Phase identifies a step of the evaluator state machine. Phases are
// strictly sequential per invocation: PreEvaluate → Evaluate → PostEvaluate
// → Done, with Failed as an absorbing state reachable from any of the three.
type Phase int

const (
	// PhasePreEvaluate is the validation/setup phase.
	PhasePreEvaluate Phase = iota
	// PhaseEvaluate is the sole phase permitted to change the probability.
	PhaseEvaluate
	// PhasePostEvaluate is the side-effect phase.
	PhasePostEvaluate
	// PhaseDone marks a completed invocation.
	PhaseDone
	// PhaseFailed marks an aborted invocation.
	PhaseFailed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhasePreEvaluate:
		return "pre_evaluate"
	case PhaseEvaluate:
		return "evaluate"
	case PhasePostEvaluate:
		return "post_evaluate"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PhaseOutcome records the result of one executed phase.
type PhaseOutcome struct {
	Phase   Phase
	Success bool
	Failure *Failure
	Elapsed time.Duration
}

// EvaluatorTrace is the per-evaluator diagnostic record attached to a
// Result: which evaluator ran, at what position, with what per-phase
// outcome.
type EvaluatorTrace struct {
	// Evaluator is the identity key.
	Evaluator string
	// Priority the evaluator ran under.
	Priority Priority
	// InputProbability entering this evaluator.
	InputProbability float64
	// OutputProbability leaving this evaluator (equals the input when the
	// evaluator was skipped or failed).
	OutputProbability float64
	// Skipped is true when a prior failure aborted the chain before this
	// evaluator ran.
	Skipped bool
	// CacheHit is true when the result was served from the evaluation
	// cache and no phase executed.
	CacheHit bool
	// Phases holds the outcomes of the phases that executed, in order.
	Phases []PhaseOutcome
}

// Failed reports whether the evaluator's contribution failed, meaning its
// pre-evaluate or evaluate phase did not succeed. A post-evaluate failure is
// recorded on the trail but never reverts a successful evaluate, so it does
// not count here.
func (t EvaluatorTrace) Failed() bool {
	for _, p := range t.Phases {
		if !p.Success && p.Phase != PhasePostEvaluate {
			return true
		}
	}
	return false
}

// FirstFailure returns the failure of the earliest non-successful phase,
// nil when every phase succeeded.
func (t EvaluatorTrace) FirstFailure() *Failure {
	for _, p := range t.Phases {
		if !p.Success {
			return p.Failure
		}
	}
	return nil
}

// Result is the outcome of one evaluation call.
//
// A failed evaluation still carries the last-known-good probability (the
// base probability when nothing succeeded), never an undefined value.
type Result struct {
	// Success reports whether the call succeeded per the configured chain
	// policy.
	Success bool
	// Probability is the output value.
	Probability float64
	// Failure carries the first (policy-relevant) typed failure, nil on
	// success.
	Failure *Failure
	// ContextID references the context the evaluation ran against,
	// including one newly created by the engine for context-less calls.
	ContextID string
	// Trail lists the consulted evaluators in execution order.
	Trail []EvaluatorTrace
}
