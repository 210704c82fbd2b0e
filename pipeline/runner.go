package pipeline

import (
	"time"

	"github.com/hupe1980/probmesh/core"
	"github.com/hupe1980/probmesh/logging"
)

// Runner drives one evaluator through its phase sequence. Runners are
// stateless and safe for concurrent use; per-invocation state lives in the
// returned trace.
type Runner struct {
	logger logging.Logger
}

// NewRunner constructs a Runner. A nil logger is replaced by NoOp.
func NewRunner(logger logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Runner{logger: logger}
}

// RunOne executes the full PreEvaluate → Evaluate → PostEvaluate sequence of
// a single evaluator against the given probability and context.
//
// Behavior per the phase contract:
//   - A pre-evaluate failure skips the remaining phases; the evaluator
//     contributes no change and the trace carries the failure.
//   - An evaluate result outside [0,1] is surfaced as
//     FailureInvalidProbability and the input value is preserved; the
//     runner never clamps on the evaluator's behalf.
//   - A post-evaluate failure is logged but does not revert a successful
//     evaluate; the overall outcome stays successful.
//
// The returned probability is the evaluator's output on success and the
// unchanged input otherwise.
func (r *Runner) RunOne(ev core.Evaluator, probability float64, ec *core.Context) (float64, core.EvaluatorTrace) {
	key := ev.Identity().Key()
	trace := core.EvaluatorTrace{
		Evaluator:         key,
		InputProbability:  probability,
		OutputProbability: probability,
	}

	// PreEvaluate: validation and setup only.
	start := time.Now()
	pre := ev.PreEvaluate(ec)
	trace.Phases = append(trace.Phases, phaseOutcome(core.PhasePreEvaluate, pre, key, start))
	if !pre.Success {
		r.logger.Debug("evaluator pre-evaluate failed", "evaluator", key, "failure", pre.Failure.Error())
		return probability, trace
	}

	// Evaluate: the sole phase permitted to change the value.
	start = time.Now()
	out, evalRes := ev.Evaluate(probability, ec)
	if evalRes.Success && (out < 0 || out > 1) {
		evalRes = core.Fail(core.FailureInvalidProbability, "evaluator produced out-of-range output %v", out)
	}
	trace.Phases = append(trace.Phases, phaseOutcome(core.PhaseEvaluate, evalRes, key, start))

	success := evalRes.Success
	if success {
		trace.OutputProbability = out
	} else {
		r.logger.Debug("evaluator evaluate failed", "evaluator", key, "failure", evalRes.Failure.Error())
	}

	// PostEvaluate: side effects only. Failure is logged, never reverts.
	start = time.Now()
	post := ev.PostEvaluate(ec, success)
	trace.Phases = append(trace.Phases, phaseOutcome(core.PhasePostEvaluate, post, key, start))
	if !post.Success {
		r.logger.Warn("evaluator post-evaluate failed", "evaluator", key, "failure", post.Failure.Error())
	}

	return trace.OutputProbability, trace
}

func phaseOutcome(phase core.Phase, res core.OperationResult, evaluator string, start time.Time) core.PhaseOutcome {
	out := core.PhaseOutcome{Phase: phase, Success: res.Success, Failure: res.Failure, Elapsed: time.Since(start)}
	if out.Failure != nil && out.Failure.Evaluator == "" {
		out.Failure.Evaluator = evaluator
	}
	return out
}
