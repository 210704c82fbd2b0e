package core

import "fmt"

// FailureKind classifies why an evaluation (or one of its phases) failed.
type FailureKind int

const (
	// FailureInvalidProbability signals an input outside [0,1] or an
	// evaluator that produced an out-of-range output.
	FailureInvalidProbability FailureKind = iota
	// FailureInvalidContext signals required metadata that is missing or of
	// the wrong kind.
	FailureInvalidContext
	// FailureDuplicateID signals a context store integrity violation on
	// register (id already present).
	FailureDuplicateID
	// FailureDanglingParent signals a context store integrity violation on
	// register (parent id unresolved).
	FailureDanglingParent
	// FailurePoolExhausted signals that no pooled evaluator instance could
	// be acquired.
	FailurePoolExhausted
	// FailureTimeout signals that the per-call deadline elapsed before the
	// pipeline completed.
	FailureTimeout
	// FailureEvaluator signals an evaluator-reported domain error.
	FailureEvaluator
)

// String returns the string representation of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureInvalidProbability:
		return "invalid_probability"
	case FailureInvalidContext:
		return "invalid_context"
	case FailureDuplicateID:
		return "duplicate_id"
	case FailureDanglingParent:
		return "dangling_parent"
	case FailurePoolExhausted:
		return "pool_exhausted"
	case FailureTimeout:
		return "timeout"
	case FailureEvaluator:
		return "evaluator_failure"
	default:
		return "unknown"
	}
}

// Failure is a typed evaluation failure. It is carried inside results rather
// than thrown across the pipeline boundary; phase failures never panic.
type Failure struct {
	// Kind classifies the failure.
	Kind FailureKind
	// Evaluator is the identity key of the evaluator that reported the
	// failure, empty for failures raised outside any evaluator.
	Evaluator string
	// Message is a human-readable explanation.
	Message string
	// Err optionally wraps an underlying cause.
	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Evaluator != "" {
		return fmt.Sprintf("%s: %s (%s)", f.Kind, f.Message, f.Evaluator)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the wrapped cause, if any.
func (f *Failure) Unwrap() error { return f.Err }

// NewFailure constructs a Failure with a formatted message.
func NewFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// OperationResult is the outcome of a single pipeline phase. Phases report
// failures as values; the pipeline aggregates them per policy.
type OperationResult struct {
	// Success reports whether the phase completed without failure.
	Success bool
	// Failure carries the typed failure when Success is false.
	Failure *Failure
}

// OK returns a successful OperationResult.
func OK() OperationResult { return OperationResult{Success: true} }

// Fail returns a failed OperationResult with a formatted message.
func Fail(kind FailureKind, format string, args ...any) OperationResult {
	return OperationResult{Failure: NewFailure(kind, format, args...)}
}

// FailErr returns a failed OperationResult wrapping err.
func FailErr(kind FailureKind, err error) OperationResult {
	return OperationResult{Failure: &Failure{Kind: kind, Message: err.Error(), Err: err}}
}
