// Package engine implements the orchestration layer of ProbMesh.
//
// The Engine is a thin coordinator: it owns no evaluation logic of its own
// and instead wires the subsystems together per call: validate the input,
// resolve the evaluator set (global registry, a tag, or an ad hoc instance),
// acquire pooled instances, run the pipeline chain with the result cache
// attached, record metrics, and release what it acquired.
//
// # Core Responsibilities
//
//   - Evaluator registry: thread-safe tag-based registration of evaluator
//     factories with priorities
//   - Call orchestration: sync, single-tag, ad hoc, batch and async
//     execution with per-call timeout
//   - Resource management: pool checkout/release around every call, with
//     configurable fallback when a bucket is exhausted
//   - Observability: aggregate counters plus Prometheus collectors
//
// # Concurrency Model
//
//   - All Engine methods are safe for concurrent use
//   - Batch items fan out on bounded goroutines (errgroup)
//   - Async evaluations run on their own goroutine with a cancellation
//     handle; cancellation is best-effort and checked between evaluators
//   - Timeouts are cooperative: a running evaluator is never interrupted
//     mid-phase
//
// # Error Handling
//
// Evaluation failures are values: every call returns a core.Result whose
// Failure field carries a typed core.Failure. Go errors are reserved for
// call-setup problems (unknown tag, cancelled context) and infrastructure
// faults.
package engine
