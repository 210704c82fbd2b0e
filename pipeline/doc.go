// Package pipeline executes evaluators through their three-phase state
// machine (pre-evaluate, evaluate, post-evaluate) and composes multiple
// evaluators into a priority-ordered chain with configurable failure
// propagation.
//
// Each evaluator runs its full phase sequence before the next begins; the
// output probability of one becomes the input of the next. Failures are
// captured as typed results on the diagnostic trail, never thrown across
// the pipeline boundary.
package pipeline
