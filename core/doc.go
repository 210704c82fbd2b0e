// Package core provides the foundational domain types and interfaces used by
// ProbMesh. It defines the core abstractions for:
//
//   - Contexts (hierarchical nodes of inheritable key/value state)
//   - Values (the closed typed union stored in context metadata)
//   - Evaluators (pluggable three-phase probability modifiers)
//   - Results (per-call outcome plus per-evaluator diagnostic trail)
//   - The failure taxonomy shared by the store, pool, cache and pipeline
//
// The package intentionally keeps implementation concerns (context tracking,
// pooling, caching, orchestration) out of scope, exposing small types and
// interfaces so the surrounding packages can be swapped or extended. All
// exported identifiers include concise documentation to aid discoverability
// and external consumption.
package core
