// Package tracker implements the hierarchical context tracking store. It
// owns registered contexts and their parent/child forest and provides
// registration with integrity checks, ancestry queries, read-time metadata
// inheritance, criteria search, and age/capacity-based cleanup.
//
// All store operations are internally synchronized and safe to call from any
// goroutine. Metadata on an individual context is not synchronized by the
// store; see core.Context for the documented safe mutation pattern.
package tracker
