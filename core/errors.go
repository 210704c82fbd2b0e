package core

import "fmt"

var (
	// ErrDuplicateID is returned when registering a context whose id is
	// already registered.
	ErrDuplicateID = fmt.Errorf("context id already registered")

	// ErrDanglingParent is returned when registering a context whose parent
	// id does not resolve to a currently registered context.
	ErrDanglingParent = fmt.Errorf("parent context not registered")

	// ErrCycle is returned when an operation would introduce a cycle into a
	// context's ancestry chain.
	ErrCycle = fmt.Errorf("context ancestry cycle")

	// ErrNotFound is returned when a context id does not resolve.
	ErrNotFound = fmt.Errorf("context not found")

	// ErrPoolExhausted is returned by the evaluator pool when the per-type
	// instance cap has been reached and no released instance is available.
	ErrPoolExhausted = fmt.Errorf("evaluator pool exhausted")

	// ErrNotCheckedOut is returned when releasing an instance the pool did
	// not hand out (or that was already released).
	ErrNotCheckedOut = fmt.Errorf("instance not checked out")

	// ErrKeyMissing is returned when a metadata key is absent from a
	// context (and, for effective reads, from its whole ancestry chain).
	ErrKeyMissing = fmt.Errorf("metadata key missing")

	// ErrValueKind is returned when a metadata value is read with the wrong
	// expected kind.
	ErrValueKind = fmt.Errorf("metadata value kind mismatch")

	// ErrBlobType is returned when a blob payload downcast does not match
	// the stored payload type.
	ErrBlobType = fmt.Errorf("blob payload type mismatch")
)

// ErrNotFoundKey wraps ErrKeyMissing with the offending key name.
func ErrNotFoundKey(key string) error {
	return fmt.Errorf("%w: %q", ErrKeyMissing, key)
}
