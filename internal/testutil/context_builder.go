package testutil

import (
	"github.com/hupe1980/probmesh/core"
	"github.com/hupe1980/probmesh/tracker"
)

// ContextBuilder helps construct and register evaluation contexts with
// fluent chaining for tests.
// Example:
//
//	ec := NewContextBuilder(store, "spawn").Float("Level", 12).Build(t)
type ContextBuilder struct {
	store    *tracker.Store
	parentID string
	reason   string
	metadata map[string]core.Value
}

// NewContextBuilder creates a builder that registers the built context
// with the given store.
func NewContextBuilder(store *tracker.Store, reason string) *ContextBuilder {
	return &ContextBuilder{store: store, reason: reason, metadata: map[string]core.Value{}}
}

// Parent makes the built context a child of parentID (chainable).
func (b *ContextBuilder) Parent(parentID string) *ContextBuilder {
	b.parentID = parentID
	return b
}

// Meta sets a metadata value (chainable).
func (b *ContextBuilder) Meta(key string, v core.Value) *ContextBuilder {
	b.metadata[key] = v
	return b
}

// Float sets a float metadata value (chainable).
func (b *ContextBuilder) Float(key string, f float64) *ContextBuilder {
	return b.Meta(key, core.Float(f))
}

// String sets a string metadata value (chainable).
func (b *ContextBuilder) String(key, s string) *ContextBuilder {
	return b.Meta(key, core.String(s))
}

// Build registers the context and fails the test on registration errors.
func (b *ContextBuilder) Build(t testingT) *core.Context {
	t.Helper()

	var ec *core.Context
	if b.parentID != "" {
		ec = b.store.CreateChild(b.parentID, b.reason)
	} else {
		ec = b.store.Create(b.reason)
	}

	for k, v := range b.metadata {
		ec.Set(k, v)
	}

	if err := b.store.Register(ec); err != nil {
		t.Fatalf("register context: %v", err)
	}

	return ec
}

// testingT is the subset of *testing.T the builders need.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}
