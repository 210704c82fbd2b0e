package core

import (
	"time"

	"github.com/google/uuid"
)

// Context is a node of inheritable key/value state tied to one evaluation
// call or sub-step. Contexts form a parent/child forest managed by the
// tracker store.
//
// Contract:
//   - ID is assigned at creation and immutable
//   - ParentID is empty for roots
//   - Reason is a creation label for debugging/audit only, never interpreted
//   - Metadata holds this node's own entries; the effective view of a key
//     additionally walks the ancestry chain (tracker.EffectiveMetadata)
//
// Concurrency: Metadata is intentionally NOT synchronized. The safe pattern
// is to fully populate metadata before registering the context, then treat
// it as read-mostly. Concurrent mutation of a registered context's metadata
// is a caller hazard requiring caller-supplied locking.
type Context struct {
	ID        string
	ParentID  string
	Reason    string
	CreatedAt time.Time
	Metadata  map[string]Value
}

// NewContext creates an unregistered root context. The value can be freely
// copied and passed around until it is registered with the tracker.
func NewContext(reason string) *Context {
	return &Context{
		ID:        uuid.NewString(),
		Reason:    reason,
		CreatedAt: time.Now(),
		Metadata:  map[string]Value{},
	}
}

// NewChildContext creates an unregistered context parented to parentID.
// Registration fails with ErrDanglingParent unless the parent is registered
// at that point.
func NewChildContext(parentID, reason string) *Context {
	ctx := NewContext(reason)
	ctx.ParentID = parentID
	return ctx
}

// Set stores a metadata entry on this context, overriding any inherited
// entry for the same key.
func (c *Context) Set(key string, v Value) { c.Metadata[key] = v }

// Get returns this context's own entry for key. It does not consult
// ancestors; use the tracker for effective reads.
func (c *Context) Get(key string) (Value, bool) {
	v, ok := c.Metadata[key]
	return v, ok
}

// Float reads this context's own entry for key as a float.
func (c *Context) Float(key string) (float64, error) {
	v, ok := c.Metadata[key]
	if !ok {
		return 0, ErrNotFoundKey(key)
	}
	return AsFloat(v)
}

// Int reads this context's own entry for key as an integer.
func (c *Context) Int(key string) (int64, error) {
	v, ok := c.Metadata[key]
	if !ok {
		return 0, ErrNotFoundKey(key)
	}
	return AsInt(v)
}

// Bool reads this context's own entry for key as a boolean.
func (c *Context) Bool(key string) (bool, error) {
	v, ok := c.Metadata[key]
	if !ok {
		return false, ErrNotFoundKey(key)
	}
	return AsBool(v)
}

// String reads this context's own entry for key as a string.
func (c *Context) String(key string) (string, error) {
	v, ok := c.Metadata[key]
	if !ok {
		return "", ErrNotFoundKey(key)
	}
	return AsString(v)
}

// Clone returns a deep copy of the context safe for independent mutation.
// Cloning a registered context produces an unregistered value with the same
// id; re-registering it fails with ErrDuplicateID.
func (c *Context) Clone() *Context {
	clone := &Context{
		ID:        c.ID,
		ParentID:  c.ParentID,
		Reason:    c.Reason,
		CreatedAt: c.CreatedAt,
		Metadata:  make(map[string]Value, len(c.Metadata)),
	}
	for k, v := range c.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}

// Age returns the elapsed time since the context was created.
func (c *Context) Age() time.Duration { return time.Since(c.CreatedAt) }
