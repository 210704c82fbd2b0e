package tracker

import (
	"time"

	"github.com/hupe1980/probmesh/core"
)

// Criteria narrows a Search over the registered contexts. Zero-value fields
// do not constrain the result.
type Criteria struct {
	// MinAge keeps contexts at least this old.
	MinAge time.Duration
	// MaxAge keeps contexts at most this old (zero = unbounded).
	MaxAge time.Duration
	// HasChildren, when non-nil, keeps contexts whose child count matches.
	HasChildren *bool
	// Metadata keeps contexts whose own (non-inherited) entries match every
	// listed key/value pair. Blob values match on their type tag.
	Metadata map[string]core.Value
	// Predicate is an optional caller-supplied filter. It runs against a
	// snapshot taken under the store lock, so arbitrarily expensive
	// predicates never stall concurrent registration.
	Predicate func(*core.Context) bool
}

// searchCandidate carries the locked-phase facts a criteria check needs so
// the predicate phase can run lock-free.
type searchCandidate struct {
	ctx         *core.Context
	age         time.Duration
	hasChildren bool
}

// Search returns the registered contexts matching the criteria. Age, child
// and metadata constraints are evaluated under the read lock against live
// records; the caller predicate is applied afterwards to cloned snapshots.
func (s *Store) Search(c Criteria) []*core.Context {
	now := time.Now()

	s.mu.RLock()
	candidates := make([]searchCandidate, 0, len(s.records))
	for _, rec := range s.records {
		age := now.Sub(rec.ctx.CreatedAt)
		if c.MinAge > 0 && age < c.MinAge {
			continue
		}
		if c.MaxAge > 0 && age > c.MaxAge {
			continue
		}
		if c.HasChildren != nil && *c.HasChildren != (len(rec.children) > 0) {
			continue
		}
		if !matchMetadata(rec.ctx, c.Metadata) {
			continue
		}
		candidates = append(candidates, searchCandidate{ctx: rec.ctx.Clone(), age: age, hasChildren: len(rec.children) > 0})
	}
	s.mu.RUnlock()

	results := make([]*core.Context, 0, len(candidates))
	for _, cand := range candidates {
		if c.Predicate != nil && !c.Predicate(cand.ctx) {
			continue
		}
		results = append(results, cand.ctx)
	}

	return results
}

func matchMetadata(ctx *core.Context, required map[string]core.Value) bool {
	for key, want := range required {
		have, ok := ctx.Metadata[key]
		if !ok || !valueEqual(have, want) {
			return false
		}
	}
	return true
}

// valueEqual compares two metadata values without panicking on uncomparable
// blob payloads: blobs are considered equal when their type tags match.
func valueEqual(a, b core.Value) bool {
	if a.Kind() != b.Kind() {
		return false
	}

	switch av := a.(type) {
	case core.Blob:
		return av.TypeTag == b.(core.Blob).TypeTag
	case core.Float:
		return av == b.(core.Float)
	case core.Int:
		return av == b.(core.Int)
	case core.Bool:
		return av == b.(core.Bool)
	case core.String:
		return av == b.(core.String)
	case core.Name:
		return av == b.(core.Name)
	case core.Vec3:
		return av == b.(core.Vec3)
	case core.Rotation:
		return av == b.(core.Rotation)
	case core.Transform:
		return av == b.(core.Transform)
	default:
		return false
	}
}
