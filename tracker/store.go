package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/probmesh/core"
	"github.com/hupe1980/probmesh/logging"
)

// record pairs a registered context with its child index so leaf checks stay
// O(1) during cleanup.
type record struct {
	ctx      *core.Context
	children map[string]struct{}
}

// Options holds dependency overrides passed to New().
type Options struct {
	// Logger receives cleanup and integrity diagnostics. Defaults to NoOp.
	Logger logging.Logger
}

// Store is the process-local context tracking store. It is safe for
// concurrent access; a single RWMutex guards the registration map, which is
// sufficient at expected hierarchy sizes since lookups dominate.
//
// Registered contexts are logically shared: Get returns the live pointer,
// and callers treat registered metadata as append-only by convention.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
	logger  logging.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs an empty context store.
func New(optFns ...func(o *Options)) *Store {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store{
		records: make(map[string]*record),
		logger:  opts.Logger,
		stopCh:  make(chan struct{}),
	}
}

// Create builds an unregistered root context. It does not mutate store
// state; the context becomes visible to concurrent readers only on Register.
func (s *Store) Create(reason string) *core.Context {
	return core.NewContext(reason)
}

// CreateChild builds an unregistered context parented to parentID. The
// parent is not validated here; Register performs the integrity checks.
func (s *Store) CreateChild(parentID, reason string) *core.Context {
	return core.NewChildContext(parentID, reason)
}

// Register makes the context visible to concurrent readers. It fails with
// core.ErrDuplicateID when the id is already registered and with
// core.ErrDanglingParent when a parent id is set but not registered. A
// parent chain that would reach the context itself fails with core.ErrCycle
// rather than corrupting the hierarchy; the registered set is unchanged
// after any failed call.
func (s *Store) Register(ctx *core.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[ctx.ID]; exists {
		return fmt.Errorf("%w: %s", core.ErrDuplicateID, ctx.ID)
	}

	if ctx.ParentID != "" {
		if ctx.ParentID == ctx.ID {
			return fmt.Errorf("%w: %s is its own parent", core.ErrCycle, ctx.ID)
		}
		parent, ok := s.records[ctx.ParentID]
		if !ok {
			return fmt.Errorf("%w: %s -> %s", core.ErrDanglingParent, ctx.ID, ctx.ParentID)
		}
		// Walk the parent chain. A freshly created id cannot appear in it,
		// but callers can hand-build contexts with recycled ids.
		for cur := parent; cur.ctx.ParentID != ""; {
			if cur.ctx.ParentID == ctx.ID {
				return fmt.Errorf("%w: %s reachable from parent chain of %s", core.ErrCycle, ctx.ID, ctx.ParentID)
			}
			next, ok := s.records[cur.ctx.ParentID]
			if !ok {
				break
			}
			cur = next
		}
		parent.children[ctx.ID] = struct{}{}
	}

	s.records[ctx.ID] = &record{ctx: ctx, children: make(map[string]struct{})}

	return nil
}

// Get returns the registered context for id. The returned pointer is the
// live, logically shared instance.
func (s *Store) Get(id string) (*core.Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return rec.ctx, true
}

// Exists reports whether id is currently registered.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// HasChildren reports whether id has at least one registered child.
func (s *Store) HasChildren(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	return ok && len(rec.children) > 0
}

// EffectiveMetadata returns the value visible at id for key: the context's
// own entry if present, else the nearest ancestor's entry, else absent. The
// walk composes at read time; parent data is never physically copied into
// children, but the result is identical to copy-then-override semantics.
func (s *Store) EffectiveMetadata(id, key string) (core.Value, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for rec, ok := s.records[id]; ok; rec, ok = s.records[rec.ctx.ParentID] {
		if v, found := rec.ctx.Metadata[key]; found {
			return v, true
		}
		if rec.ctx.ParentID == "" {
			break
		}
	}

	return nil, false
}

// EffectiveFloat reads the effective value of key as a float. A missing key
// fails with core.ErrKeyMissing and a non-float entry with
// core.ErrValueKind.
func (s *Store) EffectiveFloat(id, key string) (float64, error) {
	v, ok := s.EffectiveMetadata(id, key)
	if !ok {
		return 0, core.ErrNotFoundKey(key)
	}
	return core.AsFloat(v)
}

// EffectiveString reads the effective value of key as a string.
func (s *Store) EffectiveString(id, key string) (string, error) {
	v, ok := s.EffectiveMetadata(id, key)
	if !ok {
		return "", core.ErrNotFoundKey(key)
	}
	return core.AsString(v)
}

// Ancestors returns the ancestry chain of id, nearest first. The walk stops
// at the root or at a dangling parent reference.
func (s *Store) Ancestors(id string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}

	var chain []string
	for rec.ctx.ParentID != "" {
		parent, ok := s.records[rec.ctx.ParentID]
		if !ok {
			break
		}
		chain = append(chain, parent.ctx.ID)
		rec = parent
	}

	return chain, nil
}

// RootOf returns the root of id's ancestry chain (id itself for roots).
func (s *Store) RootOf(id string) (string, error) {
	chain, err := s.Ancestors(id)
	if err != nil {
		return "", err
	}
	if len(chain) == 0 {
		return id, nil
	}
	return chain[len(chain)-1], nil
}

// IsAncestorOf reports whether a appears in b's ancestry chain.
func (s *Store) IsAncestorOf(a, b string) bool {
	chain, err := s.Ancestors(b)
	if err != nil {
		return false
	}
	for _, id := range chain {
		if id == a {
			return true
		}
	}
	return false
}

// Remove unregisters id. Children of the removed context become orphans;
// CleanupOrphaned reaps them on its next pass.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}

	s.removeLocked(id, rec)

	return nil
}

// removeLocked deletes a record and detaches it from its parent's child
// index; caller must hold the write lock.
func (s *Store) removeLocked(id string, rec *record) {
	if rec.ctx.ParentID != "" {
		if parent, ok := s.records[rec.ctx.ParentID]; ok {
			delete(parent.children, id)
		}
	}
	delete(s.records, id)
}

// Stats summarizes the current store population.
type Stats struct {
	// ActiveCount is the number of registered contexts.
	ActiveCount int
	// AverageAge is the mean age of registered contexts.
	AverageAge time.Duration
	// EstimatedBytes approximates memory held by registered contexts.
	EstimatedBytes int64
}

// Stats returns a point-in-time population summary.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{ActiveCount: len(s.records)}
	if len(s.records) == 0 {
		return st
	}

	var totalAge time.Duration
	now := time.Now()
	for _, rec := range s.records {
		totalAge += now.Sub(rec.ctx.CreatedAt)
		st.EstimatedBytes += estimateContextBytes(rec.ctx)
	}
	st.AverageAge = totalAge / time.Duration(len(s.records))

	return st
}

// estimateContextBytes approximates the heap footprint of one context.
// Estimates are heuristic; allocator overhead and alignment are ignored.
func estimateContextBytes(ctx *core.Context) int64 {
	const recordOverhead = 160

	total := int64(recordOverhead + len(ctx.ID) + len(ctx.ParentID) + len(ctx.Reason))
	for k, v := range ctx.Metadata {
		total += int64(len(k)) + estimateValueBytes(v)
	}

	return total
}

func estimateValueBytes(v core.Value) int64 {
	switch val := v.(type) {
	case core.Float, core.Int:
		return 8
	case core.Bool:
		return 1
	case core.String:
		return int64(len(val)) + 16
	case core.Name:
		return int64(len(val)) + 16
	case core.Vec3, core.Rotation:
		return 24
	case core.Transform:
		return 72
	case core.Blob:
		return int64(len(val.TypeTag)) + 64
	default:
		return 16
	}
}
