package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/probmesh/core"
)

// ErrUnknownTag is returned when a call names a tag no evaluator has been
// registered under.
var ErrUnknownTag = fmt.Errorf("no evaluator registered for tag")

// registration is one entry of the global evaluator registry.
type registration struct {
	tag      string
	identity core.Identity
	factory  core.Factory
	priority core.Priority
	seq      int
}

// registry is the tag-keyed set of globally registered evaluators. Global
// evaluators participate in every Evaluate call, ordered by priority with
// registration order breaking ties.
type registry struct {
	mu      sync.RWMutex
	entries map[string]*registration
	nextSeq int
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*registration)}
}

// register installs a factory under tag, replacing any previous
// registration. The identity is probed from one constructed instance so the
// pool can bucket by it.
func (r *registry) register(tag string, factory core.Factory, priority core.Priority) *registration {
	identity := factory().Identity()

	r.mu.Lock()
	defer r.mu.Unlock()

	reg := &registration{tag: tag, identity: identity, factory: factory, priority: priority, seq: r.nextSeq}
	r.nextSeq++
	r.entries[tag] = reg

	return reg
}

func (r *registry) unregister(tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[tag]
	delete(r.entries, tag)

	return ok
}

func (r *registry) lookup(tag string) (*registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[tag]

	return reg, ok
}

// snapshot returns the registrations ordered by priority (critical first),
// ties broken by registration sequence. The slice is a copy; concurrent
// registration does not perturb a call already in flight.
func (r *registry) snapshot() []*registration {
	r.mu.RLock()
	regs := make([]*registration, 0, len(r.entries))
	for _, reg := range r.entries {
		regs = append(regs, reg)
	}
	r.mu.RUnlock()

	sort.Slice(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority < regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})

	return regs
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
