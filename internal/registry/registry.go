// Package registry maps caller-assigned engine ids to live engines.
package registry

import (
	"maps"
	"slices"
	"sync"

	"github.com/roach88/emdb/internal/engine"
)

// Registry holds connected engines keyed by the id the caller chose.
// Its lock covers only the map; engine work never runs under it.
type Registry struct {
	mu      sync.RWMutex
	engines map[int32]*engine.Engine
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		engines: make(map[int32]*engine.Engine),
	}
}

// Insert stores e under id and returns the engine it replaced, if any.
// The caller owns the replaced engine and should dispose it.
func (r *Registry) Insert(id int32, e *engine.Engine) *engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.engines[id]
	r.engines[id] = e
	return prev
}

// Remove deletes id and returns the engine that was stored, or nil.
func (r *Registry) Remove(id int32) *engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.engines[id]
	delete(r.engines, id)
	return e
}

// Lookup returns the engine registered under id.
func (r *Registry) Lookup(id int32) (*engine.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[id]
	if !ok {
		return nil, engine.ErrEngineNotFound
	}
	return e, nil
}

// Len returns the number of registered engines.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []int32 {
	r.mu.RLock()
	ids := make([]int32, 0, len(r.engines))
	for id := range r.engines {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	slices.Sort(ids)
	return ids
}

// Drain removes every engine and returns them for disposal.
func (r *Registry) Drain() []*engine.Engine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*engine.Engine, 0, len(r.engines))
	for _, id := range slices.Sorted(maps.Keys(r.engines)) {
		out = append(out, r.engines[id])
	}
	clear(r.engines)
	return out
}
