// Package tabledir is the coordinator's table registry: a soft,
// in-memory cache of which table names have been created. It is
// consulted only on writes — reads, deletes, HEADs and quorum reads
// deliberately skip it, so a coordinator restart never orphans data a
// shard already durably holds.
package tabledir

import "sync"

// Registry tracks created table names. Re-creating an existing name is
// accepted as a no-op (see DESIGN.md for the Open Question resolution).
type Registry struct {
	mu     sync.RWMutex
	tables map[string]struct{}
}

// New creates an empty table registry.
func New() *Registry {
	return &Registry{tables: make(map[string]struct{})}
}

// Create records name. Idempotent: creating an already-known table is a
// no-op, not an error.
func (r *Registry) Create(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[name] = struct{}{}
}

// Exists is a pure predicate over the registered table names.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tables[name]
	return ok
}
