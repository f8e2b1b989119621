package session

import (
	"errors"
	"sort"
	"sync"
)

// ErrAlreadyPresent is returned by Put when a live handle already exists
// for the tenant.
var ErrAlreadyPresent = errors.New("session already present")

// Registry is the single authoritative mapping of tenant id to session
// handle. At most one live handle exists per tenant at any instant. No
// Registry operation performs network I/O; client destruction happens
// outside the map lock, in the caller's start/stop sequence.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle

	// startMu serializes start/stop sequences per tenant so the
	// destroy-then-recreate window cannot interleave for one tenant
	// while other tenants proceed unblocked.
	startMu sync.Mutex
	starts  map[string]*sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
		starts:  make(map[string]*sync.Mutex),
	}
}

// LockTenant returns the mutex serializing lifecycle sequences for one
// tenant. The caller locks it for the whole start/stop sequence.
func (r *Registry) LockTenant(tenantID string) *sync.Mutex {
	r.startMu.Lock()
	defer r.startMu.Unlock()
	mu, ok := r.starts[tenantID]
	if !ok {
		mu = &sync.Mutex{}
		r.starts[tenantID] = mu
	}
	return mu
}

// Get returns the handle for a tenant, if present.
func (r *Registry) Get(tenantID string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[tenantID]
	return h, ok
}

// Put inserts a handle. Returns ErrAlreadyPresent if a handle in a live
// state already occupies the slot.
func (r *Registry) Put(tenantID string, h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.handles[tenantID]; ok && existing.State().live() {
		return ErrAlreadyPresent
	}
	r.handles[tenantID] = h
	return nil
}

// Remove deletes a tenant's entry. Idempotent.
func (r *Registry) Remove(tenantID string) {
	r.mu.Lock()
	delete(r.handles, tenantID)
	r.mu.Unlock()
}

// RemoveIf deletes the entry only if it still holds the given handle, so
// a teardown finishing late cannot evict a superseding session.
func (r *Registry) RemoveIf(tenantID string, h *Handle) {
	r.mu.Lock()
	if r.handles[tenantID] == h {
		delete(r.handles, tenantID)
	}
	r.mu.Unlock()
}

// Replace swaps in a new handle regardless of what occupies the slot. The
// caller has already destroyed the old handle's client.
func (r *Registry) Replace(tenantID string, h *Handle) {
	r.mu.Lock()
	r.handles[tenantID] = h
	r.mu.Unlock()
}

// Tenants returns the ids of all registered sessions, sorted.
func (r *Registry) Tenants() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
