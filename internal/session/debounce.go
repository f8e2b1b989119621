package session

import (
	"sync"
	"time"
)

// DebounceGuard suppresses re-emission of an identical pairing secret for
// the same tenant within a cooldown window. The underlying client may
// emit the same pairing event repeatedly while waiting for the scan.
type DebounceGuard struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]pairingRecord
}

type pairingRecord struct {
	secret    string
	emittedAt time.Time
}

// NewDebounceGuard creates a guard with the given cooldown window.
func NewDebounceGuard(window time.Duration) *DebounceGuard {
	return &DebounceGuard{
		window: window,
		last:   make(map[string]pairingRecord),
	}
}

// ShouldEmit reports whether the secret should be published for the
// tenant, and records it as the new baseline when it returns true.
func (g *DebounceGuard) ShouldEmit(tenantID, secret string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rec, ok := g.last[tenantID]; ok {
		if rec.secret == secret && now.Sub(rec.emittedAt) < g.window {
			return false
		}
	}
	g.last[tenantID] = pairingRecord{secret: secret, emittedAt: now}
	return true
}

// Clear drops the tenant's baseline. Called when the handle leaves
// QR_PENDING.
func (g *DebounceGuard) Clear(tenantID string) {
	g.mu.Lock()
	delete(g.last, tenantID)
	g.mu.Unlock()
}
