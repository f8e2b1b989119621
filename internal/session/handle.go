// Package session owns the per-tenant session lifecycle: the registry of
// live handles, pairing debounce and timeout supervision, and the state
// machine driven by the protocol client's events.
package session

import (
	"sync"
	"time"

	"github.com/zapgate-ai/zapgate/internal/chat"
)

// State is a session handle's lifecycle state.
type State string

const (
	StateConnecting    State = "CONNECTING"
	StateQRPending     State = "QR_PENDING"
	StateAuthenticated State = "AUTHENTICATED"
	StateReady         State = "READY"
	StateAuthFailed    State = "AUTH_FAILED"
	StateDisconnected  State = "DISCONNECTED"
)

// live reports whether a handle in this state still owns its client.
func (s State) live() bool {
	return s != StateAuthFailed && s != StateDisconnected
}

// Handle is one tenant's active or in-progress connection. The client is
// exclusively owned by the handle; teardown destroys it.
type Handle struct {
	TenantID  string
	Client    chat.Client
	CreatedAt time.Time

	mu      sync.Mutex
	state   State
	account chat.AccountInfo
}

// NewHandle creates a handle in CONNECTING state.
func NewHandle(tenantID string, client chat.Client) *Handle {
	return &Handle{
		TenantID:  tenantID,
		Client:    client,
		CreatedAt: time.Now(),
		state:     StateConnecting,
	}
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// SetState records a lifecycle transition.
func (h *Handle) SetState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// SetAccount records the connected account's identity.
func (h *Handle) SetAccount(info chat.AccountInfo) {
	h.mu.Lock()
	h.account = info
	h.mu.Unlock()
}

// Account returns the recorded account identity, if any.
func (h *Handle) Account() chat.AccountInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.account
}
