package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/zapgate-ai/zapgate/internal/chat"
	"github.com/zapgate-ai/zapgate/internal/eventbus"
	"github.com/zapgate-ai/zapgate/internal/qr"
	"github.com/zapgate-ai/zapgate/internal/webhook"
)

// Notifier receives lifecycle notifications for the control-plane
// connection that requested the session start.
type Notifier interface {
	QR(dataURL string)
	Msg(text string)
	Ready(text string)
	State(state string)
	Error(text string)
}

// MessageHandler consumes inbound protocol messages for ready sessions.
type MessageHandler interface {
	Handle(ctx context.Context, tenantID string, client chat.Client, msg chat.Message)
}

// StatusReporter notifies the external status sink of lifecycle
// transitions. Best-effort, never blocks the transition.
type StatusReporter interface {
	Report(tenantID, status, accountID, displayName string)
}

// Options configures a Controller.
type Options struct {
	Factory           chat.Factory
	Reporter          StatusReporter
	Messages          MessageHandler
	Bus               *eventbus.Bus
	AuthRoot          string
	PairingTimeout    time.Duration
	PairingDebounce   time.Duration
	PurgeOnDisconnect bool
	Logger            *slog.Logger
}

// Controller drives the per-tenant session state machine. Each protocol
// client callback maps to exactly one transition method; every terminal
// transition funnels into the same idempotent teardown.
type Controller struct {
	registry *Registry
	guard    *DebounceGuard
	timeouts *TimeoutSupervisor

	factory           chat.Factory
	reporter          StatusReporter
	messages          MessageHandler
	bus               *eventbus.Bus
	authRoot          string
	purgeOnDisconnect bool
	logger            *slog.Logger
}

// NewController creates a controller with an empty registry.
func NewController(opts Options) *Controller {
	return &Controller{
		registry:          NewRegistry(),
		guard:             NewDebounceGuard(opts.PairingDebounce),
		timeouts:          NewTimeoutSupervisor(opts.PairingTimeout),
		factory:           opts.Factory,
		reporter:          opts.Reporter,
		messages:          opts.Messages,
		bus:               opts.Bus,
		authRoot:          opts.AuthRoot,
		purgeOnDisconnect: opts.PurgeOnDisconnect,
		logger:            opts.Logger.With("component", "session"),
	}
}

// Registry exposes the handle registry to read-only consumers (the send
// gateway and the status endpoints).
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Start begins a session for a tenant. If the tenant already has a
// responsive live handle the existing one is left untouched and an
// "already active" notice is sent. A broken or unresponsive handle is
// superseded: destroyed, removed, then recreated.
func (c *Controller) Start(ctx context.Context, tenantID string, n Notifier) error {
	mu := c.registry.LockTenant(tenantID)
	mu.Lock()
	defer mu.Unlock()

	if existing, ok := c.registry.Get(tenantID); ok && existing.State().live() {
		if _, err := existing.Client.GetState(ctx); err == nil {
			c.logger.Info("start rejected, session already active",
				"tenant_id", tenantID, "state", existing.State())
			n.Msg("already connecting/connected")
			return nil
		}
		c.logger.Warn("superseding stale session", "tenant_id", tenantID)
		c.teardownLocked(existing, "superseded", c.purgeOnDisconnect, "")
	}

	client, err := c.factory(tenantID, c.authDir(tenantID))
	if err != nil {
		n.Error("failed to start session")
		return fmt.Errorf("create client for %s: %w", tenantID, err)
	}

	h := NewHandle(tenantID, client)
	if err := c.registry.Put(tenantID, h); err != nil {
		_ = client.Destroy()
		return err
	}

	client.Subscribe(chat.EventHandlers{
		OnPairingCode:   func(secret string) { c.onPairingCode(h, n, secret) },
		OnAuthenticated: func() { c.onAuthenticated(h, n) },
		OnReady:         func() { c.onReady(h, n) },
		OnAuthFailure:   func(reason string) { c.onAuthFailure(h, n, reason) },
		OnDisconnected:  func(reason string) { c.onDisconnected(h, n, reason) },
		OnStateChange:   func(state string) { n.State(state) },
		OnMessage:       func(msg chat.Message) { c.onMessage(h, msg) },
	})

	c.timeouts.Arm(tenantID, func() { c.onTimeout(h, n) })

	if err := client.Initialize(ctx); err != nil {
		c.teardownLocked(h, "initialize failed", false, "")
		n.Error("failed to start session")
		return fmt.Errorf("initialize client for %s: %w", tenantID, err)
	}

	c.logger.Info("session starting", "tenant_id", tenantID)
	c.publish(eventbus.SessionStarted, tenantID, map[string]string{"state": string(StateConnecting)})
	return nil
}

// Stop tears down a tenant's session. Idempotent; stopping an unknown
// tenant is a no-op.
func (c *Controller) Stop(tenantID string) {
	mu := c.registry.LockTenant(tenantID)
	mu.Lock()
	defer mu.Unlock()

	h, ok := c.registry.Get(tenantID)
	if !ok {
		return
	}
	c.teardownLocked(h, "stopped", false, webhook.StatusDisconnected)
}

// StopAll tears down every live session, for process shutdown.
func (c *Controller) StopAll() {
	for _, tenantID := range c.registry.Tenants() {
		c.Stop(tenantID)
	}
}

// Status returns the underlying client's state string for a tenant. The
// second return is false if the tenant has no registered session.
func (c *Controller) Status(ctx context.Context, tenantID string) (string, bool, error) {
	h, ok := c.registry.Get(tenantID)
	if !ok {
		return "", false, nil
	}
	state, err := h.Client.GetState(ctx)
	if err != nil {
		return "", true, err
	}
	return state, true, nil
}

// ActiveTenants returns the sorted ids of all registered sessions.
func (c *Controller) ActiveTenants() []string {
	return c.registry.Tenants()
}

func (c *Controller) onPairingCode(h *Handle, n Notifier, secret string) {
	if !h.State().live() {
		return
	}
	if !c.guard.ShouldEmit(h.TenantID, secret, time.Now()) {
		return
	}
	h.SetState(StateQRPending)

	img, err := qr.DataURL(secret)
	if err != nil {
		c.logger.Error("pairing code render failed", "tenant_id", h.TenantID, "error", err)
		n.Error("failed to render pairing code")
		return
	}
	c.logger.Info("pairing code issued", "tenant_id", h.TenantID)
	n.QR(img)
	n.State(string(StateQRPending))
	c.publish(eventbus.SessionQR, h.TenantID, nil)
}

func (c *Controller) onAuthenticated(h *Handle, n Notifier) {
	if !h.State().live() {
		return
	}
	h.SetState(StateAuthenticated)
	c.guard.Clear(h.TenantID)
	c.logger.Info("session authenticated", "tenant_id", h.TenantID)
	n.Msg("authenticated")
	n.State(string(StateAuthenticated))
	c.publish(eventbus.SessionState, h.TenantID, map[string]string{"state": string(StateAuthenticated)})
}

func (c *Controller) onReady(h *Handle, n Notifier) {
	if !h.State().live() {
		return
	}
	c.timeouts.Disarm(h.TenantID)
	c.guard.Clear(h.TenantID)
	h.SetState(StateReady)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	info, err := h.Client.Info(ctx)
	if err != nil {
		c.logger.Warn("account info query failed", "tenant_id", h.TenantID, "error", err)
	}
	h.SetAccount(info)

	c.logger.Info("session ready", "tenant_id", h.TenantID, "account_id", info.ID)
	c.reporter.Report(h.TenantID, webhook.StatusConnected, info.ID, info.DisplayName)
	n.Ready("session ready")
	n.State(string(StateReady))
	c.publish(eventbus.SessionReady, h.TenantID, map[string]string{"account_id": info.ID})
}

func (c *Controller) onAuthFailure(h *Handle, n Notifier, reason string) {
	c.logger.Warn("auth failure", "tenant_id", h.TenantID, "reason", reason)
	n.Error("authentication failed: " + reason)
	c.teardown(h, reason, true, webhook.StatusAuthFailure)
}

func (c *Controller) onDisconnected(h *Handle, n Notifier, reason string) {
	c.logger.Info("session disconnected", "tenant_id", h.TenantID, "reason", reason)
	n.State(string(StateDisconnected))
	c.teardown(h, reason, c.purgeOnDisconnect, webhook.StatusDisconnected)
}

func (c *Controller) onTimeout(h *Handle, n Notifier) {
	c.logger.Warn("pairing timeout", "tenant_id", h.TenantID)
	n.Error("pairing timeout")
	c.teardown(h, "pairing timeout", c.purgeOnDisconnect, webhook.StatusDisconnected)
}

func (c *Controller) onMessage(h *Handle, msg chat.Message) {
	if h.State() != StateReady {
		return
	}
	c.publish(eventbus.MessageInbound, h.TenantID, map[string]string{
		"message_id": msg.ID,
		"type":       msg.Type,
		"from":       msg.From,
		"body":       msg.Body,
	})
	go c.messages.Handle(context.Background(), h.TenantID, h.Client, msg)
}

// teardown serializes with start/stop sequences for the same tenant.
func (c *Controller) teardown(h *Handle, reason string, purge bool, status string) {
	mu := c.registry.LockTenant(h.TenantID)
	mu.Lock()
	defer mu.Unlock()
	c.teardownLocked(h, reason, purge, status)
}

// teardownLocked runs the full cleanup sequence exactly once per handle:
// disarm timers, clear debounce baseline, detach event handlers, destroy
// the client, remove the registry entry, optionally purge credentials,
// and report the terminal status. Destroy failures are logged and
// swallowed so cleanup always completes.
func (c *Controller) teardownLocked(h *Handle, reason string, purge bool, status string) {
	h.mu.Lock()
	if !h.state.live() {
		h.mu.Unlock()
		return
	}
	if status == webhook.StatusAuthFailure {
		h.state = StateAuthFailed
	} else {
		h.state = StateDisconnected
	}
	account := h.account
	h.mu.Unlock()

	c.timeouts.Disarm(h.TenantID)
	c.guard.Clear(h.TenantID)

	h.Client.ClearHandlers()
	if err := h.Client.Destroy(); err != nil {
		c.logger.Warn("client destroy failed", "tenant_id", h.TenantID, "error", err)
	}

	c.registry.RemoveIf(h.TenantID, h)

	if purge {
		if err := os.RemoveAll(c.authDir(h.TenantID)); err != nil {
			c.logger.Warn("credential purge failed", "tenant_id", h.TenantID, "error", err)
		} else {
			c.logger.Info("credentials purged", "tenant_id", h.TenantID)
		}
	}

	if status != "" {
		c.reporter.Report(h.TenantID, status, account.ID, account.DisplayName)
	}

	c.logger.Info("session closed", "tenant_id", h.TenantID, "reason", reason)
	c.publish(eventbus.SessionClosed, h.TenantID, map[string]string{"reason": reason})
}

func (c *Controller) authDir(tenantID string) string {
	return filepath.Join(c.authRoot, tenantID)
}

func (c *Controller) publish(eventType, tenantID string, data any) {
	if c.bus == nil {
		return
	}
	c.bus.PublishType(eventType, tenantID, data)
}
