package session

import (
	"context"
	"log/slog"
	"os"
)

// RestoreSessions reconciles persisted credentials at boot: every tenant
// directory under the auth root gets a session start, skipping tenants
// already live. Individual failures are logged and do not stop the sweep.
func (c *Controller) RestoreSessions(ctx context.Context) int {
	entries, err := os.ReadDir(c.authRoot)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("auth root scan failed", "dir", c.authRoot, "error", err)
		}
		return 0
	}

	restored := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		tenantID := entry.Name()
		if h, ok := c.registry.Get(tenantID); ok && h.State().live() {
			continue
		}
		c.logger.Info("restoring session", "tenant_id", tenantID)
		if err := c.Start(ctx, tenantID, NewLogNotifier(c.logger, tenantID)); err != nil {
			c.logger.Warn("session restore failed", "tenant_id", tenantID, "error", err)
			continue
		}
		restored++
	}
	return restored
}

// LogNotifier is a Notifier for sessions with no operator connection
// attached, such as those restored at boot. Events go to the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier scoped to one tenant.
func NewLogNotifier(logger *slog.Logger, tenantID string) *LogNotifier {
	return &LogNotifier{logger: logger.With("tenant_id", tenantID)}
}

func (n *LogNotifier) QR(string) {
	n.logger.Info("pairing code issued without operator connection")
}

func (n *LogNotifier) Msg(text string) {
	n.logger.Info("session notice", "text", text)
}

func (n *LogNotifier) Ready(text string) {
	n.logger.Info("session ready", "text", text)
}

func (n *LogNotifier) State(state string) {
	n.logger.Debug("session state", "state", state)
}

func (n *LogNotifier) Error(text string) {
	n.logger.Warn("session error", "text", text)
}
