// Package webhook holds the outbound HTTP contracts to the external
// business backend: lifecycle status reports and inbound-message delivery.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Status values reported to the external status sink.
const (
	StatusConnected    = "connected"
	StatusAuthFailure  = "auth_failure"
	StatusDisconnected = "disconnected"
)

// Reporter delivers session status changes to an external sink.
// Delivery is asynchronous and best-effort: failures are logged and
// swallowed, and a report never blocks the transition that triggered it.
type Reporter struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewReporter creates a status reporter. An empty URL disables reporting.
func NewReporter(url string, timeout time.Duration, logger *slog.Logger) *Reporter {
	return &Reporter{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "reporter"),
	}
}

type statusPayload struct {
	UserID    string `json:"userId"`
	Status    string `json:"status"`
	Number    string `json:"number"`
	AgentName string `json:"ag_name"`
	Timestamp string `json:"timestamp"`
}

// Report sends a status notification. Fire-and-forget.
func (r *Reporter) Report(tenantID, status, accountID, displayName string) {
	if r.url == "" {
		return
	}
	payload := statusPayload{
		UserID:    tenantID,
		Status:    status,
		Number:    accountID,
		AgentName: displayName,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	go func() {
		if err := r.post(payload); err != nil {
			r.logger.Warn("status report failed", "tenant_id", tenantID, "status", status, "error", err)
			return
		}
		r.logger.Debug("status reported", "tenant_id", tenantID, "status", status)
	}()
}

func (r *Reporter) post(payload statusPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status sink returned %d", resp.StatusCode)
	}
	return nil
}
