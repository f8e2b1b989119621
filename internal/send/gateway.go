// Package send is the outbound gateway: it validates a tenant has a
// live session and dispatches text or image sends to it.
package send

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zapgate-ai/zapgate/internal/chat"
	"github.com/zapgate-ai/zapgate/internal/eventbus"
	"github.com/zapgate-ai/zapgate/internal/session"
)

// ErrSessionNotFound means the tenant has no registered session.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidRequest means the send request is malformed: unknown type or
// missing required field.
var ErrInvalidRequest = errors.New("invalid send request")

// DeliveryError wraps an underlying send or media-fetch failure. Distinct
// from input errors so callers can map it to a server-side outcome.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Request is one outbound send.
type Request struct {
	Type     string `json:"type"`
	To       string `json:"to"`
	Message  string `json:"message,omitempty"`
	URL      string `json:"url,omitempty"`
	TenantID string `json:"userId"`
}

const maxImageBytes = 16 << 20

// Gateway dispatches outbound sends against the session registry. It
// never mutates lifecycle state.
type Gateway struct {
	registry *session.Registry
	bus      *eventbus.Bus
	http     *http.Client
	logger   *slog.Logger
}

// NewGateway creates a gateway reading the given registry. bus may be nil.
func NewGateway(registry *session.Registry, bus *eventbus.Bus, logger *slog.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		bus:      bus,
		http:     &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "send"),
	}
}

// Send validates and dispatches one request.
func (g *Gateway) Send(ctx context.Context, req Request) error {
	if req.TenantID == "" || req.To == "" {
		return ErrInvalidRequest
	}

	h, ok := g.registry.Get(req.TenantID)
	if !ok {
		return ErrSessionNotFound
	}

	switch req.Type {
	case "text":
		if req.Message == "" {
			return ErrInvalidRequest
		}
		if err := h.Client.SendText(ctx, normalizeTarget(req.To), req.Message); err != nil {
			return &DeliveryError{Err: err}
		}
	case "image":
		if req.URL == "" {
			return ErrInvalidRequest
		}
		media, err := g.fetchImage(ctx, req.URL)
		if err != nil {
			return &DeliveryError{Err: err}
		}
		if err := h.Client.SendImage(ctx, normalizeTarget(req.To), media); err != nil {
			return &DeliveryError{Err: err}
		}
	default:
		return ErrInvalidRequest
	}

	if g.bus != nil {
		g.bus.PublishType(eventbus.MessageOutbound, req.TenantID, map[string]string{
			"type": req.Type,
			"to":   normalizeTarget(req.To),
			"body": req.Message,
		})
	}
	g.logger.Info("message dispatched", "tenant_id", req.TenantID, "type", req.Type)
	return nil
}

func (g *Gateway) fetchImage(ctx context.Context, url string) (chat.Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return chat.Media{}, err
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return chat.Media{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return chat.Media{}, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return chat.Media{}, err
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return chat.Media{Data: data, MimeType: mimeType}, nil
}

// normalizeTarget turns a bare phone number into a protocol chat id.
func normalizeTarget(to string) string {
	if strings.Contains(to, "@") {
		return to
	}
	return to + "@c.us"
}
