package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// InboundMessage is the payload POSTed to the reply backend for every
// inbound chat message. Field names are part of the backend contract.
type InboundMessage struct {
	MessageID  string `json:"message_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Body       string `json:"body"`
	Timestamp  int64  `json:"timestamp"`
	Type       string `json:"type"`
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	FromNumber string `json:"from_number"`
	IsBusiness bool   `json:"isBusiness"`
	AudioURL   string `json:"audio_url"`
}

// ReplyClient delivers inbound messages to the external reply backend and
// extracts the reply text from its response.
type ReplyClient struct {
	url    string
	client *http.Client
}

// NewReplyClient creates a reply-backend client.
func NewReplyClient(url string, timeout time.Duration) *ReplyClient {
	return &ReplyClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// maxReplyBytes caps how much of the backend response is read.
const maxReplyBytes = 256 * 1024

// Deliver POSTs the message and returns the reply text. The backend may
// answer with a JSON object carrying a "reply" field, a JSON string, or a
// plain text body. An empty string with a nil error means the backend
// answered successfully but carried no usable reply (caller substitutes
// its fallback notice).
func (c *ReplyClient) Deliver(ctx context.Context, msg InboundMessage) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deliver message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("reply backend returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	return parseReply(data), nil
}

// parseReply extracts reply text from a backend response body.
func parseReply(data []byte) string {
	var obj struct {
		Reply *string `json:"reply"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Reply != nil {
		return *obj.Reply
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return ""
	}
	// Structured JSON without a reply field carries nothing usable.
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return ""
	}
	return trimmed
}
