// Package store defines the audit-log storage interface and provides
// SQLite and PostgreSQL implementations.
package store

import (
	"context"
	"time"
)

// Store persists the session-event audit trail and the message log.
type Store interface {
	// Session events
	LogSessionEvent(ctx context.Context, ev *SessionEvent) error
	ListSessionEvents(ctx context.Context, tenantID string, limit int) ([]SessionEvent, error)

	// Messages
	AppendMessage(ctx context.Context, msg *MessageRecord) (int64, error)
	ListMessages(ctx context.Context, tenantID string, afterSeq int64, limit int) ([]MessageRecord, error)

	// Data retention
	PurgeOldSessionEvents(ctx context.Context, before time.Time) (int64, error)

	// Health
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// SessionEvent is one lifecycle transition for a tenant's session.
type SessionEvent struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageRecord is one logged inbound or outbound message.
type MessageRecord struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Seq       int64     `json:"seq"`
	Direction string    `json:"direction"` // "in" or "out"
	ChatID    string    `json:"chat_id"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}
