package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite store and runs migrations.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	// For in-memory databases, use shared cache so all connections in the
	// pool see the same data.
	if dsn == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrent read/write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS session_events (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			event TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_tenant_id ON session_events(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_created_at ON session_events(created_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			direction TEXT NOT NULL,
			chat_id TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'chat',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_messages_tenant_seq ON messages(tenant_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_tenant_id ON messages(tenant_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

// --- Session events ---

func (s *SQLiteStore) LogSessionEvent(ctx context.Context, ev *SessionEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_events (id, tenant_id, event, detail, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.TenantID, ev.Event, ev.Detail, ev.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) ListSessionEvents(ctx context.Context, tenantID string, limit int) ([]SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, event, detail, created_at
		 FROM session_events WHERE tenant_id = ? ORDER BY created_at DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []SessionEvent
	for rows.Next() {
		var ev SessionEvent
		if err := rows.Scan(&ev.ID, &ev.TenantID, &ev.Event, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// --- Messages ---

func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *MessageRecord) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (id, tenant_id, seq, direction, chat_id, body, type, created_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq),0)+1 FROM messages WHERE tenant_id = ?), ?, ?, ?, ?, ?)
		 RETURNING seq`,
		msg.ID, msg.TenantID, msg.TenantID, msg.Direction, msg.ChatID, msg.Body, msg.Type, msg.CreatedAt,
	).Scan(&seq)
	return seq, err
}

func (s *SQLiteStore) ListMessages(ctx context.Context, tenantID string, afterSeq int64, limit int) ([]MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, seq, direction, chat_id, body, type, created_at
		 FROM messages WHERE tenant_id = ? AND seq > ? ORDER BY seq LIMIT ?`,
		tenantID, afterSeq, limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var messages []MessageRecord
	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.TenantID, &m.Seq, &m.Direction, &m.ChatID, &m.Body, &m.Type, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// --- Data retention ---

func (s *SQLiteStore) PurgeOldSessionEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM session_events WHERE created_at < ?", before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Health ---

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
