package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a new PostgreSQL store and runs migrations.
func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS session_events (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			event TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_tenant_id ON session_events(tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_created_at ON session_events(created_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			seq BIGINT NOT NULL,
			direction TEXT NOT NULL,
			chat_id TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'chat',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
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

func (s *PostgresStore) LogSessionEvent(ctx context.Context, ev *SessionEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_events (id, tenant_id, event, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.TenantID, ev.Event, ev.Detail, ev.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListSessionEvents(ctx context.Context, tenantID string, limit int) ([]SessionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, event, detail, created_at
		 FROM session_events WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`,
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

func (s *PostgresStore) AppendMessage(ctx context.Context, msg *MessageRecord) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO messages (id, tenant_id, seq, direction, chat_id, body, type, created_at)
		 VALUES ($1, $2, (SELECT COALESCE(MAX(seq),0)+1 FROM messages WHERE tenant_id = $2), $3, $4, $5, $6, $7)
		 RETURNING seq`,
		msg.ID, msg.TenantID, msg.Direction, msg.ChatID, msg.Body, msg.Type, msg.CreatedAt,
	).Scan(&seq)
	return seq, err
}

func (s *PostgresStore) ListMessages(ctx context.Context, tenantID string, afterSeq int64, limit int) ([]MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, seq, direction, chat_id, body, type, created_at
		 FROM messages WHERE tenant_id = $1 AND seq > $2 ORDER BY seq LIMIT $3`,
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

func (s *PostgresStore) PurgeOldSessionEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM session_events WHERE created_at < $1", before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Health ---

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
