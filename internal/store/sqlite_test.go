package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/zapgate-ai/zapgate/internal/eventbus"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_SessionEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, ev := range []string{"session.started", "session.ready", "session.closed"} {
		err := s.LogSessionEvent(ctx, &SessionEvent{
			ID:        ev + "-id",
			TenantID:  "t1",
			Event:     ev,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("LogSessionEvent failed: %v", err)
		}
	}

	events, err := s.ListSessionEvents(ctx, "t1", 10)
	if err != nil {
		t.Fatalf("ListSessionEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	// Newest first.
	if events[0].Event != "session.closed" {
		t.Errorf("first event = %s, want session.closed", events[0].Event)
	}

	other, err := s.ListSessionEvents(ctx, "t2", 10)
	if err != nil {
		t.Fatalf("ListSessionEvents failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("events leaked across tenants: %d", len(other))
	}
}

func TestSQLite_AppendMessage_SequencesPerTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, tenant := range []string{"t1", "t1", "t2"} {
		seq, err := s.AppendMessage(ctx, &MessageRecord{
			ID:        string(rune('a' + i)),
			TenantID:  tenant,
			Direction: "in",
			ChatID:    "x@c.us",
			Body:      "hi",
			Type:      "chat",
			CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("AppendMessage failed: %v", err)
		}
		wantSeq := int64(1)
		if tenant == "t1" && i == 1 {
			wantSeq = 2
		}
		if seq != wantSeq {
			t.Errorf("message %d: seq = %d, want %d", i, seq, wantSeq)
		}
	}

	msgs, err := s.ListMessages(ctx, "t1", 0, 10)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Seq != 1 || msgs[1].Seq != 2 {
		t.Errorf("messages out of order: %d, %d", msgs[0].Seq, msgs[1].Seq)
	}

	after, err := s.ListMessages(ctx, "t1", 1, 10)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(after) != 1 || after[0].Seq != 2 {
		t.Errorf("afterSeq filter broken: %+v", after)
	}
}

func TestSQLite_PurgeOldSessionEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	_ = s.LogSessionEvent(ctx, &SessionEvent{ID: "old", TenantID: "t1", Event: "session.closed", CreatedAt: old})
	_ = s.LogSessionEvent(ctx, &SessionEvent{ID: "new", TenantID: "t1", Event: "session.started", CreatedAt: time.Now()})

	purged, err := s.PurgeOldSessionEvents(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeOldSessionEvents failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d events, want 1", purged)
	}

	events, _ := s.ListSessionEvents(ctx, "t1", 10)
	if len(events) != 1 || events[0].ID != "new" {
		t.Errorf("wrong events remain: %+v", events)
	}
}

func TestRecorder_PersistsBusEvents(t *testing.T) {
	s := newTestStore(t)
	bus := eventbus.New()
	defer bus.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := NewRecorder(s, bus, logger)
	rec.Run()

	bus.PublishType(eventbus.SessionStarted, "t1", map[string]string{"state": "CONNECTING"})
	bus.PublishType(eventbus.SessionReady, "t1", nil)
	rec.Stop()

	events, err := s.ListSessionEvents(context.Background(), "t1", 10)
	if err != nil {
		t.Fatalf("ListSessionEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
}

func TestRecorder_MessageEventsGoToMessageLog(t *testing.T) {
	s := newTestStore(t)
	bus := eventbus.New()
	defer bus.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := NewRecorder(s, bus, logger)
	rec.Run()

	bus.PublishType(eventbus.MessageInbound, "t1", map[string]string{
		"from": "5511999999999@c.us", "body": "oi", "type": "chat",
	})
	bus.PublishType(eventbus.MessageOutbound, "t1", map[string]string{
		"to": "5511999999999@c.us", "body": "tudo bem?", "type": "text",
	})
	rec.Stop()

	msgs, err := s.ListMessages(context.Background(), "t1", 0, 10)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Direction != "in" || msgs[0].ChatID != "5511999999999@c.us" || msgs[0].Body != "oi" {
		t.Errorf("wrong inbound record: %+v", msgs[0])
	}
	if msgs[1].Direction != "out" || msgs[1].Body != "tudo bem?" {
		t.Errorf("wrong outbound record: %+v", msgs[1])
	}

	events, _ := s.ListSessionEvents(context.Background(), "t1", 10)
	if len(events) != 0 {
		t.Errorf("message events should not land in the session-event log, got %+v", events)
	}
}
