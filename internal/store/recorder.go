package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zapgate-ai/zapgate/internal/eventbus"
)

// Recorder subscribes to the event bus and persists lifecycle transitions
// as the session-event audit trail. Persistence failures are logged and
// never back-pressure the bus.
type Recorder struct {
	store  Store
	bus    *eventbus.Bus
	logger *slog.Logger
	ch     chan eventbus.Event
	done   chan struct{}
}

// NewRecorder creates a recorder. Call Run to start consuming.
func NewRecorder(s Store, bus *eventbus.Bus, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  s,
		bus:    bus,
		logger: logger.With("component", "recorder"),
		done:   make(chan struct{}),
	}
}

// Run consumes bus events until Stop is called or the bus closes.
func (r *Recorder) Run() {
	r.ch = r.bus.Subscribe(
		eventbus.SessionStarted,
		eventbus.SessionState,
		eventbus.SessionQR,
		eventbus.SessionReady,
		eventbus.SessionClosed,
		eventbus.MessageInbound,
		eventbus.MessageOutbound,
	)
	go func() {
		defer close(r.done)
		for ev := range r.ch {
			r.record(ev)
		}
	}()
}

// Stop detaches from the bus and waits for the drain to finish.
func (r *Recorder) Stop() {
	r.bus.Unsubscribe(r.ch)
	<-r.done
}

func (r *Recorder) record(ev eventbus.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch ev.Type {
	case eventbus.MessageInbound, eventbus.MessageOutbound:
		r.recordMessage(ctx, ev)
	default:
		err := r.store.LogSessionEvent(ctx, &SessionEvent{
			ID:        uuid.NewString(),
			TenantID:  ev.TenantID,
			Event:     ev.Type,
			Detail:    string(ev.Data),
			CreatedAt: ev.Timestamp,
		})
		if err != nil {
			r.logger.Warn("session event persist failed",
				"tenant_id", ev.TenantID, "event", ev.Type, "error", err)
		}
	}
}

func (r *Recorder) recordMessage(ctx context.Context, ev eventbus.Event) {
	var payload struct {
		From string `json:"from"`
		To   string `json:"to"`
		Body string `json:"body"`
		Type string `json:"type"`
	}
	if len(ev.Data) > 0 {
		_ = json.Unmarshal(ev.Data, &payload)
	}

	direction, chatID := "in", payload.From
	if ev.Type == eventbus.MessageOutbound {
		direction, chatID = "out", payload.To
	}

	_, err := r.store.AppendMessage(ctx, &MessageRecord{
		ID:        uuid.NewString(),
		TenantID:  ev.TenantID,
		Direction: direction,
		ChatID:    chatID,
		Body:      payload.Body,
		Type:      payload.Type,
		CreatedAt: ev.Timestamp,
	})
	if err != nil {
		r.logger.Warn("message persist failed",
			"tenant_id", ev.TenantID, "event", ev.Type, "error", err)
	}
}
