// Package pipeline processes inbound messages for ready sessions:
// enrich with sender metadata, persist voice notes, delegate to the
// external reply backend, and relay the reply to the sender.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/zapgate-ai/zapgate/internal/chat"
	"github.com/zapgate-ai/zapgate/internal/media"
	"github.com/zapgate-ai/zapgate/internal/webhook"
)

const (
	fallbackReply = "⚠️ Resposta inválida do servidor externo."
	apologyReply  = "❌ Erro ao processar sua mensagem."
)

// Pipeline is the inbound message processor. Every failure is contained
// per-message: the sender gets a fixed notice and the session is left
// untouched.
type Pipeline struct {
	replies *webhook.ReplyClient
	media   *media.Store
	logger  *slog.Logger
}

// New creates a pipeline. media may be nil to disable audio persistence.
func New(replies *webhook.ReplyClient, mediaStore *media.Store, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		replies: replies,
		media:   mediaStore,
		logger:  logger.With("component", "pipeline"),
	}
}

// Handle processes one inbound message end to end.
func (p *Pipeline) Handle(ctx context.Context, tenantID string, client chat.Client, msg chat.Message) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in message pipeline", "tenant_id", tenantID,
				"message_id", msg.ID, "panic", r)
			p.send(ctx, client, msg.From, apologyReply)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if err := client.SetTyping(ctx, msg.From); err != nil {
		p.logger.Debug("typing indicator failed", "tenant_id", tenantID, "error", err)
	}

	// Sender metadata degrades to empty fields on lookup failure.
	contact, err := client.Contact(ctx, msg.From)
	if err != nil {
		p.logger.Warn("contact lookup failed", "tenant_id", tenantID,
			"message_id", msg.ID, "error", err)
		contact = chat.Contact{}
	}

	audioURL := p.saveAudio(ctx, tenantID, client, msg)

	reply, err := p.replies.Deliver(ctx, webhook.InboundMessage{
		MessageID:  msg.ID,
		From:       msg.From,
		To:         msg.To,
		Body:       msg.Body,
		Timestamp:  msg.Timestamp,
		Type:       msg.Type,
		UserID:     tenantID,
		Name:       contact.Name,
		FromNumber: contact.Number,
		IsBusiness: contact.IsBusiness,
		AudioURL:   audioURL,
	})
	if err != nil {
		p.logger.Error("reply backend call failed", "tenant_id", tenantID,
			"message_id", msg.ID, "error", err)
		p.send(ctx, client, msg.From, apologyReply)
		return
	}
	if reply == "" {
		reply = fallbackReply
	}

	p.send(ctx, client, msg.From, reply)
}

// saveAudio persists a voice note and returns its public URL. Any
// failure degrades to an empty URL.
func (p *Pipeline) saveAudio(ctx context.Context, tenantID string, client chat.Client, msg chat.Message) string {
	if p.media == nil || !msg.HasMedia {
		return ""
	}
	if msg.Type != "audio" && msg.Type != "ptt" {
		return ""
	}

	m, err := client.DownloadMedia(ctx, msg.ID)
	if err != nil {
		p.logger.Warn("audio download failed", "tenant_id", tenantID,
			"message_id", msg.ID, "error", err)
		return ""
	}
	url, err := p.media.SaveAudio(tenantID, m.Data, m.MimeType)
	if err != nil {
		p.logger.Warn("audio persist failed", "tenant_id", tenantID,
			"message_id", msg.ID, "error", err)
		return ""
	}
	return url
}

func (p *Pipeline) send(ctx context.Context, client chat.Client, to, body string) {
	if err := client.SendText(ctx, to, body); err != nil {
		p.logger.Error("reply send failed", "to", to, "error", err)
	}
}
