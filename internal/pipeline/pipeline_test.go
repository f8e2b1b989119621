package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zapgate-ai/zapgate/internal/chat"
	"github.com/zapgate-ai/zapgate/internal/media"
	"github.com/zapgate-ai/zapgate/internal/webhook"
)

type pipeClient struct {
	mu          sync.Mutex
	sent        []string
	contact     chat.Contact
	contactErr  error
	media       chat.Media
	downloadErr error
	typingCalls int
}

func (c *pipeClient) Initialize(ctx context.Context) error { return nil }
func (c *pipeClient) Destroy() error                       { return nil }

func (c *pipeClient) GetState(ctx context.Context) (string, error) { return "CONNECTED", nil }

func (c *pipeClient) Info(ctx context.Context) (chat.AccountInfo, error) {
	return chat.AccountInfo{}, nil
}

func (c *pipeClient) SendText(ctx context.Context, to, body string) error {
	c.mu.Lock()
	c.sent = append(c.sent, body)
	c.mu.Unlock()
	return nil
}

func (c *pipeClient) SendImage(ctx context.Context, to string, m chat.Media) error { return nil }

func (c *pipeClient) Contact(ctx context.Context, id string) (chat.Contact, error) {
	return c.contact, c.contactErr
}

func (c *pipeClient) DownloadMedia(ctx context.Context, messageID string) (chat.Media, error) {
	return c.media, c.downloadErr
}

func (c *pipeClient) SetTyping(ctx context.Context, chatID string) error {
	c.mu.Lock()
	c.typingCalls++
	c.mu.Unlock()
	return nil
}

func (c *pipeClient) Subscribe(h chat.EventHandlers) {}
func (c *pipeClient) ClearHandlers()                 {}

func (c *pipeClient) replies() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

func newPipeline(t *testing.T, backend http.HandlerFunc) (*Pipeline, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	store, err := media.NewStore(t.TempDir(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(webhook.NewReplyClient(srv.URL, 5*time.Second), store, logger), srv
}

func TestPipeline_RelaysObjectReply(t *testing.T) {
	p, _ := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"reply": "OK"}`))
	})
	c := &pipeClient{contact: chat.Contact{Name: "Alice", Number: "5511999990000"}}

	p.Handle(context.Background(), "t1", c, chat.Message{ID: "m1", From: "x@c.us", Body: "hi", Type: "chat"})

	got := c.replies()
	if len(got) != 1 || got[0] != "OK" {
		t.Errorf("replies = %v, want [OK]", got)
	}
	if c.typingCalls != 1 {
		t.Errorf("typing indicator sent %d times, want 1", c.typingCalls)
	}
}

func TestPipeline_RelaysBareStringReply(t *testing.T) {
	p, _ := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"42"`))
	})
	c := &pipeClient{}

	p.Handle(context.Background(), "t1", c, chat.Message{ID: "m1", From: "x@c.us", Type: "chat"})

	got := c.replies()
	if len(got) != 1 || got[0] != "42" {
		t.Errorf("replies = %v, want [42]", got)
	}
}

func TestPipeline_EmptyObjectYieldsFallback(t *testing.T) {
	p, _ := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	c := &pipeClient{}

	p.Handle(context.Background(), "t1", c, chat.Message{ID: "m1", From: "x@c.us", Type: "chat"})

	got := c.replies()
	if len(got) != 1 || got[0] != fallbackReply {
		t.Errorf("replies = %v, want fixed fallback", got)
	}
}

func TestPipeline_BackendFailureYieldsApology(t *testing.T) {
	p, _ := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := &pipeClient{}

	p.Handle(context.Background(), "t1", c, chat.Message{ID: "m1", From: "x@c.us", Type: "chat"})

	got := c.replies()
	if len(got) != 1 || got[0] != apologyReply {
		t.Errorf("replies = %v, want fixed apology", got)
	}
}

func TestPipeline_ContactFailureDegrades(t *testing.T) {
	var payload webhook.InboundMessage
	p, _ := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		_, _ = w.Write([]byte(`{"reply": "OK"}`))
	})
	c := &pipeClient{contactErr: errors.New("lookup failed")}

	p.Handle(context.Background(), "t1", c, chat.Message{ID: "m1", From: "x@c.us", Body: "hi", Type: "chat"})

	got := c.replies()
	if len(got) != 1 || got[0] != "OK" {
		t.Fatalf("replies = %v, want [OK]", got)
	}
	if payload.Name != "" || payload.FromNumber != "" {
		t.Errorf("contact fields not degraded: %+v", payload)
	}
	if payload.Body != "hi" || payload.UserID != "t1" {
		t.Errorf("message fields missing: %+v", payload)
	}
}

func TestPipeline_AudioMessageCarriesURL(t *testing.T) {
	var payload webhook.InboundMessage
	p, srv := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		_, _ = w.Write([]byte(`{"reply": "got it"}`))
	})
	c := &pipeClient{media: chat.Media{Data: []byte("oggdata"), MimeType: "audio/ogg"}}

	p.Handle(context.Background(), "t1", c, chat.Message{
		ID: "m1", From: "x@c.us", Type: "ptt", HasMedia: true,
	})

	if !strings.HasPrefix(payload.AudioURL, srv.URL+"/media/") {
		t.Errorf("audio_url = %q, want %s/media/ prefix", payload.AudioURL, srv.URL)
	}
}

func TestPipeline_AudioDownloadFailureDegrades(t *testing.T) {
	var payload webhook.InboundMessage
	p, _ := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		_, _ = w.Write([]byte(`{"reply": "OK"}`))
	})
	c := &pipeClient{downloadErr: errors.New("media gone")}

	p.Handle(context.Background(), "t1", c, chat.Message{
		ID: "m1", From: "x@c.us", Type: "audio", HasMedia: true,
	})

	got := c.replies()
	if len(got) != 1 || got[0] != "OK" {
		t.Fatalf("replies = %v, want [OK] despite media failure", got)
	}
	if payload.AudioURL != "" {
		t.Errorf("audio_url = %q, want empty on download failure", payload.AudioURL)
	}
}

func TestPipeline_TextMessageSkipsMedia(t *testing.T) {
	var payload webhook.InboundMessage
	p, _ := newPipeline(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		_, _ = w.Write([]byte(`{"reply": "OK"}`))
	})
	c := &pipeClient{downloadErr: errors.New("must not be called")}

	p.Handle(context.Background(), "t1", c, chat.Message{ID: "m1", From: "x@c.us", Type: "chat"})

	if payload.AudioURL != "" {
		t.Errorf("audio_url = %q for text message", payload.AudioURL)
	}
}
