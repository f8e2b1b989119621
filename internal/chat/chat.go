// Package chat defines the interface to the underlying messaging-protocol
// client. The gateway never implements the protocol itself; it drives an
// opaque client capability and reacts to its events.
package chat

import "context"

// AccountInfo identifies the account behind a connected session.
type AccountInfo struct {
	ID          string // underlying account identifier (phone number id)
	DisplayName string
}

// Contact is sender metadata resolved from the protocol client.
type Contact struct {
	Name       string
	Number     string
	IsBusiness bool
}

// Media is a downloaded or outbound attachment.
type Media struct {
	Data     []byte
	MimeType string
	FileName string
}

// Message is a single inbound protocol message.
type Message struct {
	ID        string
	From      string
	To        string
	Body      string
	Timestamp int64 // unix seconds
	Type      string // e.g. "chat", "audio", "ptt", "image"
	HasMedia  bool
}

// EventHandlers receives the client's asynchronous events. Handlers for a
// single client are invoked sequentially in emission order.
type EventHandlers struct {
	OnPairingCode   func(secret string)
	OnAuthenticated func()
	OnReady         func()
	OnAuthFailure   func(reason string)
	OnDisconnected  func(reason string)
	OnStateChange   func(state string)
	OnMessage       func(msg Message)
}

// Client is one tenant's protocol connection. All methods other than
// Subscribe, ClearHandlers, and Destroy may perform network I/O.
type Client interface {
	// Initialize starts the connection attempt. Progress is reported
	// through the subscribed event handlers.
	Initialize(ctx context.Context) error

	// Destroy tears the connection down and releases all resources.
	// Safe to call more than once.
	Destroy() error

	// GetState returns the protocol-level connection state string.
	GetState(ctx context.Context) (string, error)

	// Info returns the connected account's identity. Only meaningful
	// once the session is ready.
	Info(ctx context.Context) (AccountInfo, error)

	// SendText delivers a text message to the given target.
	SendText(ctx context.Context, to, body string) error

	// SendImage delivers an image attachment to the given target.
	SendImage(ctx context.Context, to string, media Media) error

	// Contact resolves sender metadata for a chat id.
	Contact(ctx context.Context, id string) (Contact, error)

	// DownloadMedia fetches the attachment carried by a message.
	DownloadMedia(ctx context.Context, messageID string) (Media, error)

	// SetTyping shows a typing indicator in the given chat. Best-effort.
	SetTyping(ctx context.Context, chatID string) error

	// Subscribe installs the event handlers. Replaces any previous set.
	Subscribe(h EventHandlers)

	// ClearHandlers detaches all event handlers so no further events
	// are delivered. Called before Destroy during teardown.
	ClearHandlers()
}

// Factory constructs a client for one tenant. authDir is the tenant's
// credential directory; the client persists session credentials there.
type Factory func(tenantID, authDir string) (Client, error)
