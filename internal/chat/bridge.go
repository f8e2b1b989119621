package chat

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
)

// BridgeClient implements Client by spawning a long-lived protocol bridge
// process and communicating via JSON-Lines over stdin/stdout. One process
// is spawned per tenant; the process owns the actual protocol connection
// and persists credentials in the tenant's auth directory.
type BridgeClient struct {
	tenantID string
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	done     chan struct{}
	waitErr  error

	mu        sync.Mutex
	handlers  EventHandlers
	pending   map[string]chan bridgeMsg
	destroyed bool
}

// bridgeMsg is the JSON-Lines message format between gateway and bridge process.
type bridgeMsg struct {
	// gateway → bridge
	Op        string `json:"op,omitempty"`
	To        string `json:"to,omitempty"`
	Body      string `json:"body,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Data      string `json:"data,omitempty"` // base64 for media, raw for secrets/states

	// bridge → gateway
	Event   string   `json:"event,omitempty"`
	Reason  string   `json:"reason,omitempty"`
	Error   string   `json:"error,omitempty"`
	Message *Message `json:"message,omitempty"`
	Contact *Contact `json:"contact,omitempty"`
	Account *AccountInfo `json:"account,omitempty"`

	// request/response correlation
	RequestID string `json:"request_id,omitempty"`
}

// NewBridgeFactory returns a Factory that spawns one bridge process per
// tenant using the given command. The tenant id and auth directory are
// passed to the process via environment variables.
func NewBridgeFactory(command string, args []string, env map[string]string) Factory {
	return func(tenantID, authDir string) (Client, error) {
		return newBridgeClient(command, args, env, tenantID, authDir)
	}
}

func newBridgeClient(command string, args []string, env map[string]string, tenantID, authDir string) (*BridgeClient, error) {
	cmd := exec.Command(command, args...)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env,
		"ZAPGATE_TENANT_ID="+tenantID,
		"ZAPGATE_AUTH_DIR="+authDir,
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	// Bridge diagnostics go to our stderr.
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start bridge process: %w", err)
	}

	c := &BridgeClient{
		tenantID: tenantID,
		cmd:      cmd,
		stdin:    stdin,
		done:     make(chan struct{}),
		pending:  make(map[string]chan bridgeMsg),
	}

	go c.readLoop(stdout)
	go func() {
		c.waitErr = cmd.Wait()
		close(c.done)
	}()

	return c, nil
}

func (c *BridgeClient) Initialize(ctx context.Context) error {
	return c.write(bridgeMsg{Op: "init"})
}

func (c *BridgeClient) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	c.destroyed = true
	c.mu.Unlock()

	// Ask the bridge to shut down cleanly, then make sure it is gone.
	_ = c.write(bridgeMsg{Op: "destroy"})
	_ = c.stdin.Close()
	if c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
	}
	<-c.done
	return nil
}

func (c *BridgeClient) GetState(ctx context.Context) (string, error) {
	resp, err := c.call(ctx, bridgeMsg{Op: "get_state"})
	if err != nil {
		return "", err
	}
	return resp.Data, nil
}

func (c *BridgeClient) Info(ctx context.Context) (AccountInfo, error) {
	resp, err := c.call(ctx, bridgeMsg{Op: "info"})
	if err != nil {
		return AccountInfo{}, err
	}
	if resp.Account == nil {
		return AccountInfo{}, fmt.Errorf("bridge returned no account info")
	}
	return *resp.Account, nil
}

func (c *BridgeClient) SendText(ctx context.Context, to, body string) error {
	_, err := c.call(ctx, bridgeMsg{Op: "send_text", To: to, Body: body})
	return err
}

func (c *BridgeClient) SendImage(ctx context.Context, to string, media Media) error {
	_, err := c.call(ctx, bridgeMsg{
		Op:       "send_image",
		To:       to,
		Data:     base64.StdEncoding.EncodeToString(media.Data),
		MimeType: media.MimeType,
		FileName: media.FileName,
	})
	return err
}

func (c *BridgeClient) Contact(ctx context.Context, id string) (Contact, error) {
	resp, err := c.call(ctx, bridgeMsg{Op: "contact", ChatID: id})
	if err != nil {
		return Contact{}, err
	}
	if resp.Contact == nil {
		return Contact{}, fmt.Errorf("bridge returned no contact")
	}
	return *resp.Contact, nil
}

func (c *BridgeClient) DownloadMedia(ctx context.Context, messageID string) (Media, error) {
	resp, err := c.call(ctx, bridgeMsg{Op: "download_media", MessageID: messageID})
	if err != nil {
		return Media{}, err
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return Media{}, fmt.Errorf("decode media: %w", err)
	}
	return Media{Data: data, MimeType: resp.MimeType, FileName: resp.FileName}, nil
}

func (c *BridgeClient) SetTyping(ctx context.Context, chatID string) error {
	return c.write(bridgeMsg{Op: "typing", ChatID: chatID})
}

func (c *BridgeClient) Subscribe(h EventHandlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = h
}

func (c *BridgeClient) ClearHandlers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = EventHandlers{}
}

// call sends a request and waits for the correlated response or ctx expiry.
func (c *BridgeClient) call(ctx context.Context, msg bridgeMsg) (bridgeMsg, error) {
	msg.RequestID = uuid.New().String()
	ch := make(chan bridgeMsg, 1)

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return bridgeMsg{}, fmt.Errorf("bridge client destroyed")
	}
	c.pending[msg.RequestID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
	}()

	if err := c.write(msg); err != nil {
		return bridgeMsg{}, err
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return bridgeMsg{}, fmt.Errorf("bridge %s: %s", msg.Op, resp.Error)
		}
		return resp, nil
	case <-c.done:
		return bridgeMsg{}, fmt.Errorf("bridge process exited")
	case <-ctx.Done():
		return bridgeMsg{}, ctx.Err()
	}
}

func (c *BridgeClient) write(msg bridgeMsg) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal bridge message: %w", err)
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.stdin.Write(data)
	return err
}

func (c *BridgeClient) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 32*1024*1024)
	for scanner.Scan() {
		var msg bridgeMsg
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}

		if msg.RequestID != "" {
			c.mu.Lock()
			ch, ok := c.pending[msg.RequestID]
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}

		c.mu.Lock()
		h := c.handlers
		c.mu.Unlock()

		switch msg.Event {
		case "pairing_code":
			if h.OnPairingCode != nil {
				h.OnPairingCode(msg.Data)
			}
		case "authenticated":
			if h.OnAuthenticated != nil {
				h.OnAuthenticated()
			}
		case "ready":
			if h.OnReady != nil {
				h.OnReady()
			}
		case "auth_failure":
			if h.OnAuthFailure != nil {
				h.OnAuthFailure(msg.Reason)
			}
		case "disconnected":
			if h.OnDisconnected != nil {
				h.OnDisconnected(msg.Reason)
			}
		case "state":
			if h.OnStateChange != nil {
				h.OnStateChange(msg.Data)
			}
		case "message":
			if h.OnMessage != nil && msg.Message != nil {
				h.OnMessage(*msg.Message)
			}
		}
	}
}
