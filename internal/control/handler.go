// Package control is the WebSocket control plane: one connection per
// operator UI session, carrying start requests inbound and lifecycle
// notifications outbound.
package control

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/zapgate-ai/zapgate/internal/session"
)

const maxControlMessageSize = 4096

// frame is one control-plane message in either direction.
type frame struct {
	Event string `json:"event"`
	Data  string `json:"data,omitempty"`
}

// makeUpgrader creates a WebSocket upgrader with origin checking.
func makeUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser clients
			}
			return originSet[origin]
		},
	}
}

// Handler accepts operator connections and relays their session requests
// to the lifecycle controller.
type Handler struct {
	controller *session.Controller
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates a control-plane handler.
func NewHandler(ctrl *session.Controller, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		controller: ctrl,
		upgrader:   makeUpgrader(allowedOrigins),
		logger:     logger.With("component", "control"),
	}
}

// ServeHTTP upgrades the connection and serves it until the peer goes
// away. Lifecycle notifications target this connection only.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	oc := &operatorConn{conn: conn, logger: h.logger}
	defer oc.close()

	cancelKeepalive := startWSKeepalive(conn, &oc.mu)
	defer cancelKeepalive()

	conn.SetReadLimit(maxControlMessageSize)
	h.logger.Info("operator connected", "remote", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("operator read error", "error", err)
			}
			h.logger.Info("operator disconnected", "remote", r.RemoteAddr)
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			oc.Error("malformed control frame")
			continue
		}
		h.dispatch(r.Context(), oc, f)
	}
}

func (h *Handler) dispatch(ctx context.Context, oc *operatorConn, f frame) {
	switch f.Event {
	case "start":
		if f.Data == "" {
			oc.Error("start requires a user id")
			return
		}
		// Session start blocks on the protocol client; don't stall the
		// read loop.
		go func() {
			if err := h.controller.Start(context.Background(), f.Data, oc); err != nil {
				h.logger.Error("session start failed", "tenant_id", f.Data, "error", err)
			}
		}()
	case "stop":
		if f.Data == "" {
			oc.Error("stop requires a user id")
			return
		}
		go h.controller.Stop(f.Data)
	default:
		oc.Error("unknown event: " + f.Event)
	}
}

// operatorConn is one operator's WebSocket connection. It implements
// session.Notifier; notifications after the peer disconnects are no-ops.
type operatorConn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

var _ session.Notifier = (*operatorConn)(nil)

func (c *operatorConn) QR(dataURL string)  { c.send("qr", dataURL) }
func (c *operatorConn) Msg(text string)    { c.send("msg", text) }
func (c *operatorConn) Ready(text string)  { c.send("ready", text) }
func (c *operatorConn) State(state string) { c.send("state", state) }
func (c *operatorConn) Error(text string)  { c.send("error", text) }

func (c *operatorConn) send(event, data string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err := c.conn.WriteJSON(frame{Event: event, Data: data}); err != nil {
		c.logger.Debug("operator write failed", "event", event, "error", err)
		c.closed = true
	}
}

func (c *operatorConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}
