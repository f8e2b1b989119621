// Package api provides the HTTP control surface: status queries, the
// outbound send endpoint, media serving, and health checks.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/zapgate-ai/zapgate/internal/send"
	"github.com/zapgate-ai/zapgate/internal/session"
	"github.com/zapgate-ai/zapgate/internal/store"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP API server.
type Server struct {
	controller *session.Controller
	gateway    *send.Gateway
	store      store.Store
	logger     *slog.Logger
	mux        *chi.Mux
	startTime  time.Time
}

// NewServer creates the API server. ws, when non-nil, is mounted at /ws
// for operator control-plane connections. mediaDir, when non-empty, is
// served read-only under /media/.
func NewServer(ctrl *session.Controller, gw *send.Gateway, st store.Store, ws http.Handler, mediaDir string, logger *slog.Logger) *Server {
	srv := &Server{
		controller: ctrl,
		gateway:    gw,
		store:      st,
		logger:     logger.With("component", "api"),
		startTime:  time.Now(),
	}

	mux := chi.NewRouter()
	mux.Use(chimw.Recoverer)
	mux.Use(chimw.RealIP)

	mux.Get("/healthz", srv.handleHealthz)
	mux.Get("/readyz", srv.handleReadyz)

	mux.Get("/status/clients", srv.handleListClients)
	mux.Get("/status/{tenantID}", srv.handleStatus)
	mux.Post("/send-message", srv.handleSendMessage)
	mux.Get("/sessions/{tenantID}/events", srv.handleSessionEvents)
	mux.Get("/sessions/{tenantID}/messages", srv.handleSessionMessages)

	if ws != nil {
		mux.Get("/ws", ws.ServeHTTP)
	}
	if mediaDir != "" {
		fs := http.StripPrefix("/media/", http.FileServer(http.Dir(mediaDir)))
		mux.Get("/media/*", fs.ServeHTTP)
	}

	srv.mux = mux
	return srv
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.startTime).Truncate(time.Second).String(),
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	state, ok, err := s.controller.Status(r.Context(), tenantID)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "NOT_STARTED"})
		return
	}
	if err != nil {
		s.logger.Warn("status query failed", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ERROR",
			"erro":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": state})
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"clients": s.controller.ActiveTenants(),
	})
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req send.Request
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.gateway.Send(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	case errors.Is(err, send.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "no session for this user")
	case errors.Is(err, send.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid send request")
	default:
		s.logger.Error("send failed", "tenant_id", req.TenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to deliver message")
	}
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "event log disabled")
		return
	}
	tenantID := chi.URLParam(r, "tenantID")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := s.store.ListSessionEvents(r.Context(), tenantID, limit)
	if err != nil {
		s.logger.Error("event list failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []store.SessionEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "message log disabled")
		return
	}
	tenantID := chi.URLParam(r, "tenantID")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	var afterSeq int64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid after")
			return
		}
		afterSeq = n
	}

	messages, err := s.store.ListMessages(r.Context(), tenantID, afterSeq, limit)
	if err != nil {
		s.logger.Error("message list failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if messages == nil {
		messages = []store.MessageRecord{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
