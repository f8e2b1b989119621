// Package gateway is the main orchestrator that ties all components
// together: storage, the event bus, webhooks, the session controller,
// and the HTTP/WebSocket surface.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zapgate-ai/zapgate/internal/api"
	"github.com/zapgate-ai/zapgate/internal/chat"
	"github.com/zapgate-ai/zapgate/internal/config"
	"github.com/zapgate-ai/zapgate/internal/control"
	"github.com/zapgate-ai/zapgate/internal/eventbus"
	"github.com/zapgate-ai/zapgate/internal/media"
	"github.com/zapgate-ai/zapgate/internal/pipeline"
	"github.com/zapgate-ai/zapgate/internal/send"
	"github.com/zapgate-ai/zapgate/internal/session"
	"github.com/zapgate-ai/zapgate/internal/store"
	"github.com/zapgate-ai/zapgate/internal/webhook"
)

// Gateway is the main gateway process.
type Gateway struct {
	cfg        *config.Config
	store      store.Store
	bus        *eventbus.Bus
	recorder   *store.Recorder
	controller *session.Controller
	api        *api.Server
	logger     *slog.Logger
}

// New creates a gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	db, err := store.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	mediaStore, err := media.NewStore(cfg.Media.Dir, cfg.Media.PublicBaseURL)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init media store: %w", err)
	}

	bus := eventbus.New()
	recorder := store.NewRecorder(db, bus, logger)

	reporter := webhook.NewReporter(cfg.Webhooks.StatusURL, cfg.Webhooks.Timeout.Duration, logger)
	replies := webhook.NewReplyClient(cfg.Webhooks.ReplyURL, cfg.Webhooks.Timeout.Duration)
	pipe := pipeline.New(replies, mediaStore, logger)

	ctrl := session.NewController(session.Options{
		Factory:           chat.NewBridgeFactory(cfg.Chat.BridgeCommand, cfg.Chat.BridgeArgs, cfg.Chat.Env),
		Reporter:          reporter,
		Messages:          pipe,
		Bus:               bus,
		AuthRoot:          cfg.Session.AuthRootDir,
		PairingTimeout:    cfg.Session.PairingTimeout.Duration,
		PairingDebounce:   cfg.Session.PairingDebounce.Duration,
		PurgeOnDisconnect: cfg.Session.PurgeOnDisconnect,
		Logger:            logger,
	})

	gw := send.NewGateway(ctrl.Registry(), bus, logger)
	ws := control.NewHandler(ctrl, cfg.Server.AllowedOrigins, logger)
	apiSrv := api.NewServer(ctrl, gw, db, ws, cfg.Media.Dir, logger)

	return &Gateway{
		cfg:        cfg,
		store:      db,
		bus:        bus,
		recorder:   recorder,
		controller: ctrl,
		api:        apiSrv,
		logger:     logger.With("component", "gateway"),
	}, nil
}

// Controller exposes the session controller, for tests and tooling.
func (g *Gateway) Controller() *session.Controller {
	return g.controller
}

// Run starts the gateway HTTP server and blocks until the context is
// canceled.
func (g *Gateway) Run(ctx context.Context) error {
	g.recorder.Run()

	if g.cfg.Session.RestoreOnBoot {
		restored := g.controller.RestoreSessions(ctx)
		if restored > 0 {
			g.logger.Info("restored persisted sessions", "count", restored)
		}
	}

	if g.cfg.Storage.Retention.Duration > 0 {
		go g.runRetentionPurger(ctx, g.cfg.Storage.Retention.Duration)
	}

	srv := &http.Server{
		Addr:    g.cfg.Server.Addr,
		Handler: g.api.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("gateway listening", "addr", g.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("shutting down gateway gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			g.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			_ = srv.Close()
		}

		g.controller.StopAll()
		g.recorder.Stop()
		g.bus.Close()
		_ = g.store.Close()
		g.logger.Info("shutdown complete")
		return ctx.Err()

	case err := <-errCh:
		g.controller.StopAll()
		g.recorder.Stop()
		g.bus.Close()
		_ = g.store.Close()
		return err
	}
}

func (g *Gateway) runRetentionPurger(ctx context.Context, retention time.Duration) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			if n, err := g.store.PurgeOldSessionEvents(ctx, cutoff); err != nil {
				g.logger.Warn("retention purge failed", "error", err)
			} else if n > 0 {
				g.logger.Info("retention purge: deleted old session events", "count", n)
			}
		}
	}
}
