package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/thushan/porter/internal/adapter/admission"
	"github.com/thushan/porter/internal/adapter/lmstudio"
	"github.com/thushan/porter/internal/adapter/relay"
	"github.com/thushan/porter/internal/adapter/stats"
	"github.com/thushan/porter/internal/adapter/storage"
	"github.com/thushan/porter/internal/app/services"
	"github.com/thushan/porter/internal/config"
	"github.com/thushan/porter/internal/logger"
)

// Application wires the gateway together: storage, the inference client,
// admission control, the chat service and the HTTP server
type Application struct {
	config      *config.Config
	logger      *logger.StyledLogger
	server      *http.Server
	store       *storage.Store
	slots       *admission.SlotRegistry
	gates       *admission.GateRegistry
	stats       *stats.Collector
	chatService *services.ChatService
	rateLimiter *RateLimiter
	errCh       chan error
}

// New creates a new application instance
func New(cfg *config.Config, log *logger.StyledLogger) (*Application, error) {
	store, err := storage.Open(cfg.Storage.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	client := lmstudio.New(cfg.Upstream, log)

	slots := admission.NewSlotRegistry(cfg.Limits.MaxActiveStreamsPerUser, log)
	gates := admission.NewGateRegistry(cfg.Limits.MaxConcurrentPerModel, log)
	collector := stats.NewCollector()

	recorder := relay.NewRecorder(store.Messages(), store.Usage(), relay.DecodeSSE, log)
	chatService := services.NewChatService(client, slots, gates, recorder, collector, log)

	rateLimiter := NewRateLimiter(cfg.Server.RateLimits, log)

	server := &http.Server{
		Addr:        cfg.Server.GetAddress(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// WriteTimeout stays at zero - it would sever long-running
		// streaming responses mid-generation
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Application{
		config:      cfg,
		logger:      log,
		server:      server,
		store:       store,
		slots:       slots,
		gates:       gates,
		stats:       collector,
		chatService: chatService,
		rateLimiter: rateLimiter,
		errCh:       make(chan error, 1),
	}, nil
}

// Start starts the application
func (a *Application) Start(ctx context.Context) error {
	a.logger.Info("Starting WebServer...", "host", a.config.Server.Host, "port", a.config.Server.Port)

	a.server.Handler = a.buildRoutes()

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("HTTP server error", "error", err)
			a.errCh <- err
		}
	}()

	go func() {
		select {
		case err := <-a.errCh:
			a.logger.Error("Server startup error", "error", err)
		case <-ctx.Done():
			return
		}
	}()

	a.logger.Info("Started WebServer", "bind", a.server.Addr)
	a.logger.InfoWithModel("Relaying chat traffic to", a.config.Upstream.BaseURL,
		"max_streams_per_user", a.config.Limits.MaxActiveStreamsPerUser,
		"max_concurrent_per_model", a.config.Limits.MaxConcurrentPerModel)
	return nil
}

func (a *Application) buildRoutes() http.Handler {
	limited := a.rateLimiter.Middleware(false)
	healthLimited := a.rateLimiter.Middleware(true)

	router := http.NewServeMux()
	router.Handle("POST /v1/conversations", limited(http.HandlerFunc(a.createConversationHandler)))
	router.Handle("POST /v1/conversations/{id}/chat", limited(http.HandlerFunc(a.chatHandler)))
	router.Handle("GET /v1/models", limited(http.HandlerFunc(a.modelsHandler)))
	router.Handle("GET /internal/health", healthLimited(http.HandlerFunc(a.healthHandler)))
	router.Handle("GET /internal/status", healthLimited(http.HandlerFunc(a.statusHandler)))

	return router
}

// Stop stops the application
func (a *Application) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.config.Server.ShutdownTimeout)
	defer cancel()

	a.rateLimiter.Stop()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	if err := a.store.Close(); err != nil {
		a.logger.Warn("Error closing storage", "error", err)
	}

	return nil
}
