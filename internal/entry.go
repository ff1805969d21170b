// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/api"
	"github.com/starford/ansuz/internal/authz"
	"github.com/starford/ansuz/internal/bot"
	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/dialogue"
	"github.com/starford/ansuz/internal/events"
	"github.com/starford/ansuz/internal/match"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/telegram"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("catalog_store", cfg.Catalog.Store),
		slog.Int64("query_chat_id", cfg.Bot.QueryChatID),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize catalog persistence.
	persister, err := openPersister(cfg)
	if err != nil {
		return fmt.Errorf("init catalog persistence: %w", err)
	}
	defer persister.Close()

	// Catalog store, matcher, allow-list, dialogue manager.
	store := catalog.NewStore(persister, logger)
	matcher := match.New(store)
	allow := authz.New(cfg.Auth.Operators, cfg.Auth.AllowlistPath, logger)
	dlg := dialogue.NewManager(store, allow, cfg.Bot.SessionTTL(), logger)

	// SSE event broker.
	broker := events.NewBroker(2 * time.Second)
	defer broker.Close()

	// Outbound transport and orchestrator.
	sender := telegram.NewClient(cfg.Bot.APIBaseURL, cfg.Bot.Token)
	orch := bot.New(cfg.Bot.QueryChatID, cfg.Bot.SearchDelay(), cfg.Bot.MaxResults,
		store, matcher, dlg, sender, broker, logger)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Webhook ingress and ops API.
	h := api.NewHandler(store, matcher, func(msg models.Message) {
		orch.Dispatch(gCtx, msg)
	}, cfg.Bot.WebhookSecret)
	apiRouter := api.NewRouter(h, cfg.Auth.API.AuthEnabled(), cfg.Auth.API.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Webhook ingress (guarded by its own secret token, not the ops auth).
	r.Post("/webhook", h.Webhook)

	// Mount ops API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Follow the operator allow-list file.
	g.Go(func() error {
		return allow.Watch(gCtx)
	})

	// Sweep abandoned dialogue sessions.
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if n := dlg.Sweep(); n > 0 {
					logger.Info("dialogue sweep", slog.Int("expired", n))
				}
			}
		}
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Let in-flight message tasks finish; the catalog stays consistent
		// either way because commits are atomic at Put granularity.
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelDrain()
		if err := orch.Drain(drainCtx); err != nil {
			logger.Warn("abandoning in-flight messages", slog.String("error", err.Error()))
		}

		// Release the watcher and sweeper goroutines.
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the catalog tools over stdio for MCP clients. It opens the
// same persisted catalog and does not start the HTTP surface.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// MCP talks on stdout, so logs go to stderr here.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	persister, err := openPersister(cfg)
	if err != nil {
		return fmt.Errorf("init catalog persistence: %w", err)
	}
	defer persister.Close()

	store := catalog.NewStore(persister, logger)
	matcher := match.New(store)

	srv := mcpserver.New(store, matcher)
	logger.Info("MCP server starting on stdio", slog.Int("catalog_entries", store.Len()))
	return srv.ServeStdio()
}

func openPersister(cfg *Config) (catalog.Persister, error) {
	if cfg.Catalog.Store == CatalogStoreFile {
		return catalog.NewFileStore(cfg.Catalog.FilePath), nil
	}
	return catalog.OpenSQLite(cfg.Catalog.SQLitePath)
}
