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

	"github.com/veleth/ansuz/internal/anki"
	"github.com/veleth/ansuz/internal/api"
	"github.com/veleth/ansuz/internal/enhance"
	"github.com/veleth/ansuz/internal/extract"
	"github.com/veleth/ansuz/internal/history"
	"github.com/veleth/ansuz/internal/mcpserver"
	"github.com/veleth/ansuz/internal/pipeline"
	"github.com/veleth/ansuz/internal/reconcile"
	"github.com/veleth/ansuz/internal/sse"
	"github.com/veleth/ansuz/internal/storage"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{mode: ModeSync}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. MCP mode logs to stderr because
	// stdout carries the protocol.
	logOut := os.Stdout
	if app.mode == ModeMCP {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("mode", string(app.mode)),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("anki_endpoint", cfg.Anki.Endpoint),
		slog.String("policy", string(cfg.Anki.ExistingNoteBehavior)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize vault storage.
	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Initialize the sync-history ledger, when enabled.
	var ledger *history.DB
	if cfg.History.Path != "" {
		ledger, err = history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("init history: %w", err)
		}
		defer ledger.Close()
	}

	// Remote store client and reconciler.
	client := anki.NewClient(cfg.Anki.Endpoint)
	rec := reconcile.New(client, reconcile.ContainmentStrategy{}, reconcile.Config{
		Policy:      cfg.Anki.ExistingNoteBehavior,
		CreateDecks: cfg.Anki.CreateDecks,
		ClozeModel:  cfg.Anki.ClozeModel,
		BasicModel:  cfg.Anki.BasicModel,
		Tags:        cfg.Anki.Tags,
	}, logger)

	extractor := extract.NewExtractor(cfg.Triggers)

	var enhancer enhance.Enhancer
	if cfg.Enhance.Enabled {
		enhancer = enhance.NewClaudeEnhancer(cfg.Enhance.APIKey, cfg.Enhance.Model)
	}

	// SSE broker carries run progress in serve mode; nil notifier otherwise.
	var broker *sse.Broker
	var notify pipeline.Notifier
	if app.mode == ModeServe {
		broker = sse.NewBroker()
		defer broker.Close()
		notify = broker.Publish
	}

	pipe := pipeline.New(store, client, rec, extractor, enhancer, ledger, notify, logger, pipeline.Options{
		Folders:      cfg.Vault.Folders,
		FallbackDeck: cfg.Anki.FallbackDeck,
		Parallelism:  cfg.Anki.Parallelism,
	})

	switch app.mode {
	case ModeSync:
		return runOnce(ctx, pipe, logger)
	case ModeMCP:
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(pipe, client).ServeStdio()
	case ModeServe:
		return serve(ctx, cfg, pipe, ledger, broker, logger)
	default:
		return fmt.Errorf("unknown mode: %s", app.mode)
	}
}

// runOnce performs a single synchronization pass and logs the report.
func runOnce(ctx context.Context, pipe *pipeline.Pipeline, logger *slog.Logger) error {
	report, err := pipe.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("Sync complete",
		slog.Int("created", report.Created),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		slog.Int("decks_created", len(report.DecksCreated)))
	for _, msg := range report.Errors {
		logger.Warn("Sync error", slog.String("message", msg))
	}
	return nil
}

// serve runs the HTTP control API and the vault watcher until shutdown.
func serve(ctx context.Context, cfg *Config, pipe *pipeline.Pipeline, ledger *history.DB,
	broker *sse.Broker, logger *slog.Logger) error {

	apiRouter := api.NewRouter(pipe, ledger, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Watch vault folders and sync changed files.
	g.Go(func() error {
		return pipe.Watch(gCtx, cfg.Vault.Path)
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

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
