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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/inkwell/internal/api"
	"github.com/starford/inkwell/internal/inbox"
	"github.com/starford/inkwell/internal/inkstore"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/notebook"
	"github.com/starford/inkwell/internal/render"
	"github.com/starford/inkwell/internal/sse"
	"github.com/starford/inkwell/internal/storage"
)

// runtime is the set of opened resources shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	db      *inkstore.DB
	metrics *render.Metrics
	inbox   *storage.FS
	nb      *notebook.Service
}

// setup applies opts, installs the JSON logger and opens the store, the dump
// directories and the notebook. The home page is not loaded.
func setup(opts []Option, publish func(sse.PageEvent)) (*runtime, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("inbox_path", cfg.Inbox.Path),
		slog.String("export_path", cfg.Export.Path),
		slog.Int("page_width", cfg.Page.Width),
		slog.Int("page_height", cfg.Page.Height),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	inboxFS, err := storage.NewFS(cfg.Inbox.Path)
	if err != nil {
		return nil, fmt.Errorf("init inbox: %w", err)
	}
	exportFS, err := storage.NewFS(cfg.Export.Path)
	if err != nil {
		return nil, fmt.Errorf("init export: %w", err)
	}

	db, err := inkstore.Open(cfg.SQLite.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	metrics, err := render.NewMetrics()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init font metrics: %w", err)
	}

	nb, err := notebook.New(db, metrics, notebook.Options{
		Width:   cfg.Page.Width,
		Height:  cfg.Page.Height,
		Dumps:   exportFS,
		Publish: publish,
		Logger:  logger,
	})
	if err != nil {
		metrics.Close()
		db.Close()
		return nil, err
	}

	return &runtime{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		metrics: metrics,
		inbox:   inboxFS,
		nb:      nb,
	}, nil
}

// close saves the resident page and releases every resource.
func (rt *runtime) close() {
	if err := rt.nb.Close(); err != nil {
		rt.logger.Error("save on shutdown failed", slog.String("error", err.Error()))
	}
	rt.metrics.Close()
	if err := rt.db.Close(); err != nil {
		rt.logger.Error("close store failed", slog.String("error", err.Error()))
	}
}

// checkConsistency logs documents whose page numbering has gaps. Gaps are
// left alone; the repair command renumbers them.
func (rt *runtime) checkConsistency(ctx context.Context) {
	gaps, err := rt.nb.Check(ctx)
	if err != nil {
		rt.logger.Warn("consistency check failed", slog.String("error", err.Error()))
		return
	}
	for _, g := range gaps {
		rt.logger.Warn("page numbering has gaps",
			slog.String("document", g.Document),
			slog.Any("missing", g.Missing()))
	}
}

// loadHome makes page 0 of the configured home document resident.
func (rt *runtime) loadHome(ctx context.Context) error {
	if err := rt.nb.Load(ctx, rt.cfg.Page.Home, 0); err != nil {
		return fmt.Errorf("load home page: %w", err)
	}
	return nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	// SSE broker.
	broker := sse.NewBroker(time.Second)
	defer broker.Close()

	rt, err := setup(opts, broker.PublishPageEvent)
	if err != nil {
		return err
	}
	defer rt.close()

	cfg := rt.cfg
	logger := rt.logger

	rt.checkConsistency(ctx)
	if err := rt.loadHome(ctx); err != nil {
		return err
	}

	// Import dumps that arrived while the server was down.
	if _, err := inbox.Sync(ctx, rt.nb, rt.inbox, logger); err != nil {
		logger.Warn("initial inbox sync failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(rt.nb, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if st := rt.nb.Status(req.Context()); st.State != "resident" {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"no page loaded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the inbox and announce imports.
	g.Go(func() error {
		return inbox.Watch(gCtx, rt.nb, rt.inbox, logger, func(key models.PageKey, path string) {
			logger.Info("inbox: page imported",
				slog.String("document", key.Document),
				slog.Int("page", key.Page),
				slog.String("path", path))
		})
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
		defer signal.Stop(quit)

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

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the inbox watcher stops with the server.
var errShutdown = errors.New("shutdown")
