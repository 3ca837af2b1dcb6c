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

	"github.com/starford/atlas/internal/api"
	"github.com/starford/atlas/internal/chart"
	"github.com/starford/atlas/internal/chartservice"
	"github.com/starford/atlas/internal/index"
	"github.com/starford/atlas/internal/logging"
	"github.com/starford/atlas/internal/metrics"
	"github.com/starford/atlas/internal/render"
	"github.com/starford/atlas/internal/sse"
	"github.com/starford/atlas/internal/storage"
	"github.com/starford/atlas/internal/svgtext"
)

// runtime holds the collaborators shared by the server and the MCP server.
type runtime struct {
	logger  *slog.Logger
	store   storage.Provider
	builder *chart.Builder
	db      *index.DB
	metrics *metrics.Metrics
	svc     *chartservice.Service
}

// openCharts prepares the charts root and the chart builder.
func openCharts(cfg *Config, logger *slog.Logger) (storage.Provider, *chart.Builder, error) {
	if err := os.MkdirAll(cfg.Charts.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create charts dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Charts.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	svgCache, err := svgtext.NewCache(cfg.Search.SVGCacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("init svg cache: %w", err)
	}
	return store, chart.NewBuilder(store, svgCache, logger), nil
}

// bootstrap opens storage and the index and runs the initial sync. The
// caller closes rt.db.
func bootstrap(app *application, logger *slog.Logger) (*runtime, error) {
	cfg := app.config
	store, builder, err := openCharts(cfg, logger)
	if err != nil {
		return nil, err
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	rt := &runtime{logger: logger, store: store, builder: builder, db: db, metrics: metrics.New(app.registry)}
	rt.svc = chartservice.NewService(chartservice.Deps{
		Store:   store,
		DB:      db,
		Builder: builder,
		Metrics: rt.metrics,
		Logger:  logger,
	})

	if err := rt.svc.Reindex(context.Background()); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return rt, nil
}

// Run starts the site server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger, closeLog, err := logging.Setup(cfg.App.Logging())
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("charts_path", cfg.Charts.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("search_layout", cfg.Search.Layout),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt, err := bootstrap(app, logger)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	// SSE broker. Index changes reach it through the service.
	broker := sse.NewBroker(sse.Options{SiteThrottle: 2 * time.Second})
	defer broker.Close()
	rt.svc.SetOnChange(broker.PublishChartEvent)

	tpl, err := render.New()
	if err != nil {
		return fmt.Errorf("init templates: %w", err)
	}
	h := api.NewHandler(rt.svc, tpl, cfg.Search.ParsedLayout())
	h.SetFeed(api.FeedOptions{Title: cfg.Feed.Title, BaseURL: cfg.Feed.BaseURL})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(rt.metrics.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := rt.db.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", rt.metrics.Handler())

	// API routes first; the site's chart pages catch everything else.
	r.Mount("/api", api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))
	api.MountSite(r, h, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher; its events flow through the service to the broker.
	g.Go(func() error {
		if err := index.Watch(gCtx, rt.db, rt.builder, rt.store, logger, rt.svc.HandleEvent); err != nil {
			logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
		return nil
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

// errShutdown stops the errgroup once the server has been shut down, so the
// watcher goroutine exits with it.
var errShutdown = errors.New("shutdown")
