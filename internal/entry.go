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

	"github.com/starford/headless/internal/api"
	"github.com/starford/headless/internal/content"
	"github.com/starford/headless/internal/contentstore"
	"github.com/starford/headless/internal/docservice"
	"github.com/starford/headless/internal/hn"
	"github.com/starford/headless/internal/index"
	"github.com/starford/headless/internal/logging"
	"github.com/starford/headless/internal/mcpserver"
	"github.com/starford/headless/internal/respcache"
	"github.com/starford/headless/internal/sse"
	"github.com/starford/headless/internal/storage"
	"github.com/starford/headless/internal/stripfields"
)

// runtime holds the components shared by every command.
type runtime struct {
	logger    *slog.Logger
	store     storage.Provider
	db        *index.DB
	cache     respcache.Cache
	graph     *hn.Service
	docs      *docservice.Service
	listeners []index.EventCallback
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup opens storage, index and cache and wires the graph service.
func (app *application) setup() (*runtime, error) {
	cfg := app.config

	logger := logging.New(app.logOutput, cfg.App.LogFormat, cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("cache_driver", cfg.Cache.Driver),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path, index.WithDefaultLangcode(cfg.Site.DefaultLanguage))
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	rt := &runtime{logger: logger, store: store, db: db}

	if cfg.Cache.Enabled() {
		rt.cache, err = respcache.Open(cfg.Cache.Driver, cfg.Cache.Path, db.Conn())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init cache: %w", err)
		}
	}

	cs := contentstore.New(db, cfg.Site.StoreSettings(), contentstore.WithLogger(logger))
	graphOpts := []hn.ServiceOption{
		hn.WithLimits(cfg.Graph.Limits()),
		hn.WithLogger(logger),
	}
	if rt.cache != nil {
		graphOpts = append(graphOpts, hn.WithCache(rt.cache))
	}
	if len(cfg.StripFields) > 0 {
		graphOpts = append(graphOpts, hn.WithSubscribers(stripfields.New(cfg.StripFields)))
	}
	rt.graph = hn.NewService(cs, graphOpts...)
	rt.docs = docservice.NewService(store, db, docservice.WithChangeCallback(rt.notify))

	return rt, nil
}

// notify drops cached responses tagged by the change and informs listeners.
func (rt *runtime) notify(c index.Change) {
	if rt.cache != nil && len(c.Tags) > 0 {
		if err := rt.cache.InvalidateTags(context.Background(), c.Tags...); err != nil {
			rt.logger.Warn("cache invalidation failed",
				slog.String("path", c.Path), slog.String("error", err.Error()))
		}
	}
	for _, l := range rt.listeners {
		l(c)
	}
}

// sync brings the index up to date. Changes made while the process was down
// still invalidate a persistent cache.
func (rt *runtime) sync() {
	if err := index.Sync(rt.db, rt.store, rt.logger, rt.notify); err != nil {
		rt.logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
}

func (rt *runtime) close() {
	if rt.cache != nil {
		if err := rt.cache.Close(); err != nil {
			rt.logger.Warn("cache close failed", slog.String("error", err.Error()))
		}
	}
	rt.db.Close()
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.close()

	cfg := app.config
	logger := rt.logger

	rt.sync()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	rt.listeners = append(rt.listeners, func(c index.Change) {
		broker.PublishChange(c.Kind, c.Path, c.Tags)
	})

	apiRouter := api.NewRouter(rt.graph, rt.docs, api.Options{
		Access: api.AccessPolicy{
			AuthEnabled:   cfg.Auth.AuthEnabled(),
			Token:         cfg.Auth.Token,
			Anonymous:     cfg.Access.Anonymous,
			Authenticated: cfg.Access.Authenticated,
		},
		MaxAge: cfg.Cache.MaxAge,
		Events: broker,
	})

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
		if err := rt.db.Conn().PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher; every index change invalidates the cache and
	// reaches SSE clients.
	g.Go(func() error {
		if err := index.Watch(gCtx, rt.db, rt.store, cfg.Vault.Path, logger, rt.notify); err != nil {
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

// RunSync indexes the vault once and exits.
func RunSync(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.close()

	var changes int
	rt.listeners = append(rt.listeners, func(index.Change) { changes++ })

	if app.clearCache && rt.cache != nil {
		if err := rt.cache.Clear(ctx); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
		rt.logger.Info("Response cache cleared")
	}
	if err := index.Sync(rt.db, rt.store, rt.logger, rt.notify); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	rt.logger.Info("Sync finished", slog.Int("changes", changes))
	return nil
}

// RunMCP serves the MCP tools over stdio. Graphs are built with the
// authenticated permissions.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	rt, err := app.setup()
	if err != nil {
		return err
	}
	defer rt.close()

	rt.sync()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := index.Watch(watchCtx, rt.db, rt.store, app.config.Vault.Path, rt.logger, rt.notify); err != nil {
			rt.logger.Error("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	account := content.NewAccount(api.AccountAuthenticated, app.config.Access.Authenticated...)
	return mcpserver.New(rt.graph, rt.docs, account).ServeStdio()
}
