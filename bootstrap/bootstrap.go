// Package bootstrap wires all dependencies and starts the gateway:
// discover modules, load them, graft their routes, and serve.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gatehttp "github.com/artpar/toolgate/adapters/http"
	"github.com/artpar/toolgate/adapters/metrics"
	"github.com/artpar/toolgate/adapters/watch"
	"github.com/artpar/toolgate/config"
	"github.com/artpar/toolgate/core/analytics"
	"github.com/artpar/toolgate/core/descriptor"
	"github.com/artpar/toolgate/core/handler"
	"github.com/artpar/toolgate/core/loader"
	"github.com/artpar/toolgate/core/openapi"
	"github.com/artpar/toolgate/core/registry"
	"github.com/artpar/toolgate/core/search"
	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// App is the running gateway.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Registry   *registry.Registry
	OpenAPI    *openapi.Service
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	router    chi.Router
	gateway   *gatehttp.GatewayHandler
	index     *search.Index
	analytics analytics.Store
	db        *sql.DB
	watcher   *watch.Watcher
}

// New builds the gateway from its configuration. Discovery failure is
// fatal; per-module load and mount failures are logged and the module is
// skipped.
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	logger.Info().Str("root", cfg.Modules.Root).Msg("initializing toolgate")

	a := &App{
		Logger:   logger,
		Config:   cfg,
		Registry: registry.New(),
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initAnalytics(); err != nil {
		return nil, fmt.Errorf("init analytics: %w", err)
	}

	a.OpenAPI = openapi.NewService(openapi.Info{
		Title:       cfg.OpenAPI.Title,
		Version:     cfg.OpenAPI.Version,
		Description: cfg.OpenAPI.Description,
	}, a.Registry, logger)
	if a.Metrics != nil {
		a.OpenAPI.SetBuildHook(a.Metrics.SchemaBuilds.Inc)
	}

	if err := a.buildRoutingTree(); err != nil {
		return nil, err
	}

	if cfg.Search.Enabled {
		if err := a.buildSearchIndex(); err != nil {
			return nil, fmt.Errorf("build search index: %w", err)
		}
	}

	if cfg.Modules.Watch {
		if err := a.startWatcher(); err != nil {
			logger.Warn().Err(err).Msg("module tree watcher unavailable")
		}
	}

	a.HTTPServer = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// buildRoutingTree discovers, loads and mounts every module, then wires
// the front door around them. The tree is immutable once built.
func (a *App) buildRoutingTree() error {
	descs, err := descriptor.Discover(a.Config.Modules.Root)
	if err != nil {
		return fmt.Errorf("discover modules: %w", err)
	}

	ld := loader.New(a.Registry, handler.Builtin(), a.Logger)
	loaded := ld.LoadAll(descs)

	gw := gatehttp.NewGatewayHandler(gatehttp.GatewayDeps{
		Registry:  a.Registry,
		OpenAPI:   a.OpenAPI,
		Analytics: a.analytics,
		Logger:    a.Logger,
		Title:     a.Config.OpenAPI.Title,
	})
	a.OpenAPI.AddGatewayOps(gatehttp.GatewayOps()...)

	r := gatehttp.NewRouter(gw, a.Logger, gatehttp.RouterConfig{
		Metrics:     a.Metrics,
		MetricsPath: a.Config.Metrics.Path,
		Analytics:   a.analytics,
	})

	mounted := 0
	for _, mod := range loaded {
		if mod.Failed() {
			if a.Metrics != nil {
				a.Metrics.ModuleLoadFailures.WithLabelValues(mod.Descriptor.Name).Inc()
			}
			continue
		}
		if err := gatehttp.Mount(r, mod); err != nil {
			a.Logger.Warn().
				Err(err).
				Str("module", mod.Descriptor.Name).
				Msg("skipping module: mount failed")
			// Keep the listing and schema consistent with routing.
			a.Registry.Remove(mod.Descriptor.Name)
			if a.Metrics != nil {
				a.Metrics.ModuleLoadFailures.WithLabelValues(mod.Descriptor.Name).Inc()
			}
			continue
		}
		mounted++
	}

	if a.Metrics != nil {
		a.Metrics.ModulesLoaded.Set(float64(mounted))
	}
	a.Logger.Info().
		Int("discovered", len(descs)).
		Int("mounted", mounted).
		Msg("routing tree built")

	a.router = r
	a.gateway = gw
	return nil
}

// buildSearchIndex indexes every mounted operation for /search.
func (a *App) buildSearchIndex() error {
	idx, err := search.New()
	if err != nil {
		return err
	}
	for _, e := range a.Registry.List() {
		for _, rt := range e.Routes {
			path := e.Prefix + rt.Path
			doc := search.Doc{
				OperationID: openapi.FirstSegment(path) + "__" + rt.OperationID,
				Module:      e.Name,
				Path:        path,
				Method:      rt.Method,
				Summary:     rt.Summary,
				Tags:        rt.Tags,
			}
			if err := idx.Add(doc); err != nil {
				return err
			}
		}
	}
	a.index = idx
	a.gateway.SetIndex(idx)
	a.Logger.Info().Int("operations", idx.Len()).Msg("operation search index built")
	return nil
}

func (a *App) initAnalytics() error {
	cfg := a.Config.Analytics
	if !cfg.Enabled {
		return nil
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return fmt.Errorf("open analytics db: %w", err)
	}
	db.SetMaxOpenConns(1)

	store, err := analytics.NewSQLiteStore(db, analytics.SQLiteConfig{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	})
	if err != nil {
		db.Close()
		return err
	}
	a.db = db
	a.analytics = store
	a.Logger.Info().Str("dsn", cfg.DSN).Msg("request analytics enabled")
	return nil
}

func (a *App) startWatcher() error {
	onChange := func() {
		if a.Metrics != nil {
			a.Metrics.ModuleTreeChanges.Inc()
		}
	}
	w, err := watch.New(a.Config.Modules.Root, a.Logger, onChange)
	if err != nil {
		return err
	}
	w.Start()
	a.watcher = w
	return nil
}

// Handler exposes the routing tree, primarily for tests.
func (a *App) Handler() http.Handler { return a.router }

// Run starts the HTTP server and blocks until an interrupt or a server
// error, then shuts down.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Int("modules", a.Registry.Len()).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the gateway.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.watcher != nil {
		a.watcher.Stop()
	}
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("http server shutdown error")
	}
	if a.analytics != nil {
		if err := a.analytics.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("analytics store close error")
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.index != nil {
		a.index.Close()
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
