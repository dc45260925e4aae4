// Package app assembles the identity bridge: config, store, remote verifier,
// decision pipeline, and the HTTP server, with a graceful lifecycle around
// them.
package app

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/d64ev/humhub-bridge/internal/bridge/http"
	"github.com/d64ev/humhub-bridge/internal/bridge/metrics"
	"github.com/d64ev/humhub-bridge/internal/bridge/remote"
	"github.com/d64ev/humhub-bridge/internal/bridge/service"
	"github.com/d64ev/humhub-bridge/internal/bridge/store"
	"github.com/d64ev/humhub-bridge/internal/bridge/store/drivers/sqlite"
	"github.com/d64ev/humhub-bridge/internal/bridge/token"
	"github.com/d64ev/humhub-bridge/pkg/cryptox"
	"github.com/d64ev/humhub-bridge/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the bridge service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	registry *prometheus.Registry
	recorder *metrics.Collector
	tokens   *token.Provider

	verifier            *remote.Verifier
	reconciler          *service.Reconciler
	pipeline            *service.Pipeline
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "humhub-bridge",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.HumHubURL == "" {
		return nil, errors.New("BRIDGE_HUMHUB_URL is required")
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	secret, err := token.LoadOrGenerateSecret(app.cfg.TokenSecretFile)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to load session token secret: %w", err)
	}
	app.tokens = token.NewProvider(secret, app.cfg.Issuer, app.cfg.TokenTTL)

	app.initMetrics()
	app.initServices()

	if err := app.bootstrapUser(context.Background()); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("bridge service starting",
		"port", app.cfg.Port, "version", BuildVersion, "remote", app.cfg.HumHubURL)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down bridge service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("bridge service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.recorder = metrics.NewCollector(app.registry)
}

func (app *Application) initServices() {
	app.verifier = remote.NewVerifier(remote.Config{
		BaseURL:        app.cfg.HumHubURL,
		ConnectTimeout: app.cfg.RemoteConnectTimeout,
		ReadTimeout:    app.cfg.RemoteReadTimeout,
	})

	app.reconciler = service.NewReconciler(app.db, app.recorder)
	app.pipeline = service.NewPipeline(app.db, app.verifier, app.reconciler, app.recorder)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)
	router.Pipeline = app.pipeline
	router.Tokens = app.tokens
	router.Registry = app.registry
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
