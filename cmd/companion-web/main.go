// Command companion-web serves the Memory Companion REST API and live
// change events.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/app"
	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/internal/logging"
	"github.com/scrypster/companion/internal/notify"
	"github.com/scrypster/companion/internal/observability"
	"github.com/scrypster/companion/internal/server"
	"github.com/scrypster/companion/pkg/types"
	"github.com/scrypster/companion/web/handlers"
)

const sessionPruneInterval = time.Minute

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (default: $COMPANION_CONFIG_FILE)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "companion-web: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.Security.Mode, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(nil)

	a, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close failed", zap.Error(err))
		}
	}()

	enricher, err := a.NewEnricher(metrics)
	if err != nil {
		return fmt.Errorf("failed to create enricher: %w", err)
	}
	sessions := a.NewSessions()

	hub := handlers.NewWebSocketHub(wsOrigins(cfg), logger)
	hub.OnClientsChanged(func(n int) { metrics.WebSocketClients.Set(float64(n)) })
	a.Events.Add(hub)

	if err := enricher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start enricher: %w", err)
	}
	go sessions.Run(ctx, sessionPruneInterval)

	// Events written by the CLI.
	watcher := notify.NewEventWatcher(cfg.Storage.DataPath, relay(hub, sessions, enricher), logger)
	if err := watcher.Start(); err != nil {
		logger.Warn("event watcher unavailable, CLI changes will not refresh clients", zap.Error(err))
	}
	defer watcher.Stop()

	if cfg.Backup.Enabled {
		startBackups(ctx, cfg, logger, metrics)
	}

	srv, err := server.Start(ctx, server.Options{
		Config:  cfg,
		API:     apiHandlers(a, sessions, enricher, logger),
		Imports: handlers.NewImportHandlers(a.Importer, logger),
		Hub:     hub,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	logger.Info("Memory Companion running", zap.String("url", "http://"+srv.Addr()))

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := enricher.Shutdown(shutdownCtx); err != nil {
		logger.Error("enricher shutdown failed", zap.Error(err))
	}
	<-srv.Done()
	return nil
}

func apiHandlers(a *app.App, sessions *engine.SessionRegistry, queue handlers.QueueSizeGetter, logger *zap.Logger) *handlers.APIHandlers {
	return handlers.NewAPIHandlers(handlers.Deps{
		Persons:   a.Persons,
		Memories:  a.Memories,
		Directory: a.Directory,
		Sessions:  sessions,
		Analyzer:  a.Assistant,
		Settings:  a.Settings,
		Queue:     queue,
		Logger:    logger,
	})
}

func startBackups(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) {
	svc, err := app.NewBackupService(cfg, logger)
	if err != nil {
		logger.Warn("backups disabled", zap.Error(err))
		return
	}
	svc.SetObserver(metrics.ObserveBackup)
	go func() {
		if err := svc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("backup service stopped", zap.Error(err))
		}
	}()
}

// wsOrigins returns the origins allowed to open the event socket.
func wsOrigins(cfg *config.Config) []string {
	if len(cfg.Server.AllowedOrigins) > 0 {
		return cfg.Server.AllowedOrigins
	}
	return handlers.OriginsFor(cfg.Server.Port)
}

// enqueuer accepts memories for background analysis.
type enqueuer interface {
	Enqueue(memoryID string) bool
}

// relay forwards an event from another process to live clients and open
// sessions. Memories created elsewhere are queued here, since the writing
// process may exit before analyzing them.
func relay(clients, sessions engine.Notifier, queue enqueuer) func(types.Event) {
	return func(e types.Event) {
		clients.Notify(e)
		sessions.Notify(e)
		if e.Type == types.EventMemoryCreated && e.MemoryID != "" {
			queue.Enqueue(e.MemoryID)
		}
	}
}
