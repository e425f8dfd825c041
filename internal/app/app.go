// Package app assembles the storage, AI and engine services shared by the
// web server and the CLI.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/scrypster/companion/internal/backup"
	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/internal/importer"
	"github.com/scrypster/companion/internal/llm"
	"github.com/scrypster/companion/internal/observability"
	"github.com/scrypster/companion/internal/services"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/internal/storage/postgres"
	"github.com/scrypster/companion/internal/storage/sqlite"
	"github.com/scrypster/companion/pkg/types"
)

// Broadcaster is a Notifier whose targets can be added after the services
// that notify it were built.
type Broadcaster struct {
	mu      sync.RWMutex
	targets []engine.Notifier
}

// Add registers n to receive every later event.
func (b *Broadcaster) Add(n engine.Notifier) {
	if n == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets = append(b.targets, n)
}

// Notify forwards event to every target.
func (b *Broadcaster) Notify(event types.Event) {
	b.mu.RLock()
	targets := b.targets
	b.mu.RUnlock()
	engine.MultiNotifier(targets).Notify(event)
}

// App holds the wired services. Embedder is nil when the provider has no
// embeddings API.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     storage.Store
	Events    *Broadcaster
	Persons   *engine.PersonService
	Memories  *engine.MemoryService
	Directory *engine.Directory
	Assistant *llm.Assistant
	Embedder  llm.EmbeddingGenerator
	Sources   engine.SourceSelector
	Settings  *services.SettingsService
	Importer  *importer.JournalImporter

	cache *llm.AnalysisCache
}

// OpenStore opens the storage engine named by cfg and applies migrations.
func OpenStore(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.Open(cfg.Storage.PostgresDSN, logger)
	case "sqlite", "":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return sqlite.Open(cfg.Storage.SQLitePath(), logger)
	default:
		return nil, fmt.Errorf("unsupported storage engine: %q", cfg.Storage.Engine)
	}
}

// New opens the store and builds the services. User settings stored in the
// database override cfg.User. metrics may be nil.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	a, err := build(ctx, cfg, store, logger, metrics)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg *config.Config, store storage.Store, logger *zap.Logger, metrics *observability.Metrics) (*App, error) {
	if err := cfg.LoadUserSettings(ctx, store); err != nil {
		logger.Warn("user settings unavailable, using defaults", zap.Error(err))
	}

	gen, err := llm.NewTextGenerator(cfg.AI.ProviderConfig(), logger)
	if err != nil {
		return nil, err
	}

	opts := []llm.AssistantOption{llm.WithLogger(logger)}
	var cache *llm.AnalysisCache
	if cfg.AI.CacheSize > 0 {
		cache, err = llm.NewAnalysisCache(int64(cfg.AI.CacheSize), cfg.AI.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to create analysis cache: %w", err)
		}
		opts = append(opts, llm.WithAnalysisCache(cache))
	}
	if metrics != nil {
		opts = append(opts,
			llm.WithCallObserver(metrics.AICallObserver(cfg.AI.Provider)),
			llm.WithCacheObserver(metrics.ObserveCache))
	}
	assistant := llm.NewAssistant(gen, opts...)

	events := &Broadcaster{}
	persons := engine.NewPersonService(store, events, logger)
	memories := engine.NewMemoryService(store, events, logger)

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Events:    events,
		Persons:   persons,
		Memories:  memories,
		Directory: engine.NewDirectory(persons, memories, logger),
		Assistant: assistant,
		Sources:   engine.KeywordSelector,
		Settings:  services.NewSettingsService(store, cfg, logger),
		Importer:  importer.NewJournalImporter(persons, memories, logger),
		cache:     cache,
	}

	embedder, err := llm.NewEmbeddingGenerator(cfg.AI.ProviderConfig(), logger)
	if err != nil {
		logger.Warn("embeddings unavailable", zap.Error(err))
	}
	a.Embedder = embedder
	if cfg.AI.SourceMode == config.SourceModeSemantic {
		if embedder == nil {
			logger.Warn("semantic sources need an embeddings provider, using keyword sources",
				zap.String("provider", cfg.AI.Provider))
		} else {
			a.Sources = engine.NewSemanticSources(embedder, store, logger)
		}
	}

	logger.Info("services ready",
		zap.String("storage", cfg.Storage.Engine),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("ai_model", assistant.Model()),
		zap.String("source_mode", cfg.AI.SourceMode))
	return a, nil
}

// NewBackupService builds the SQLite backup service for cfg. Other storage
// engines are backed up with their own tooling.
func NewBackupService(cfg *config.Config, logger *zap.Logger) (*backup.Service, error) {
	if cfg.Storage.Engine != "sqlite" && cfg.Storage.Engine != "" {
		return nil, fmt.Errorf("backups require the sqlite engine, not %q", cfg.Storage.Engine)
	}
	dir := cfg.Backup.Path
	if dir == "" {
		dir = filepath.Join(cfg.Storage.DataPath, "backups")
	}
	return backup.NewService(backup.Config{
		DBPath:    cfg.Storage.SQLitePath(),
		Dir:       dir,
		Interval:  cfg.Backup.Interval,
		Retention: cfg.Backup.Retention,
		Verify:    cfg.Backup.Verify,
	}, logger)
}

// NewEnricher creates the background enricher and connects it to the memory
// service. Embeddings are stored when an embedder is available.
func (a *App) NewEnricher(metrics *observability.Metrics) (*engine.Enricher, error) {
	ecfg := engine.DefaultEnricherConfig()
	ecfg.NumWorkers = a.Config.Enrichment.Workers
	ecfg.QueueSize = a.Config.Enrichment.QueueSize
	ecfg.MaxRetries = a.Config.Enrichment.MaxRetries

	enricher, err := engine.NewEnricher(a.Memories, a.Assistant, ecfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Memories.SetEnqueuer(enricher)
	if a.Embedder != nil {
		enricher.SetEmbedder(a.Embedder, a.Store)
	}
	if metrics != nil {
		enricher.SetOutcomeObserver(metrics.ObserveEnrichment)
	}
	return enricher, nil
}

// NewSessions creates the registry of capture and query sessions. It is
// registered for change events so captures follow person deletions.
func (a *App) NewSessions() *engine.SessionRegistry {
	reg := engine.NewSessionRegistry(a.Persons, a.Memories, a.Assistant, a.Sources, a.Config.Sessions.TTL, a.Logger)
	a.Events.Add(reg)
	return reg
}

// Close releases the cache and the store.
func (a *App) Close() error {
	if a.cache != nil {
		a.cache.Close()
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}
	return nil
}
