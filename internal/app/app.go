// Package app wires the application components together.
package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imitor/internal/common"
	"github.com/ternarybob/imitor/internal/handlers"
	"github.com/ternarybob/imitor/internal/logs"
	"github.com/ternarybob/imitor/internal/services/assets"
	"github.com/ternarybob/imitor/internal/services/crawler"
	"github.com/ternarybob/imitor/internal/services/generator"
	"github.com/ternarybob/imitor/internal/services/orchestrator"
	"github.com/ternarybob/imitor/internal/services/retention"
	"github.com/ternarybob/imitor/internal/services/scraper"
	"github.com/ternarybob/imitor/internal/storage"
	"github.com/ternarybob/imitor/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	BadgerDB *badger.BadgerDB
	JobStore *storage.JobStore

	// Log streaming
	LogHub *logs.Hub

	// Pipeline services
	BrowserPool  *scraper.BrowserPool
	Scraper      *scraper.Service
	Discoverer   *crawler.Discoverer
	Generator    *generator.Service
	Embedder     *assets.Embedder
	Orchestrator *orchestrator.Service
	Sweeper      *retention.Sweeper

	// HTTP handlers
	CloneHandler *handlers.CloneHandler
	LogsHandler  *handlers.LogsHandler
	WSHandler    *handlers.WebSocketHandler
	APIHandler   *handlers.APIHandler
}

// New initializes the application in dependency order: storage, browser
// pool, pipeline services, then handlers.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize storage
	db, err := badger.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.BadgerDB = db
	a.JobStore = storage.NewJobStore(badger.NewSnapshotStorage(db, logger), logger)

	// Log hub for per-job streaming
	a.LogHub = logs.NewHub(logger)

	// Browser pool shared by the scraper across all jobs
	a.BrowserPool = scraper.NewBrowserPool(logger)
	if err := a.BrowserPool.Init(scraper.BrowserPoolConfig{
		MaxInstances:   cfg.Scraper.MaxInstances,
		UserAgent:      cfg.Scraper.UserAgent,
		Headless:       cfg.Scraper.Headless,
		RequestTimeout: cfg.Scraper.RequestTimeout,
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize browser pool: %w", err)
	}
	a.Scraper = scraper.NewService(a.BrowserPool, &cfg.Scraper, logger)

	// Page discovery and clone generation
	a.Discoverer = crawler.NewDiscoverer(a.Scraper, &cfg.Crawler, logger)
	a.Generator, err = generator.NewService(&cfg.Claude, &cfg.Gemini, logger)
	if err != nil {
		a.BrowserPool.Shutdown()
		db.Close()
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	// Asset embedding for jobs that request offline-complete output
	a.Embedder = assets.NewEmbedder(logger)

	// Pipeline orchestrator
	a.Orchestrator = orchestrator.NewService(
		a.JobStore,
		a.LogHub,
		a.Discoverer,
		a.Scraper,
		a.Generator,
		a.Embedder,
		&cfg.Clone,
		logger,
	)

	// Optional retention sweep for terminal jobs
	a.Sweeper, err = retention.NewSweeper(&cfg.Retention, a.JobStore, a.LogHub, logger)
	if err != nil {
		a.BrowserPool.Shutdown()
		db.Close()
		return nil, fmt.Errorf("failed to initialize retention sweeper: %w", err)
	}
	if a.Sweeper != nil {
		a.Sweeper.Start()
	}

	// HTTP handlers
	a.CloneHandler = handlers.NewCloneHandler(a.Orchestrator, logger)
	a.LogsHandler = handlers.NewLogsHandler(a.Orchestrator, a.LogHub, logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.Orchestrator, a.LogHub, logger)
	a.APIHandler = handlers.NewAPIHandler(logger)

	logger.Info().
		Str("storage", cfg.Storage.Badger.Path).
		Int("browser_pool", cfg.Scraper.MaxInstances).
		Msg("Application initialization complete")

	return a, nil
}

// Close releases application resources in reverse dependency order
func (a *App) Close() error {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}

	if a.BrowserPool != nil {
		if err := a.BrowserPool.Shutdown(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down browser pool")
		}
	}

	if a.BadgerDB != nil {
		if err := a.BadgerDB.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
