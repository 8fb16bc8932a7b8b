// Package server provides the composition root: it builds every collaborator from
// config and owns their lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/api"
	"github.com/JakeFAU/jobboard-harvester/internal/apply"
	"github.com/JakeFAU/jobboard-harvester/internal/board"
	rediscache "github.com/JakeFAU/jobboard-harvester/internal/cache/redis"
	"github.com/JakeFAU/jobboard-harvester/internal/clock/system"
	"github.com/JakeFAU/jobboard-harvester/internal/config"
	"github.com/JakeFAU/jobboard-harvester/internal/discovery"
	"github.com/JakeFAU/jobboard-harvester/internal/extract"
	"github.com/JakeFAU/jobboard-harvester/internal/fetcher/proxy"
	"github.com/JakeFAU/jobboard-harvester/internal/hash/sha256"
	"github.com/JakeFAU/jobboard-harvester/internal/id/uuid"
	"github.com/JakeFAU/jobboard-harvester/internal/policy/ratelimit"
	"github.com/JakeFAU/jobboard-harvester/internal/policy/retry"
	gcppublisher "github.com/JakeFAU/jobboard-harvester/internal/publisher/pubsub"
	"github.com/JakeFAU/jobboard-harvester/internal/scrape"
	"github.com/JakeFAU/jobboard-harvester/internal/search"
	"github.com/JakeFAU/jobboard-harvester/internal/sink"
	gcsstorage "github.com/JakeFAU/jobboard-harvester/internal/storage/gcs"
	localstorage "github.com/JakeFAU/jobboard-harvester/internal/storage/local"
	memoryStorage "github.com/JakeFAU/jobboard-harvester/internal/storage/memory"
	pgstore "github.com/JakeFAU/jobboard-harvester/internal/storage/postgres"
)

const shutdownTimeout = 10 * time.Second

// stores groups the catalog and ledger implementations chosen at startup.
type stores struct {
	companies board.CompanyStore
	jobs      board.JobStore
	apps      board.ApplicationStore
	credits   board.CreditLedger
}

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	apiServer *api.Server
	discovery *discovery.Engine
	scrape    *scrape.Engine

	db              *pgstore.Store
	cache           *rediscache.VisitCache
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	storage         *storage.Client
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) *App {
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.Strings("strategies", cfg.Discovery.Strategies),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("postgres", cfg.DB.DSN != ""),
		zap.Bool("redis", cfg.Redis.Addr != ""),
	)
	return &App{cfg: cfg, logger: logger}
}

// Discovery returns the discovery engine.
func (a *App) Discovery() *discovery.Engine { return a.discovery }

// Scrape returns the scrape engine.
func (a *App) Scrape() *scrape.Engine { return a.scrape }

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.apiServer.Handler() }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// RunDiscovery executes one discovery run.
func (a *App) RunDiscovery(ctx context.Context) (board.RunSummary, error) {
	return a.discovery.Run(ctx)
}

// RunScrape executes one scrape run.
func (a *App) RunScrape(ctx context.Context) (board.RunSummary, error) {
	return a.scrape.Run(ctx)
}

// Migrate applies the catalog schema. It fails when no database is configured.
func (a *App) Migrate(ctx context.Context) error {
	if a.db == nil {
		return fmt.Errorf("db.dsn is required to migrate: %w", board.ErrConfig)
	}
	if err := a.db.Migrate(ctx); err != nil {
		return err
	}
	a.logger.Info("schema applied")
	return nil
}

// SetCredits grants userID a credit balance in the configured database. Nil means unlimited.
func (a *App) SetCredits(ctx context.Context, userID string, credits *int) error {
	if a.db == nil {
		return fmt.Errorf("db.dsn is required to set credits: %w", board.ErrConfig)
	}
	if err := a.db.SetCredits(ctx, userID, credits); err != nil {
		return err
	}
	if credits == nil {
		a.logger.Info("credits set", zap.String("user_id", userID), zap.Bool("unlimited", true))
	} else {
		a.logger.Info("credits set", zap.String("user_id", userID), zap.Int("credits", *credits))
	}
	return nil
}

// Run serves HTTP and blocks until the context is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases every client the App opened.
func (a *App) Close() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	a.logger.Info("shutdown complete")
}

// Build creates the application's dependencies. On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := NewApp(cfg, logger)
	if err := app.wire(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}
	searchEngine, err := search.NewEngine(cfg.Search.Endpoint)
	if err != nil {
		return fmt.Errorf("search engine init failed: %w", err)
	}
	gateway, err := setupGateway(a)
	if err != nil {
		return err
	}

	st, err := setupDatabase(ctx, a)
	if err != nil {
		return err
	}
	setupCache(ctx, a)

	blobStore, err := setupStorage(ctx, a)
	if err != nil {
		return err
	}
	publisher, err := setupPublisher(ctx, a)
	if err != nil {
		return err
	}

	sinkOpts := []sink.Option{
		sink.WithConflictPolicy(cfg.ConflictPolicy()),
		sink.WithLogger(logger),
	}
	if publisher != nil {
		sinkOpts = append(sinkOpts, sink.WithPublisher(publisher, cfg.PubSub.TopicName))
	}
	catalogSink := sink.New(st.companies, st.jobs, sinkOpts...)

	ids := uuid.NewUUIDGenerator()
	clock := system.New()

	discoveryDeps := discovery.Deps{
		Fetcher:  gateway,
		Registry: registry,
		Search:   searchEngine,
		Sink:     catalogSink,
		IDs:      ids,
		Clock:    clock,
		Logger:   logger,
	}
	if a.cache != nil {
		discoveryDeps.Cache = a.cache
	}
	a.discovery, err = discovery.New(discoveryDeps, discovery.Options{
		Strategies:    cfg.Discovery.Strategies,
		Concurrency:   cfg.Discovery.Concurrency,
		MaxCandidates: cfg.Discovery.MaxCandidates,
		HiringQuery:   cfg.Search.HiringQuery,
		ExcludeSites:  cfg.Search.ExcludeSites,
	})
	if err != nil {
		return fmt.Errorf("discovery init failed: %w", err)
	}

	extractors := extract.DefaultRegistry()
	logger.Info("job extractors registered", zap.Strings("platforms", extractors.Platforms()))
	a.scrape, err = scrape.New(scrape.Deps{
		Companies:  st.companies,
		Platforms:  registry,
		Fetcher:    retry.NewFetcher(gateway, retry.DefaultPolicy(cfg.Scrape.FetchAttempts), logger),
		Extractors: extractors,
		Sink:       catalogSink,
		Blobs:      blobStore,
		Namer:      sha256.New(),
		IDs:        ids,
		Clock:      clock,
		Logger:     logger,
	}, scrape.Options{
		Concurrency:        cfg.Scrape.Concurrency,
		SnapshotEmptyPages: cfg.Storage.SnapshotEmptyPages,
		SnapshotPrefix:     cfg.Storage.Prefix,
	})
	if err != nil {
		return fmt.Errorf("scrape init failed: %w", err)
	}

	readiness := map[string]api.Pinger{}
	if a.db != nil {
		readiness["postgres"] = a.db
	}
	if a.cache != nil {
		readiness["redis"] = a.cache
	}
	a.apiServer = api.NewServer(api.Deps{
		Discovery: a.discovery,
		Scrape:    a.scrape,
		Jobs:      st.jobs,
		Apply:     apply.NewService(st.apps, st.credits, logger),
		Readiness: readiness,
		Logger:    logger,
	}, api.Options{Auth: cfg.Auth})

	return nil
}

func setupGateway(app *App) (*proxy.Gateway, error) {
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   app.cfg.Proxy.RateLimitRPS,
		DefaultBurst: app.cfg.Proxy.RateLimitBurst,
	})
	gateway, err := proxy.New(proxy.Config{
		Endpoint:  app.cfg.Proxy.Endpoint,
		APIKey:    app.cfg.Proxy.APIKey,
		UserAgent: app.cfg.Proxy.UserAgent,
		Timeout:   app.cfg.FetchTimeout(),
	}, proxy.WithLimiter(limiter), proxy.WithLogger(app.logger))
	if err != nil {
		return nil, fmt.Errorf("fetch gateway init failed: %w", err)
	}
	app.logger.Info("fetch gateway ready",
		zap.String("endpoint", app.cfg.Proxy.Endpoint),
		zap.Duration("timeout", app.cfg.FetchTimeout()),
		zap.Float64("rate_limit_rps", app.cfg.Proxy.RateLimitRPS),
	)
	return gateway, nil
}

func setupDatabase(ctx context.Context, app *App) (stores, error) {
	if app.cfg.DB.DSN == "" {
		app.logger.Warn("no DSN specified for database, using in-memory catalog")
		catalog := memoryStorage.NewCatalog()
		apps := memoryStorage.NewApplications(catalog)
		return stores{companies: catalog, jobs: catalog, apps: apps, credits: apps}, nil
	}
	db, err := pgstore.Open(ctx, pgstore.Config{
		DSN:             app.cfg.DB.DSN,
		MaxConns:        app.cfg.DB.MaxConns,
		MinConns:        app.cfg.DB.MinConns,
		MaxConnLifetime: app.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return stores{}, fmt.Errorf("postgres init failed: %w", err)
	}
	app.db = db
	if app.cfg.DB.Migrate {
		if err := db.Migrate(ctx); err != nil {
			return stores{}, fmt.Errorf("postgres migrate failed: %w", err)
		}
		app.logger.Info("schema applied on startup")
	}
	app.logger.Info("postgres catalog initialized")
	return stores{companies: db, jobs: db, apps: db, credits: db}, nil
}

// setupCache is best effort: discovery runs without cross-run dedup when Redis is down.
func setupCache(ctx context.Context, app *App) {
	if app.cfg.Redis.Addr == "" {
		return
	}
	cache, err := rediscache.New(ctx, rediscache.Config{
		Addr:     app.cfg.Redis.Addr,
		Password: app.cfg.Redis.Password,
		DB:       app.cfg.Redis.DB,
		TTL:      app.cfg.CandidateTTL(),
	}, app.logger)
	if err != nil {
		app.logger.Warn("visit cache unavailable, continuing without it",
			zap.String("addr", app.cfg.Redis.Addr),
			zap.Error(err),
		)
		return
	}
	app.cache = cache
	app.logger.Info("visit cache ready", zap.Duration("ttl", app.cfg.CandidateTTL()))
}

func setupStorage(ctx context.Context, app *App) (board.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobStore, err := gcsstorage.New(client, gcsstorage.Config{Bucket: app.cfg.Storage.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("using GCS storage backend", zap.String("bucket", app.cfg.Storage.Bucket))
		return blobStore, nil
	case "local":
		blobStore, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("using local storage backend", zap.String("path", app.cfg.Storage.Local.BaseDir))
		return blobStore, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return memoryStorage.NewBlobStore(), nil
	}
}

// setupPublisher returns nil when no topic is configured; run summaries are then only logged.
func setupPublisher(ctx context.Context, app *App) (board.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" {
		app.logger.Info("no Pub/Sub topic configured, run summaries will not be published")
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.pubsubPublisher = gcppublisher.New(client.Topic(app.cfg.PubSub.TopicName))
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.pubsubPublisher, nil
}
