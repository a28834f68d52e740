// Package app initializes and holds the long-lived services of the
// scraper, acting as a dependency injection container. It is built once at
// startup from the loaded configuration and handed to the CLI commands.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/api"
	artifactsgcs "github.com/flatwatch/scraper/internal/artifacts/gcs"
	artifactslocal "github.com/flatwatch/scraper/internal/artifacts/local"
	"github.com/flatwatch/scraper/internal/batcher"
	"github.com/flatwatch/scraper/internal/clock/system"
	"github.com/flatwatch/scraper/internal/config"
	"github.com/flatwatch/scraper/internal/enrich"
	collyfetcher "github.com/flatwatch/scraper/internal/fetcher/colly"
	headlessfetcher "github.com/flatwatch/scraper/internal/fetcher/headless"
	"github.com/flatwatch/scraper/internal/grouper"
	"github.com/flatwatch/scraper/internal/hash/sha256"
	"github.com/flatwatch/scraper/internal/metrics"
	"github.com/flatwatch/scraper/internal/monitor"
	"github.com/flatwatch/scraper/internal/orchestrator"
	"github.com/flatwatch/scraper/internal/policy/ratelimit"
	"github.com/flatwatch/scraper/internal/progress"
	"github.com/flatwatch/scraper/internal/progress/sinks"
	pubsubpublisher "github.com/flatwatch/scraper/internal/publisher/pubsub"
	"github.com/flatwatch/scraper/internal/scrape"
	apistore "github.com/flatwatch/scraper/internal/store/api"
	postgresstore "github.com/flatwatch/scraper/internal/store/postgres"
)

// App holds every shared, long-lived service: the task store, the scrape
// pipeline, the progress hub, and the ops HTTP server. Commands use the
// accessors rather than rebuilding services themselves.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store        monitor.TaskStore
	hub          *progress.Hub
	orchestrator *orchestrator.Orchestrator
	server       *api.Server
	registry     *prometheus.Registry

	closers []func(ctx context.Context)
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store exposes the configured task store.
func (a *App) Store() monitor.TaskStore {
	return a.store
}

// Orchestrator returns the cycle runner.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orchestrator
}

// Server returns the ops HTTP server.
func (a *App) Server() *api.Server {
	return a.server
}

// NewApp builds every service from the shared Viper configuration. It is
// the single composition point and fails fast when a critical dependency
// cannot be initialized.
func NewApp(ctx context.Context, logger *zap.Logger) (*App, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, logger)
}

// New wires an App from an already-validated configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	a.registry = metrics.NewRegistry()
	httpMetrics, err := metrics.NewHTTPMetrics(a.registry)
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, err
	}

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Fetch.PerDomainRPS,
		DefaultBurst: cfg.Fetch.PerDomainBurst,
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.Fetch.RequestTimeout,
	}, limiter)

	var renderer monitor.Fetcher = headlessfetcher.NewNoop()
	headlessReady := false
	if cfg.Headless.Enabled {
		chromedpFetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout,
			WaitSelector:      cfg.Headless.WaitSelector,
			NoSandbox:         cfg.Headless.ChromeNoSandbox,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed; JS-shell pages will not render", zap.Error(err))
		} else {
			renderer = chromedpFetcher
			headlessReady = true
			a.closers = append(a.closers, func(context.Context) { chromedpFetcher.Close() })
		}
	}

	registry := scrape.DefaultRegistry(scrape.StrategyDeps{
		Fetcher:  fetcher,
		Renderer: renderer,
		Detector: scrape.NewShellDetector(cfg.Headless.MinHTMLBytes),
		Timeout:  cfg.Fetch.RequestTimeout,
		Logger:   logger.Named("scrape"),
	})
	resolver := scrape.NewResolver(registry, sha256.New(), logger.Named("resolver"))

	blocklist := monitor.NewBlocklist(cfg.Monitor.BlockedSources)
	grp := grouper.New(blocklist, logger.Named("grouper"))

	var enricher monitor.Enricher = enrich.Noop{}
	if cfg.Enrichment.Endpoint != "" {
		enricher = enrich.NewHTTPSummarizer(cfg.Enrichment.Endpoint, cfg.Enrichment.Timeout, logger.Named("enrich"))
	}

	policy := monitor.NewRetryPolicy(
		cfg.Persistence.MaxAttempts,
		cfg.Persistence.BackoffBase,
		cfg.Persistence.BackoffMax,
	)
	persist := batcher.New(a.store, policy, cfg.Persistence.BatchSize, logger.Named("batcher"))

	publisher, err := a.initPublisher(ctx)
	if err != nil {
		return nil, err
	}
	artifacts, err := a.initArtifacts(ctx)
	if err != nil {
		return nil, err
	}

	statusSink := sinks.NewStatusSink()
	promSink, err := sinks.NewPrometheusSink(a.registry)
	if err != nil {
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	a.hub = progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		statusSink,
	)
	a.closers = append(a.closers, func(ctx context.Context) {
		if err := a.hub.Close(ctx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	})

	a.server = api.NewServer(blocklist, statusSink, a.store, a.registry, logger.Named("api"), httpMetrics.Middleware)

	a.orchestrator = orchestrator.New(
		orchestrator.Config{
			Interval:      cfg.Monitor.Interval,
			CycleDeadline: cfg.Monitor.CycleDeadline,
			Concurrency:   cfg.Monitor.Concurrency,
			CleanupDays:   cfg.Monitor.CleanupDays,
			CleanupEvery:  cfg.Monitor.CleanupEvery,
		},
		a.store,
		grp,
		resolver,
		nil, // the fetcher already waits on the per-domain limiter
		enricher,
		persist,
		publisher,
		artifacts,
		a.hub,
		system.New(),
		logger.Named("orchestrator"),
	)

	logger.Info("application services initialized",
		zap.Duration("interval", cfg.Monitor.Interval),
		zap.Int("concurrency", cfg.Monitor.Concurrency),
		zap.Bool("headless", headlessReady),
	)
	return a, nil
}

// initStore picks the task store: a direct Postgres pool when db.dsn is
// set, otherwise the HTTP storage API client.
func (a *App) initStore(ctx context.Context) error {
	if a.cfg.DB.DSN != "" {
		a.logger.Info("using direct Postgres task store")
		store, err := postgresstore.NewStore(ctx, postgresstore.StoreConfig{
			DSN:      a.cfg.DB.DSN,
			MaxConns: a.cfg.DB.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("init postgres store: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, func(context.Context) { store.Close() })
		return nil
	}
	a.logger.Info("using storage API task store", zap.String("base_url", a.cfg.StorageAPI.BaseURL))
	a.store = apistore.NewClient(a.cfg.StorageAPI.BaseURL, a.cfg.StorageAPI.Timeout, a.logger.Named("store"))
	return nil
}

// initPublisher connects to Pub/Sub when configured; otherwise new-item
// events are skipped entirely.
func (a *App) initPublisher(ctx context.Context) (monitor.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.TopicName == "" {
		a.logger.Info("pub/sub not configured; new-item events disabled")
		return nil, nil
	}
	publisher, err := pubsubpublisher.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("init pub/sub publisher: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) {
		if err := publisher.Close(); err != nil {
			a.logger.Warn("pub/sub close failed", zap.Error(err))
		}
	})
	return publisher, nil
}

// initArtifacts selects where hard-fail documents are snapshotted.
func (a *App) initArtifacts(ctx context.Context) (monitor.ArtifactStore, error) {
	switch a.cfg.Artifacts.Provider {
	case "gcs":
		store, err := artifactsgcs.NewStore(ctx, a.cfg.Artifacts.GCSBucket, a.logger.Named("artifacts"))
		if err != nil {
			return nil, fmt.Errorf("init gcs artifacts: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) {
			if err := store.Close(); err != nil {
				a.logger.Warn("gcs artifacts close failed", zap.Error(err))
			}
		})
		return store, nil
	case "local":
		store, err := artifactslocal.NewStore(a.cfg.Artifacts.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("init local artifacts: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// Close shuts down services in reverse construction order. The context
// bounds the progress hub drain.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("shutting down application services")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}
