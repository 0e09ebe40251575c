package cli

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"time"

	app "github.com/turtacn/AdsorpNET/internal/application/synthesis"
	"github.com/turtacn/AdsorpNET/internal/config"
	domain "github.com/turtacn/AdsorpNET/internal/domain/synthesis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/database/postgres"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/database/redis"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/storage/minio"
	"github.com/turtacn/AdsorpNET/internal/intelligence/common"
	"github.com/turtacn/AdsorpNET/internal/intelligence/predictor"
	"github.com/turtacn/AdsorpNET/internal/interfaces/http/handlers"
	"github.com/turtacn/AdsorpNET/pkg/errors"
)

// App is the prediction stack wired from configuration.
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Store     common.ArtifactStore
	Registry  *common.ArtifactRegistry
	Pipeline  *predictor.Pipeline
	Service   app.Service
	Collector prom.MetricsCollector // nil when metrics are disabled
	Metrics   *prom.AppMetrics

	cacheCfg atomic.Pointer[config.CacheConfig]
	checkers []handlers.HealthChecker
	closers  []func() error
}

type bootstrapOptions struct {
	// migrate applies pending schema migrations when postgres.auto_migrate is set.
	migrate bool
	// ensureTopics creates the prediction topic when Kafka is enabled.
	ensureTopics bool
}

// newApp wires config into a ready service. Components disabled in cfg
// are left out; the service treats a missing history store or publisher as
// optional.
func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger, opts bootstrapOptions) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger}
	a.cacheCfg.Store(&cfg.Cache)
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	intel := common.NewNoopIntelligenceMetrics()
	if cfg.Metrics.Enabled {
		a.Collector, err = prom.NewMetricsCollector(prom.CollectorConfig{
			Namespace:            cfg.Metrics.Namespace,
			EnableProcessMetrics: true,
			EnableGoMetrics:      true,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.Metrics = prom.NewAppMetrics(a.Collector)
		if intel, err = common.NewPrometheusIntelligenceMetrics(a.Collector.Registerer()); err != nil {
			return nil, err
		}
	}

	if err = a.openArtifacts(ctx, intel); err != nil {
		return nil, err
	}

	cache, err := a.openCache()
	if err != nil {
		return nil, err
	}
	pipeOpts := []predictor.Option{
		predictor.WithRegeneration(cfg.Pipeline.IncludeRegeneration),
		predictor.WithMetrics(intel),
		predictor.WithLogger(logger),
	}
	if cache != nil {
		pipeOpts = append(pipeOpts, predictor.WithCache(cache, a.stageTTL))
	}
	if a.Pipeline, err = predictor.NewPipeline(a.Registry, pipeOpts...); err != nil {
		return nil, err
	}

	deps := app.Dependencies{
		Pipeline:     a.Pipeline,
		Registry:     a.Registry,
		Metrics:      a.Metrics,
		Intelligence: intel,
		Logger:       logger,
	}
	if deps.History, err = a.openHistory(ctx, opts.migrate); err != nil {
		return nil, err
	}
	if events := a.openEvents(ctx, opts.ensureTopics); events != nil {
		deps.Events = events
	}

	a.Service, err = app.NewService(serviceConfig(cfg), deps)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func serviceConfig(cfg *config.Config) app.Config {
	return app.Config{
		Rules: domain.ValidationRules{
			MinSurfaceArea:        cfg.Validation.MinSurfaceArea,
			MinLimitingAdsorption: cfg.Validation.MinLimitingAdsorption,
			MinNitrogenEnergy:     cfg.Validation.MinNitrogenEnergy,
			MinTotalPoreVolume:    cfg.Validation.MinTotalPoreVolume,
			MinMesoporeSurface:    cfg.Validation.MinMesoporeSurface,
		},
		BatchSize:   cfg.Pipeline.BatchSize,
		MaxWorkers:  cfg.Pipeline.MaxWorkers,
		ItemTimeout: cfg.Pipeline.ItemTimeout,
	}
}

// openArtifacts reads the manifest from the configured store and builds
// the lazy registry over it.
func (a *App) openArtifacts(ctx context.Context, intel common.IntelligenceMetrics) error {
	cfg := a.Config
	switch cfg.Artifacts.Source {
	case "minio":
		mc, err := minio.NewClient(cfg.MinIO, a.Logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, mc.Close)
		a.Store = minio.NewArtifactStore(mc, a.Logger)
		a.checkers = append(a.checkers, handlers.CheckerFunc("minio", func(ctx context.Context) error {
			status, err := mc.HealthCheck(ctx)
			if err != nil {
				return err
			}
			if !status.Healthy {
				return errors.New(errors.ErrCodeServiceUnavailable, status.Error)
			}
			return nil
		}))
	default:
		a.Store = common.NewDirStore(cfg.Artifacts.Dir)
	}

	manifest, err := common.LoadManifest(ctx, a.Store, cfg.Artifacts.Manifest)
	if err != nil {
		return err
	}
	loader, err := common.NewStoreLoader(a.Store, manifest)
	if err != nil {
		return err
	}
	if a.Registry, err = common.NewArtifactRegistry(loader, intel, a.Logger); err != nil {
		return err
	}

	store, name := a.Store, cfg.Artifacts.Manifest
	a.checkers = append(a.checkers, handlers.CheckerFunc("artifacts", func(ctx context.Context) error {
		rc, err := store.Open(ctx, name)
		if err != nil {
			return err
		}
		_, err = io.Copy(io.Discard, rc)
		if cerr := rc.Close(); err == nil {
			err = cerr
		}
		return err
	}))

	a.Logger.Info("artifact manifest loaded",
		logging.String("source", cfg.Artifacts.Source),
		logging.String("version", manifest.Version),
	)
	return nil
}

// openCache returns nil for the "none" backend.
func (a *App) openCache() (predictor.ResultCache, error) {
	cfg := a.Config
	switch cfg.Cache.Backend {
	case "none":
		return nil, nil
	case "redis":
		rc, err := redis.NewClient(cfg.Redis, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		cache := redis.NewResultCache(rc, a.Logger)
		a.checkers = append(a.checkers, handlers.CheckerFunc("redis", cache.Ping))
		return cache, nil
	default:
		return predictor.NewMemoryCache(cfg.Cache.MaxEntries), nil
	}
}

// stageTTL resolves per-stage lifetimes from the current cache config.
func (a *App) stageTTL(schema domain.StageSchema) time.Duration {
	cc := a.cacheCfg.Load()
	typ := schema.CacheType()
	return cc.TTLFor(typ, strings.HasSuffix(typ, "Classifier"))
}

func (a *App) openHistory(ctx context.Context, migrate bool) (domain.PredictionRepository, error) {
	cfg := a.Config
	if !cfg.Postgres.Enabled {
		return nil, nil
	}
	conn, err := postgres.NewConnection(cfg.Postgres, a.Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)
	if migrate && cfg.Postgres.AutoMigrate {
		if err := conn.MigrateUp(ctx); err != nil {
			return nil, err
		}
	}
	a.checkers = append(a.checkers, handlers.CheckerFunc("postgres", conn.HealthCheck))
	return repositories.NewPredictionRepository(conn, a.Logger), nil
}

// openEvents returns nil when Kafka is disabled. Topic provisioning
// failures are logged; publishing stays best-effort.
func (a *App) openEvents(ctx context.Context, ensureTopics bool) app.EventPublisher {
	cfg := a.Config
	if !cfg.Kafka.Enabled {
		return nil
	}
	producer, err := kafka.NewProducer(cfg.Kafka, a.Logger)
	if err != nil {
		a.Logger.Warn("prediction events disabled", logging.Err(err))
		return nil
	}
	a.closers = append(a.closers, producer.Close)

	if ensureTopics {
		tm, err := kafka.NewTopicManager(cfg.Kafka.Brokers, a.Logger)
		if err == nil {
			err = tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg.Kafka.Topic))
			_ = tm.Close()
		}
		if err != nil {
			a.Logger.Warn("could not ensure prediction topic",
				logging.String("topic", cfg.Kafka.Topic), logging.Err(err))
		}
	}
	return kafka.NewPredictionEventPublisher(producer, cfg.Kafka.Topic, a.Logger)
}

// Checkers returns the readiness checks of every external dependency.
func (a *App) Checkers() []handlers.HealthChecker { return a.checkers }

// Reload applies the runtime-safe subset of cfg: log level and cache TTLs.
func (a *App) Reload(cfg *config.Config) {
	if logging.SetLevel(a.Logger, cfg.Log.Level) {
		a.Logger.Info("log level changed", logging.String("level", cfg.Log.Level))
	}
	cc := cfg.Cache
	a.cacheCfg.Store(&cc)
	a.Logger.Info("cache TTLs reloaded",
		logging.Duration("default_ttl", cc.DefaultTTL),
		logging.Duration("classifier_ttl", cc.ClassifierTTL),
	)
}

// Close drains the service and releases every connection.
func (a *App) Close(ctx context.Context) error {
	var err error
	if a.Service != nil {
		err = a.Service.Close(ctx)
	}
	a.closeResources()
	return err
}

func (a *App) closeResources() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close failed", logging.Err(err))
		}
	}
	a.closers = nil
}
