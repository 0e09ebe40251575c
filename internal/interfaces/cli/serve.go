package cli

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/AdsorpNET/internal/config"
	"github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/logging"
	prom "github.com/turtacn/AdsorpNET/internal/infrastructure/monitoring/prometheus"
	grpcserver "github.com/turtacn/AdsorpNET/internal/interfaces/grpc"
	"github.com/turtacn/AdsorpNET/internal/interfaces/grpc/services"
	httpserver "github.com/turtacn/AdsorpNET/internal/interfaces/http"
	"github.com/turtacn/AdsorpNET/internal/interfaces/http/handlers"
	"github.com/turtacn/AdsorpNET/internal/interfaces/http/middleware"
)

const rateLimitIdleTTL = 10 * time.Minute

func newServeCmd() *cobra.Command {
	var (
		httpPort int
		grpcPort int
	)

	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Run the HTTP and gRPC prediction servers",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationServer: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if httpPort > 0 {
				cfg.Server.Port = httpPort
			}
			if grpcPort > 0 {
				cfg.GRPC.Port = grpcPort
			}
			return runServer(cmd.Context(), cliCtx, cfg)
		},
	}

	cmd.Flags().IntVar(&httpPort, "port", 0, "HTTP port (overrides server.port)")
	cmd.Flags().IntVar(&grpcPort, "grpc-port", 0, "gRPC port (overrides grpc.port)")
	return cmd
}

// runServer serves until ctx is cancelled, then shuts everything down
// within server.shutdown_timeout.
func runServer(ctx context.Context, cliCtx *CLIContext, cfg *config.Config) error {
	logger := cliCtx.Logger
	a, err := newApp(ctx, cfg, logger, bootstrapOptions{migrate: true, ensureTopics: true})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			logger.Warn("service close failed", logging.Err(err))
		}
	}()

	if keys, ok := preloadKeys(cfg.Artifacts.Preload); ok {
		info, err := a.Service.PreloadModels(ctx, keys)
		if err != nil {
			return err
		}
		logger.Info("artifacts preloaded", logging.Int("count", len(info.Loaded)))
	}

	if cliCtx.ConfigPath != "" {
		err := config.Watch(cliCtx.ConfigPath, a.Reload, func(err error) {
			logger.Warn("config reload rejected", logging.Err(err))
		})
		if err != nil {
			logger.Warn("config watch disabled", logging.Err(err))
		}
	}

	httpSrv := httpserver.NewServer(cfg.Server, buildRouter(a), logger)

	var grpcSrv *grpcserver.Server
	if cfg.GRPC.Enabled {
		grpcSrv, err = grpcserver.NewServer(cfg.GRPC,
			grpcserver.WithLogger(logger),
			grpcserver.WithMetrics(a.Metrics),
			grpcserver.WithGracefulTimeout(cfg.Server.ShutdownTimeout),
		)
		if err != nil {
			return err
		}
		grpcSrv.RegisterService(&services.PredictorServiceDesc, services.NewPredictorService(a.Service, logger))
	}

	prom.SetHealth(a.Metrics, "server", true)
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(httpSrv.Start)
	if grpcSrv != nil {
		g.Go(grpcSrv.Start)
	}
	g.Go(func() error {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				prom.SetUptime(a.Metrics, "adsorpnet", started)
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", logging.Duration("timeout", cfg.Server.ShutdownTimeout))
		prom.SetHealth(a.Metrics, "server", false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if grpcSrv != nil {
			if err := grpcSrv.Stop(shutdownCtx); err != nil {
				logger.Warn("grpc stop failed", logging.Err(err))
			}
		}
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited", logging.Err(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

// preloadKeys maps artifacts.preload to registry keys. "*" selects every
// artifact; an empty list disables preloading.
func preloadKeys(preload []string) ([]string, bool) {
	if len(preload) == 0 {
		return nil, false
	}
	for _, k := range preload {
		if k == "*" {
			return nil, true
		}
	}
	return preload, true
}

func buildRouter(a *App) nethttp.Handler {
	cfg := a.Config
	logger := a.Logger

	rc := httpserver.RouterConfig{
		PredictionHandler: handlers.NewPredictionHandler(a.Service, logger, cfg.Server.MaxBodySize),
		ModelHandler:      handlers.NewModelHandler(a.Service, logger, cfg.Server.MaxBodySize),
		HealthHandler:     handlers.NewHealthHandler(Version, a.Metrics, a.Checkers()...),
		Logging:           middleware.RequestLogging(logger, middleware.DefaultLoggingConfig()),
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cc := middleware.DefaultCORSConfig()
		cc.AllowedOrigins = cfg.Server.CORSOrigins
		rc.CORS = middleware.CORS(cc)
	}
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewTokenBucketLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitBurst, rateLimitIdleTTL)
		rc.RateLimit = middleware.RateLimit(limiter, middleware.DefaultRateLimitConfig())
	}
	if a.Collector != nil {
		rc.Metrics = middleware.Metrics(a.Metrics)
		rc.MetricsHandler = a.Collector.Handler()
		rc.MetricsPath = cfg.Metrics.Path
	}
	return httpserver.NewRouter(rc)
}
