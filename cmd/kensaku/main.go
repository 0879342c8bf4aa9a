package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/kensaku/pkg/api"
	"github.com/platinummonkey/kensaku/pkg/app"
	"github.com/platinummonkey/kensaku/pkg/async"
	"github.com/platinummonkey/kensaku/pkg/config"
	"github.com/platinummonkey/kensaku/pkg/httputil"
	"github.com/platinummonkey/kensaku/pkg/observability"
)

const (
	maxRequestBytes     = 4 << 20
	maintenanceInterval = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "kensaku: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	otelProviders, err := observability.InitOTel(ctx, cfg.OTelOptions(), logger)
	if err != nil {
		// Tracing is optional; keep serving without it
		logger.WithError(err).Warn("Failed to initialize OpenTelemetry")
	}

	a, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}

	if cfg.Database.AutoMigrate {
		if err := a.Migrate(ctx); err != nil {
			a.Close()
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	if a.Postgres != nil {
		a.Postgres.StartMaintenance(ctx, maintenanceInterval, metrics)
	}

	if cfg.Server.WarmTokenizer {
		async.SafeGo(ctx, logger, cfg.Tokenizer.InitTimeout, "warm tokenizer", a.WarmTokenizer)
	}

	scheduler := cron.New()
	if cfg.Propagation.RepairSchedule != "" {
		_, err = scheduler.AddFunc(cfg.Propagation.RepairSchedule, func() {
			defer observability.RecoverPanic(logger, "repair job")
			result, err := a.Repairer.Repair(ctx)
			if err != nil {
				logger.WithError(err).Error("Repair run failed")
				return
			}
			if result.Documents+result.Categories > 0 {
				logger.WithFields(map[string]interface{}{
					"documents":  result.Documents,
					"categories": result.Categories,
					"repaired":   result.Repaired,
					"remaining":  result.Remaining,
				}).Info("Repair run completed")
			}
		})
		if err != nil {
			a.Close()
			return fmt.Errorf("invalid repair schedule %q: %w", cfg.Propagation.RepairSchedule, err)
		}
	}
	scheduler.Start()

	server := api.NewServer(a.Documents, a.Categories, a.Search, a.Builder)
	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
	}
	if metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(metrics))
	}
	middlewares = append(middlewares, httputil.ContentTypeMiddleware, httputil.MaxBytesMiddleware(maxRequestBytes))

	var handler http.Handler = httputil.Chain(middlewares...)(server)
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "kensaku-api")
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var checker *observability.HealthChecker
	if a.Postgres != nil {
		checker = observability.NewHealthChecker(a.Postgres.Primary(), a.Redis, cfg.Observability.OTelServiceVersion)
	} else {
		checker = observability.NewHealthChecker(nil, a.Redis, cfg.Observability.OTelServiceVersion)
	}
	a.RegisterHealthChecks(checker)

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	observability.RegisterMetricsEndpoint(healthMux, registry)
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	// Running repairs finish before connections close
	shutdown.RegisterShutdownFunc(func(context.Context) error {
		<-scheduler.Stop().Done()
		cancel()
		return a.Close()
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	go func() {
		logger.Infof("Health and metrics listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":           apiServer.Addr,
			"storage":        cfg.Database.Type,
			"tokenizer":      cfg.Tokenizer.Variant,
			"failure_policy": cfg.Propagation.FailurePolicy,
		}).Info("Starting kensaku API server")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("API server failed")
			cancel()
		}
	}()

	return shutdown.WaitForShutdown(ctx)
}
