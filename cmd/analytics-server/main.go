// cmd/analytics-server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"shoe-size-analytics/internal/analytics"
	"shoe-size-analytics/internal/api"
	"shoe-size-analytics/internal/baseline"
	"shoe-size-analytics/internal/common/camunda"
	"shoe-size-analytics/internal/common/config"
	"shoe-size-analytics/internal/common/database"
	"shoe-size-analytics/internal/common/logger"
	"shoe-size-analytics/internal/common/observability"
	"shoe-size-analytics/internal/extractor"
	analyzeorders "shoe-size-analytics/internal/workers/analytics/analyze-orders"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: cfg.App.Name,
		Output:  cfg.Logging.Output,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting analytics server...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(observability.Options{
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	}, log)

	ctx := context.Background()
	var readiness []api.Option

	// --- Baseline source ---
	var provider baseline.Provider
	switch cfg.Baseline.Source {
	case "postgres":
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.Open(ctx, func() (*database.PostgresClient, error) {
				return database.NewPostgres(cfg.Database.Postgres)
			})
			return err
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		store, err := baseline.NewPostgresStore(pg.DB, cfg.Baseline.Table)
		if err != nil {
			zapLog.Fatal("invalid baseline table", zap.Error(err))
		}
		provider = store
		readiness = append(readiness, api.WithReadinessCheck("postgres", pg))
		zapLog.Info("PostgreSQL baseline store ready", zap.String("table", cfg.Baseline.Table))

	case "elasticsearch":
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.Open(ctx, func() (*database.ElasticsearchClient, error) {
				return database.NewElasticsearch(cfg.Database.Elasticsearch)
			})
			return err
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}

		defer es.Close()

		provider = baseline.NewElasticsearchProvider(es.Client, cfg.Baseline.Index)
		readiness = append(readiness, api.WithReadinessCheck("elasticsearch", es))
		zapLog.Info("Elasticsearch baseline source ready", zap.String("index", cfg.Baseline.Index))
	}

	if provider != nil && cfg.Baseline.CacheTTL > 0 {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.Open(ctx, func() (*database.RedisClient, error) {
				return database.NewRedis(cfg.Database.Redis)
			})
			return err
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()

		provider = baseline.NewCachedProvider(provider, rdb.Client,
			time.Duration(cfg.Baseline.CacheTTL)*time.Second, cfg.Baseline.Source, log)
		readiness = append(readiness, api.WithReadinessCheck("redis", rdb))
		zapLog.Info("Redis baseline cache enabled", zap.Int("ttlSeconds", cfg.Baseline.CacheTTL))
	}

	// --- Extraction ---
	extractors := extractor.Chain{extractor.NewLocal()}
	if cfg.Extractor.RemoteURL != "" {
		extractors = append(extractors, extractor.NewRemote(cfg.Extractor.RemoteURL, config.GetDuration(cfg.Extractor.Timeout)))
		zapLog.Info("Remote extraction enabled for legacy documents", zap.String("url", cfg.Extractor.RemoteURL))
	}

	// --- Analytics service ---
	opts := []analytics.Option{}
	if provider != nil {
		opts = append(opts, analytics.WithBaselines(baseline.WithTimeout(provider, config.GetDuration(cfg.Baseline.Timeout))))
	}
	svc, err := analytics.NewService(&analytics.Config{
		MaxParallelFiles:   cfg.Analytics.MaxParallelFiles,
		TopSizes:           cfg.Analytics.TopSizes,
		TopCustomers:       cfg.Analytics.TopCustomers,
		PerFileTopSizes:    cfg.Analytics.PerFileTopSizes,
		PredictedSizes:     cfg.Analytics.PredictedSizes,
		MinCustomerOrders:  cfg.Analytics.MinCustomerOrders,
		CustomerFilePolicy: analytics.CustomerFilePolicy(cfg.Analytics.CustomerFilePolicy),
		DecayWeight:        cfg.Analytics.DecayWeight,
		TrendWeight:        cfg.Analytics.TrendWeight,
	}, extractors, log, opts...)
	if err != nil {
		zapLog.Fatal("analytics service init failed", zap.Error(err))
	}

	// --- Zeebe workers ---
	var (
		zeebe   *camunda.Client
		workers []worker.JobWorker
	)
	if cfg.Camunda.Enabled {
		zeebe, err = camunda.Connect(ctx, &camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		readiness = append(readiness, api.WithReadinessCheck("zeebe", zeebePinger{zeebe}))

		handler, err := analyzeorders.NewHandler(analyzeorders.ConfigFromApp(cfg), svc, log)
		if err != nil {
			zapLog.Fatal("failed to create analyze-orders handler", zap.Error(err))
		}
		wcfg := config.GetWorkerConfig(cfg, analyzeorders.TaskType)
		if jw := camunda.StartWorker(zeebe.Zeebe(), analyzeorders.TaskType, wcfg, handler.Handle, log); jw != nil {
			workers = append(workers, jw)
		}
	}

	// --- HTTP server ---
	server, err := api.NewServer(api.Config{
		MaxUploadBytes:    cfg.Server.MaxUploadBytes,
		MaxFiles:          cfg.Server.MaxFiles,
		RequestTimeout:    config.GetDuration(cfg.Server.RequestTimeout),
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		ValidateResponses: cfg.Server.ValidateResponses,
		Version:           cfg.App.Version,
	}, svc, log, append(readiness, api.WithObservability(obs))...)
	if err != nil {
		zapLog.Fatal("http server init failed", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server.Handler(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Telemetry shutdown failed", zap.Error(err))
	}

	zapLog.Info("Analytics server stopped gracefully")
}

type zeebePinger struct{ c *camunda.Client }

func (z zeebePinger) Ping(ctx context.Context) error { return z.c.HealthCheck(ctx) }
