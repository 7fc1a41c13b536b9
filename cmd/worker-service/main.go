package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/video2gif/internal/bootstrap"
	"github.com/cuongbtq/video2gif/internal/config"
	"github.com/cuongbtq/video2gif/internal/metrics"
	"github.com/cuongbtq/video2gif/internal/queue"
	"github.com/cuongbtq/video2gif/internal/storage"
	"github.com/cuongbtq/video2gif/internal/worker"
	"github.com/cuongbtq/video2gif/internal/worker/converter"
	"github.com/cuongbtq/video2gif/internal/worker/notifier"
	"github.com/cuongbtq/video2gif/shared/blobstore"
	"github.com/cuongbtq/video2gif/shared/logger"
	"github.com/cuongbtq/video2gif/shared/rabbitmq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(bootstrap.LoggerConfig(&cfg.Logging))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := bootstrap.InitPostgreSQL(ctx, &cfg.Database, cfg.Database.AutoMigrate, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	rabbitClient, err := rabbitmq.NewClient(bootstrap.RabbitMQConfig(&cfg.RabbitMQ), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	blobs, err := blobstore.New(ctx, bootstrap.BlobStoreConfig(&cfg.Storage))
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := storage.NewStorage(dbClient.GetDB(), appLogger.Logger)
	publisher := queue.NewPublisher(rabbitClient)

	conversions := converter.New(&converter.Config{
		Logger:       appLogger.With(slog.String("handler", "converter")).Logger,
		Store:        store,
		Blobs:        blobs,
		Transcoder:   converter.NewProcess(cfg.Transcoder.Binary, cfg.Transcoder.Args, cfg.Transcoder.Timeout),
		Enqueuer:     publisher,
		WebhookQueue: cfg.RabbitMQ.Queues.Webhooks,
		TempDir:      cfg.Transcoder.TempDir,
	})

	webhooks := notifier.New(
		appLogger.With(slog.String("handler", "notifier")).Logger,
		store,
		cfg.Worker.Webhook.Timeout,
	)

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:  appLogger.Logger,
		Broker:  rabbitClient,
		Retrier: publisher,
		Metrics: metrics.NewWorker(registry),
		Routes: []worker.Route{
			{
				Queue:   cfg.RabbitMQ.Queues.Conversions,
				Handler: conversions,
				Policy: worker.FixedPolicy{
					Retries:  cfg.Worker.Conversion.MaxRetries,
					Interval: cfg.Worker.Conversion.RetryDelay,
				},
			},
			{
				Queue:   cfg.RabbitMQ.Queues.Webhooks,
				Handler: webhooks,
				Policy: worker.ExponentialPolicy{
					Retries: cfg.Worker.Webhook.MaxRetries,
					Base:    cfg.Worker.Webhook.BackoffBase,
					Max:     cfg.Worker.Webhook.BackoffMax,
				},
			},
		},
		WorkerID:      workerID(),
		Concurrency:   cfg.Worker.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
	})

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = startMetricsServer(cfg.Metrics.Port, registry, appLogger.Logger)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	appLogger.Info("Worker service started successfully",
		slog.Int("concurrency", cfg.Worker.Concurrency),
		slog.String("transcoder", cfg.Transcoder.Binary),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case amqpErr := <-rabbitClient.NotifyClose():
		appLogger.Error("RabbitMQ connection lost, shutting down",
			slog.Any("error", amqpErr),
		)
	case err := <-errChan:
		appLogger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	// stop taking new deliveries; running jobs finish on their own context
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Warn("Metrics server shutdown failed", slog.Any("error", err))
		}
	}

	appLogger.Info("Worker service shutdown complete")
	return nil
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// startMetricsServer exposes the registry on /metrics
func startMetricsServer(port int, registry *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()

	logger.Info("Metrics server listening", slog.String("address", srv.Addr))
	return srv
}
