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

	"github.com/cuongbtq/video2gif/internal/api/auth"
	"github.com/cuongbtq/video2gif/internal/api/handler"
	"github.com/cuongbtq/video2gif/internal/api/ratelimit"
	"github.com/cuongbtq/video2gif/internal/api/router"
	"github.com/cuongbtq/video2gif/internal/bootstrap"
	"github.com/cuongbtq/video2gif/internal/config"
	"github.com/cuongbtq/video2gif/internal/metrics"
	"github.com/cuongbtq/video2gif/internal/queue"
	"github.com/cuongbtq/video2gif/internal/storage"
	"github.com/cuongbtq/video2gif/shared/blobstore"
	"github.com/cuongbtq/video2gif/shared/logger"
	"github.com/cuongbtq/video2gif/shared/rabbitmq"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
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

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := logger.New(bootstrap.LoggerConfig(&cfg.Logging))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	sentryEnabled, err := initSentry(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize sentry: %w", err)
	}
	if sentryEnabled {
		defer sentry.Flush(2 * time.Second)
	}

	ctx := context.Background()

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

	var limiter handler.RateLimiter
	if cfg.RateLimit.Enabled {
		rules, err := ratelimit.ParseRules(cfg.RateLimit.CreateConversions)
		if err != nil {
			return fmt.Errorf("invalid rate limit: %w", err)
		}

		redisClient, err := bootstrap.InitRedis(ctx, &cfg.Redis, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer redisClient.Close()

		limiter = ratelimit.NewLimiter(redisClient, rules)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:           appLogger.Logger,
		Store:            storage.NewStorage(dbClient.GetDB(), appLogger.Logger),
		Blobs:            blobs,
		Enqueuer:         queue.NewPublisher(rabbitClient),
		Tokens:           auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.TokenLifetime),
		Limiter:          limiter,
		Metrics:          metrics.NewHTTP(registry),
		Gatherer:         registry,
		ConversionsQueue: cfg.RabbitMQ.Queues.Conversions,
		MaxUploadSize:    cfg.Server.MaxUploadSize,
		ServiceName:      cfg.App.Name,
		EnableSentry:     sentryEnabled,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
		slog.Int64("max_upload_size", cfg.Server.MaxUploadSize),
		slog.Bool("rate_limit", cfg.RateLimit.Enabled),
		slog.String("storage_backend", cfg.Storage.Backend),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down server",
			slog.String("signal", sig.String()),
		)
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initSentry enables panic reporting when a DSN is configured
func initSentry(cfg *config.Config) (bool, error) {
	if cfg.Sentry.DSN == "" {
		return false, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.Sentry.DSN,
		Environment: cfg.App.Environment,
		Release:     cfg.App.Version,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

