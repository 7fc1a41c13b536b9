// Package bootstrap maps the service configuration onto the shared clients
// both binaries start with.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/video2gif/internal/config"
	"github.com/cuongbtq/video2gif/shared/blobstore"
	"github.com/cuongbtq/video2gif/shared/logger"
	"github.com/cuongbtq/video2gif/shared/postgresql"
	"github.com/cuongbtq/video2gif/shared/rabbitmq"
	"github.com/cuongbtq/video2gif/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

// LoggerConfig converts the logging section
func LoggerConfig(cfg *config.LoggingConfig) *logger.Config {
	return &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		NoColor:      cfg.NoColor,
		MaxSizeMB:    cfg.MaxSizeMB,
		MaxBackups:   cfg.MaxBackups,
		MaxAgeDays:   cfg.MaxAgeDays,
		Compress:     cfg.Compress,
	}
}

// PostgresConfig converts the database section
func PostgresConfig(cfg *config.DatabaseConfig) *postgresql.Config {
	return &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
}

// RabbitMQConfig converts the rabbitmq section. Both work queues are
// always declared so either service can start first.
func RabbitMQConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		Queues:             []string{cfg.Queues.Conversions, cfg.Queues.Webhooks},
		QueueDurable:       cfg.Queues.Durable,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}
}

// BlobStoreConfig converts the storage section
func BlobStoreConfig(cfg *config.StorageConfig) blobstore.Config {
	return blobstore.Config{
		Backend:   cfg.Backend,
		LocalRoot: cfg.Local.Root,
		S3: blobstore.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
			UsePathStyle:    cfg.S3.UsePathStyle,
		},
	}
}

// InitPostgreSQL connects to the database and applies migrations when asked to
func InitPostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, migrate bool, logger *slog.Logger) (*postgresql.Client, error) {
	client, err := postgresql.NewClient(ctx, PostgresConfig(cfg), logger)
	if err != nil {
		return nil, err
	}

	if migrate {
		if err := client.Migrate(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return client, nil
}

// InitRedis connects to Redis
func InitRedis(ctx context.Context, cfg *config.RedisConfig, logger *slog.Logger) (*goredis.Client, error) {
	return redis.NewClient(ctx, &redis.Config{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}, logger)
}
