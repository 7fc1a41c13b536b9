package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage backends
const (
	StorageBackendLocal = "local"
	StorageBackendS3    = "s3"
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Redis      RedisConfig      `yaml:"redis"`
	Storage    StorageConfig    `yaml:"storage"`
	Auth       AuthConfig       `yaml:"auth"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Transcoder TranscoderConfig `yaml:"transcoder"`
	Worker     WorkerConfig     `yaml:"worker"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Sentry     SentryConfig     `yaml:"sentry"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment" env:"V2G_ENVIRONMENT"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" env:"V2G_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxUploadSize   int64         `yaml:"max_upload_size"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host" env:"V2G_DATABASE_HOST"`
	Port            int           `yaml:"port" env:"V2G_DATABASE_PORT"`
	User            string        `yaml:"user" env:"V2G_DATABASE_USER"`
	Password        string        `yaml:"password" env:"V2G_DATABASE_PASSWORD"`
	Database        string        `yaml:"database" env:"V2G_DATABASE_NAME"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host" env:"V2G_RABBITMQ_HOST"`
	Port       int              `yaml:"port" env:"V2G_RABBITMQ_PORT"`
	User       string           `yaml:"user" env:"V2G_RABBITMQ_USER"`
	Password   string           `yaml:"password" env:"V2G_RABBITMQ_PASSWORD"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queues     QueuesConfig     `yaml:"queues"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueuesConfig names the two work queues. Routing keys equal the queue names.
type QueuesConfig struct {
	Conversions string `yaml:"conversions"`
	Webhooks    string `yaml:"webhooks"`
	Durable     bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int `yaml:"prefetch_count"`
}

// RedisConfig holds the Redis connection used by the rate limiter
type RedisConfig struct {
	Addr        string        `yaml:"addr" env:"V2G_REDIS_ADDR"`
	Password    string        `yaml:"password" env:"V2G_REDIS_PASSWORD"`
	DB          int           `yaml:"db"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// StorageConfig selects and configures the blob store backend
type StorageConfig struct {
	Backend string             `yaml:"backend" env:"V2G_STORAGE_BACKEND"`
	Local   LocalStorageConfig `yaml:"local"`
	S3      S3StorageConfig    `yaml:"s3"`
}

// LocalStorageConfig holds the filesystem backend settings
type LocalStorageConfig struct {
	Root string `yaml:"root" env:"V2G_STORAGE_LOCAL_ROOT"`
}

// S3StorageConfig holds the S3 compatible backend settings
type S3StorageConfig struct {
	Bucket          string `yaml:"bucket" env:"V2G_S3_BUCKET"`
	Region          string `yaml:"region" env:"V2G_S3_REGION"`
	Endpoint        string `yaml:"endpoint" env:"V2G_S3_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" env:"V2G_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"V2G_S3_SECRET_ACCESS_KEY"`
	Prefix          string `yaml:"prefix"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// AuthConfig holds access token settings
type AuthConfig struct {
	SecretKey     string        `yaml:"secret_key" env:"V2G_SECRET_KEY"`
	TokenLifetime time.Duration `yaml:"token_lifetime"`
}

// RateLimitConfig holds per-user limits for conversion submission
type RateLimitConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CreateConversions string `yaml:"create_conversions"`
}

// TranscoderConfig holds external transcoder settings
type TranscoderConfig struct {
	Binary  string        `yaml:"binary" env:"V2G_TRANSCODER_BINARY"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
	TempDir string        `yaml:"temp_dir"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency     int                 `yaml:"concurrency"`
	ShutdownTimeout time.Duration       `yaml:"shutdown_timeout"`
	Conversion      ConversionJobConfig `yaml:"conversion"`
	Webhook         WebhookJobConfig    `yaml:"webhook"`
}

// ConversionJobConfig holds the fixed-delay retry ladder for conversions
type ConversionJobConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// WebhookJobConfig holds delivery settings and the exponential retry ladder for webhooks
type WebhookJobConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	BackoffBase time.Duration `yaml:"backoff_base"`
	BackoffMax  time.Duration `yaml:"backoff_max"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" env:"V2G_LOG_LEVEL"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	NoColor      bool   `yaml:"no_color"`
	MaxSizeMB    int    `yaml:"max_size_mb"`
	MaxBackups   int    `yaml:"max_backups"`
	MaxAgeDays   int    `yaml:"max_age_days"`
	Compress     bool   `yaml:"compress"`
}

// MetricsConfig holds the Prometheus endpoint settings of the worker
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// SentryConfig holds error reporting settings; an empty DSN disables reporting
type SentryConfig struct {
	DSN string `yaml:"dsn" env:"V2G_SENTRY_DSN"`
}

// Load reads and parses the configuration file, then applies environment overrides
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cleanenv.UpdateEnv(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return config, nil
}

// Default returns the configuration every file is layered on top of
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadSize:   100 << 20,
		},
		Database: DatabaseConfig{
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		RabbitMQ: RabbitMQConfig{
			VHost: "/",
			Exchange: ExchangeConfig{
				Name:    "video2gif",
				Type:    "direct",
				Durable: true,
			},
			Queues: QueuesConfig{
				Conversions: "conversions",
				Webhooks:    "webhooks",
				Durable:     true,
			},
			Connection: ConnectionConfig{
				RetryAttempts: 5,
				RetryInterval: 2 * time.Second,
				Heartbeat:     10 * time.Second,
			},
			Consumer: ConsumerConfig{PrefetchCount: 4},
		},
		Storage: StorageConfig{
			Backend: StorageBackendLocal,
			Local:   LocalStorageConfig{Root: "data/blobs"},
		},
		Auth: AuthConfig{TokenLifetime: 7 * 24 * time.Hour},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			CreateConversions: "50/day; 10/hour",
		},
		Transcoder: TranscoderConfig{
			Binary:  "ffmpeg",
			Args:    []string{"-y", "-loglevel", "error", "-i", "{input}", "{output}"},
			Timeout: 180 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:     4,
			ShutdownTimeout: 30 * time.Second,
			Conversion: ConversionJobConfig{
				MaxRetries: 3,
				RetryDelay: 30 * time.Second,
			},
			Webhook: WebhookJobConfig{
				Timeout:     5 * time.Second,
				MaxRetries:  8,
				BackoffBase: time.Second,
				BackoffMax:  10 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Metrics: MetricsConfig{Port: 9091},
	}
}

// ValidateAPIConfig checks the settings the api-service depends on
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("server max_upload_size must be greater than 0")
	}

	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth secret_key is required")
	}

	if c.Auth.TokenLifetime <= 0 {
		return fmt.Errorf("auth token_lifetime must be greater than 0")
	}

	if c.RateLimit.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when rate limiting is enabled")
		}
		if c.RateLimit.CreateConversions == "" {
			return fmt.Errorf("rate_limit create_conversions is required when rate limiting is enabled")
		}
	}

	return nil
}

// ValidateWorkerConfig checks the settings the worker-service depends on
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateShared(); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if c.Worker.Conversion.MaxRetries < 0 {
		return fmt.Errorf("worker conversion max_retries must not be negative")
	}

	if c.Worker.Conversion.RetryDelay <= 0 {
		return fmt.Errorf("worker conversion retry_delay must be greater than 0")
	}

	if c.Worker.Webhook.MaxRetries < 0 {
		return fmt.Errorf("worker webhook max_retries must not be negative")
	}

	if c.Worker.Webhook.Timeout <= 0 {
		return fmt.Errorf("worker webhook timeout must be greater than 0")
	}

	if c.Worker.Webhook.BackoffBase <= 0 {
		return fmt.Errorf("worker webhook backoff_base must be greater than 0")
	}

	if c.Worker.Webhook.BackoffMax < c.Worker.Webhook.BackoffBase {
		return fmt.Errorf("worker webhook backoff_max must not be lower than backoff_base")
	}

	if backoffReachesMax(c.Worker.Webhook.BackoffBase, c.Worker.Webhook.MaxRetries, c.Worker.Webhook.BackoffMax) {
		return fmt.Errorf("worker webhook backoff_max must exceed the last retry delay (1.5 * backoff_base * 2^(max_retries-1))")
	}

	if c.Transcoder.Binary == "" {
		return fmt.Errorf("transcoder binary is required")
	}

	if c.Transcoder.Timeout <= 0 {
		return fmt.Errorf("transcoder timeout must be greater than 0")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < MinPort || c.Metrics.Port > MaxPort) {
		return fmt.Errorf("invalid metrics port: %d (must be between %d and %d)", c.Metrics.Port, MinPort, MaxPort)
	}

	return nil
}

// backoffReachesMax reports whether the jittered delay of the last webhook
// retry can reach limit, which would flatten the ladder
func backoffReachesMax(base time.Duration, retries int, limit time.Duration) bool {
	if retries <= 0 {
		return false
	}

	delay := base
	for i := 1; i < retries; i++ {
		if delay > limit {
			return true
		}
		delay *= 2
	}
	return delay+delay/2 > limit
}

func (c *Config) validateShared() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queues.Conversions == "" || c.RabbitMQ.Queues.Webhooks == "" {
		return fmt.Errorf("rabbitmq queue names are required")
	}

	if c.RabbitMQ.Queues.Conversions == c.RabbitMQ.Queues.Webhooks {
		return fmt.Errorf("rabbitmq conversions and webhooks queues must differ")
	}

	switch c.Storage.Backend {
	case StorageBackendLocal:
		if c.Storage.Local.Root == "" {
			return fmt.Errorf("storage local root is required")
		}
	case StorageBackendS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage s3 bucket is required")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage s3 region is required")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	return nil
}
