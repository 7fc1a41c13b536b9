package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RetrySuffix is appended to a work queue name to form its delay queues
const RetrySuffix = ".retry"

// DelayGranularity is the tick retry delays are truncated to. Every delay
// queue holds messages of a single TTL, so expiry order is arrival order.
const DelayGranularity = 100 * time.Millisecond

// delayQueueIdle is how long an unused delay queue outlives its TTL
const delayQueueIdle = time.Minute

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	// Queues are bound to the exchange with their own name as routing key
	Queues             []string
	QueueDurable       bool
	RetryAttempts      int
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	ConnectionTimeout  time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
}

// Client represents a RabbitMQ client
type Client struct {
	config      *Config
	conn        *amqp.Connection
	channel     *amqp.Channel
	logger      *slog.Logger
	closeChan   chan *amqp.Error
	isConnected bool
}

// RetryQueueName returns the delay queue holding messages for queue that
// wait for ttl before being dead-lettered back into it
func RetryQueueName(queue string, ttl time.Duration) string {
	return queue + RetrySuffix + "." + expiration(ttl)
}

// delayTTL truncates delay to DelayGranularity, keeping sub-tick delays exact
func delayTTL(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	if ttl := delay.Truncate(DelayGranularity); ttl > 0 {
		return ttl
	}
	return delay.Truncate(time.Millisecond)
}

// NewClient creates a new RabbitMQ client
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config: config,
		logger: logger,
	}

	if err := client.connect(); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

func (c *Client) dsn() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		trimVHost(c.config.VHost),
	)
}

func trimVHost(vhost string) string {
	if vhost == "" || vhost == "/" {
		return ""
	}
	if vhost[0] == '/' {
		return vhost[1:]
	}
	return vhost
}

// connect establishes connection to RabbitMQ with retry logic
func (c *Client) connect() error {
	var err error

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}
	if c.config.ConnectionTimeout > 0 {
		amqpConfig.Dial = amqp.DefaultDial(c.config.ConnectionTimeout)
	}

	attempts := max(c.config.RetryAttempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		c.conn, err = amqp.DialConfig(c.dsn(), amqpConfig)
		if err == nil {
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			time.Sleep(c.config.RetryInterval)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	c.channel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(); err != nil {
		c.channel.Close()
		c.conn.Close()
		return fmt.Errorf("failed to setup exchange and queues: %w", err)
	}

	c.closeChan = make(chan *amqp.Error, 1)
	c.channel.NotifyClose(c.closeChan)
	c.isConnected = true

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.Any("queues", c.config.Queues),
	)

	return nil
}

// setup declares the exchange and every work queue. Delay queues are
// declared on demand by PublishDelayed.
func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.config.ExchangeName,       // name
		c.config.ExchangeType,       // type
		c.config.ExchangeDurable,    // durable
		c.config.ExchangeAutoDelete, // auto-deleted
		false,                       // internal
		false,                       // no-wait
		nil,                         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	for _, queue := range c.config.Queues {
		if _, err := c.channel.QueueDeclare(queue, c.config.QueueDurable, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}

		if err := c.channel.QueueBind(queue, queue, c.config.ExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// delayQueueArgs configures a queue without consumers whose messages all
// expire after ttl and are dead-lettered to the exchange under queue's
// routing key. The queue itself is dropped once idle.
func (c *Client) delayQueueArgs(queue string, ttl time.Duration) amqp.Table {
	return amqp.Table{
		"x-message-ttl":             ttl.Milliseconds(),
		"x-expires":                 (ttl + delayQueueIdle).Milliseconds(),
		"x-dead-letter-exchange":    c.config.ExchangeName,
		"x-dead-letter-routing-key": queue,
	}
}

// Publish publishes a message to the exchange under routingKey
func (c *Client) Publish(ctx context.Context, routingKey string, body []byte, contentType string) error {
	if !c.isConnected {
		return fmt.Errorf("not connected to RabbitMQ")
	}

	err := c.channel.PublishWithContext(
		ctx,
		c.config.ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  contentType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("Message published to RabbitMQ",
		slog.String("routing_key", routingKey),
		slog.Int("body_size", len(body)),
	)

	return nil
}

// PublishDelayed parks a message in a delay queue of queue for delay,
// truncated to DelayGranularity, after which the broker routes it back to queue
func (c *Client) PublishDelayed(ctx context.Context, queue string, body []byte, contentType string, delay time.Duration) error {
	if !c.isConnected {
		return fmt.Errorf("not connected to RabbitMQ")
	}

	ttl := delayTTL(delay)
	delayQueue := RetryQueueName(queue, ttl)

	// redeclaring also resets the queue's idle timer
	_, err := c.channel.QueueDeclare(delayQueue, c.config.QueueDurable, false, false, false, c.delayQueueArgs(queue, ttl))
	if err != nil {
		return fmt.Errorf("failed to declare delay queue %s: %w", delayQueue, err)
	}

	err = c.channel.PublishWithContext(
		ctx,
		"", // default exchange routes by queue name
		delayQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  contentType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish delayed message: %w", err)
	}

	c.logger.Debug("Delayed message published to RabbitMQ",
		slog.String("queue", queue),
		slog.String("delay_queue", delayQueue),
		slog.Duration("delay", ttl),
	)

	return nil
}

// expiration formats a TTL in whole milliseconds
func expiration(delay time.Duration) string {
	ms := delay.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatInt(ms, 10)
}

// PublishWithRetry publishes a message with retry logic and exponential backoff
func (c *Client) PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error {
	maxRetries := c.config.PublishRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	baseDelay := c.config.PublishRetryDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = c.Publish(ctx, routingKey, body, contentType)
		if lastErr == nil {
			if attempt > 0 {
				c.logger.Info("Published message to RabbitMQ after retry",
					slog.Int("attempt", attempt+1),
					slog.String("routing_key", routingKey),
				)
			}
			return nil
		}

		if attempt == maxRetries {
			break
		}

		backoffDelay := c.backoff(baseDelay, attempt)
		c.logger.Warn("Failed to publish message to RabbitMQ, retrying...",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", maxRetries),
			slog.Duration("retry_after", backoffDelay),
			slog.Any("error", lastErr),
		)

		select {
		case <-time.After(backoffDelay):
		case <-ctx.Done():
			return fmt.Errorf("publish canceled: %w", ctx.Err())
		}
	}

	c.logger.Error("Failed to publish message to RabbitMQ after all retries",
		slog.Int("attempts", maxRetries+1),
		slog.Any("error", lastErr),
	)
	return fmt.Errorf("failed to publish message after %d attempts: %w", maxRetries+1, lastErr)
}

func (c *Client) backoff(base time.Duration, attempt int) time.Duration {
	mult := c.config.PublishBackoffMult
	if mult <= 1 {
		mult = 2.0
	}

	delay := float64(base)
	for i := 0; i < attempt; i++ {
		delay *= mult
	}
	return time.Duration(delay)
}

// Qos limits unacknowledged deliveries per consumer
func (c *Client) Qos(prefetchCount int) error {
	if !c.isConnected {
		return fmt.Errorf("not connected to RabbitMQ")
	}
	return c.channel.Qos(prefetchCount, 0, false)
}

// Consume starts consuming messages from queue with manual acknowledgement
func (c *Client) Consume(queue, consumerTag string) (<-chan amqp.Delivery, error) {
	if !c.isConnected {
		return nil, fmt.Errorf("not connected to RabbitMQ")
	}

	messages, err := c.channel.Consume(
		queue,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	c.logger.Info("Started consuming messages from RabbitMQ",
		slog.String("queue", queue),
		slog.String("consumer_tag", consumerTag),
	)

	return messages, nil
}

// NotifyClose returns a channel that receives the broker error when the channel closes
func (c *Client) NotifyClose() <-chan *amqp.Error {
	return c.closeChan
}

// Close closes the RabbitMQ connection
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")

	c.isConnected = false

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel",
				slog.Any("error", err),
			)
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	return nil
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	return c.isConnected && c.conn != nil && !c.conn.IsClosed()
}
