package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/video2gif/internal/domain"
	"github.com/cuongbtq/video2gif/internal/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler runs one attempt of a job and reports how it went
type Handler interface {
	Process(ctx context.Context, msg *domain.JobMessage) domain.Outcome
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, msg *domain.JobMessage) domain.Outcome

// Process implements Handler
func (f HandlerFunc) Process(ctx context.Context, msg *domain.JobMessage) domain.Outcome {
	return f(ctx, msg)
}

// Route binds a queue to its handler and retry policy
type Route struct {
	Queue   string
	Handler Handler
	Policy  RetryPolicy
}

// Broker is the consuming side of the RabbitMQ client
type Broker interface {
	Qos(prefetchCount int) error
	Consume(queue, consumerTag string) (<-chan amqp.Delivery, error)
}

// Retrier schedules a delayed redelivery of a job message
type Retrier interface {
	Retry(ctx context.Context, queue string, msg domain.JobMessage, delay time.Duration) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Broker        Broker
	Retrier       Retrier
	Metrics       *metrics.Worker
	Routes        []Route
	WorkerID      string
	Concurrency   int
	PrefetchCount int
}

// delivery is one decoded message waiting for a pool goroutine
type delivery struct {
	route *Route
	msg   *domain.JobMessage
	raw   amqp.Delivery
}

// Worker consumes every route's queue and runs jobs on a bounded pool
type Worker struct {
	logger        *slog.Logger
	broker        Broker
	retrier       Retrier
	metrics       *metrics.Worker
	routes        []Route
	workerID      string
	concurrency   int
	prefetchCount int
	jobsChan      chan *delivery
	wg            sync.WaitGroup
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	return &Worker{
		logger:        cfg.Logger,
		broker:        cfg.Broker,
		retrier:       cfg.Retrier,
		metrics:       cfg.Metrics,
		routes:        cfg.Routes,
		workerID:      cfg.WorkerID,
		concurrency:   cfg.Concurrency,
		prefetchCount: cfg.PrefetchCount,
		jobsChan:      make(chan *delivery),
		stopChan:      make(chan struct{}),
	}
}

// Start subscribes to every route, spawns the pool and blocks until ctx is done.
// Jobs already running when ctx is canceled finish under a context that is not canceled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Int("routes", len(w.routes)),
	)

	if err := w.broker.Qos(w.prefetchCount); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	var dispatchers sync.WaitGroup
	for i := range w.routes {
		route := &w.routes[i]

		deliveries, err := w.setupConsumer(route)
		if err != nil {
			return err
		}

		dispatchers.Add(1)
		go func() {
			defer dispatchers.Done()
			w.startMessageDispatcher(ctx, route, deliveries)
		}()
	}

	w.spawnWorkerPool(context.WithoutCancel(ctx))

	<-ctx.Done()
	dispatchers.Wait()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop signals the pool and waits for running jobs
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
