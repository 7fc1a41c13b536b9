package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/video2gif/shared/logger"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned",
		slog.Int("worker_count", w.concurrency),
	)
}

func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)

	for {
		select {
		case <-w.stopChan:
			w.logger.Debug("Worker goroutine stopping",
				slog.String("worker_name", workerName),
			)
			return

		case d := <-w.jobsChan:
			w.handle(ctx, workerName, d)
		}
	}
}

// handle runs one attempt and settles the delivery
func (w *Worker) handle(ctx context.Context, workerName string, d *delivery) {
	log := w.logger.With(logger.JobAttrs(d.route.Queue, d.msg.JobID, d.msg.Attempt)...).
		With(slog.String("worker_name", workerName))

	started := time.Now()
	outcome := d.route.Handler.Process(ctx, d.msg)
	elapsed := time.Since(started)

	if w.metrics != nil {
		w.metrics.ObserveAttempt(d.route.Queue, outcome.Kind.String(), elapsed)
	}

	next := decide(outcome, d.msg.Attempt, d.route.Policy)

	switch next.action {
	case actionAck:
		log.Info("Job completed",
			slog.Duration("elapsed", elapsed),
		)
		w.ack(log, d)

	case actionRetry:
		if err := w.retrier.Retry(ctx, d.route.Queue, d.msg.Next(), next.delay); err != nil {
			log.Error("Failed to schedule retry, requeueing",
				slog.Any("error", err),
			)
			w.nack(log, d, true)
			return
		}
		if w.metrics != nil {
			w.metrics.RetryScheduled(d.route.Queue)
		}
		log.Warn("Job failed, retry scheduled",
			slog.Int("retry", next.retry),
			slog.Int("max_retries", d.route.Policy.MaxRetries()),
			slog.Duration("retry_after", next.delay),
			slog.Any("error", outcome.Err),
		)
		w.ack(log, d)

	case actionAbandon:
		if w.metrics != nil {
			w.metrics.Abandoned(d.route.Queue)
		}
		log.Error("Job abandoned after exhausting retries",
			slog.Int("attempts", d.msg.Attempt+1),
			slog.Int("max_retries", d.route.Policy.MaxRetries()),
			slog.Any("error", outcome.Err),
		)
		w.nack(log, d, false)

	case actionReject:
		log.Error("Job failed permanently",
			slog.Int("attempts", d.msg.Attempt+1),
			slog.Any("error", outcome.Err),
		)
		w.nack(log, d, false)
	}
}

func (w *Worker) ack(log *slog.Logger, d *delivery) {
	if err := d.raw.Ack(false); err != nil {
		log.Error("Failed to ACK message",
			slog.Any("error", err),
		)
	}
}

func (w *Worker) nack(log *slog.Logger, d *delivery, requeue bool) {
	if err := d.raw.Nack(false, requeue); err != nil {
		log.Error("Failed to NACK message",
			slog.Bool("requeue", requeue),
			slog.Any("error", err),
		)
	}
}
