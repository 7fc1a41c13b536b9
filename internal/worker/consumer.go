package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/video2gif/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

func (w *Worker) setupConsumer(route *Route) (<-chan amqp.Delivery, error) {
	consumerTag := fmt.Sprintf("%s-%s", w.workerID, route.Queue)

	deliveries, err := w.broker.Consume(route.Queue, consumerTag)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming %s: %w", route.Queue, err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", consumerTag),
		slog.String("queue", route.Queue),
		slog.Int("max_retries", route.Policy.MaxRetries()),
	)

	return deliveries, nil
}

// startMessageDispatcher decodes deliveries of one queue and hands them to the pool
func (w *Worker) startMessageDispatcher(ctx context.Context, route *Route, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled",
				slog.String("queue", route.Queue),
			)
			return

		case raw, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed",
					slog.String("queue", route.Queue),
				)
				return
			}

			msg, err := domain.ParseJobMessage(raw.Body)
			if err != nil {
				w.logger.Error("Dropping malformed message",
					slog.String("queue", route.Queue),
					slog.String("body", string(raw.Body)),
					slog.Any("error", err),
				)
				if nackErr := raw.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK malformed message",
						slog.Any("error", nackErr),
					)
				}
				continue
			}

			select {
			case w.jobsChan <- &delivery{route: route, msg: msg, raw: raw}:
			case <-ctx.Done():
				if nackErr := raw.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("job_id", msg.JobID),
						slog.Any("error", nackErr),
					)
				}
				return
			}
		}
	}
}
