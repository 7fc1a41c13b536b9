package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongbtq/video2gif/internal/domain"
)

const contentTypeJSON = "application/json"

// Broker is the subset of the RabbitMQ client the publisher needs
type Broker interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
	PublishDelayed(ctx context.Context, queue string, body []byte, contentType string, delay time.Duration) error
}

// Publisher turns job ids into queue messages
type Publisher struct {
	broker Broker
}

// NewPublisher creates a Publisher on top of broker
func NewPublisher(broker Broker) *Publisher {
	return &Publisher{broker: broker}
}

// Enqueue publishes the first attempt of a job
func (p *Publisher) Enqueue(ctx context.Context, queue, jobID string) error {
	body, err := json.Marshal(domain.JobMessage{JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to encode job message: %w", err)
	}

	if err := p.broker.PublishWithRetry(ctx, queue, body, contentTypeJSON); err != nil {
		return fmt.Errorf("failed to enqueue %s job %s: %w", queue, jobID, err)
	}
	return nil
}

// Retry schedules msg to be delivered to queue again after delay
func (p *Publisher) Retry(ctx context.Context, queue string, msg domain.JobMessage, delay time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode job message: %w", err)
	}

	if err := p.broker.PublishDelayed(ctx, queue, body, contentTypeJSON, delay); err != nil {
		return fmt.Errorf("failed to schedule retry of %s job %s: %w", queue, msg.JobID, err)
	}
	return nil
}
