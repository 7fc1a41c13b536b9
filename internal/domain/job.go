package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Queue names
const (
	QueueConversions = "conversions"
	QueueWebhooks    = "webhooks"
)

// JobMessage represents a job message carried by RabbitMQ
type JobMessage struct {
	JobID   string `json:"job_id"`
	Attempt int    `json:"attempt"`
}

// Next returns the message for the following attempt
func (m JobMessage) Next() JobMessage {
	return JobMessage{JobID: m.JobID, Attempt: m.Attempt + 1}
}

// ParseJobMessage decodes a message body and validates the job id
func ParseJobMessage(body []byte) (*JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if _, err := uuid.Parse(msg.JobID); err != nil {
		return nil, fmt.Errorf("%w: job_id %q is not a UUID", ErrInvalidMessage, msg.JobID)
	}

	if msg.Attempt < 0 {
		return nil, fmt.Errorf("%w: negative attempt %d", ErrInvalidMessage, msg.Attempt)
	}

	return &msg, nil
}
