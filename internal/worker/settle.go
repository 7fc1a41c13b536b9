package worker

import (
	"time"

	"github.com/cuongbtq/video2gif/internal/domain"
)

type action int

const (
	actionAck action = iota
	actionRetry
	actionAbandon
	actionReject
)

func (a action) String() string {
	switch a {
	case actionAck:
		return "ack"
	case actionRetry:
		return "retry"
	case actionAbandon:
		return "abandon"
	default:
		return "reject"
	}
}

type decision struct {
	action action
	retry  int
	delay  time.Duration
}

// decide maps the outcome of attempt (0-based) to what happens to the message.
// Only the outcome kind and the attempt number matter.
func decide(outcome domain.Outcome, attempt int, policy RetryPolicy) decision {
	switch outcome.Kind {
	case domain.OutcomeSuccess:
		return decision{action: actionAck}
	case domain.OutcomeTransient:
		if attempt < policy.MaxRetries() {
			next := attempt + 1
			return decision{action: actionRetry, retry: next, delay: policy.Delay(next)}
		}
		return decision{action: actionAbandon}
	default:
		return decision{action: actionReject}
	}
}
