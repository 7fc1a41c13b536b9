package worker

import (
	"math/rand/v2"
	"time"
)

// RetryPolicy decides how many times a transient failure is retried and how
// long to wait before retry n (1-based)
type RetryPolicy interface {
	MaxRetries() int
	Delay(retry int) time.Duration
}

// FixedPolicy waits the same delay before every retry
type FixedPolicy struct {
	Retries  int
	Interval time.Duration
}

// MaxRetries implements RetryPolicy
func (p FixedPolicy) MaxRetries() int { return p.Retries }

// Delay implements RetryPolicy
func (p FixedPolicy) Delay(int) time.Duration { return p.Interval }

// ExponentialPolicy doubles the delay on every retry and adds up to 50%
// random jitter. Delays are strictly increasing only while below Max; once
// the cap is hit every later retry waits exactly Max.
type ExponentialPolicy struct {
	Retries int
	Base    time.Duration
	Max     time.Duration

	// jitter returns a value in [0, n); nil means math/rand/v2
	jitter func(n int64) int64
}

// MaxRetries implements RetryPolicy
func (p ExponentialPolicy) MaxRetries() int { return p.Retries }

// Delay implements RetryPolicy
func (p ExponentialPolicy) Delay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}

	delay := p.Base
	for i := 1; i < retry && delay < p.Max; i++ {
		delay *= 2
	}
	if delay >= p.Max {
		return p.Max
	}

	spread := int64(delay / 2)
	if spread > 0 {
		jitter := rand.Int64N
		if p.jitter != nil {
			jitter = p.jitter
		}
		delay += time.Duration(jitter(spread))
	}

	return min(delay, p.Max)
}
