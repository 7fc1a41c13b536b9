// Package ratelimit implements fixed-window request limits stored in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule allows Limit requests per Window
type Rule struct {
	Limit  int
	Window time.Duration
	Name   string
}

var windows = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseRules parses a list such as "50/day; 10/hour"
func ParseRules(s string) ([]Rule, error) {
	var rules []Rule

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		count, unit, ok := strings.Cut(part, "/")
		if !ok {
			return nil, fmt.Errorf("invalid rate limit %q: expected <count>/<unit>", part)
		}

		limit, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || limit <= 0 {
			return nil, fmt.Errorf("invalid rate limit %q: count must be a positive integer", part)
		}

		name := strings.ToLower(strings.TrimSpace(unit))
		window, ok := windows[name]
		if !ok {
			return nil, fmt.Errorf("invalid rate limit %q: unknown unit %q", part, unit)
		}

		rules = append(rules, Rule{Limit: limit, Window: window, Name: name})
	}

	if len(rules) == 0 {
		return nil, fmt.Errorf("no rate limits in %q", s)
	}

	return rules, nil
}

// Limiter counts requests per subject in Redis. Every rule consumes one unit
// of its own window; a request is denied once any window is over its limit.
type Limiter struct {
	client redis.Cmdable
	rules  []Rule
	now    func() time.Time
}

// NewLimiter creates a Limiter
func NewLimiter(client redis.Cmdable, rules []Rule) *Limiter {
	return &Limiter{client: client, rules: rules, now: time.Now}
}

// Key returns the counter key of subject for rule at t
func Key(subject string, rule Rule, t time.Time) string {
	bucket := t.Unix() / int64(rule.Window/time.Second)
	return fmt.Sprintf("ratelimit:%s:%s:%d", subject, rule.Name, bucket)
}

// Allow consumes one request for subject and reports whether it is within limits
func (l *Limiter) Allow(ctx context.Context, subject string) (bool, error) {
	now := l.now()

	for _, rule := range l.rules {
		key := Key(subject, rule, now)

		count, err := l.client.Incr(ctx, key).Result()
		if err != nil {
			return false, fmt.Errorf("failed to increment %s: %w", key, err)
		}

		if count == 1 {
			if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
				return false, fmt.Errorf("failed to set expiry on %s: %w", key, err)
			}
		}

		if count > int64(rule.Limit) {
			return false, nil
		}
	}

	return true, nil
}
