package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/video2gif/internal/domain"
)

// ConversionStore is the part of the job record store the notifier reads
type ConversionStore interface {
	GetConversion(ctx context.Context, id string) (*domain.Conversion, error)
}

// StatusError is returned for a non-2xx webhook response
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook responded with status %d", e.StatusCode)
}

// Notifier POSTs the conversion result to the job's webhook target
type Notifier struct {
	logger *slog.Logger
	store  ConversionStore
	client *http.Client
}

// New creates a Notifier whose requests give up after timeout.
// Redirects are not followed.
func New(logger *slog.Logger, store ConversionStore, timeout time.Duration) *Notifier {
	return &Notifier{
		logger: logger,
		store:  store,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Process delivers one webhook attempt
func (n *Notifier) Process(ctx context.Context, msg *domain.JobMessage) domain.Outcome {
	log := n.logger.With(slog.String("job_id", msg.JobID), slog.Int("attempt", msg.Attempt))

	conversion, err := n.store.GetConversion(ctx, msg.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrConversionNotFound) {
			return domain.Permanent(err)
		}
		return domain.Transient(fmt.Errorf("failed to load conversion: %w", err))
	}

	target := conversion.Webhook()
	if target == "" {
		log.Warn("Webhook job scheduled for a conversion without webhook url")
		return domain.Permanent(errors.New("conversion has no webhook url"))
	}

	payload, err := domain.NewWebhookPayload(conversion)
	if err != nil {
		log.Error("Webhook job scheduled before the conversion finished")
		return domain.Permanent(err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Permanent(fmt.Errorf("failed to encode webhook payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return domain.Permanent(fmt.Errorf("invalid webhook url: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		return domain.Transient(fmt.Errorf("webhook request failed: %w", err))
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		log.Info("Webhook delivered",
			slog.String("url", target),
			slog.Int("status_code", res.StatusCode),
		)
		return domain.Succeeded(*conversion.GifFileID)
	case res.StatusCode >= 500:
		return domain.Transient(&StatusError{StatusCode: res.StatusCode})
	default:
		return domain.Permanent(&StatusError{StatusCode: res.StatusCode})
	}
}
