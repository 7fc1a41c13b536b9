// Package metrics defines the Prometheus collectors of both services.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTP holds request metrics of the api-service
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
}

// NewHTTP registers the HTTP collectors on reg
func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}

	reg.MustRegister(m.requests, m.duration, m.errors)
	return m
}

// ObserveRequest records one finished request. endpoint is the route template.
func (m *HTTP) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	code := statusLabel(status)
	m.requests.WithLabelValues(method, endpoint, code).Inc()
	m.duration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())

	switch {
	case status >= 500:
		m.errors.WithLabelValues(method, endpoint, "server_error").Inc()
	case status >= 400:
		m.errors.WithLabelValues(method, endpoint, "client_error").Inc()
	}
}

// Worker holds job metrics of the worker-service
type Worker struct {
	processed *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	retries   *prometheus.CounterVec
	abandoned *prometheus.CounterVec
}

// NewWorker registers the worker collectors on reg
func NewWorker(reg prometheus.Registerer) *Worker {
	m := &Worker{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_jobs_processed_total",
			Help: "Job attempts by queue and outcome",
		}, []string{"queue", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of one job attempt",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 180, 300},
		}, []string{"queue"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_job_retries_total",
			Help: "Retries scheduled by queue",
		}, []string{"queue"}),
		abandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_jobs_abandoned_total",
			Help: "Jobs that exhausted their retry budget",
		}, []string{"queue"}),
	}

	reg.MustRegister(m.processed, m.duration, m.retries, m.abandoned)
	return m
}

// ObserveAttempt records the outcome and duration of one attempt
func (m *Worker) ObserveAttempt(queue, outcome string, elapsed time.Duration) {
	m.processed.WithLabelValues(queue, outcome).Inc()
	m.duration.WithLabelValues(queue).Observe(elapsed.Seconds())
}

// RetryScheduled counts a retry published for queue
func (m *Worker) RetryScheduled(queue string) {
	m.retries.WithLabelValues(queue).Inc()
}

// Abandoned counts a job that ran out of retries
func (m *Worker) Abandoned(queue string) {
	m.abandoned.WithLabelValues(queue).Inc()
}

func statusLabel(status int) string {
	if status <= 0 {
		return "unknown"
	}
	return strconv.Itoa(status)
}
