// Package metrics holds the Prometheus collectors of the server and worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "explostock"

// Metrics holds all collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Domain commands
	CommandsTotal    *prometheus.CounterVec
	CommandConflicts *prometheus.CounterVec

	// Outbox relay
	OutboxDelivered      *prometheus.CounterVec
	OutboxBatchDuration  prometheus.Histogram
	OutboxDeadLettered   prometheus.Counter
	KafkaPublishDuration *prometheus.HistogramVec
	CircuitBreakerState  *prometheus.GaugeVec

	// Background jobs
	BatchesExpired      prometheus.Counter
	IdempotencyPurged   prometheus.Counter
	JobRunsTotal        *prometheus.CounterVec
	DBPoolAcquiredConns prometheus.Gauge
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
	m.HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	m.CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "commands_total",
			Help:      "Domain commands by operation and outcome (ok or error code)",
		},
		[]string{"operation", "outcome"},
	)
	m.CommandConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "command_conflict_retries_total",
			Help:      "Commands re-run after a concurrent modification",
		},
		[]string{"operation"},
	)

	m.OutboxDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "outbox_messages_total",
			Help:      "Outbox messages handed to the broker",
		},
		[]string{"event_type", "status"},
	)
	m.OutboxBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "outbox_batch_duration_seconds",
			Help:      "Duration of one outbox relay batch",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)
	m.OutboxDeadLettered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "outbox_dead_lettered_total",
			Help:      "Outbox messages moved to the dead letter table",
		},
	)
	m.KafkaPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "kafka_publish_duration_seconds",
			Help:      "Kafka publish duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"topic"},
	)
	m.CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	m.BatchesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "batches_expired_total",
			Help:      "Warehouse batches marked expired by the sweep",
		},
	)
	m.IdempotencyPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "idempotency_keys_purged_total",
			Help:      "Expired idempotency keys removed",
		},
	)
	m.JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "job_runs_total",
			Help:      "Background job runs by job and status",
		},
		[]string{"job", "status"},
	)
	m.DBPoolAcquiredConns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "db_pool_acquired_connections",
			Help:      "Connections currently acquired from the pool",
		},
	)

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.CommandsTotal,
		m.CommandConflicts,
		m.OutboxDelivered,
		m.OutboxBatchDuration,
		m.OutboxDeadLettered,
		m.KafkaPublishDuration,
		m.CircuitBreakerState,
		m.BatchesExpired,
		m.IdempotencyPurged,
		m.JobRunsTotal,
		m.DBPoolAcquiredConns,
	)

	return m
}

// Handler returns the /metrics handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records a finished HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCommand records the outcome of a domain command. outcome is "ok" or
// the error code.
func (m *Metrics) RecordCommand(operation, outcome string) {
	m.CommandsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordOutboxDelivery records one relayed message.
func (m *Metrics) RecordOutboxDelivery(eventType string, success bool) {
	m.OutboxDelivered.WithLabelValues(eventType, status(success)).Inc()
}

// RecordKafkaPublish records the duration of a broker write.
func (m *Metrics) RecordKafkaPublish(topic string, duration time.Duration) {
	m.KafkaPublishDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// SetCircuitBreakerState exports a breaker state.
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordJob records one background job run.
func (m *Metrics) RecordJob(job string, err error) {
	m.JobRunsTotal.WithLabelValues(job, status(err == nil)).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
