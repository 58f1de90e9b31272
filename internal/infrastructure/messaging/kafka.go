// Package messaging delivers outbox messages to the message broker.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"explostock/internal/infrastructure/metrics"
	"explostock/internal/infrastructure/storage/postgres"
	"explostock/pkg/logger"
)

// ErrCircuitOpen is returned while the broker circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Header keys set on every message.
const (
	HeaderEventType     = "event-type"
	HeaderAggregateType = "aggregate-type"
	HeaderMessageID     = "message-id"
	HeaderCreatedAt     = "created-at"
)

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures the Kafka publisher.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration

	// Breaker settings. Zero values take the defaults below.
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// NewWriter creates a synchronous writer that waits for all in-sync replicas.
func NewWriter(cfg Config) *kafka.Writer {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        false,
	}
}

// Publisher sends outbox messages to one topic behind a circuit breaker.
// Messages are keyed by aggregate id so that the events of one aggregate
// keep their order within a partition.
type Publisher struct {
	writer       Writer
	topic        string
	writeTimeout time.Duration
	breaker      *gobreaker.CircuitBreaker
	metrics      *metrics.Metrics
}

var _ postgres.OutboxHandler = (*Publisher)(nil)

// NewPublisher wraps writer. m may be nil.
func NewPublisher(writer Writer, cfg Config, m *metrics.Metrics) *Publisher {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	p := &Publisher{
		writer:       writer,
		topic:        cfg.Topic,
		writeTimeout: writeTimeout,
		metrics:      m,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-producer",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String())
			if m != nil {
				m.SetCircuitBreakerState(name, int(to))
			}
		},
	})
	return p
}

// Handle implements postgres.OutboxHandler.
func (p *Publisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	km := kafka.Message{
		Key:   []byte(msg.AggregateID.String()),
		Value: msg.Payload,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(msg.EventType)},
			{Key: HeaderAggregateType, Value: []byte(msg.AggregateType)},
			{Key: HeaderMessageID, Value: []byte(msg.ID.String())},
			{Key: HeaderCreatedAt, Value: []byte(msg.CreatedAt.UTC().Format(time.RFC3339Nano))},
		},
		Time: msg.CreatedAt,
	}

	start := time.Now()
	_, err := p.breaker.Execute(func() (interface{}, error) {
		writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()
		return nil, p.writer.WriteMessages(writeCtx, km)
	})
	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(p.topic, time.Since(start))
		p.metrics.RecordOutboxDelivery(msg.EventType, err == nil)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrCircuitOpen
	default:
		return fmt.Errorf("publish %s to %s: %w", msg.EventType, p.topic, err)
	}
}

// Close closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// LogHandler logs messages instead of publishing them. The worker uses it
// when no broker is configured.
type LogHandler struct {
	Metrics *metrics.Metrics
}

// Handle implements postgres.OutboxHandler.
func (h LogHandler) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	logger.Info(ctx, "outbox event",
		"message_id", msg.ID,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"event_type", msg.EventType)
	if h.Metrics != nil {
		h.Metrics.RecordOutboxDelivery(msg.EventType, true)
	}
	return nil
}
