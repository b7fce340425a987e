// Package kafka publishes classification audit events.  Auditing is
// fire-and-forget from the caller's perspective: a broker outage must never
// fail or slow a classification response.
package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// AuditEvent is one classification decision as published to the audit topic.
type AuditEvent struct {
	EventID        string    `json:"event_id"`
	OccurredAt     time.Time `json:"occurred_at"`
	CatalogVersion string    `json:"catalog_version"`
	Query          string    `json:"query"`
	Code           string    `json:"code"`
	Score          float64   `json:"score"`
	RuleTrail      []string  `json:"rule_trail"`
	Degraded       bool      `json:"degraded"`
	ElapsedMs      int64     `json:"elapsed_ms"`
}

// writerInterface abstracts kafka.Writer for testing.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProducerConfig holds broker and topic settings.
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// Producer writes audit events to Kafka.
type Producer struct {
	writer writerInterface
	config ProducerConfig
	logger logging.Logger
	closed atomic.Bool
	failed atomic.Int64
	sent   atomic.Int64
}

// NewProducer wires a Producer.
func NewProducer(cfg ProducerConfig, logger logging.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New(errors.ErrCodeValidation, "audit topic is required")
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return &Producer{writer: writer, config: cfg, logger: logger.Named("kafka.audit")}, nil
}

// Publish writes one audit event.  An empty EventID is filled in.
func (p *Producer) Publish(ctx context.Context, ev *AuditEvent) error {
	if p.closed.Load() {
		return errors.Unavailable("audit producer is closed")
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encoding audit event")
	}

	msg := kafka.Message{
		Key:   []byte(ev.Code),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.ErrCodeExternalService, "publishing audit event")
	}
	p.sent.Add(1)
	return nil
}

// PublishAsync publishes in a goroutine and logs failures instead of
// returning them.  Used on the classification hot path.
func (p *Producer) PublishAsync(ev *AuditEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.WriteTimeout)
		defer cancel()
		if err := p.Publish(ctx, ev); err != nil {
			p.logger.Warn("audit event dropped",
				logging.String("code", ev.Code),
				logging.Err(err),
			)
		}
	}()
}

// Sent returns the count of successfully published events.
func (p *Producer) Sent() int64 { return p.sent.Load() }

// Failed returns the count of failed publishes.
func (p *Producer) Failed() int64 { return p.failed.Load() }

// Close flushes and closes the writer.  Idempotent.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}
