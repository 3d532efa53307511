// Package publisher emits detection and incident events to Kafka so that
// downstream consumers (dashboards, data lakes, ticketing bridges) can react
// without polling the engine.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yksanjo/ai-compliance-system/internal/config"
	"github.com/yksanjo/ai-compliance-system/internal/schema"
)

// ErrPublisherClosed is returned when publishing after Close.
var ErrPublisherClosed = fmt.Errorf("publisher: closed")

// Publisher writes violation and incident events to Kafka topics.
type Publisher struct {
	writer         *kafka.Writer
	violationTopic string
	incidentTopic  string
	logger         *slog.Logger
	closed         atomic.Bool

	published atomic.Int64
	errors    atomic.Int64
}

// New creates a Publisher from configuration.
func New(cfg config.PublisherConfig, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("publisher: no brokers configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
	}

	logger.Info("kafka publisher initialized",
		"brokers", cfg.Brokers,
		"violation_topic", cfg.ViolationTopic,
		"incident_topic", cfg.IncidentTopic,
	)

	return &Publisher{
		writer:         writer,
		violationTopic: cfg.ViolationTopic,
		incidentTopic:  cfg.IncidentTopic,
		logger:         logger,
	}, nil
}

// PublishViolation emits a violation event keyed by asset identifier.
func (p *Publisher) PublishViolation(ctx context.Context, v *schema.Violation) error {
	return p.publish(ctx, p.violationTopic, v.AssetIdentifier, v)
}

// PublishIncident emits an incident event keyed by incident ID.
func (p *Publisher) PublishIncident(ctx context.Context, inc *schema.Incident) error {
	return p.publish(ctx, p.incidentTopic, inc.ID.String(), inc)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, value interface{}) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("publisher: failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.errors.Add(1)
		p.logger.Warn("kafka publish failed", "topic", topic, "error", err)
		return fmt.Errorf("publisher: failed to write message: %w", err)
	}

	p.published.Add(1)
	return nil
}

// Stats reports publish counters.
func (p *Publisher) Stats() (published, errors int64) {
	return p.published.Load(), p.errors.Load()
}

// Close flushes buffered messages and releases the writer.
func (p *Publisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}

	p.logger.Info("closing kafka publisher", "published", p.published.Load())

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("publisher: failed to close writer: %w", err)
	}
	return nil
}
