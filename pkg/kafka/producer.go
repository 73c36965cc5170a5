package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/lukmanhidayah/siasn-sync/pkg/models"
	"github.com/lukmanhidayah/siasn-sync/pkg/tracing"
)

// Producer handles Kafka event emission
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	requiredAcks := kafka.RequiredAcks(cfg.RequiredAcks)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           requiredAcks,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// RunEvent represents an event about a sync run cycle
type RunEvent struct {
	EventType string          `json:"event_type"` // run.started, run.completed, run.failed
	RunID     string          `json:"run_id"`
	Status    string          `json:"status,omitempty"`
	Summary   json.RawMessage `json:"summary,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// PublishRunEvent publishes a run event to Kafka
func (p *Producer) PublishRunEvent(ctx context.Context, event *RunEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishRunEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.RunID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "run_id", Value: []byte(event.RunID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish run event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"run_id":     event.RunID,
	}).Debug("Published run event")

	return nil
}

// PublishRunSummary publishes a completed run summary as a run event
func (p *Producer) PublishRunSummary(ctx context.Context, summary *models.RunSummary) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishRunSummary")
	defer span.End()

	eventType := "run.completed"
	if summary.Status == models.RunStatusFailed {
		eventType = "run.failed"
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	event := &RunEvent{
		EventType: eventType,
		RunID:     summary.RunID,
		Status:    string(summary.Status),
		Summary:   data,
	}

	return p.PublishRunEvent(ctx, event)
}
