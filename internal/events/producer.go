package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// CloudEvent is the JSON envelope wrapping every published event.
type CloudEvent struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Type        string          `json:"type"`
	Time        time.Time       `json:"time"`
	ContentType string          `json:"datacontenttype"`
	Data        json.RawMessage `json:"data"`
}

// NewCloudEvent wraps data in a CloudEvent envelope.
func NewCloudEvent(source, eventType string, data any) (*CloudEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return &CloudEvent{
		ID:          uuid.NewString(),
		Source:      source,
		Type:        eventType,
		Time:        time.Now().UTC(),
		ContentType: "application/json",
		Data:        payload,
	}, nil
}

// ParseData unmarshals the envelope's data into v.
func (e *CloudEvent) ParseData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Publisher is the notification sink consumed by application services.
// Implementations must never block a committed transaction on delivery.
type Publisher interface {
	Publish(ctx context.Context, topic, eventType, key string, data any) error
}

// KafkaPublisher publishes CloudEvents to Kafka.
type KafkaPublisher struct {
	writer *kafkago.Writer
	source string
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers.
func NewKafkaPublisher(brokers []string, source string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		source: source,
		logger: logger,
	}
}

// Publish wraps data in a CloudEvent and writes it to topic, keyed so that
// all events of one aggregate land on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, eventType, key string, data any) error {
	evt, err := NewCloudEvent(p.source, eventType, data)
	if err != nil {
		return err
	}
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal cloud event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", eventType, topic, err)
	}

	p.logger.Debug("event published",
		zap.String("topic", topic),
		zap.String("type", eventType),
		zap.String("key", key),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
