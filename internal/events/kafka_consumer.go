package events

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// GatewayPaymentRecorder applies a gateway-confirmed payment to the ledger.
// Implemented by the invoice application service.
type GatewayPaymentRecorder interface {
	RecordGatewayPayment(ctx context.Context, evt GatewayPaymentConfirmedEvent) error
}

// GatewayConsumer listens to the external payment gateway's confirmation
// events and records them as ledger payments.
type GatewayConsumer struct {
	reader   *kafkago.Reader
	recorder GatewayPaymentRecorder
	logger   *zap.Logger
}

// NewGatewayConsumer creates a consumer in the given consumer group.
func NewGatewayConsumer(brokers []string, groupID string, recorder GatewayPaymentRecorder, logger *zap.Logger) *GatewayConsumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   TopicGatewayEvents,
	})
	return &GatewayConsumer{reader: reader, recorder: recorder, logger: logger}
}

// Start consumes until the context is cancelled.
func (c *GatewayConsumer) Start(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if err := c.handleMessage(ctx, msg); err != nil {
			// Leave the offset uncommitted so the message is retried.
			c.logger.Error("failed to process gateway event", zap.Error(err))
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit offset", zap.Error(err))
		}
	}
}

// Close closes the underlying Kafka reader.
func (c *GatewayConsumer) Close() error {
	return c.reader.Close()
}

func (c *GatewayConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	var envelope CloudEvent
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		c.logger.Error("failed to parse cloud event from gateway topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages.
	}

	switch envelope.Type {
	case GatewayPaymentConfirmed:
		var evt GatewayPaymentConfirmedEvent
		if err := envelope.ParseData(&evt); err != nil {
			c.logger.Error("failed to parse gateway payment data", zap.Error(err))
			return nil
		}
		c.logger.Info("processing gateway payment confirmation",
			zap.String("invoice_number", evt.InvoiceNumber),
			zap.String("gateway_payment_id", evt.GatewayPaymentID),
		)
		return c.recorder.RecordGatewayPayment(ctx, evt)
	default:
		c.logger.Debug("ignoring unhandled gateway event type",
			zap.String("type", envelope.Type),
		)
		return nil
	}
}
