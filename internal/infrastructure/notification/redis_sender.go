package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Pub/Sub channel the mailer listens on
const DefaultChannel = "invoice-ledger:deliveries"

// RedisSender publishes deliveries as JSON on a Redis Pub/Sub channel.
// Pub/Sub does not buffer, so a delivery published while no mailer is subscribed is lost;
// the sender logs that case but does not fail.
type RedisSender struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

// NewRedisSender creates a sender on an existing client. The caller owns the client.
func NewRedisSender(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisSender {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSender{client: client, channel: channel, logger: logger}
}

// Channel returns the Pub/Sub channel name
func (s *RedisSender) Channel() string {
	return s.channel
}

// SendInvoice implements invoicing.InvoiceSender
func (s *RedisSender) SendInvoice(ctx context.Context, delivery invoicing.InvoiceDelivery) error {
	data, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}

	receivers, err := s.client.Publish(ctx, s.channel, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish delivery on %s: %w", s.channel, err)
	}

	fields := []zap.Field{
		zap.String("channel", s.channel),
		zap.String("kind", string(delivery.Kind)),
		zap.String("invoice_number", delivery.InvoiceNumber),
	}
	if receivers == 0 {
		s.logger.Warn("Delivery published with no subscriber", fields...)
		return nil
	}
	s.logger.Debug("Delivery published", append(fields, zap.Int64("receivers", receivers))...)
	return nil
}

var _ invoicing.InvoiceSender = (*RedisSender)(nil)
