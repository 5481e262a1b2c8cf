// Package notification hands invoice deliveries to the outbound mailer.
package notification

import (
	"fmt"

	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/invoiceledger/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Supported drivers
const (
	DriverRedis = "redis"
	DriverLog   = "log"
)

// NewSender builds the InvoiceSender selected by cfg.Driver. The redis driver needs a client.
func NewSender(cfg config.NotificationConfig, client redis.UniversalClient, logger *zap.Logger) (invoicing.InvoiceSender, error) {
	switch cfg.Driver {
	case DriverRedis:
		if client == nil {
			return nil, fmt.Errorf("notification driver %q requires redis", cfg.Driver)
		}
		return NewRedisSender(client, cfg.Channel, logger), nil
	case DriverLog, "":
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown notification driver %q", cfg.Driver)
	}
}
