package notification

import (
	"context"

	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"go.uber.org/zap"
)

// LogSender only logs deliveries. Used in development and when no mailer is deployed.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// SendInvoice implements invoicing.InvoiceSender
func (s *LogSender) SendInvoice(_ context.Context, d invoicing.InvoiceDelivery) error {
	s.logger.Info("Invoice delivery",
		zap.String("kind", string(d.Kind)),
		zap.String("tenant_id", d.TenantID.String()),
		zap.String("invoice_number", d.InvoiceNumber),
		zap.String("client_ref", d.ClientRef),
		zap.String("amount_due", d.AmountDue+" "+d.Currency),
		zap.String("due_date", d.DueDate),
		zap.String("document_url", d.DocumentURL))
	return nil
}

var _ invoicing.InvoiceSender = (*LogSender)(nil)
