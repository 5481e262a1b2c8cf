package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/invoiceledger/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DeliveryHandler sends invoices and receipts to clients when the ledger raises
// InvoiceSent or InvoicePaid. It runs on the event bus, after the change is saved.
type DeliveryHandler struct {
	repo     invoicing.InvoiceRepository
	sender   invoicing.InvoiceSender
	store    invoicing.DocumentStore
	failures SideEffectMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewDeliveryHandler creates a new DeliveryHandler. store is optional and only used to
// attach a document link.
func NewDeliveryHandler(
	repo invoicing.InvoiceRepository,
	sender invoicing.InvoiceSender,
	store invoicing.DocumentStore,
	failures SideEffectMetrics,
	logger *zap.Logger,
) *DeliveryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryHandler{
		repo:     repo,
		sender:   sender,
		store:    store,
		failures: failures,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// EventTypes implements shared.EventHandler
func (h *DeliveryHandler) EventTypes() []string {
	return []string{invoicing.EventTypeInvoiceSent, invoicing.EventTypeInvoicePaid}
}

// Handle implements shared.EventHandler
func (h *DeliveryHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var kind invoicing.DeliveryKind
	switch e := event.(type) {
	case *invoicing.InvoiceSentEvent:
		kind = invoicing.DeliveryKindInvoice
		if e.Reminder {
			kind = invoicing.DeliveryKindReminder
		}
	case *invoicing.InvoicePaidEvent:
		kind = invoicing.DeliveryKindReceipt
	default:
		return nil
	}

	if err := h.deliver(ctx, kind, event); err != nil {
		if h.failures != nil {
			h.failures.SideEffectFailed("delivery")
		}
		h.logger.Error("Failed to deliver invoice",
			zap.String("kind", string(kind)),
			zap.String("invoice_id", event.AggregateID().String()),
			zap.Error(err))
		return err
	}
	return nil
}

func (h *DeliveryHandler) deliver(ctx context.Context, kind invoicing.DeliveryKind, event shared.DomainEvent) error {
	inv, err := h.repo.FindByIDForTenant(ctx, event.TenantID(), event.AggregateID())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}

	now := h.now()
	delivery := invoicing.InvoiceDelivery{
		Kind:          kind,
		TenantID:      inv.TenantID,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientRef:     inv.ClientRef,
		Currency:      inv.Currency.String(),
		TotalAmount:   inv.TotalAmount.String(),
		AmountDue:     inv.AmountDue.String(),
		DueDate:       inv.DueDate.Format(dateLayout),
		Status:        inv.Evaluate(now).String(),
		RequestedAt:   now,
	}
	if h.store != nil {
		url, err := h.store.URL(ctx, DocumentKey(inv.TenantID, inv.ID))
		if err != nil {
			h.logger.Warn("Document link unavailable", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
		} else {
			delivery.DocumentURL = url
		}
	}

	if err := h.sender.SendInvoice(ctx, delivery); err != nil {
		return fmt.Errorf("send %s for invoice %s: %w", kind, inv.InvoiceNumber, err)
	}
	h.logger.Info("Invoice delivery requested",
		zap.String("kind", string(kind)),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("client_ref", inv.ClientRef))
	return nil
}
