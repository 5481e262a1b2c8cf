package invoicing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestDeliveryHandler(repo invoicing.InvoiceRepository, sender invoicing.InvoiceSender, store invoicing.DocumentStore, metrics *recordingMetrics) *DeliveryHandler {
	h := NewDeliveryHandler(repo, sender, store, metrics, nil)
	h.now = fixedClock
	return h
}

func TestDeliveryHandler_InvoiceSent(t *testing.T) {
	tenantID := uuid.New()
	inv := newDraftInvoice(t, tenantID, "INV-5", 25000, testNow.AddDate(0, 0, 14))
	require.NoError(t, inv.MarkSent(testNow))
	event := inv.PullDomainEvents()[0]

	repo := new(MockInvoiceRepository)
	sender := new(MockInvoiceSender)
	store := new(MockDocumentStore)
	repo.On("FindByIDForTenant", mock.Anything, tenantID, inv.ID).Return(inv, nil)
	store.On("URL", mock.Anything, DocumentKey(tenantID, inv.ID)).Return("https://docs.example.com/INV-5.pdf", nil)
	sender.On("SendInvoice", mock.Anything, mock.MatchedBy(func(d invoicing.InvoiceDelivery) bool {
		return d.Kind == invoicing.DeliveryKindInvoice &&
			d.InvoiceID == inv.ID &&
			d.AmountDue == "250.00" &&
			d.Currency == "USD" &&
			d.DueDate == "2025-03-29" &&
			d.Status == "sent" &&
			d.DocumentURL == "https://docs.example.com/INV-5.pdf" &&
			d.RequestedAt.Equal(testNow)
	})).Return(nil)

	err := newTestDeliveryHandler(repo, sender, store, &recordingMetrics{}).Handle(context.Background(), event)

	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestDeliveryHandler_KindsAndFailures(t *testing.T) {
	tenantID := uuid.New()

	t.Run("re-send is a reminder", func(t *testing.T) {
		inv := newSentInvoice(t, tenantID, 1000, testNow.AddDate(0, 0, -1))
		require.NoError(t, inv.MarkSent(testNow))
		event := inv.PullDomainEvents()[0]

		repo := new(MockInvoiceRepository)
		sender := new(MockInvoiceSender)
		repo.On("FindByIDForTenant", mock.Anything, tenantID, inv.ID).Return(inv, nil)
		sender.On("SendInvoice", mock.Anything, mock.MatchedBy(func(d invoicing.InvoiceDelivery) bool {
			return d.Kind == invoicing.DeliveryKindReminder && d.Status == "overdue" && d.DocumentURL == ""
		})).Return(nil)

		require.NoError(t, newTestDeliveryHandler(repo, sender, nil, nil).Handle(context.Background(), event))
		sender.AssertExpectations(t)
	})

	t.Run("paid invoice gets a receipt", func(t *testing.T) {
		inv := newSentInvoice(t, tenantID, 1000, testNow.AddDate(0, 0, 3))
		_, err := inv.ApplyPayment(invoicing.PaymentRequest{Amount: usd(1000), Method: invoicing.PaymentMethodCash}, testNow)
		require.NoError(t, err)
		events := inv.PullDomainEvents()
		require.Len(t, events, 2)

		repo := new(MockInvoiceRepository)
		sender := new(MockInvoiceSender)
		repo.On("FindByIDForTenant", mock.Anything, tenantID, inv.ID).Return(inv, nil)
		sender.On("SendInvoice", mock.Anything, mock.MatchedBy(func(d invoicing.InvoiceDelivery) bool {
			return d.Kind == invoicing.DeliveryKindReceipt && d.Status == "paid" && d.AmountDue == "0.00"
		})).Return(nil).Once()

		h := newTestDeliveryHandler(repo, sender, nil, nil)
		for _, event := range events {
			require.NoError(t, h.Handle(context.Background(), event))
		}
		sender.AssertExpectations(t)
	})

	t.Run("sender failure is counted", func(t *testing.T) {
		inv := newSentInvoice(t, tenantID, 1000, testNow.AddDate(0, 0, 3))
		require.NoError(t, inv.MarkSent(testNow))
		event := inv.PullDomainEvents()[0]

		repo := new(MockInvoiceRepository)
		sender := new(MockInvoiceSender)
		metrics := &recordingMetrics{}
		repo.On("FindByIDForTenant", mock.Anything, tenantID, inv.ID).Return(inv, nil)
		sender.On("SendInvoice", mock.Anything, mock.Anything).Return(errors.New("redis unavailable"))

		err := newTestDeliveryHandler(repo, sender, nil, metrics).Handle(context.Background(), event)
		assert.ErrorContains(t, err, "redis unavailable")
		assert.Equal(t, []string{"delivery"}, metrics.sideEffects)
	})

	t.Run("missing document link does not block delivery", func(t *testing.T) {
		inv := newSentInvoice(t, tenantID, 1000, testNow.AddDate(0, 0, 3))
		require.NoError(t, inv.MarkSent(testNow))
		event := inv.PullDomainEvents()[0]

		repo := new(MockInvoiceRepository)
		sender := new(MockInvoiceSender)
		store := new(MockDocumentStore)
		repo.On("FindByIDForTenant", mock.Anything, tenantID, inv.ID).Return(inv, nil)
		store.On("URL", mock.Anything, mock.Anything).Return("", errors.New("no credentials"))
		sender.On("SendInvoice", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, newTestDeliveryHandler(repo, sender, store, nil).Handle(context.Background(), event))
		sender.AssertExpectations(t)
	})
}
