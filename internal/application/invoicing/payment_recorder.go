package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/invoicing"
	"github.com/invoiceledger/backend/internal/domain/shared"
	"github.com/invoiceledger/backend/internal/domain/shared/valueobject"
	"github.com/invoiceledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PaymentRecorder records payments against invoices.
//
// One call is one compare-and-apply cycle: load the invoice, validate and apply the payment
// to a copy, then save the copy with a version check. The save is attempted at most once;
// on ErrConcurrentModification the caller decides whether to retry (see RetryOnConflict).
type PaymentRecorder struct {
	repo invoicing.InvoiceRepository
	options
}

// NewPaymentRecorder creates a new PaymentRecorder
func NewPaymentRecorder(repo invoicing.InvoiceRepository, opts ...Option) *PaymentRecorder {
	return &PaymentRecorder{
		repo:    repo,
		options: newOptions(opts),
	}
}

// RecordPayment validates the request against the current ledger state and, if valid,
// persists the invoice with the new payment appended.
func (r *PaymentRecorder) RecordPayment(
	ctx context.Context,
	tenantID, invoiceID uuid.UUID,
	req RecordPaymentRequest,
) (*RecordPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record_payment",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
		telemetry.SpanAttrPaymentMethod, req.Method,
		telemetry.SpanAttrAmount, req.Amount,
	)
	defer span.End()

	start := time.Now()
	defer func() { r.metrics.ObserveRecordDuration(time.Since(start)) }()

	inv, err := r.repo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	domainReq, parseErr := toPaymentRequest(req, inv.Currency)
	now := r.now()

	next, payment, err := invoicing.RecordPayment(inv, domainReq, now)
	if err != nil {
		// An unparseable amount is reported only once the state checks have passed,
		// so a cancelled or draft invoice still answers with its own error.
		if parseErr != nil && errors.Is(err, invoicing.ErrInvalidAmount) {
			err = parseErr
		}
		r.metrics.PaymentRejected(shared.ErrorCode(err))
		telemetry.RecordError(span, err)
		r.logger.Info("Payment rejected",
			zap.String("invoice_id", invoiceID.String()),
			zap.String("amount", req.Amount),
			zap.String("method", req.Method),
			zap.String("error_code", shared.ErrorCode(err)))
		return nil, err
	}

	if err := r.repo.SaveWithLock(ctx, next); err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, invoicing.ErrConcurrentModification) {
			r.metrics.SaveConflict()
			r.logger.Info("Payment save lost a version race",
				zap.String("invoice_id", invoiceID.String()),
				zap.Int("expected_version", inv.Version))
			return nil, err
		}
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	r.metrics.PaymentRecorded(payment.Method.String(), payment.Amount.Currency().String(), payment.Amount.MinorUnits())
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, payment.ID.String(),
		telemetry.SpanAttrInvoiceStatus, next.Status.String(),
	)
	telemetry.AddEvent(span, "payment_recorded",
		"amount_paid", next.AmountPaid.String(),
		"amount_due", next.AmountDue.String(),
	)

	r.logger.Info("Payment recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", next.ID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("method", payment.Method.String()),
		zap.String("amount_due", next.AmountDue.String()),
		zap.String("status", next.Status.String()))

	r.publishEvents(ctx, next)

	return &RecordPaymentResult{
		Invoice: ToInvoiceResponse(next, now),
		Payment: ToPaymentResponse(*payment),
	}, nil
}

// toPaymentRequest converts the wire request. When the amount cannot be parsed the returned
// request carries a zero amount, which the ledger rejects as ErrInvalidAmount after its state
// checks, and the detailed parse error is returned alongside.
func toPaymentRequest(req RecordPaymentRequest, invoiceCurrency valueobject.Currency) (invoicing.PaymentRequest, error) {
	currency := invoiceCurrency
	if code := strings.TrimSpace(req.Currency); code != "" {
		currency = valueobject.Currency(strings.ToUpper(code))
	}

	domainReq := invoicing.PaymentRequest{
		Method:        invoicing.PaymentMethod(strings.ToLower(strings.TrimSpace(req.Method))),
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
	}

	amount, err := valueobject.ParseMoney(req.Amount, currency)
	if err != nil {
		domainReq.Amount = valueobject.Zero(currency)
		return domainReq, invoicing.ErrInvalidAmount.WithMessage(fmt.Sprintf("Amount %q must be a positive number with at most 2 decimal places", req.Amount))
	}
	domainReq.Amount = amount
	return domainReq, nil
}
