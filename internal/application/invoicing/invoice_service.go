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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService handles invoice lifecycle operations other than payment recording
type InvoiceService struct {
	repo invoicing.InvoiceRepository
	options
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(repo invoicing.InvoiceRepository, opts ...Option) *InvoiceService {
	return &InvoiceService{
		repo:    repo,
		options: newOptions(opts),
	}
}

// Create issues a new draft invoice
func (s *InvoiceService) Create(ctx context.Context, tenantID uuid.UUID, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create",
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceNumber, req.InvoiceNumber,
	)
	defer span.End()

	input, err := toNewInvoiceInput(req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	inv, err := invoicing.NewInvoice(tenantID, input, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.repo.Create(ctx, inv); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, inv.ID.String())

	s.logger.Info("Invoice created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("total_amount", inv.TotalAmount.String()),
		zap.String("currency", inv.Currency.String()))

	s.publishEvents(ctx, inv)

	response := ToInvoiceResponse(inv, now)
	return &response, nil
}

// GetByID retrieves an invoice with its status evaluated at read time
func (s *InvoiceService) GetByID(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.repo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(inv, s.now())
	return &response, nil
}

// GetByNumber retrieves an invoice by its display number
func (s *InvoiceService) GetByNumber(ctx context.Context, tenantID uuid.UUID, invoiceNumber string) (*InvoiceResponse, error) {
	inv, err := s.repo.FindByNumber(ctx, tenantID, invoiceNumber)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(inv, s.now())
	return &response, nil
}

// List retrieves invoices with filtering and pagination
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	now := s.now()
	domainFilter, err := s.toDomainFilter(filter, now)
	if err != nil {
		return nil, 0, err
	}

	invoices, err := s.repo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToInvoiceResponses(invoices, now), total, nil
}

// Totals returns the monetary snapshot of an invoice
func (s *InvoiceService) Totals(ctx context.Context, tenantID, invoiceID uuid.UUID) (*TotalsResponse, error) {
	inv, err := s.repo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	response := ToTotalsResponse(inv, s.now())
	return &response, nil
}

// ListPayments returns the payment history of an invoice in recording order
func (s *InvoiceService) ListPayments(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]PaymentResponse, error) {
	inv, err := s.repo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	return ToPaymentResponses(inv.Payments), nil
}

// Send delivers a draft invoice, or re-sends an open one as a reminder
func (s *InvoiceService) Send(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	return s.transition(ctx, "send", tenantID, invoiceID, func(inv *invoicing.Invoice, now time.Time) (bool, error) {
		return true, inv.MarkSent(now)
	})
}

// MarkViewed records the first time the client opened the invoice
func (s *InvoiceService) MarkViewed(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	return s.transition(ctx, "view", tenantID, invoiceID, func(inv *invoicing.Invoice, now time.Time) (bool, error) {
		return inv.MarkViewed(now)
	})
}

// Cancel moves an unpaid invoice to the cancelled state
func (s *InvoiceService) Cancel(ctx context.Context, tenantID, invoiceID uuid.UUID, req CancelInvoiceRequest) (*InvoiceResponse, error) {
	return s.transition(ctx, "cancel", tenantID, invoiceID, func(inv *invoicing.Invoice, now time.Time) (bool, error) {
		return true, inv.Cancel(req.Reason, now)
	})
}

// transition runs one load-mutate-save cycle. apply reports whether anything changed;
// an unchanged invoice is returned without a write.
func (s *InvoiceService) transition(
	ctx context.Context,
	method string,
	tenantID, invoiceID uuid.UUID,
	apply func(inv *invoicing.Invoice, now time.Time) (bool, error),
) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", method,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrInvoiceID, invoiceID.String(),
	)
	defer span.End()

	inv, err := s.repo.FindByIDForTenant(ctx, tenantID, invoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	next := inv.Clone()
	changed, err := apply(next, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !changed {
		response := ToInvoiceResponse(inv, now)
		return &response, nil
	}

	if err := s.repo.SaveWithLock(ctx, next); err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, invoicing.ErrConcurrentModification) {
			s.metrics.SaveConflict()
		}
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceStatus, next.Status.String())

	s.logger.Info("Invoice transition saved",
		zap.String("transition", method),
		zap.String("invoice_id", next.ID.String()),
		zap.String("status", next.Status.String()),
		zap.Int("version", next.Version))

	s.publishEvents(ctx, next)

	response := ToInvoiceResponse(next, now)
	return &response, nil
}

func (s *InvoiceService) toDomainFilter(filter InvoiceListFilter, now time.Time) (invoicing.InvoiceFilter, error) {
	domainFilter := invoicing.InvoiceFilter{Filter: shared.DefaultFilter()}
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}
	domainFilter.Search = strings.TrimSpace(filter.Search)
	domainFilter.ClientRef = strings.TrimSpace(filter.ClientRef)

	if filter.Status != "" {
		status, err := invoicing.ParseInvoiceStatus(filter.Status)
		if err != nil {
			return invoicing.InvoiceFilter{}, shared.ErrInvalidInput.WithMessage(err.Error())
		}
		// The stored status may predate the due date passing; rows are matched on the status they report now
		domainFilter.Status = &status
		domainFilter.StatusAsOf = now
	}
	if filter.OverdueOnly {
		asOf := invoicing.NormalizeDueDate(now)
		domainFilter.PastDueAsOf = &asOf
	}
	return domainFilter, nil
}

func toNewInvoiceInput(req CreateInvoiceRequest) (invoicing.NewInvoiceInput, error) {
	currency, err := valueobject.ParseCurrency(req.Currency)
	if err != nil {
		return invoicing.NewInvoiceInput{}, invoicing.ErrInvalidCurrency
	}

	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return invoicing.NewInvoiceInput{}, invoicing.ErrInvalidDueDate
	}

	discount := valueobject.Zero(currency)
	if strings.TrimSpace(req.Discount) != "" {
		if discount, err = valueobject.ParseMoney(req.Discount, currency); err != nil {
			return invoicing.NewInvoiceInput{}, invoicing.ErrInvalidDiscount.WithMessage(fmt.Sprintf("Discount %q is not a valid amount", req.Discount))
		}
	}

	items := make([]invoicing.LineItemInput, 0, len(req.LineItems))
	for idx, item := range req.LineItems {
		rate, err := valueobject.ParseMoney(item.Rate, currency)
		if err != nil {
			return invoicing.NewInvoiceInput{}, invoicing.ErrInvalidLineItem.WithMessage(fmt.Sprintf("Line item %d: rate %q is not a valid amount", idx+1, item.Rate))
		}
		quantity, err := decimal.NewFromString(strings.TrimSpace(item.Quantity))
		if err != nil {
			return invoicing.NewInvoiceInput{}, invoicing.ErrInvalidLineItem.WithMessage(fmt.Sprintf("Line item %d: quantity %q is not a number", idx+1, item.Quantity))
		}
		items = append(items, invoicing.LineItemInput{
			Description: item.Description,
			Rate:        rate,
			Quantity:    quantity,
		})
	}

	return invoicing.NewInvoiceInput{
		InvoiceNumber: req.InvoiceNumber,
		ClientRef:     req.ClientRef,
		Currency:      currency,
		DueDate:       dueDate,
		Discount:      discount,
		LineItems:     items,
		Notes:         req.Notes,
		CreatedBy:     req.CreatedBy,
	}, nil
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
