package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/shared"
	"github.com/invoiceledger/backend/internal/domain/shared/valueobject"
)

const maxInvoiceNumberLength = 50

// Invoice is the ledger aggregate: totals, status and the append-only payment history of one invoice.
// Money fields are derived and kept consistent by the aggregate; callers change them only through
// ApplyPayment (or RecordPayment, which applies to a copy).
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber string
	ClientRef     string
	Currency      valueobject.Currency
	LineItems     LineItems
	Subtotal      valueobject.Money
	Discount      valueobject.Money
	TotalAmount   valueobject.Money
	AmountPaid    valueobject.Money
	AmountDue     valueobject.Money
	DueDate       time.Time
	Status        InvoiceStatus
	Payments      Payments
	Notes         string
	SentAt        *time.Time
	ViewedAt      *time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
	CancelReason  string
}

// NewInvoiceInput holds the data needed to issue a draft invoice
type NewInvoiceInput struct {
	InvoiceNumber string
	ClientRef     string
	Currency      valueobject.Currency
	DueDate       time.Time
	Discount      valueobject.Money
	LineItems     []LineItemInput
	Notes         string
	CreatedBy     *uuid.UUID
}

// Totals is a consistent snapshot of an invoice's monetary figures
type Totals struct {
	Subtotal    valueobject.Money
	Discount    valueobject.Money
	TotalAmount valueobject.Money
	AmountPaid  valueobject.Money
	AmountDue   valueobject.Money
}

// NewInvoice creates a draft invoice and computes its totals
func NewInvoice(tenantID uuid.UUID, in NewInvoiceInput, now time.Time) (*Invoice, error) {
	number := strings.TrimSpace(in.InvoiceNumber)
	if number == "" || len(number) > maxInvoiceNumberLength {
		return nil, ErrInvalidInvoiceNumber
	}
	clientRef := strings.TrimSpace(in.ClientRef)
	if clientRef == "" {
		return nil, ErrInvalidClientRef
	}
	if !in.Currency.IsValid() {
		return nil, ErrInvalidCurrency
	}
	if in.DueDate.IsZero() {
		return nil, ErrInvalidDueDate
	}
	if len(in.LineItems) == 0 {
		return nil, ErrNoLineItems
	}

	items := make(LineItems, 0, len(in.LineItems))
	for idx, input := range in.LineItems {
		if input.Rate.Currency() != in.Currency {
			return nil, ErrInvalidLineItem.WithMessage(fmt.Sprintf("Line item %d: rate currency must be %s", idx+1, in.Currency))
		}
		item, err := NewLineItem(input)
		if err != nil {
			return nil, ErrInvalidLineItem.WithMessage(fmt.Sprintf("Line item %d: %s", idx+1, err.Error()))
		}
		items = append(items, item)
	}

	subtotal, err := items.Subtotal(in.Currency)
	if err != nil {
		return nil, ErrInvalidLineItem.WithMessage(err.Error())
	}

	discount := in.Discount
	if discount.Currency() == "" && discount.IsZero() {
		discount = valueobject.Zero(in.Currency)
	}
	if discount.Currency() != in.Currency || discount.IsNegative() {
		return nil, ErrInvalidDiscount
	}
	total, err := subtotal.Subtract(discount)
	if err != nil || total.IsNegative() {
		return nil, ErrInvalidDiscount
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, now),
		InvoiceNumber:       number,
		ClientRef:           clientRef,
		Currency:            in.Currency,
		LineItems:           items,
		Subtotal:            subtotal,
		Discount:            discount,
		TotalAmount:         total,
		AmountPaid:          valueobject.Zero(in.Currency),
		AmountDue:           total,
		DueDate:             NormalizeDueDate(in.DueDate),
		Status:              InvoiceStatusDraft,
		Payments:            Payments{},
		Notes:               strings.TrimSpace(in.Notes),
	}
	if in.CreatedBy != nil {
		inv.SetCreatedBy(*in.CreatedBy)
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// NormalizeDueDate strips the time of day; a due date is a calendar date in UTC
func NormalizeDueDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Evaluate derives the invoice status at the given instant. It reads only the invoice's own
// state and has no side effects.
//
// Precedence: cancelled and draft are sticky; then paid (nothing due); then partially_paid
// (any money received, even past due); then overdue; otherwise sent or viewed.
func (i *Invoice) Evaluate(now time.Time) InvoiceStatus {
	switch i.Status {
	case InvoiceStatusCancelled:
		return InvoiceStatusCancelled
	case InvoiceStatusDraft:
		return InvoiceStatusDraft
	}

	if i.AmountDue.IsZero() {
		return InvoiceStatusPaid
	}
	if i.AmountPaid.IsPositive() {
		return InvoiceStatusPartiallyPaid
	}
	if i.IsPastDue(now) {
		return InvoiceStatusOverdue
	}
	if i.ViewedAt != nil {
		return InvoiceStatusViewed
	}
	return InvoiceStatusSent
}

// IsPastDue returns true once the calendar date of now (UTC) is after the due date
func (i *Invoice) IsPastDue(now time.Time) bool {
	return NormalizeDueDate(now.UTC()).After(NormalizeDueDate(i.DueDate))
}

// DaysOverdue returns the number of whole days past the due date, 0 when not overdue
func (i *Invoice) DaysOverdue(now time.Time) int {
	if i.Evaluate(now) != InvoiceStatusOverdue {
		return 0
	}
	return int(NormalizeDueDate(now.UTC()).Sub(NormalizeDueDate(i.DueDate)).Hours() / 24)
}

// Totals returns the monetary snapshot of the invoice
func (i *Invoice) Totals() Totals {
	return Totals{
		Subtotal:    i.Subtotal,
		Discount:    i.Discount,
		TotalAmount: i.TotalAmount,
		AmountPaid:  i.AmountPaid,
		AmountDue:   i.AmountDue,
	}
}

// validatePayment checks a request against the current ledger state. The order of the
// checks decides which error a request with several problems gets.
func (i *Invoice) validatePayment(req PaymentRequest) error {
	if i.Status == InvoiceStatusCancelled {
		return ErrInvoiceCancelled
	}
	if i.Status == InvoiceStatusDraft {
		return ErrInvoiceNotSent
	}
	if !req.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if req.Amount.Currency() != i.Currency {
		return ErrCurrencyMismatch
	}
	if req.Amount.MinorUnits() > i.AmountDue.MinorUnits() {
		return ErrAmountExceedsDue.WithMessage(fmt.Sprintf("Payment amount %s exceeds the amount due %s", req.Amount, i.AmountDue))
	}
	if !req.Method.IsValid() {
		return ErrInvalidMethod
	}
	if i.Payments.HasTransaction(strings.TrimSpace(req.TransactionID)) {
		return ErrDuplicateTransaction
	}
	return nil
}

// ApplyPayment validates the request and, if valid, appends a new Payment and recomputes
// the derived amounts and status. On error the invoice is left untouched.
func (i *Invoice) ApplyPayment(req PaymentRequest, now time.Time) (*Payment, error) {
	if err := i.validatePayment(req); err != nil {
		return nil, err
	}

	paid, err := i.AmountPaid.Add(req.Amount)
	if err != nil {
		return nil, err
	}
	due, err := i.TotalAmount.Subtract(paid)
	if err != nil {
		return nil, err
	}

	payment := newPayment(req, now)
	i.Payments = append(i.Payments, payment)
	i.AmountPaid = paid
	i.AmountDue = due
	i.Status = i.Evaluate(now)
	i.UpdatedAt = now

	i.AddDomainEvent(NewPaymentRecordedEvent(i, payment))
	if i.Status == InvoiceStatusPaid {
		paidAt := now
		i.PaidAt = &paidAt
		i.AddDomainEvent(NewInvoicePaidEvent(i))
	}
	i.IncrementVersion()

	return &payment, nil
}

// RecordPayment applies a payment to a copy of the invoice and returns the new ledger state.
// The given invoice is never modified, so a rejected or unsaved attempt leaves no trace.
func RecordPayment(inv *Invoice, req PaymentRequest, now time.Time) (*Invoice, *Payment, error) {
	next := inv.Clone()
	payment, err := next.ApplyPayment(req, now)
	if err != nil {
		return nil, nil, err
	}
	return next, payment, nil
}

// MarkSent records delivery of the invoice to the client. The first call moves a draft to sent;
// later calls on an open invoice are reminders and only refresh SentAt.
func (i *Invoice) MarkSent(now time.Time) error {
	if i.Status == InvoiceStatusCancelled {
		return ErrInvoiceCancelled
	}
	if i.Status != InvoiceStatusDraft && i.Evaluate(now) == InvoiceStatusPaid {
		return shared.ErrInvalidState.WithMessage("Paid invoice cannot be sent")
	}

	reminder := i.Status != InvoiceStatusDraft
	sentAt := now
	i.SentAt = &sentAt
	if !reminder {
		i.Status = InvoiceStatusSent
	}
	i.Status = i.Evaluate(now)
	i.UpdatedAt = now

	i.AddDomainEvent(NewInvoiceSentEvent(i, reminder))
	// Nothing to collect when the discount covers the subtotal
	if i.Status == InvoiceStatusPaid {
		paidAt := now
		i.PaidAt = &paidAt
		i.AddDomainEvent(NewInvoicePaidEvent(i))
	}
	i.IncrementVersion()

	return nil
}

// MarkViewed records that the client opened the invoice. Only the first view is recorded;
// it returns false when nothing changed.
func (i *Invoice) MarkViewed(now time.Time) (bool, error) {
	switch i.Status {
	case InvoiceStatusCancelled:
		return false, ErrInvoiceCancelled
	case InvoiceStatusDraft:
		return false, ErrInvoiceNotSent
	}
	if i.ViewedAt != nil {
		return false, nil
	}

	viewedAt := now
	i.ViewedAt = &viewedAt
	i.Status = i.Evaluate(now)
	i.UpdatedAt = now

	i.AddDomainEvent(NewInvoiceViewedEvent(i))
	i.IncrementVersion()

	return true, nil
}

// Cancel moves the invoice to the terminal cancelled state. Paid invoices cannot be cancelled.
func (i *Invoice) Cancel(reason string, now time.Time) error {
	if i.Status == InvoiceStatusCancelled {
		return ErrInvoiceCancelled
	}
	if i.Evaluate(now) == InvoiceStatusPaid {
		return shared.ErrInvalidState.WithMessage("Paid invoice cannot be cancelled")
	}

	cancelledAt := now
	i.Status = InvoiceStatusCancelled
	i.CancelledAt = &cancelledAt
	i.CancelReason = strings.TrimSpace(reason)
	i.UpdatedAt = now

	i.AddDomainEvent(NewInvoiceCancelledEvent(i))
	i.IncrementVersion()

	return nil
}

// Refresh stores the status evaluated at now and reports whether it changed.
// It is used on read paths; it does not bump the version or raise events.
func (i *Invoice) Refresh(now time.Time) bool {
	status := i.Evaluate(now)
	if status == i.Status {
		return false
	}
	i.Status = status
	return true
}

// CheckInvariants verifies the ledger arithmetic, e.g. after loading from storage
func (i *Invoice) CheckInvariants() error {
	sum := valueobject.Zero(i.Currency)
	for _, p := range i.Payments {
		var err error
		if sum, err = sum.Add(p.Amount); err != nil {
			return fmt.Errorf("invoice %s: payment %s: %w", i.ID, p.ID, err)
		}
	}
	if !sum.Equals(i.AmountPaid) {
		return fmt.Errorf("invoice %s: amount paid %s does not match payments %s", i.ID, i.AmountPaid, sum)
	}
	if i.AmountPaid.IsNegative() || i.AmountPaid.MinorUnits() > i.TotalAmount.MinorUnits() {
		return fmt.Errorf("invoice %s: amount paid %s outside [0, %s]", i.ID, i.AmountPaid, i.TotalAmount)
	}
	if i.TotalAmount.MinorUnits()-i.AmountPaid.MinorUnits() != i.AmountDue.MinorUnits() {
		return fmt.Errorf("invoice %s: amount due %s does not equal total %s minus paid %s",
			i.ID, i.AmountDue, i.TotalAmount, i.AmountPaid)
	}
	return nil
}

// Clone returns a deep copy of the invoice, including pending domain events
func (i *Invoice) Clone() *Invoice {
	c := *i
	c.LineItems = append(LineItems(nil), i.LineItems...)
	c.Payments = append(Payments{}, i.Payments...)
	c.SentAt = copyTime(i.SentAt)
	c.ViewedAt = copyTime(i.ViewedAt)
	c.PaidAt = copyTime(i.PaidAt)
	c.CancelledAt = copyTime(i.CancelledAt)
	if i.CreatedBy != nil {
		createdBy := *i.CreatedBy
		c.CreatedBy = &createdBy
	}
	c.ClearDomainEvents()
	for _, event := range i.GetDomainEvents() {
		c.AddDomainEvent(event)
	}
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
