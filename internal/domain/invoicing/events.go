package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/shared"
	"github.com/invoiceledger/backend/internal/domain/shared/valueobject"
)

// AggregateTypeInvoice is the aggregate type carried by invoice events
const AggregateTypeInvoice = "Invoice"

// Event types raised by the Invoice aggregate
const (
	EventTypeInvoiceCreated   = "InvoiceCreated"
	EventTypeInvoiceSent      = "InvoiceSent"
	EventTypeInvoiceViewed    = "InvoiceViewed"
	EventTypePaymentRecorded  = "PaymentRecorded"
	EventTypeInvoicePaid      = "InvoicePaid"
	EventTypeInvoiceCancelled = "InvoiceCancelled"
)

func newInvoiceEvent(eventType string, inv *Invoice, at time.Time) shared.EventHeader {
	return shared.NewEventHeader(eventType, AggregateTypeInvoice, inv.ID, inv.TenantID, at)
}

// InvoiceCreatedEvent is raised when a draft invoice is created
type InvoiceCreatedEvent struct {
	shared.EventHeader
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	ClientRef     string            `json:"client_ref"`
	TotalAmount   valueobject.Money `json:"total_amount"`
	DueDate       time.Time         `json:"due_date"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		EventHeader:   newInvoiceEvent(EventTypeInvoiceCreated, inv, inv.CreatedAt),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientRef:     inv.ClientRef,
		TotalAmount:   inv.TotalAmount,
		DueDate:       inv.DueDate,
	}
}

// InvoiceSentEvent is raised when an invoice is sent, or re-sent as a reminder
type InvoiceSentEvent struct {
	shared.EventHeader
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	ClientRef     string            `json:"client_ref"`
	AmountDue     valueobject.Money `json:"amount_due"`
	DueDate       time.Time         `json:"due_date"`
	Reminder      bool              `json:"reminder"`
}

// NewInvoiceSentEvent creates a new InvoiceSentEvent
func NewInvoiceSentEvent(inv *Invoice, reminder bool) *InvoiceSentEvent {
	return &InvoiceSentEvent{
		EventHeader:   newInvoiceEvent(EventTypeInvoiceSent, inv, *inv.SentAt),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientRef:     inv.ClientRef,
		AmountDue:     inv.AmountDue,
		DueDate:       inv.DueDate,
		Reminder:      reminder,
	}
}

// InvoiceViewedEvent is raised the first time the client views an invoice
type InvoiceViewedEvent struct {
	shared.EventHeader
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	ViewedAt      time.Time `json:"viewed_at"`
}

// NewInvoiceViewedEvent creates a new InvoiceViewedEvent
func NewInvoiceViewedEvent(inv *Invoice) *InvoiceViewedEvent {
	return &InvoiceViewedEvent{
		EventHeader:   newInvoiceEvent(EventTypeInvoiceViewed, inv, *inv.ViewedAt),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ViewedAt:      *inv.ViewedAt,
	}
}

// PaymentRecordedEvent is raised for every payment appended to an invoice
type PaymentRecordedEvent struct {
	shared.EventHeader
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	PaymentID     uuid.UUID         `json:"payment_id"`
	Amount        valueobject.Money `json:"amount"`
	Method        PaymentMethod     `json:"method"`
	TransactionID string            `json:"transaction_id,omitempty"`
	AmountPaid    valueobject.Money `json:"amount_paid"`
	AmountDue     valueobject.Money `json:"amount_due"`
	Status        InvoiceStatus     `json:"status"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(inv *Invoice, payment Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		EventHeader:   newInvoiceEvent(EventTypePaymentRecorded, inv, payment.RecordedAt),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		PaymentID:     payment.ID,
		Amount:        payment.Amount,
		Method:        payment.Method,
		TransactionID: payment.TransactionID,
		AmountPaid:    inv.AmountPaid,
		AmountDue:     inv.AmountDue,
		Status:        inv.Status,
	}
}

// InvoicePaidEvent is raised when the amount due reaches zero
type InvoicePaidEvent struct {
	shared.EventHeader
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	ClientRef     string            `json:"client_ref"`
	TotalAmount   valueobject.Money `json:"total_amount"`
	PaymentCount  int               `json:"payment_count"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		EventHeader:   newInvoiceEvent(EventTypeInvoicePaid, inv, inv.UpdatedAt),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientRef:     inv.ClientRef,
		TotalAmount:   inv.TotalAmount,
		PaymentCount:  len(inv.Payments),
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled
type InvoiceCancelledEvent struct {
	shared.EventHeader
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	AmountPaid    valueobject.Money `json:"amount_paid"`
	Reason        string            `json:"reason,omitempty"`
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		EventHeader:   newInvoiceEvent(EventTypeInvoiceCancelled, inv, *inv.CancelledAt),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		AmountPaid:    inv.AmountPaid,
		Reason:        inv.CancelReason,
	}
}
