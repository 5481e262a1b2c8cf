package invoicing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/invoicing"
)

// dateLayout is the wire format of due dates
const dateLayout = "2006-01-02"

// LineItemRequest is one billed row in a create request.
// Rate and Quantity are decimal strings, e.g. "75.50" and "1.25".
type LineItemRequest struct {
	Description string `json:"description" binding:"required,max=500"`
	Rate        string `json:"rate" binding:"required"`
	Quantity    string `json:"quantity" binding:"required"`
}

// CreateInvoiceRequest represents a request to issue a new draft invoice
type CreateInvoiceRequest struct {
	InvoiceNumber string            `json:"invoice_number" binding:"required,min=1,max=50"`
	ClientRef     string            `json:"client_ref" binding:"required,min=1,max=100"`
	Currency      string            `json:"currency" binding:"required,len=3"`
	DueDate       string            `json:"due_date" binding:"required,datetime=2006-01-02"`
	Discount      string            `json:"discount"`
	LineItems     []LineItemRequest `json:"line_items" binding:"required,min=1,dive"`
	Notes         string            `json:"notes" binding:"max=2000"`
	CreatedBy     *uuid.UUID        `json:"-"`
}

// RecordPaymentRequest represents a payment reported against an invoice.
// Currency defaults to the invoice currency when omitted.
type RecordPaymentRequest struct {
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id" binding:"max=100"`
	Notes         string `json:"notes" binding:"max=500"`
}

// CancelInvoiceRequest represents a request to cancel an invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// InvoiceListFilter represents query parameters for listing invoices
type InvoiceListFilter struct {
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string `form:"order_by" binding:"omitempty,oneof=created_at due_date invoice_number total_amount amount_due"`
	OrderDir    string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search      string `form:"search" binding:"max=100"`
	Status      string `form:"status"`
	ClientRef   string `form:"client_ref" binding:"max=100"`
	OverdueOnly bool   `form:"overdue_only"` // past due with money owed, partially paid included
}

// LineItemResponse represents a line item in API responses
type LineItemResponse struct {
	Description string `json:"description"`
	Rate        string `json:"rate"`
	Quantity    string `json:"quantity"`
	Amount      string `json:"amount"`
}

// PaymentResponse represents a recorded payment in API responses
type PaymentResponse struct {
	ID            uuid.UUID `json:"id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Method        string    `json:"method"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// TotalsResponse is the monetary snapshot of an invoice
type TotalsResponse struct {
	InvoiceID   uuid.UUID `json:"invoice_id"`
	Currency    string    `json:"currency"`
	Subtotal    string    `json:"subtotal"`
	Discount    string    `json:"discount"`
	TotalAmount string    `json:"total_amount"`
	AmountPaid  string    `json:"amount_paid"`
	AmountDue   string    `json:"amount_due"`
	Status      string    `json:"status"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID            uuid.UUID          `json:"id"`
	TenantID      uuid.UUID          `json:"tenant_id"`
	InvoiceNumber string             `json:"invoice_number"`
	ClientRef     string             `json:"client_ref"`
	Currency      string             `json:"currency"`
	LineItems     []LineItemResponse `json:"line_items"`
	Subtotal      string             `json:"subtotal"`
	Discount      string             `json:"discount"`
	TotalAmount   string             `json:"total_amount"`
	AmountPaid    string             `json:"amount_paid"`
	AmountDue     string             `json:"amount_due"`
	DueDate       string             `json:"due_date"`
	Status        string             `json:"status"`
	DaysOverdue   int                `json:"days_overdue"`
	PaymentCount  int                `json:"payment_count"`
	Notes         string             `json:"notes,omitempty"`
	SentAt        *time.Time         `json:"sent_at,omitempty"`
	ViewedAt      *time.Time         `json:"viewed_at,omitempty"`
	PaidAt        *time.Time         `json:"paid_at,omitempty"`
	CancelledAt   *time.Time         `json:"cancelled_at,omitempty"`
	CancelReason  string             `json:"cancel_reason,omitempty"`
	CreatedBy     *uuid.UUID         `json:"created_by,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
	Version       int                `json:"version"`
}

// RecordPaymentResult is returned by a successful recordPayment call
type RecordPaymentResult struct {
	Invoice InvoiceResponse `json:"invoice"`
	Payment PaymentResponse `json:"payment"`
}

// ToInvoiceResponse converts a domain Invoice to an InvoiceResponse evaluated at now
func ToInvoiceResponse(inv *invoicing.Invoice, now time.Time) InvoiceResponse {
	items := make([]LineItemResponse, len(inv.LineItems))
	for i, item := range inv.LineItems {
		items[i] = LineItemResponse{
			Description: item.Description,
			Rate:        item.Rate.String(),
			Quantity:    item.Quantity.String(),
			Amount:      item.Amount.String(),
		}
	}

	return InvoiceResponse{
		ID:            inv.ID,
		TenantID:      inv.TenantID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientRef:     inv.ClientRef,
		Currency:      inv.Currency.String(),
		LineItems:     items,
		Subtotal:      inv.Subtotal.String(),
		Discount:      inv.Discount.String(),
		TotalAmount:   inv.TotalAmount.String(),
		AmountPaid:    inv.AmountPaid.String(),
		AmountDue:     inv.AmountDue.String(),
		DueDate:       inv.DueDate.Format(dateLayout),
		Status:        inv.Evaluate(now).String(),
		DaysOverdue:   inv.DaysOverdue(now),
		PaymentCount:  len(inv.Payments),
		Notes:         inv.Notes,
		SentAt:        inv.SentAt,
		ViewedAt:      inv.ViewedAt,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		CancelReason:  inv.CancelReason,
		CreatedBy:     inv.CreatedBy,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
		Version:       inv.Version,
	}
}

// ToInvoiceResponses converts a slice of domain invoices
func ToInvoiceResponses(invoices []invoicing.Invoice, now time.Time) []InvoiceResponse {
	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = ToInvoiceResponse(&invoices[i], now)
	}
	return responses
}

// ToPaymentResponse converts a domain Payment to a PaymentResponse
func ToPaymentResponse(p invoicing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		Amount:        p.Amount.String(),
		Currency:      p.Amount.Currency().String(),
		Method:        p.Method.String(),
		TransactionID: p.TransactionID,
		Notes:         p.Notes,
		RecordedAt:    p.RecordedAt,
	}
}

// ToPaymentResponses converts the payment history of an invoice
func ToPaymentResponses(payments invoicing.Payments) []PaymentResponse {
	responses := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		responses[i] = ToPaymentResponse(p)
	}
	return responses
}

// ToTotalsResponse converts the totals of an invoice evaluated at now
func ToTotalsResponse(inv *invoicing.Invoice, now time.Time) TotalsResponse {
	totals := inv.Totals()
	return TotalsResponse{
		InvoiceID:   inv.ID,
		Currency:    inv.Currency.String(),
		Subtotal:    totals.Subtotal.String(),
		Discount:    totals.Discount.String(),
		TotalAmount: totals.TotalAmount.String(),
		AmountPaid:  totals.AmountPaid.String(),
		AmountDue:   totals.AmountDue.String(),
		Status:      inv.Evaluate(now).String(),
	}
}
