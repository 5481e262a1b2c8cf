package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DocumentContentType is the media type of generated invoice documents
const DocumentContentType = "application/pdf"

// DocumentGenerator renders the printable document of an invoice (generateDocument)
type DocumentGenerator interface {
	GenerateDocument(ctx context.Context, inv *Invoice) ([]byte, error)
}

// DocumentStore keeps generated documents
type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	URL(ctx context.Context, key string) (string, error)
}

// DeliveryKind tells the mailer which message to compose
type DeliveryKind string

const (
	DeliveryKindInvoice  DeliveryKind = "invoice"
	DeliveryKindReminder DeliveryKind = "reminder"
	DeliveryKindReceipt  DeliveryKind = "receipt"
)

// InvoiceDelivery is a request to deliver an invoice to its client
type InvoiceDelivery struct {
	Kind          DeliveryKind `json:"kind"`
	TenantID      uuid.UUID    `json:"tenant_id"`
	InvoiceID     uuid.UUID    `json:"invoice_id"`
	InvoiceNumber string       `json:"invoice_number"`
	ClientRef     string       `json:"client_ref"`
	Currency      string       `json:"currency"`
	TotalAmount   string       `json:"total_amount"`
	AmountDue     string       `json:"amount_due"`
	DueDate       string       `json:"due_date"`
	Status        string       `json:"status"`
	DocumentURL   string       `json:"document_url,omitempty"`
	RequestedAt   time.Time    `json:"requested_at"`
}

// InvoiceSender hands an invoice to the outbound delivery channel (sendInvoice)
type InvoiceSender interface {
	SendInvoice(ctx context.Context, delivery InvoiceDelivery) error
}
