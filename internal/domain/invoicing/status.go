package invoicing

import "fmt"

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"          // Initial state, cannot accept payments
	InvoiceStatusSent          InvoiceStatus = "sent"           // Delivered to the client
	InvoiceStatusViewed        InvoiceStatus = "viewed"         // Opened by the client
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid" // 0 < amount paid < total
	InvoiceStatusPaid          InvoiceStatus = "paid"           // Nothing left to pay
	InvoiceStatusOverdue       InvoiceStatus = "overdue"        // Unpaid and past the due date
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"      // Terminal
)

// AllInvoiceStatuses lists every status in lifecycle order
var AllInvoiceStatuses = []InvoiceStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusViewed,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

// ParseInvoiceStatus parses a status string
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	status := InvoiceStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid invoice status: %q", s)
	}
	return status, nil
}

// IsValid checks if the status is a known InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true for cancelled invoices
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusCancelled
}

// IsOpen returns true if the invoice has been sent and still has money outstanding
func (s InvoiceStatus) IsOpen() bool {
	switch s {
	case InvoiceStatusSent, InvoiceStatusViewed, InvoiceStatusPartiallyPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}
