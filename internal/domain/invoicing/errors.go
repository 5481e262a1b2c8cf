package invoicing

import "github.com/invoiceledger/backend/internal/domain/shared"

// Payment rejection kinds. Each rejection leaves the invoice unchanged.
var (
	ErrInvoiceCancelled       = shared.NewDomainError("INVOICE_CANCELLED", "Invoice has been cancelled")
	ErrInvoiceNotSent         = shared.NewDomainError("INVOICE_NOT_SENT", "Invoice must be sent before it can accept payments")
	ErrInvalidAmount          = shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be greater than zero")
	ErrAmountExceedsDue       = shared.NewDomainError("AMOUNT_EXCEEDS_DUE", "Payment amount cannot exceed the amount due")
	ErrInvalidMethod          = shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is not supported")
	ErrCurrencyMismatch       = shared.NewDomainError("CURRENCY_MISMATCH", "Payment currency must match the invoice currency")
	ErrDuplicateTransaction   = shared.NewDomainError("DUPLICATE_TRANSACTION", "A payment with this transaction ID was already recorded")
	ErrConcurrentModification = shared.ErrConcurrencyConflict
)

// Invoice construction errors
var (
	ErrInvalidInvoiceNumber = shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number must be 1-50 characters")
	ErrInvalidClientRef     = shared.NewDomainError("INVALID_CLIENT_REF", "Client reference cannot be empty")
	ErrInvalidCurrency      = shared.NewDomainError("INVALID_CURRENCY", "Currency is not supported")
	ErrInvalidDueDate       = shared.NewDomainError("INVALID_DUE_DATE", "Due date is required")
	ErrInvalidLineItem      = shared.NewDomainError("INVALID_LINE_ITEM", "Line item is invalid")
	ErrNoLineItems          = shared.NewDomainError("INVALID_LINE_ITEM", "Invoice requires at least one line item")
	ErrInvalidDiscount      = shared.NewDomainError("INVALID_DISCOUNT", "Discount must be between zero and the subtotal")
)
