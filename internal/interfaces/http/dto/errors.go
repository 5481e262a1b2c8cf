package dto

import "net/http"

// Transport error codes. Domain errors keep the code they were created with.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeInvalidJSON     = "INVALID_JSON"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "RATE_LIMITED"
)

// Authentication error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeTokenExpired  = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid  = "INVALID_TOKEN"
	ErrCodeTokenNotValid = "TOKEN_NOT_VALID"
)

// Resource error codes
const (
	ErrCodeNotFound               = "NOT_FOUND"
	ErrCodeAlreadyExists          = "ALREADY_EXISTS"
	ErrCodeConcurrentModification = "CONCURRENT_MODIFICATION"
	ErrCodeDuplicateRequest       = "DUPLICATE_REQUEST"
	ErrCodeRequestInProgress      = "REQUEST_IN_PROGRESS"
	ErrCodeDuplicateTransaction   = "DUPLICATE_TRANSACTION"
)

// Ledger rule error codes
const (
	ErrCodeInvalidState     = "INVALID_STATE"
	ErrCodeInvoiceCancelled = "INVOICE_CANCELLED"
	ErrCodeInvoiceNotSent   = "INVOICE_NOT_SENT"
	ErrCodeAmountExceedsDue = "AMOUNT_EXCEEDS_DUE"
)

// Input error codes
const (
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"
	ErrCodeCurrencyMismatch     = "CURRENCY_MISMATCH"
	ErrCodeInvalidInvoiceNumber = "INVALID_INVOICE_NUMBER"
	ErrCodeInvalidClientRef     = "INVALID_CLIENT_REF"
	ErrCodeInvalidCurrency      = "INVALID_CURRENCY"
	ErrCodeInvalidDueDate       = "INVALID_DUE_DATE"
	ErrCodeInvalidLineItem      = "INVALID_LINE_ITEM"
	ErrCodeInvalidDiscount      = "INVALID_DISCOUNT"
)

// ErrCodeDocumentsDisabled is returned by the document endpoint when no renderer is configured
const ErrCodeDocumentsDisabled = "DOCUMENTS_DISABLED"

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,

	// Auth errors
	ErrCodeUnauthorized:  http.StatusUnauthorized,
	ErrCodeForbidden:     http.StatusForbidden,
	ErrCodeTokenExpired:  http.StatusUnauthorized,
	ErrCodeTokenInvalid:  http.StatusUnauthorized,
	ErrCodeTokenNotValid: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:               http.StatusNotFound,
	ErrCodeAlreadyExists:          http.StatusConflict,
	ErrCodeConcurrentModification: http.StatusConflict,
	ErrCodeDuplicateRequest:       http.StatusConflict,
	ErrCodeRequestInProgress:      http.StatusConflict,
	ErrCodeDuplicateTransaction:   http.StatusConflict,

	// Ledger rules -> 422 Unprocessable Entity
	ErrCodeInvalidState:     http.StatusUnprocessableEntity,
	ErrCodeInvoiceCancelled: http.StatusUnprocessableEntity,
	ErrCodeInvoiceNotSent:   http.StatusUnprocessableEntity,
	ErrCodeAmountExceedsDue: http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeInvalidInput:         http.StatusBadRequest,
	ErrCodeInvalidAmount:        http.StatusBadRequest,
	ErrCodeInvalidPaymentMethod: http.StatusBadRequest,
	ErrCodeCurrencyMismatch:     http.StatusBadRequest,
	ErrCodeInvalidInvoiceNumber: http.StatusBadRequest,
	ErrCodeInvalidClientRef:     http.StatusBadRequest,
	ErrCodeInvalidCurrency:      http.StatusBadRequest,
	ErrCodeInvalidDueDate:       http.StatusBadRequest,
	ErrCodeInvalidLineItem:      http.StatusBadRequest,
	ErrCodeInvalidDiscount:      http.StatusBadRequest,

	ErrCodeDocumentsDisabled: http.StatusNotImplemented,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
