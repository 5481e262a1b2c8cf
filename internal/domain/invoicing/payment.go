package invoicing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/invoiceledger/backend/internal/domain/shared/valueobject"
)

// PaymentMethod identifies how a payment was made. Gateway protocols are not modelled;
// the method only records which channel produced the money.
type PaymentMethod string

const (
	PaymentMethodStripe       PaymentMethod = "stripe"
	PaymentMethodRazorpay     PaymentMethod = "razorpay"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the method is one of the supported payment methods
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodStripe, PaymentMethodRazorpay, PaymentMethodPayPal,
		PaymentMethodBankTransfer, PaymentMethodCash, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// Payment is an immutable record of money received against an invoice
type Payment struct {
	ID            uuid.UUID         `json:"id"`
	Amount        valueobject.Money `json:"amount"`
	Method        PaymentMethod     `json:"method"`
	TransactionID string            `json:"transaction_id,omitempty"`
	Notes         string            `json:"notes,omitempty"`
	RecordedAt    time.Time         `json:"recorded_at"`
}

// PaymentRequest is a proposed payment, validated against the invoice before it becomes a Payment
type PaymentRequest struct {
	Amount        valueobject.Money
	Method        PaymentMethod
	TransactionID string
	Notes         string
}

func newPayment(req PaymentRequest, recordedAt time.Time) Payment {
	return Payment{
		ID:            uuid.New(),
		Amount:        req.Amount,
		Method:        req.Method,
		TransactionID: strings.TrimSpace(req.TransactionID),
		Notes:         strings.TrimSpace(req.Notes),
		RecordedAt:    recordedAt,
	}
}

// Payments is the append-only payment history of an invoice, stored as JSONB
type Payments []Payment

// Value implements driver.Valuer interface for GORM to store as JSONB
func (p Payments) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (p *Payments) Scan(value interface{}) error {
	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		*p = Payments{}
		return nil
	}
	return json.Unmarshal(bytes, p)
}

// HasTransaction reports whether a payment with the given external reference exists
func (p Payments) HasTransaction(transactionID string) bool {
	if transactionID == "" {
		return false
	}
	for _, payment := range p {
		if payment.TransactionID == transactionID {
			return true
		}
	}
	return false
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("unsupported type for JSON column")
	}
}
