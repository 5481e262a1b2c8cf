package invoicing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invoiceledger/backend/internal/domain/shared"
	"github.com/invoiceledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

const maxDescriptionLength = 500

// LineItem is one billed row of an invoice. Amount is always Rate * Quantity rounded to cents.
type LineItem struct {
	Description string            `json:"description"`
	Rate        valueobject.Money `json:"rate"`
	Quantity    decimal.Decimal   `json:"quantity"`
	Amount      valueobject.Money `json:"amount"`
}

// LineItemInput carries the caller-supplied part of a line item
type LineItemInput struct {
	Description string
	Rate        valueobject.Money
	Quantity    decimal.Decimal
}

// NewLineItem validates the input and computes the line amount
func NewLineItem(in LineItemInput) (LineItem, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return LineItem{}, lineItemError("description cannot be empty")
	}
	if len(description) > maxDescriptionLength {
		return LineItem{}, lineItemError(fmt.Sprintf("description cannot exceed %d characters", maxDescriptionLength))
	}
	if in.Rate.IsNegative() {
		return LineItem{}, lineItemError("rate cannot be negative")
	}
	if !in.Quantity.IsPositive() {
		return LineItem{}, lineItemError("quantity must be positive")
	}

	amount, err := in.Rate.MultiplyQuantity(in.Quantity)
	if err != nil {
		return LineItem{}, lineItemError(err.Error())
	}

	return LineItem{
		Description: description,
		Rate:        in.Rate,
		Quantity:    in.Quantity,
		Amount:      amount,
	}, nil
}

func lineItemError(detail string) *shared.DomainError {
	return ErrInvalidLineItem.WithMessage(detail)
}

// LineItems is the ordered list of invoice rows, stored as JSONB
type LineItems []LineItem

// Subtotal sums the line amounts in the given currency
func (items LineItems) Subtotal(currency valueobject.Currency) (valueobject.Money, error) {
	total := valueobject.Zero(currency)
	for _, item := range items {
		var err error
		total, err = total.Add(item.Amount)
		if err != nil {
			return valueobject.Money{}, err
		}
	}
	return total, nil
}

// Value implements driver.Valuer interface for GORM to store as JSONB
func (items LineItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (items *LineItems) Scan(value interface{}) error {
	bytes, err := jsonBytes(value)
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		*items = LineItems{}
		return nil
	}
	return json.Unmarshal(bytes, items)
}
