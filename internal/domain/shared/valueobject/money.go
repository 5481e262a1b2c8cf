package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of fractional digits of every supported currency.
const MinorUnitPlaces int32 = 2

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD" // US Dollar (default)
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
	INR Currency = "INR" // Indian Rupee
	CAD Currency = "CAD" // Canadian Dollar
	AUD Currency = "AUD" // Australian Dollar
	SGD Currency = "SGD" // Singapore Dollar
)

// DefaultCurrency is the default currency for new invoices
const DefaultCurrency = USD

var supportedCurrencies = map[Currency]bool{
	USD: true, EUR: true, GBP: true, INR: true, CAD: true, AUD: true, SGD: true,
}

var (
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrCurrencyMismatch    = errors.New("currency mismatch")
	ErrTooManyDecimals     = errors.New("amount has more than 2 decimal places")
	ErrAmountOverflow      = errors.New("amount out of range")
)

// ParseCurrency normalizes and validates an ISO currency code
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedCurrency, code)
	}
	return c, nil
}

// IsValid returns true if the currency is supported
func (c Currency) IsValid() bool {
	return supportedCurrencies[c]
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}

// Money is an immutable monetary amount held in integer minor units (cents).
// All ledger arithmetic happens on the integer; decimals are produced only for display.
type Money struct {
	minor    int64
	currency Currency
}

// NewMoney creates Money from an amount in minor units
func NewMoney(minor int64, currency Currency) Money {
	return Money{minor: minor, currency: currency}
}

// Zero returns a zero amount in the given currency
func Zero(currency Currency) Money {
	return Money{currency: currency}
}

// NewMoneyFromDecimal converts a decimal amount into minor units.
// The conversion is exact: more than two fractional digits is an error, never a rounding.
func NewMoneyFromDecimal(amount decimal.Decimal, currency Currency) (Money, error) {
	scaled := amount.Shift(MinorUnitPlaces)
	if !scaled.Equal(scaled.Truncate(0)) {
		return Money{}, ErrTooManyDecimals
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || scaled.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return Money{}, ErrAmountOverflow
	}
	return Money{minor: scaled.IntPart(), currency: currency}, nil
}

// ParseMoney parses a decimal string such as "400.00" into Money
func ParseMoney(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoneyFromDecimal(d, currency)
}

// MinorUnits returns the amount in minor units
func (m Money) MinorUnits() int64 {
	return m.minor
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// Decimal returns the amount as a decimal for display
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.minor, -MinorUnitPlaces)
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.minor == 0
}

// IsPositive returns true if the amount is positive
func (m Money) IsPositive() bool {
	return m.minor > 0
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.minor < 0
}

// Add returns the sum of both amounts
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	sum := m.minor + other.minor
	if (other.minor > 0 && sum < m.minor) || (other.minor < 0 && sum > m.minor) {
		return Money{}, ErrAmountOverflow
	}
	return Money{minor: sum, currency: m.currency}, nil
}

// Subtract returns the difference of both amounts
func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	diff := m.minor - other.minor
	if (other.minor < 0 && diff < m.minor) || (other.minor > 0 && diff > m.minor) {
		return Money{}, ErrAmountOverflow
	}
	return Money{minor: diff, currency: m.currency}, nil
}

// MultiplyQuantity returns rate * quantity rounded to minor units, half away from zero
func (m Money) MultiplyQuantity(quantity decimal.Decimal) (Money, error) {
	product := decimal.NewFromInt(m.minor).Mul(quantity).Round(0)
	if product.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || product.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return Money{}, ErrAmountOverflow
	}
	return Money{minor: product.IntPart(), currency: m.currency}, nil
}

// Compare returns -1, 0 or 1. Both amounts must share a currency.
func (m Money) Compare(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	switch {
	case m.minor < other.minor:
		return -1, nil
	case m.minor > other.minor:
		return 1, nil
	default:
		return 0, nil
	}
}

// Equals reports whether both amount and currency are equal
func (m Money) Equals(other Money) bool {
	return m.minor == other.minor && m.currency == other.currency
}

// String returns the amount with two fixed decimal places, e.g. "400.00"
func (m Money) String() string {
	return m.Decimal().StringFixed(MinorUnitPlaces)
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.String(),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := ParseMoney(v.Amount, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
