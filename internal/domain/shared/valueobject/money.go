package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Currency represents a currency code (ISO 4217)
type Currency string

// Currencies invoiced by the platform
const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	DKK Currency = "DKK"
	SEK Currency = "SEK"
	GBP Currency = "GBP"
)

// SupportedCurrencies returns the currencies customers can be billed in
func SupportedCurrencies() []Currency {
	return []Currency{EUR, USD, DKK, SEK, GBP}
}

var (
	// ErrEmptyCurrency is returned when a currency code is blank
	ErrEmptyCurrency = errors.New("currency cannot be empty")
	// ErrNegativeAmount is returned when constructing Money below zero
	ErrNegativeAmount = errors.New("amount cannot be negative")
)

// ParseCurrency validates an ISO 4217 code and returns it in canonical form
func ParseCurrency(code string) (Currency, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrEmptyCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("invalid currency %q: %w", code, err)
	}
	return Currency(unit.String()), nil
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}

// Money is an immutable monetary amount in a single currency
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates Money from a non-negative amount and a valid currency
func NewMoney(amount decimal.Decimal, cur Currency) (Money, error) {
	parsed, err := ParseCurrency(string(cur))
	if err != nil {
		return Money{}, err
	}
	if amount.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{amount: amount, currency: parsed}, nil
}

// NewMoneyFromString creates Money from a decimal string such as "120.50"
func NewMoneyFromString(amount string, cur Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, cur)
}

// MustNewMoney is NewMoneyFromString that panics on error. Intended for fixtures.
func MustNewMoney(amount string, cur Currency) Money {
	m, err := NewMoneyFromString(amount, cur)
	if err != nil {
		panic(err)
	}
	return m
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsCompatible reports whether both values share a currency
func (m Money) IsCompatible(other Money) bool {
	return m.currency == other.currency
}

// Equals returns true if both Money values are equal (same amount and currency)
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// String returns a string representation of the Money
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}

type moneyJSON struct {
	Value    string   `json:"value"`
	Currency Currency `json:"currency"`
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Value: m.amount.String(), Currency: m.currency})
}

// UnmarshalJSON implements json.Unmarshaler, applying the same validation as NewMoney
func (m *Money) UnmarshalJSON(data []byte) error {
	var v moneyJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	parsed, err := NewMoneyFromString(v.Value, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
