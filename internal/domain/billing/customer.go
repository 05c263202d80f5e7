package billing

import (
	"fmt"

	"github.com/antaeus/billing/internal/domain/shared/valueobject"
)

// Customer is the owner of invoices. Read-only from the charging side.
type Customer struct {
	ID       int64
	Currency valueobject.Currency
}

// NewCustomer validates and builds a customer
func NewCustomer(id int64, currency valueobject.Currency) (Customer, error) {
	parsed, err := valueobject.ParseCurrency(string(currency))
	if err != nil {
		return Customer{}, fmt.Errorf("customer %d: %w", id, err)
	}
	return Customer{ID: id, Currency: parsed}, nil
}

// CanPay reports whether the customer is billed in the invoice's currency
func (c Customer) CanPay(invoice Invoice) bool {
	return c.Currency == invoice.Currency()
}
