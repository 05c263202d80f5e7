package persistence

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SeedOptions sizes the demo data set
type SeedOptions struct {
	Customers           int
	InvoicesPerCustomer int
	// Rand picks currencies and amounts; a fixed seed gives reproducible data
	Rand *rand.Rand
}

// SeedSummary counts what SeedDemoData created
type SeedSummary struct {
	Customers int
	Pending   int
	Paid      int
}

// SeedDemoData creates customers in random supported currencies, each with
// invoices in its own currency. The first invoice of every customer is PENDING,
// the rest are PAID. Everything is written in one transaction.
func SeedDemoData(ctx context.Context, db *gorm.DB, opts SeedOptions) (SeedSummary, error) {
	if opts.Customers <= 0 || opts.InvoicesPerCustomer <= 0 {
		return SeedSummary{}, fmt.Errorf("seed: customers and invoices per customer must be positive")
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	currencies := valueobject.SupportedCurrencies()

	var summary SeedSummary
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customers := NewGormCustomerRepository(tx)
		invoices := NewGormInvoiceRepository(tx)

		for c := 0; c < opts.Customers; c++ {
			customer, err := customers.Create(ctx, billing.Customer{Currency: currencies[rng.IntN(len(currencies))]})
			if err != nil {
				return err
			}
			summary.Customers++

			for i := 0; i < opts.InvoicesPerCustomer; i++ {
				status := billing.InvoiceStatusPaid
				if i == 0 {
					status = billing.InvoiceStatusPending
				}
				// 10.00 to 500.00
				cents := 1000 + rng.Int64N(49001)
				amount, err := valueobject.NewMoney(decimal.New(cents, -2), customer.Currency)
				if err != nil {
					return err
				}
				if _, err := invoices.Create(ctx, billing.Invoice{
					CustomerID: customer.ID,
					Amount:     amount,
					Status:     status,
				}); err != nil {
					return err
				}
				if status == billing.InvoiceStatusPending {
					summary.Pending++
				} else {
					summary.Paid++
				}
			}
		}
		return nil
	})
	if err != nil {
		return SeedSummary{}, fmt.Errorf("seed: %w", err)
	}
	return summary, nil
}
