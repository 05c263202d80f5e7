package models

import (
	"fmt"
	"time"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerModel is the persistence model for customers
type CustomerModel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Currency string `gorm:"type:varchar(3);not null"`
	TimestampModel
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() (billing.Customer, error) {
	customer, err := billing.NewCustomer(m.ID, valueobject.Currency(m.Currency))
	if err != nil {
		return billing.Customer{}, billing.ErrInvalidCustomer.With(err.Error())
	}
	return customer, nil
}

// FromDomain populates the persistence model from a domain Customer
func (m *CustomerModel) FromDomain(c billing.Customer) {
	m.ID = c.ID
	m.Currency = c.Currency.String()
}

// InvoiceModel is the persistence model for invoices
type InvoiceModel struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	CustomerID int64           `gorm:"not null;index"`
	Value      decimal.Decimal `gorm:"type:decimal(1000,2);not null"`
	Currency   string          `gorm:"type:varchar(3);not null"`
	Status     string          `gorm:"type:varchar(16);not null;index"`
	TimestampModel
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() (billing.Invoice, error) {
	currency, err := valueobject.ParseCurrency(m.Currency)
	if err != nil {
		return billing.Invoice{}, fmt.Errorf("invoice %d: %w", m.ID, err)
	}
	amount, err := valueobject.NewMoney(m.Value, currency)
	if err != nil {
		return billing.Invoice{}, fmt.Errorf("invoice %d: %w", m.ID, err)
	}
	status, err := billing.ParseInvoiceStatus(m.Status)
	if err != nil {
		return billing.Invoice{}, fmt.Errorf("invoice %d: %w", m.ID, err)
	}
	return billing.Invoice{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Amount:     amount,
		Status:     status,
	}, nil
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(i billing.Invoice) {
	m.ID = i.ID
	m.CustomerID = i.CustomerID
	m.Value = i.Amount.Amount()
	m.Currency = i.Amount.Currency().String()
	m.Status = i.Status.String()
}

// BillingEventModel is an append-only record of a published billing event
type BillingEventModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventType     string    `gorm:"type:varchar(64);not null;index"`
	AggregateType string    `gorm:"type:varchar(64);not null"`
	AggregateID   int64     `gorm:"not null;index"`
	Payload       []byte    `gorm:"type:jsonb;not null"`
	OccurredAt    time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BillingEventModel) TableName() string {
	return "billing_events"
}
