package billing

import (
	"context"
	"fmt"

	domainBilling "github.com/antaeus/billing/internal/domain/billing"
)

// CustomerService exposes customers read-only
type CustomerService struct {
	repo domainBilling.CustomerRepository
}

// NewCustomerService creates a new customer service
func NewCustomerService(repo domainBilling.CustomerRepository) *CustomerService {
	return &CustomerService{repo: repo}
}

// FetchAll returns every customer
func (s *CustomerService) FetchAll(ctx context.Context) ([]domainBilling.Customer, error) {
	customers, err := s.repo.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch customers: %w", err)
	}
	return customers, nil
}

// Fetch returns one customer or ErrCustomerNotFound
func (s *CustomerService) Fetch(ctx context.Context, id int64) (domainBilling.Customer, error) {
	return s.repo.FetchByID(ctx, id)
}
