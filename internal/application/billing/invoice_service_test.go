package billing

import (
	"context"
	"errors"
	"testing"

	domainBilling "github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInvoiceService(t *testing.T) {
	repo := newMemoryInvoiceRepository(
		pendingInvoice(1, 1, "10", valueobject.EUR),
		pendingInvoice(2, 1, "20", valueobject.EUR).WithStatus(domainBilling.InvoiceStatusPaid),
	)
	svc := NewInvoiceService(repo, zaptest.NewLogger(t))
	ctx := context.Background()

	all, err := svc.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := svc.FetchPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(1), pending[0].ID)

	_, err = svc.FetchByStatus(ctx, domainBilling.InvoiceStatus("VOID"))
	assert.ErrorIs(t, err, domainBilling.ErrInvalidInvoice)

	_, err = svc.Fetch(ctx, 404)
	assert.ErrorIs(t, err, domainBilling.ErrInvoiceNotFound)

	updated, err := svc.Update(ctx, pending[0].WithStatus(domainBilling.InvoiceStatusError))
	require.NoError(t, err)
	assert.Equal(t, domainBilling.InvoiceStatusError, updated.Status)

	_, err = svc.Update(ctx, pendingInvoice(404, 1, "1", valueobject.EUR))
	assert.ErrorIs(t, err, domainBilling.ErrInvoiceNotFound)

	repo.fetchErr = errors.New("db down")
	_, err = svc.FetchAll(ctx)
	assert.Error(t, err)
}

func TestCustomerService(t *testing.T) {
	repo := newMemoryCustomerRepository(
		domainBilling.Customer{ID: 2, Currency: valueobject.SEK},
		domainBilling.Customer{ID: 1, Currency: valueobject.DKK},
	)
	svc := NewCustomerService(repo)
	ctx := context.Background()

	all, err := svc.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)

	customer, err := svc.Fetch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, valueobject.SEK, customer.Currency)

	_, err = svc.Fetch(ctx, 3)
	assert.ErrorIs(t, err, domainBilling.ErrCustomerNotFound)
}
