package persistence

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func seedInvoices(t *testing.T, repo *GormInvoiceRepository, statuses ...billing.InvoiceStatus) []billing.Invoice {
	t.Helper()
	out := make([]billing.Invoice, 0, len(statuses))
	for i, status := range statuses {
		inv, err := repo.Create(context.Background(), billing.Invoice{
			CustomerID: int64(i + 1),
			Amount:     valueobject.MustNewMoney("125.50", valueobject.EUR),
			Status:     status,
		})
		require.NoError(t, err)
		out = append(out, inv)
	}
	return out
}

func TestGormInvoiceRepository_Fetch(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	seeded := seedInvoices(t, repo,
		billing.InvoiceStatusPending,
		billing.InvoiceStatusPaid,
		billing.InvoiceStatusPending,
		billing.InvoiceStatusError,
	)

	t.Run("FetchByID round-trips amount and status", func(t *testing.T) {
		found, err := repo.FetchByID(ctx, seeded[1].ID)
		require.NoError(t, err)
		assert.Equal(t, seeded[1].ID, found.ID)
		assert.Equal(t, int64(2), found.CustomerID)
		assert.True(t, found.Amount.Amount().Equal(seeded[1].Amount.Amount()))
		assert.Equal(t, valueobject.EUR, found.Currency())
		assert.Equal(t, billing.InvoiceStatusPaid, found.Status)
	})

	t.Run("FetchByID returns ErrInvoiceNotFound", func(t *testing.T) {
		_, err := repo.FetchByID(ctx, 9999)
		assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
	})

	t.Run("FetchAll returns every invoice in id order", func(t *testing.T) {
		all, err := repo.FetchAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 4)
		for i := 1; i < len(all); i++ {
			assert.Less(t, all[i-1].ID, all[i].ID)
		}
	})

	t.Run("FetchByStatus filters", func(t *testing.T) {
		pending, err := repo.FetchByStatus(ctx, billing.InvoiceStatusPending)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, seeded[0].ID, pending[0].ID)
		assert.Equal(t, seeded[2].ID, pending[1].ID)

		errored, err := repo.FetchByStatus(ctx, billing.InvoiceStatusError)
		require.NoError(t, err)
		assert.Len(t, errored, 1)
	})
}

func TestGormInvoiceRepository_FetchByStatus_SkipsMalformedRows(t *testing.T) {
	db := setupBillingTestDB(t)
	core, logs := observer.New(zap.ErrorLevel)
	repo := NewGormInvoiceRepository(db, WithRepositoryLogger(zap.New(core)))
	ctx := context.Background()

	seeded := seedInvoices(t, repo,
		billing.InvoiceStatusPending,
		billing.InvoiceStatusPending,
		billing.InvoiceStatusPending,
	)
	require.NoError(t, db.Exec(`UPDATE invoices SET currency = 'ZZZ' WHERE id = ?`, seeded[1].ID).Error)

	pending, err := repo.FetchByStatus(ctx, billing.InvoiceStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, seeded[0].ID, pending[0].ID)
	assert.Equal(t, seeded[2].ID, pending[1].ID)

	all, err := repo.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	skipped := logs.FilterMessage("Skipping malformed invoice row").All()
	require.Len(t, skipped, 2)
	assert.Equal(t, seeded[1].ID, skipped[0].ContextMap()["invoice_id"])
	assert.Equal(t, "ZZZ", skipped[0].ContextMap()["currency"])

	_, err = repo.FetchByID(ctx, seeded[1].ID)
	assert.Error(t, err)
}

func TestGormInvoiceRepository_Update(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()
	seeded := seedInvoices(t, repo, billing.InvoiceStatusPending)

	t.Run("overwrites the stored invoice", func(t *testing.T) {
		changed := seeded[0].WithStatus(billing.InvoiceStatusError)
		changed.Amount = valueobject.MustNewMoney("99.99", valueobject.DKK)

		_, err := repo.Update(ctx, changed)
		require.NoError(t, err)

		found, err := repo.FetchByID(ctx, changed.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusError, found.Status)
		assert.Equal(t, valueobject.DKK, found.Currency())
		assert.Equal(t, "99.99", found.Amount.Amount().StringFixed(2))
	})

	t.Run("unknown id returns ErrInvoiceNotFound", func(t *testing.T) {
		missing := seeded[0]
		missing.ID = 4242
		_, err := repo.Update(ctx, missing)
		assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
	})
}

func TestGormInvoiceRepository_UpdateStatus(t *testing.T) {
	db := setupBillingTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	t.Run("writes when the stored status matches", func(t *testing.T) {
		inv := seedInvoices(t, repo, billing.InvoiceStatusPending)[0]

		updated, err := repo.UpdateStatus(ctx, inv.WithStatus(billing.InvoiceStatusPaid), billing.InvoiceStatusPending)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPaid, updated.Status)

		found, err := repo.FetchByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPaid, found.Status)
	})

	t.Run("second writer loses with ErrConcurrentUpdate", func(t *testing.T) {
		inv := seedInvoices(t, repo, billing.InvoiceStatusPending)[0]

		_, err := repo.UpdateStatus(ctx, inv.WithStatus(billing.InvoiceStatusPaid), billing.InvoiceStatusPending)
		require.NoError(t, err)
		_, err = repo.UpdateStatus(ctx, inv.WithStatus(billing.InvoiceStatusError), billing.InvoiceStatusPending)
		assert.ErrorIs(t, err, billing.ErrConcurrentUpdate)

		found, err := repo.FetchByID(ctx, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceStatusPaid, found.Status, "the losing write must not land")
	})

	t.Run("missing row returns ErrInvoiceNotFound", func(t *testing.T) {
		inv := billing.Invoice{ID: 777, Status: billing.InvoiceStatusPaid}
		_, err := repo.UpdateStatus(ctx, inv, billing.InvoiceStatusPending)
		assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
	})
}

func TestGormInvoiceRepository_UpdateStatus_SQL(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormInvoiceRepository(db.DB)
	inv := billing.Invoice{ID: 5, Status: billing.InvoiceStatusPaid}

	t.Run("conditional update carries the expected status", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "invoices" SET "status"=\$1,"updated_at"=\$2 WHERE id = \$3 AND status = \$4`).
			WithArgs("PAID", sqlmock.AnyArg(), int64(5), "PENDING").
			WillReturnResult(sqlmock.NewResult(0, 1))

		_, err := repo.UpdateStatus(context.Background(), inv, billing.InvoiceStatusPending)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows on an existing id is a concurrent update", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "invoices"`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT count\(\*\) FROM "invoices" WHERE id = \$1`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		_, err := repo.UpdateStatus(context.Background(), inv, billing.InvoiceStatusPending)
		assert.ErrorIs(t, err, billing.ErrConcurrentUpdate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver errors are wrapped", func(t *testing.T) {
		mock.ExpectExec(`UPDATE "invoices"`).WillReturnError(assert.AnError)

		_, err := repo.UpdateStatus(context.Background(), inv, billing.InvoiceStatusPending)
		assert.ErrorIs(t, err, assert.AnError)
		assert.NotErrorIs(t, err, billing.ErrConcurrentUpdate)
	})
}
