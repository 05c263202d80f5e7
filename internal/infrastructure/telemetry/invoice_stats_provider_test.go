package telemetry_test

import (
	"context"
	"testing"

	"github.com/antaeus/billing/internal/infrastructure/persistence/models"
	"github.com/antaeus/billing/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestGormInvoiceStatsProvider_CountByStatus(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.InvoiceModel{}))

	for _, status := range []string{"PENDING", "PENDING", "PAID", "ERROR", "PENDING"} {
		require.NoError(t, db.Create(&models.InvoiceModel{
			CustomerID: 1,
			Value:      decimal.RequireFromString("10.00"),
			Currency:   "EUR",
			Status:     status,
		}).Error)
	}

	counts, err := telemetry.NewGormInvoiceStatsProvider(db).CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"PENDING": 3, "PAID": 1, "ERROR": 1}, counts)
}
