package telemetry

import (
	"context"

	"gorm.io/gorm"
)

// GormInvoiceStatsProvider implements InvoiceStatsProvider with a GROUP BY on the invoices table.
type GormInvoiceStatsProvider struct {
	db *gorm.DB
}

// NewGormInvoiceStatsProvider creates a new GormInvoiceStatsProvider.
func NewGormInvoiceStatsProvider(db *gorm.DB) *GormInvoiceStatsProvider {
	return &GormInvoiceStatsProvider{db: db}
}

// CountByStatus returns the number of invoices per status.
func (p *GormInvoiceStatsProvider) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}

	err := p.db.WithContext(ctx).
		Table("invoices").
		Select("status, COUNT(*) AS count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
