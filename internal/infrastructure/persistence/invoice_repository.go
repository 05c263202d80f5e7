package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RepositoryOption configures a repository
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	logger *zap.Logger
}

// WithRepositoryLogger reports rows that list queries had to skip
func WithRepositoryLogger(l *zap.Logger) RepositoryOption {
	return func(o *repositoryOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func newRepositoryOptions(opts []RepositoryOption) repositoryOptions {
	o := repositoryOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB, opts ...RepositoryOption) *GormInvoiceRepository {
	o := newRepositoryOptions(opts)
	return &GormInvoiceRepository{db: db, logger: o.logger.Named("invoice_repository")}
}

// FetchByID finds an invoice by its ID
func (r *GormInvoiceRepository) FetchByID(ctx context.Context, id int64) (billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.Invoice{}, billing.ErrInvoiceNotFound.With(fmt.Sprintf("invoice %d", id))
		}
		return billing.Invoice{}, err
	}
	return model.ToDomain()
}

// FetchAll returns every invoice ordered by ID. Rows that do not convert to a
// valid invoice are logged and left out.
func (r *GormInvoiceRepository) FetchAll(ctx context.Context) ([]billing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toInvoices(rows), nil
}

// FetchByStatus returns invoices in the given status ordered by ID. Like
// FetchAll it skips malformed rows, so one bad record never hides the rest.
func (r *GormInvoiceRepository) FetchByStatus(ctx context.Context, status billing.InvoiceStatus) ([]billing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", status.String()).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toInvoices(rows), nil
}

// Update overwrites every column of an existing invoice
func (r *GormInvoiceRepository) Update(ctx context.Context, invoice billing.Invoice) (billing.Invoice, error) {
	var model models.InvoiceModel
	model.FromDomain(invoice)

	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"customer_id": model.CustomerID,
			"value":       model.Value,
			"currency":    model.Currency,
			"status":      model.Status,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return billing.Invoice{}, fmt.Errorf("update invoice %d: %w", invoice.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return billing.Invoice{}, billing.ErrInvoiceNotFound.With(fmt.Sprintf("invoice %d", invoice.ID))
	}
	return invoice, nil
}

// UpdateStatus sets the invoice status only if the stored status equals expected
func (r *GormInvoiceRepository) UpdateStatus(ctx context.Context, invoice billing.Invoice, expected billing.InvoiceStatus) (billing.Invoice, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND status = ?", invoice.ID, expected.String()).
		Updates(map[string]any{
			"status":     invoice.Status.String(),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return billing.Invoice{}, fmt.Errorf("update invoice %d status: %w", invoice.ID, result.Error)
	}
	if result.RowsAffected > 0 {
		return invoice, nil
	}

	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ?", invoice.ID).
		Count(&count).Error; err != nil {
		return billing.Invoice{}, fmt.Errorf("check invoice %d: %w", invoice.ID, err)
	}
	if count == 0 {
		return billing.Invoice{}, billing.ErrInvoiceNotFound.With(fmt.Sprintf("invoice %d", invoice.ID))
	}
	return billing.Invoice{}, billing.ErrConcurrentUpdate
}

// Create inserts an invoice and returns it with its assigned ID
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice billing.Invoice) (billing.Invoice, error) {
	var model models.InvoiceModel
	model.FromDomain(invoice)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return billing.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return model.ToDomain()
}

func (r *GormInvoiceRepository) toInvoices(rows []models.InvoiceModel) []billing.Invoice {
	invoices := make([]billing.Invoice, 0, len(rows))
	for i := range rows {
		invoice, err := rows[i].ToDomain()
		if err != nil {
			r.logger.Error("Skipping malformed invoice row",
				zap.Int64("invoice_id", rows[i].ID),
				zap.String("currency", rows[i].Currency),
				zap.String("status", rows[i].Status),
				zap.Error(err),
			)
			continue
		}
		invoices = append(invoices, invoice)
	}
	return invoices
}
