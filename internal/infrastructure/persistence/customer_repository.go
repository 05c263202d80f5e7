package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormCustomerRepository implements billing.CustomerRepository using GORM
type GormCustomerRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB, opts ...RepositoryOption) *GormCustomerRepository {
	o := newRepositoryOptions(opts)
	return &GormCustomerRepository{db: db, logger: o.logger.Named("customer_repository")}
}

// FetchByID finds a customer by its ID. A stored row with an unusable
// currency yields billing.ErrInvalidCustomer.
func (r *GormCustomerRepository) FetchByID(ctx context.Context, id int64) (billing.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.Customer{}, billing.ErrCustomerNotFound.With(fmt.Sprintf("customer %d", id))
		}
		return billing.Customer{}, err
	}
	return model.ToDomain()
}

// FetchAll returns every customer ordered by ID
func (r *GormCustomerRepository) FetchAll(ctx context.Context) ([]billing.Customer, error) {
	var rows []models.CustomerModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	customers := make([]billing.Customer, 0, len(rows))
	for i := range rows {
		customer, err := rows[i].ToDomain()
		if err != nil {
			r.logger.Error("Skipping malformed customer row",
				zap.Int64("customer_id", rows[i].ID),
				zap.String("currency", rows[i].Currency),
				zap.Error(err),
			)
			continue
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

// Create inserts a customer and returns it with its assigned ID
func (r *GormCustomerRepository) Create(ctx context.Context, customer billing.Customer) (billing.Customer, error) {
	var model models.CustomerModel
	model.FromDomain(customer)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return billing.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return model.ToDomain()
}
