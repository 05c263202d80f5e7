package persistence

import (
	"context"
	"time"

	"github.com/antaeus/billing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRecord is one stored billing event
type EventRecord struct {
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   int64
	Payload       []byte
	OccurredAt    time.Time
}

// GormEventLogRepository stores published billing events in the billing_events table
type GormEventLogRepository struct {
	db *gorm.DB
}

// NewGormEventLogRepository creates a new GormEventLogRepository
func NewGormEventLogRepository(db *gorm.DB) *GormEventLogRepository {
	return &GormEventLogRepository{db: db}
}

// Append stores a record. Appending the same event id twice is a no-op.
func (r *GormEventLogRepository) Append(ctx context.Context, record EventRecord) error {
	model := models.BillingEventModel{
		ID:            record.ID,
		EventType:     record.EventType,
		AggregateType: record.AggregateType,
		AggregateID:   record.AggregateID,
		Payload:       record.Payload,
		OccurredAt:    record.OccurredAt,
		CreatedAt:     time.Now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
}

// FindByAggregate returns the events of one aggregate, oldest first
func (r *GormEventLogRepository) FindByAggregate(ctx context.Context, aggregateType string, aggregateID int64) ([]EventRecord, error) {
	var rows []models.BillingEventModel
	if err := r.db.WithContext(ctx).
		Where("aggregate_type = ? AND aggregate_id = ?", aggregateType, aggregateID).
		Order("occurred_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]EventRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, EventRecord{
			ID:            row.ID,
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			Payload:       row.Payload,
			OccurredAt:    row.OccurredAt,
		})
	}
	return records, nil
}
