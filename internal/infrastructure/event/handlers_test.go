package event

import (
	"context"
	"errors"
	"testing"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/domain/shared/valueobject"
	"github.com/antaeus/billing/internal/infrastructure/persistence"
	"github.com/antaeus/billing/internal/infrastructure/persistence/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) Append(ctx context.Context, record persistence.EventRecord) error {
	return m.Called(ctx, record).Error(0)
}

type mockStreamClient struct {
	mock.Mock
}

func (m *mockStreamClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	args := m.Called(ctx, a)
	return redis.NewStringResult(args.String(0), args.Error(1))
}

func TestLoggingEventHandler(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := NewLoggingEventHandler(zap.New(core))
	ctx := context.Background()

	require.NoError(t, handler.Handle(ctx, billing.NewSuccessfulPaymentEvent(1, testAmount)))
	require.NoError(t, handler.Handle(ctx, billing.NewCurrencyMismatchEvent(2, 9, valueobject.USD)))
	require.NoError(t, handler.Handle(ctx, billing.NewNetworkErrorEvent(3)))

	entries := logs.All()
	require.Len(t, entries, 3)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "Billing event", entries[0].Message)
	assert.Equal(t, int64(1), entries[0].ContextMap()["invoice_id"])
	assert.Equal(t, "125.50 EUR", entries[0].ContextMap()["amount"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(9), entries[1].ContextMap()["customer_id"])
	assert.Equal(t, "USD", entries[1].ContextMap()["currency"])

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, billing.EventTypeNetworkError, entries[2].ContextMap()["event_type"])

	assert.ElementsMatch(t, billing.AllEventTypes(), handler.EventTypes())
}

func TestEventLogHandler_Handle(t *testing.T) {
	store := new(mockEventStore)
	handler := NewEventLogHandler(store, nil)
	event := billing.NewFailedPaymentEvent(5, testAmount)

	store.On("Append", mock.Anything, mock.MatchedBy(func(r persistence.EventRecord) bool {
		return r.ID == event.EventID() &&
			r.EventType == billing.EventTypeFailedPayment &&
			r.AggregateType == billing.AggregateTypeInvoice &&
			r.AggregateID == 5 &&
			r.OccurredAt.Equal(event.OccurredAt()) &&
			len(r.Payload) > 0
	})).Return(nil).Once()

	require.NoError(t, handler.Handle(context.Background(), event))
	store.AssertExpectations(t)
}

func TestEventLogHandler_StoreError(t *testing.T) {
	store := new(mockEventStore)
	handler := NewEventLogHandler(store, NewBillingEventSerializer())
	storeErr := errors.New("connection refused")
	store.On("Append", mock.Anything, mock.Anything).Return(storeErr)

	err := handler.Handle(context.Background(), billing.NewDuplicatePaymentEvent(1))
	assert.ErrorIs(t, err, storeErr)
}

func TestEventLogHandler_ThroughBusIntoDatabase(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.BillingEventModel{}))

	repo := persistence.NewGormEventLogRepository(db)
	serializer := NewBillingEventSerializer()
	bus := NewInMemoryEventBus(nil)
	require.NoError(t, bus.Start(context.Background()))
	bus.Subscribe(NewEventLogHandler(repo, serializer))

	ctx := context.Background()
	mismatch := billing.NewCurrencyMismatchEvent(42, 7, valueobject.SEK)
	require.NoError(t, bus.Publish(ctx, mismatch, billing.NewDuplicatePaymentEvent(43)))
	// Republishing the same event is absorbed by the store.
	require.NoError(t, bus.Publish(ctx, mismatch))

	records, err := repo.FindByAggregate(ctx, billing.AggregateTypeInvoice, 42)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(0), bus.Stats().HandlerErrors)

	decoded, err := serializer.Deserialize(records[0].EventType, records[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, valueobject.SEK, decoded.(*billing.CurrencyMismatchEvent).Currency)
}

func TestStreamHandler_Handle(t *testing.T) {
	client := new(mockStreamClient)
	handler := NewStreamHandler(client, "billing-events", 1000, nil)
	event := billing.NewSuccessfulPaymentEvent(11, testAmount)

	client.On("XAdd", mock.Anything, mock.MatchedBy(func(a *redis.XAddArgs) bool {
		return a.Stream == "billing-events" &&
			a.MaxLen == 1000 &&
			a.Approx &&
			a.Values.(map[string]any)["event_type"] == billing.EventTypeSuccessfulPayment &&
			a.Values.(map[string]any)["aggregate_id"] == "11" &&
			a.Values.(map[string]any)["event_id"] == event.EventID().String()
	})).Return("1700000000000-0", nil).Once()

	require.NoError(t, handler.Handle(context.Background(), event))
	client.AssertExpectations(t)
}

func TestStreamHandler_Unbounded(t *testing.T) {
	client := new(mockStreamClient)
	handler := NewStreamHandler(client, "events", 0, nil)

	client.On("XAdd", mock.Anything, mock.MatchedBy(func(a *redis.XAddArgs) bool {
		return a.MaxLen == 0 && !a.Approx
	})).Return("1-0", nil).Once()

	require.NoError(t, handler.Handle(context.Background(), billing.NewNetworkErrorEvent(1)))
	client.AssertExpectations(t)
}

func TestStreamHandler_Error(t *testing.T) {
	client := new(mockStreamClient)
	handler := NewStreamHandler(client, "events", 10, nil)
	client.On("XAdd", mock.Anything, mock.Anything).Return("", redis.ErrClosed)

	err := handler.Handle(context.Background(), billing.NewNetworkErrorEvent(1))
	assert.ErrorIs(t, err, redis.ErrClosed)
}
