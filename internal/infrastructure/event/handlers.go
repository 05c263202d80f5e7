package event

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/domain/shared"
	"github.com/antaeus/billing/internal/infrastructure/persistence"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingEventHandler writes every billing event to the application log
type LoggingEventHandler struct {
	logger *zap.Logger
}

// NewLoggingEventHandler creates a LoggingEventHandler
func NewLoggingEventHandler(logger *zap.Logger) *LoggingEventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingEventHandler{logger: logger.Named("billing-events")}
}

// Handle logs the event at a level matching its outcome
func (h *LoggingEventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.Int64("invoice_id", event.AggregateID()),
		zap.Time("occurred_at", event.OccurredAt()),
	}
	switch e := event.(type) {
	case *billing.SuccessfulPaymentEvent:
		fields = append(fields, zap.Stringer("amount", e.Amount))
	case *billing.FailedPaymentEvent:
		fields = append(fields, zap.Stringer("amount", e.Amount))
	case *billing.CustomerNotFoundEvent:
		fields = append(fields, zap.Int64("customer_id", e.CustomerID))
	case *billing.CurrencyMismatchEvent:
		fields = append(fields, zap.Int64("customer_id", e.CustomerID), zap.Stringer("currency", e.Currency))
	}

	h.logger.Log(levelFor(event.EventType()), "Billing event", fields...)
	return nil
}

// EventTypes subscribes the handler to every billing event
func (h *LoggingEventHandler) EventTypes() []string {
	return billing.AllEventTypes()
}

func levelFor(eventType string) zapcore.Level {
	switch eventType {
	case billing.EventTypeSuccessfulPayment:
		return zapcore.InfoLevel
	case billing.EventTypeNetworkError:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// EventStore is the append side of the persistent event log
type EventStore interface {
	Append(ctx context.Context, record persistence.EventRecord) error
}

// EventLogHandler persists billing events so they can be listed per invoice
type EventLogHandler struct {
	store      EventStore
	serializer *EventSerializer
}

// NewEventLogHandler creates an EventLogHandler
func NewEventLogHandler(store EventStore, serializer *EventSerializer) *EventLogHandler {
	if serializer == nil {
		serializer = NewBillingEventSerializer()
	}
	return &EventLogHandler{store: store, serializer: serializer}
}

// Handle appends the event to the store
func (h *EventLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return err
	}

	record := persistence.EventRecord{
		ID:            event.EventID(),
		EventType:     event.EventType(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		Payload:       payload,
		OccurredAt:    event.OccurredAt(),
	}
	if err := h.store.Append(ctx, record); err != nil {
		return fmt.Errorf("failed to store event %s: %w", event.EventID(), err)
	}
	return nil
}

// EventTypes subscribes the handler to every billing event
func (h *EventLogHandler) EventTypes() []string {
	return billing.AllEventTypes()
}

// StreamClient is the subset of the Redis client used by StreamHandler
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamHandler appends billing events to a Redis stream for downstream consumers.
// The stream is trimmed approximately to maxLen entries.
type StreamHandler struct {
	client     StreamClient
	stream     string
	maxLen     int64
	serializer *EventSerializer
}

// NewStreamHandler creates a StreamHandler
func NewStreamHandler(client StreamClient, stream string, maxLen int64, serializer *EventSerializer) *StreamHandler {
	if serializer == nil {
		serializer = NewBillingEventSerializer()
	}
	return &StreamHandler{
		client:     client,
		stream:     stream,
		maxLen:     maxLen,
		serializer: serializer,
	}
}

// Handle adds one stream entry per event
func (h *StreamHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: h.stream,
		Values: map[string]any{
			"event_id":       event.EventID().String(),
			"event_type":     event.EventType(),
			"aggregate_type": event.AggregateType(),
			"aggregate_id":   strconv.FormatInt(event.AggregateID(), 10),
			"occurred_at":    event.OccurredAt().Format(time.RFC3339Nano),
			"payload":        string(payload),
		},
	}
	if h.maxLen > 0 {
		args.MaxLen = h.maxLen
		args.Approx = true
	}

	if err := h.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to add event %s to stream %s: %w", event.EventID(), h.stream, err)
	}
	return nil
}

// EventTypes subscribes the handler to every billing event
func (h *StreamHandler) EventTypes() []string {
	return billing.AllEventTypes()
}

var (
	_ shared.EventHandler = (*LoggingEventHandler)(nil)
	_ shared.EventHandler = (*EventLogHandler)(nil)
	_ shared.EventHandler = (*StreamHandler)(nil)
)
