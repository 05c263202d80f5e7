//go:build integration

package event

import (
	"context"
	"testing"
	"time"

	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestStreamHandler_Redis(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })

	serializer := NewBillingEventSerializer()
	bus := NewInMemoryEventBus(nil)
	require.NoError(t, bus.Start(context.Background()))
	bus.Subscribe(NewStreamHandler(client, "billing-events-test", 100, serializer))

	paid := billing.NewSuccessfulPaymentEvent(1, testAmount)
	require.NoError(t, bus.Publish(ctx, paid, billing.NewNetworkErrorEvent(2)))
	require.Equal(t, int64(0), bus.Stats().HandlerErrors)

	entries, err := client.XRange(ctx, "billing-events-test", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0].Values
	assert.Equal(t, billing.EventTypeSuccessfulPayment, first["event_type"])
	assert.Equal(t, "1", first["aggregate_id"])

	decoded, err := serializer.Deserialize(first["event_type"].(string), []byte(first["payload"].(string)))
	require.NoError(t, err)
	assert.Equal(t, paid.EventID(), decoded.EventID())
}
