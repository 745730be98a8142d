package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fjod/go_store/internal/domain"
)

func orderEvent(status, previous domain.OrderStatus) domain.OrderEvent {
	return domain.OrderEvent{
		OrderID:        uuid.MustParse("3f2c1a7e-5b6d-4c8e-9f01-23456789abcd"),
		UserID:         42,
		Status:         status,
		PreviousStatus: previous,
		TotalAmount:    decimal.RequireFromString("179.98"),
		Items: []domain.OrderEventItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 3, Quantity: 1},
		},
		OccurredAt: time.Now().UTC(),
	}
}

func TestCompose_OrderCreated(t *testing.T) {
	n, ok := Compose(domain.EventOrderCreated, orderEvent(domain.OrderStatusPending, ""))
	require.True(t, ok)

	assert.Equal(t, int64(42), n.UserID)
	assert.Equal(t, "3f2c1a7e-5b6d-4c8e-9f01-23456789abcd", n.OrderID)
	assert.Equal(t, "Order 3f2c1a7e received", n.Subject)
	assert.Contains(t, n.Body, "3 item(s)")
	assert.Contains(t, n.Body, "179.98")
}

func TestCompose_StatusChanged(t *testing.T) {
	tests := []struct {
		name   string
		status domain.OrderStatus
		body   string
	}{
		{"cancelled", domain.OrderStatusCancelled, "Your order has been cancelled."},
		{"shipping", domain.OrderStatusShipping, "Your order is on its way."},
		{"delivered", domain.OrderStatusDelivered, "Your order has been delivered."},
		{"confirmed", domain.OrderStatusConfirmed, "Your order status changed from PENDING to CONFIRMED."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := Compose(domain.EventOrderStatusChanged, orderEvent(tt.status, domain.OrderStatusPending))
			require.True(t, ok)
			assert.Equal(t, "Order 3f2c1a7e is now "+string(tt.status), n.Subject)
			assert.Equal(t, tt.body, n.Body)
		})
	}
}

func TestCompose_UnknownEventIgnored(t *testing.T) {
	_, ok := Compose("order.archived", orderEvent(domain.OrderStatusPending, ""))
	assert.False(t, ok)
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc", shortID("abc"))
	assert.Equal(t, "12345678", shortID("123456789"))
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core))

	err := n.Notify(context.Background(), Notification{UserID: 7, OrderID: "o-1", Subject: "hi", Body: "there"})
	require.NoError(t, err)

	entries := logs.FilterMessage("customer notification").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(7), fields["user_id"])
	assert.Equal(t, "o-1", fields["order_id"])
	assert.Equal(t, "hi", fields["subject"])
}
