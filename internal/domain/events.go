package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload published for order.created and order.status_changed.
type OrderEvent struct {
	OrderID        uuid.UUID        `json:"order_id"`
	UserID         int64            `json:"user_id"`
	Status         OrderStatus      `json:"status"`
	PreviousStatus OrderStatus      `json:"previous_status,omitempty"`
	TotalAmount    decimal.Decimal  `json:"total_amount"`
	Items          []OrderEventItem `json:"items,omitempty"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

type OrderEventItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func NewOrderEvent(o *Order, previous OrderStatus, at time.Time) OrderEvent {
	items := make([]OrderEventItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderEventItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return OrderEvent{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		TotalAmount:    o.TotalAmount,
		Items:          items,
		OccurredAt:     at,
	}
}
