package notifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fjod/go_store/internal/domain"
)

// Notification is a message for the customer who owns the order.
type Notification struct {
	UserID  int64
	OrderID string
	Subject string
	Body    string
}

// Notifier delivers notifications. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Compose renders the customer notification for an order event. It reports
// false for event types that do not notify anyone.
func Compose(eventType string, ev domain.OrderEvent) (Notification, bool) {
	n := Notification{UserID: ev.UserID, OrderID: ev.OrderID.String()}
	switch eventType {
	case domain.EventOrderCreated:
		n.Subject = fmt.Sprintf("Order %s received", shortID(n.OrderID))
		n.Body = fmt.Sprintf("Thank you for your order. %d item(s), total %s. We will let you know when it ships.",
			countUnits(ev), ev.TotalAmount.StringFixed(2))
	case domain.EventOrderStatusChanged:
		n.Subject = fmt.Sprintf("Order %s is now %s", shortID(n.OrderID), ev.Status)
		switch ev.Status {
		case domain.OrderStatusCancelled:
			n.Body = "Your order has been cancelled."
		case domain.OrderStatusShipping:
			n.Body = "Your order is on its way."
		case domain.OrderStatusDelivered:
			n.Body = "Your order has been delivered."
		default:
			n.Body = fmt.Sprintf("Your order status changed from %s to %s.", ev.PreviousStatus, ev.Status)
		}
	default:
		return Notification{}, false
	}
	return n, true
}

func countUnits(ev domain.OrderEvent) int {
	total := 0
	for _, it := range ev.Items {
		total += it.Quantity
	}
	return total
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.log.Info("customer notification",
		zap.Int64("user_id", n.UserID),
		zap.String("order_id", n.OrderID),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body),
	)
	return nil
}
