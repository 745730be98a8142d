package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/repository"
	"github.com/fjod/go_store/pkg/logger"
)

const (
	maxShippingAddressLen = 500
	maxPaymentMethodLen   = 50
)

type CreateOrderRequest struct {
	ShippingAddress string
	PaymentMethod   string
}

func (r CreateOrderRequest) Validate() error {
	v := &domain.ValidationError{}
	checkText(v, "shipping_address", r.ShippingAddress, maxShippingAddressLen)
	checkText(v, "payment_method", r.PaymentMethod, maxPaymentMethodLen)
	return v.OrNil()
}

func checkText(v *domain.ValidationError, field, value string, max int) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		v.Add(field, "is required")
	case utf8.RuneCountInString(value) > max:
		v.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
}

// DashboardStats is the admin overview: every order plus a count per status.
type DashboardStats struct {
	Orders         []*domain.Order
	OrdersByStatus map[domain.OrderStatus]int
}

// OrderService turns carts into orders and drives the order state machine.
// Stock is deducted when an order is created and put back when it is cancelled.
type OrderService struct {
	store repository.Store
	cache CartCache
	log   *zap.Logger
	now   func() time.Time
}

func NewOrderService(store repository.Store, cache CartCache, log *zap.Logger) *OrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{
		store: store,
		cache: cache,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder checks out the user's cart. Everything happens in one transaction:
// stock is deducted line by line, the order is written, the cart is emptied and
// an order.created event is queued. Any failure leaves stock and cart as they were.
func (s *OrderService) CreateOrder(ctx context.Context, userID int64, req CreateOrderRequest) (*domain.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		CreatedAt:       s.now(),
	}

	err := s.store.InTx(ctx, func(q repository.Queries) error {
		cart, err := q.GetOrCreateCart(ctx, userID)
		if err != nil {
			return err
		}
		if cart.IsEmpty() {
			return domain.ErrEmptyCart
		}

		// lock product rows in a fixed order so concurrent checkouts cannot deadlock
		lines := make([]domain.CartItem, len(cart.Items))
		copy(lines, cart.Items)
		sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })

		total := decimal.Zero
		items := make([]domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			product, err := q.GetProduct(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if err := checkStock(product, line.Quantity); err != nil {
				return err
			}
			if err := q.DeductStock(ctx, product.ID, line.Quantity); err != nil {
				return err
			}

			item := domain.OrderItem{
				ProductID:       product.ID,
				ProductName:     product.Name,
				Quantity:        line.Quantity,
				PriceAtPurchase: product.Price,
			}
			total = total.Add(item.LineTotal())
			items = append(items, item)
		}
		order.Items = items
		order.TotalAmount = total

		if err := q.CreateOrder(ctx, order); err != nil {
			return err
		}
		if _, err := q.ClearCart(ctx, cart.ID); err != nil {
			return err
		}
		return enqueueOrderEvent(ctx, q, domain.EventOrderCreated, order, "", order.CreatedAt)
	})
	if err != nil {
		return nil, err
	}

	invalidateCache(s.cache, s.log, userID)
	logger.FromContext(ctx, s.log).Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.Int64("user_id", userID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)
	return order, nil
}

// GetOrder returns an order that belongs to userID.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID, userID int64) (*domain.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(userID) {
		return nil, domain.ErrOrderNotOwned
	}
	return order, nil
}

func (s *OrderService) ListOrdersForUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return s.store.ListOrdersByUserID(ctx, userID)
}

func (s *OrderService) ListAllOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.store.ListOrders(ctx)
}

func (s *OrderService) StatsByStatus(ctx context.Context) (map[domain.OrderStatus]int, error) {
	return s.store.CountOrdersByStatus(ctx)
}

func (s *OrderService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountOrdersByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return &DashboardStats{Orders: orders, OrdersByStatus: counts}, nil
}

// CancelOrder lets the owner cancel an order that has not reached a terminal status.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, userID int64) (*domain.Order, error) {
	if _, err := s.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}
	// ownership only; the status is checked inside the transaction
	return s.transition(ctx, orderID, domain.OrderStatusCancelled, false)
}

// UpdateStatus moves an order to next. Asking for the status the order already
// has is a no-op, so retries are safe.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	return s.transition(ctx, orderID, next, true)
}

// transition applies next with a compare-and-set on the current status. When
// allowSame is false, finding the order already at next is a TransitionError.
func (s *OrderService) transition(ctx context.Context, orderID uuid.UUID, next domain.OrderStatus, allowSame bool) (*domain.Order, error) {
	var (
		result   *domain.Order
		previous domain.OrderStatus
		changed  bool
	)

	err := s.store.InTx(ctx, func(q repository.Queries) error {
		order, err := q.GetOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == next && allowSame {
			result = order
			return nil
		}
		if !order.Status.CanTransitionTo(next) {
			return &domain.TransitionError{From: order.Status, To: next}
		}

		ok, err := q.CompareAndSetStatus(ctx, orderID, order.Status, next)
		if err != nil {
			return err
		}
		if !ok {
			// someone else moved the order first
			current, err := q.GetOrderByID(ctx, orderID)
			if err != nil {
				return err
			}
			if current.Status == next && allowSame {
				result = current
				return nil
			}
			return &domain.TransitionError{From: current.Status, To: next}
		}

		// the status change above is the only one that can restock this order
		if next == domain.OrderStatusCancelled {
			for _, item := range order.Items {
				if err := q.RestockStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		}

		previous = order.Status
		changed = true
		order.Status = next
		order.UpdatedAt = s.now()
		if err := enqueueOrderEvent(ctx, q, domain.EventOrderStatusChanged, order, previous, order.UpdatedAt); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		log := logger.FromContext(ctx, s.log).With(
			zap.String("order_id", orderID.String()),
			zap.Stringer("from", previous),
			zap.Stringer("to", next),
		)
		if next == domain.OrderStatusCancelled && previous == domain.OrderStatusShipping {
			log.Warn("cancelled order was in transit, stock restored")
		} else {
			log.Info("order status changed")
		}
	}
	return result, nil
}

func enqueueOrderEvent(ctx context.Context, q repository.Queries, eventType string, order *domain.Order, previous domain.OrderStatus, at time.Time) error {
	payload, err := json.Marshal(domain.NewOrderEvent(order, previous, at))
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return q.EnqueueEvent(ctx, &repository.OutboxEvent{
		AggregateId: order.ID.String(),
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   at,
	})
}
