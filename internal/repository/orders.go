package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/fjod/go_store/internal/domain"
)

var ErrDuplicateOrder = errors.New("order already exists")

const orderWithItemsQuery = `
	SELECT o.id, o.user_id, o.status, o.total_amount, o.shipping_address, o.payment_method,
	       o.created_at, o.updated_at,
	       i.id, i.product_id, i.product_name, i.quantity, i.price_at_purchase
	FROM orders o
	JOIN order_items i ON i.order_id = o.id
`

// CreateOrder stores the order header and its items. The caller assigns the id;
// item ids are filled in from the database.
func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.UpdatedAt = order.CreatedAt

	query := `INSERT INTO orders (id, user_id, status, total_amount, shipping_address, payment_method, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, insertErr := r.q.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.Status,
		order.TotalAmount,
		order.ShippingAddress,
		order.PaymentMethod,
		order.CreatedAt,
		order.UpdatedAt)
	if insertErr != nil {
		if isUniqueViolation(insertErr) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, product_name, quantity, price_at_purchase)
	              VALUES ($1, $2, $3, $4, $5)
	              RETURNING id`
	for i := range order.Items {
		item := &order.Items[i]
		if err := r.q.QueryRowContext(ctx, itemQuery,
			order.ID,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.PriceAtPurchase,
		).Scan(&item.ID); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *Repository) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	orders, err := r.queryOrders(ctx, orderWithItemsQuery+` WHERE o.id = $1 ORDER BY i.id`, id)
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	if len(orders) == 0 {
		return nil, domain.NewNotFound("order", id)
	}
	return orders[0], nil
}

// ListOrdersByUserID returns the user's orders, newest first.
func (r *Repository) ListOrdersByUserID(ctx context.Context, userID int64) ([]*domain.Order, error) {
	orders, err := r.queryOrders(ctx,
		orderWithItemsQuery+` WHERE o.user_id = $1 ORDER BY o.created_at DESC, o.id, i.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	return orders, nil
}

// ListOrders returns every order, newest first.
func (r *Repository) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	orders, err := r.queryOrders(ctx, orderWithItemsQuery+` ORDER BY o.created_at DESC, o.id, i.id`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return orders, nil
}

// queryOrders folds the order/item join into orders, keeping the row order of
// the first appearance of each order.
func (r *Repository) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*domain.Order{}
	byID := make(map[uuid.UUID]*domain.Order)
	for rows.Next() {
		var (
			order domain.Order
			item  domain.OrderItem
		)
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Status,
			&order.TotalAmount,
			&order.ShippingAddress,
			&order.PaymentMethod,
			&order.CreatedAt,
			&order.UpdatedAt,
			&item.ID,
			&item.ProductID,
			&item.ProductName,
			&item.Quantity,
			&item.PriceAtPurchase,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}

		existing, ok := byID[order.ID]
		if !ok {
			existing = &order
			byID[order.ID] = existing
			orders = append(orders, existing)
		}
		existing.Items = append(existing.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

// CompareAndSetStatus moves the order from one status to another only if it is
// still in from. It reports whether this call made the change.
func (r *Repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) (bool, error) {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.q.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update order status rows affected: %w", err)
	}
	return affected == 1, nil
}

// CountOrdersByStatus returns a count for every known status, zero included.
func (r *Repository) CountOrdersByStatus(ctx context.Context) (map[domain.OrderStatus]int, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count orders by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.OrderStatus]int, len(domain.AllOrderStatuses))
	for _, st := range domain.AllOrderStatuses {
		counts[st] = 0
	}
	for rows.Next() {
		var (
			status domain.OrderStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}
