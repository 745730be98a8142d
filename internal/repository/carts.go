package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_store/internal/domain"
)

const cartItemColumns = `
	ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.added_at,
	p.name, p.price, p.stock_quantity
`

// GetOrCreateCart returns the user's cart with its items, creating an empty cart
// on first use. Concurrent first calls converge on the same row.
//
// Inside a PostgreSQL transaction the cart row stays locked until commit, so
// cart changes and checkout for one user run one after another. SQLite
// transactions already queue on the single connection.
func (r *Repository) GetOrCreateCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	insert := `
		INSERT INTO carts (user_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.q.ExecContext(ctx, insert, userID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert cart: %w", err)
	}

	query := `SELECT id, user_id, created_at FROM carts WHERE user_id = $1`
	if r.inTx && r.driver == DriverPostgres {
		query += ` FOR UPDATE`
	}

	cart := &domain.Cart{}
	err := r.q.QueryRowContext(ctx, query, userID).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	items, err := r.listCartItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items
	return cart, nil
}

func (r *Repository) listCartItems(ctx context.Context, cartID int64) ([]domain.CartItem, error) {
	query := `SELECT` + cartItemColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id
	`
	rows, err := r.q.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		if err := scanCartItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCartItem(row rowScanner, item *domain.CartItem) error {
	return row.Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&item.AddedAt,
		&item.Name,
		&item.UnitPrice,
		&item.StockQuantity,
	)
}

// GetCartItem loads a single line together with current product data.
func (r *Repository) GetCartItem(ctx context.Context, itemID int64) (*domain.CartItem, error) {
	query := `SELECT` + cartItemColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.id = $1
	`
	item := &domain.CartItem{}
	err := scanCartItem(r.q.QueryRowContext(ctx, query, itemID), item)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("cart item", itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("get cart item: %w", err)
	}
	return item, nil
}

// MergeCartItem adds quantity to the line for productID, inserting it when the
// cart has none, and returns the resulting line quantity. A cart never holds two
// lines for the same product.
func (r *Repository) MergeCartItem(ctx context.Context, cartID, productID int64, quantity int) (int, error) {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + excluded.quantity
		RETURNING quantity
	`
	var merged int
	if err := r.q.QueryRowContext(ctx, query, cartID, productID, quantity, time.Now().UTC()).Scan(&merged); err != nil {
		return 0, fmt.Errorf("merge cart item: %w", err)
	}
	return merged, nil
}

func (r *Repository) SetCartItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	res, err := r.q.ExecContext(ctx, `UPDATE cart_items SET quantity = $1 WHERE id = $2`, quantity, itemID)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update cart item rows affected: %w", err)
	}
	if affected == 0 {
		return domain.NewNotFound("cart item", itemID)
	}
	return nil
}

// DeleteCartItem removes the line; deleting a missing line is not an error.
func (r *Repository) DeleteCartItem(ctx context.Context, itemID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}

// ClearCart deletes every line of the cart in one statement and reports how
// many were removed.
func (r *Repository) ClearCart(ctx context.Context, cartID int64) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear cart rows affected: %w", err)
	}
	return n, nil
}
