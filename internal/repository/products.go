package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_store/internal/domain"
)

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, category_id, name, price, stock_quantity, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	p := &domain.Product{}
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&p.ID,
		&p.CategoryID,
		&p.Name,
		&p.Price,
		&p.StockQuantity,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("product", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return p, nil
}

// CreateProduct inserts p and fills in its id and timestamps.
func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	if p.StockQuantity < 0 {
		return domain.NewValidationError("stock_quantity", "must not be negative")
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO products (category_id, name, price, stock_quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if err := r.q.QueryRowContext(ctx, query,
		p.CategoryID,
		p.Name,
		p.Price,
		p.StockQuantity,
		now,
		now,
	).Scan(&p.ID); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// DeductStock takes quantity units off the product in a single conditional
// update. When fewer units are left nothing changes and a *domain.StockError
// reports what is available.
func (r *Repository) DeductStock(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("deduct stock: quantity must be positive, got %d", quantity)
	}

	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = $2
		WHERE id = $3 AND stock_quantity >= $4
	`
	res, err := r.q.ExecContext(ctx, query, quantity, time.Now().UTC(), productID, quantity)
	if err != nil {
		return fmt.Errorf("deduct stock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deduct stock rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	return &domain.StockError{
		ProductID:   p.ID,
		ProductName: p.Name,
		Requested:   quantity,
		Available:   p.StockQuantity,
	}
}

func (r *Repository) RestockStock(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("restock: quantity must be positive, got %d", quantity)
	}

	query := `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = $2
		WHERE id = $3
	`
	res, err := r.q.ExecContext(ctx, query, quantity, time.Now().UTC(), productID)
	if err != nil {
		return fmt.Errorf("restock: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("restock rows affected: %w", err)
	}
	if affected == 0 {
		return domain.NewNotFound("product", productID)
	}
	return nil
}
