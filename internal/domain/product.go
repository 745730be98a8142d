package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog record the cart and the order engine read stock from.
// StockQuantity is only ever written through the repository's conditional
// deduct/restock statements.
type Product struct {
	ID            int64           `json:"id"`
	CategoryID    int64           `json:"category_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Allows reports whether requested units can be taken from the current stock.
func (p Product) Allows(requested int) bool {
	return requested <= p.StockQuantity
}
