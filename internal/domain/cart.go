package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
}

// CartItem is a cart line joined with the product it points to. Name, UnitPrice
// and StockQuantity are read from the product at load time, never stored on the line.
type CartItem struct {
	ID            int64           `json:"id"`
	CartID        int64           `json:"cart_id"`
	ProductID     int64           `json:"product_id"`
	Quantity      int             `json:"quantity"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	StockQuantity int             `json:"stock_quantity"`
	AddedAt       time.Time       `json:"added_at"`
}

func (i CartItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// FindItem returns the line with the given id, if the cart holds it.
func (c *Cart) FindItem(itemID int64) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return CartItem{}, false
}
