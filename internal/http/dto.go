package http

import (
	"time"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/service"
)

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CreateOrderRequestDTO struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

type CartItemDTO struct {
	ID            int64  `json:"id"`
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	UnitPrice     string `json:"unit_price"`
	Quantity      int    `json:"quantity"`
	StockQuantity int    `json:"stock_quantity"`
	Subtotal      string `json:"subtotal"`
}

type CartDTO struct {
	ID          int64         `json:"id"`
	UserID      int64         `json:"user_id"`
	Items       []CartItemDTO `json:"items"`
	TotalItems  int           `json:"total_items"`
	TotalAmount string        `json:"total_amount"`
}

type OrderItemDTO struct {
	ID              int64  `json:"id"`
	ProductID       int64  `json:"product_id"`
	ProductName     string `json:"product_name"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase string `json:"price_at_purchase"`
	LineTotal       string `json:"line_total"`
}

type OrderResponseDTO struct {
	ID              string         `json:"id"`
	UserID          int64          `json:"user_id"`
	OrderDate       string         `json:"order_date"`
	Status          string         `json:"status"`
	TotalAmount     string         `json:"total_amount"`
	ShippingAddress string         `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
	Items           []OrderItemDTO `json:"items"`
}

type DashboardDTO struct {
	Orders         []OrderResponseDTO `json:"orders"`
	OrdersByStatus map[string]int     `json:"orders_by_status"`
}

func convertCart(c *domain.Cart) CartDTO {
	items := make([]CartItemDTO, 0, len(c.Items))
	units := 0
	for _, it := range c.Items {
		units += it.Quantity
		items = append(items, CartItemDTO{
			ID:            it.ID,
			ProductID:     it.ProductID,
			Name:          it.Name,
			UnitPrice:     it.UnitPrice.StringFixed(2),
			Quantity:      it.Quantity,
			StockQuantity: it.StockQuantity,
			Subtotal:      it.Subtotal().StringFixed(2),
		})
	}
	return CartDTO{
		ID:          c.ID,
		UserID:      c.UserID,
		Items:       items,
		TotalItems:  units,
		TotalAmount: c.Total().StringFixed(2),
	}
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ID:              it.ID,
			ProductID:       it.ProductID,
			ProductName:     it.ProductName,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase.StringFixed(2),
			LineTotal:       it.LineTotal().StringFixed(2),
		})
	}
	return OrderResponseDTO{
		ID:              o.ID.String(),
		UserID:          o.UserID,
		OrderDate:       o.CreatedAt.UTC().Format(time.RFC3339),
		Status:          o.Status.String(),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		Items:           items,
	}
}

func convertOrders(orders []*domain.Order) []OrderResponseDTO {
	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	return dtos
}

func convertCounts(counts map[domain.OrderStatus]int) map[string]int {
	out := make(map[string]int, len(counts))
	for status, n := range counts {
		out[status.String()] = n
	}
	return out
}

func convertDashboard(s *service.DashboardStats) DashboardDTO {
	return DashboardDTO{
		Orders:         convertOrders(s.Orders),
		OrdersByStatus: convertCounts(s.OrdersByStatus),
	}
}
