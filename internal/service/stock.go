package service

import "github.com/fjod/go_store/internal/domain"

// checkStock is the single stock rule shared by the cart and checkout: the
// requested quantity must not exceed the product's stock as read right now.
func checkStock(p *domain.Product, requested int) error {
	if p.Allows(requested) {
		return nil
	}
	return &domain.StockError{
		ProductID:   p.ID,
		ProductName: p.Name,
		Requested:   requested,
		Available:   p.StockQuantity,
	}
}
