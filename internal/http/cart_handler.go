package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fjod/go_store/internal/domain"
)

const maxRequestBodySize = 1 << 20 // 1MB

// CartUseCases is the cart side of the service layer.
type CartUseCases interface {
	GetCart(ctx context.Context, userID int64) (*domain.Cart, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.Cart, error)
	UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID int64) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID int64) (*domain.Cart, error)
}

type CartHandler struct {
	carts   CartUseCases
	timeout time.Duration
	log     *zap.Logger
}

func NewCartHandler(carts CartUseCases, timeout time.Duration, log *zap.Logger) *CartHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartHandler{carts: carts, timeout: timeout, log: log}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing user authentication")
		return
	}

	cart, err := h.carts.GetCart(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusOK, "", convertCart(cart))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing user authentication")
		return
	}

	var req AddItemRequestDTO
	if err := decodeJSON(w, r, maxRequestBodySize, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if req.ProductID <= 0 {
		handleServiceError(w, r, h.log, domain.NewValidationError("product_id", "must be a positive integer"))
		return
	}

	cart, err := h.carts.AddItem(ctx, id.UserID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusOK, "item added to cart", convertCart(cart))
}

// PUT /api/v1/cart/items/{item_id}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing user authentication")
		return
	}

	itemID, err := itemIDParam(r)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(w, r, maxRequestBodySize, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if req.Quantity == nil {
		handleServiceError(w, r, h.log, domain.NewValidationError("quantity", "is required"))
		return
	}

	cart, err := h.carts.UpdateItem(ctx, id.UserID, itemID, *req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusOK, "cart updated", convertCart(cart))
}

// DELETE /api/v1/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing user authentication")
		return
	}

	itemID, err := itemIDParam(r)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	cart, err := h.carts.RemoveItem(ctx, id.UserID, itemID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusOK, "item removed", convertCart(cart))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing user authentication")
		return
	}

	cart, err := h.carts.ClearCart(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusOK, "cart cleared", convertCart(cart))
}

func itemIDParam(r *http.Request) (int64, error) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		return 0, domain.NewValidationError("item_id", "must be a positive integer")
	}
	return itemID, nil
}
