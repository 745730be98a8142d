package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/service"
)

// OrderUseCases is what customers can do with their orders.
type OrderUseCases interface {
	CreateOrder(ctx context.Context, userID int64, req service.CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, userID int64) (*domain.Order, error)
	ListOrdersForUser(ctx context.Context, userID int64) ([]*domain.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, userID int64) (*domain.Order, error)
}

type OrdersHandler struct {
	orders  OrderUseCases
	timeout time.Duration
	log     *zap.Logger
}

func NewOrdersHandler(orders OrderUseCases, timeout time.Duration, log *zap.Logger) *OrdersHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &OrdersHandler{orders: orders, timeout: timeout, log: log}
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing user authentication")
		return
	}

	var req CreateOrderRequestDTO
	if err := decodeJSON(w, r, maxRequestBodySize, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	order, err := h.orders.CreateOrder(ctx, id.UserID, service.CreateOrderRequest{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, "order placed", convertOrder(order))
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing user authentication")
		return
	}

	orders, err := h.orders.ListOrdersForUser(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusOK, "", convertOrders(orders))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing user authentication")
		return
	}

	orderID, err := orderIDParam(r)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, id.UserID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusOK, "", convertOrder(order))
}

// POST /api/v1/orders/{order_id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := identityFromContext(r.Context())
	if !ok {
		respondError(w, r, http.StatusUnauthorized, "missing user authentication")
		return
	}

	orderID, err := orderIDParam(r)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	order, err := h.orders.CancelOrder(ctx, orderID, id.UserID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusOK, "order cancelled", convertOrder(order))
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("order_id", "must be a valid UUID")
	}
	return orderID, nil
}
