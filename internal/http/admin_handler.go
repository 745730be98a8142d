package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/go_store/internal/domain"
	"github.com/fjod/go_store/internal/service"
)

// AdminUseCases covers the back-office order operations.
type AdminUseCases interface {
	ListAllOrders(ctx context.Context) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
	Dashboard(ctx context.Context) (*service.DashboardStats, error)
}

type AdminHandler struct {
	orders  AdminUseCases
	timeout time.Duration
	log     *zap.Logger
}

func NewAdminHandler(orders AdminUseCases, timeout time.Duration, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{orders: orders, timeout: timeout, log: log}
}

// GET /api/v1/admin/orders
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListAllOrders(ctx)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusOK, "", convertOrders(orders))
}

// PUT /api/v1/admin/orders/{order_id}/status
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := orderIDParam(r)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	var req UpdateStatusRequestDTO
	if err := decodeJSON(w, r, maxRequestBodySize, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	order, err := h.orders.UpdateStatus(ctx, orderID, next)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusOK, "order status updated", convertOrder(order))
}

// GET /api/v1/admin/dashboard/stats
func (h *AdminHandler) DashboardStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.orders.Dashboard(ctx)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, r, http.StatusOK, "", convertDashboard(stats))
}
