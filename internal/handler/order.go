package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/internal/service"
	"ygo-storefront-api/pkg/logger"
	"ygo-storefront-api/pkg/response"
)

// OrderHandler accepts submitted orders.
type OrderHandler struct {
	orders *service.OrderService
	log    *logger.Logger
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(orders *service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, log: log}
}

type orderItemRequest struct {
	ID    int64            `json:"id" validate:"required,gt=0"`
	Qty   int              `json:"qty" validate:"required,min=1"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// An empty item list is left to the service so it fails as INVALID_ORDER.
type orderRequest struct {
	Items []orderItemRequest `json:"items" validate:"dive"`
}

type orderResponse struct {
	Success bool              `json:"success"`
	Stored  string            `json:"stored"`
	OrderID string            `json:"orderId"`
	Items   []model.OrderLine `json:"items,omitempty"`
}

// Submit handles POST /api/order
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	lines := make([]model.OrderLine, len(req.Items))
	for i, item := range req.Items {
		lines[i] = model.OrderLine{CardID: item.ID, Qty: item.Qty, UnitPrice: item.Price}
	}

	order, err := h.orders.Submit(r.Context(), lines)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Raw(w, http.StatusOK, orderResponse{
		Success: true,
		Stored:  order.Stored,
		OrderID: order.ID,
	})
}
