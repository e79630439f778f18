package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ygo-storefront-api/internal/cart"
	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/internal/service"
	"ygo-storefront-api/pkg/logger"
	"ygo-storefront-api/pkg/response"
)

// ClientIDHeader identifies whose cart a request operates on.
const ClientIDHeader = "X-Client-ID"

// CartHandler exposes per-client carts and checkout.
type CartHandler struct {
	carts    *cart.Manager
	checkout *service.CheckoutService
	log      *logger.Logger
}

// NewCartHandler creates a cart handler.
func NewCartHandler(carts *cart.Manager, checkout *service.CheckoutService, log *logger.Logger) *CartHandler {
	return &CartHandler{carts: carts, checkout: checkout, log: log}
}

type addItemRequest struct {
	ID  int64 `json:"id" validate:"required,gt=0"`
	Qty *int  `json:"qty,omitempty" validate:"omitempty,min=1,max=10000"`
}

type setQuantityRequest struct {
	Qty *int `json:"qty" validate:"required,max=10000"`
}

type checkoutResponse struct {
	Success bool              `json:"success"`
	Stored  string            `json:"stored"`
	OrderID string            `json:"orderId"`
	Items   []model.OrderLine `json:"items"`
}

func (h *CartHandler) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	s, err := h.carts.For(r.Header.Get(ClientIDHeader))
	if err != nil {
		writeError(w, r, h.log, err)
		return nil, false
	}
	return s, true
}

// Get handles GET /api/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	lines, err := s.Get(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, model.CartSnapshot{Items: lines, Count: model.CountItems(lines)})
}

// Add handles POST /api/cart/items
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	qty := 1
	if req.Qty != nil {
		qty = *req.Qty
	}

	snapshot, err := s.Add(r.Context(), req.ID, qty)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, snapshot)
}

// SetQuantity handles PUT /api/cart/items/{cardId}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	cardID, err := positiveID(chi.URLParam(r, "cardId"), "cardId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	var req setQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	snapshot, err := s.SetQuantity(r.Context(), cardID, *req.Qty)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, snapshot)
}

// Remove handles DELETE /api/cart/items/{cardId}
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}
	cardID, err := positiveID(chi.URLParam(r, "cardId"), "cardId")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	snapshot, err := s.Remove(r.Context(), cardID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, snapshot)
}

// Clear handles DELETE /api/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	snapshot, err := s.Clear(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, snapshot)
}

// Checkout handles POST /api/cart/checkout
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	s, ok := h.store(w, r)
	if !ok {
		return
	}

	order, err := h.checkout.Checkout(r.Context(), s)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Raw(w, http.StatusOK, checkoutResponse{
		Success: true,
		Stored:  order.Stored,
		OrderID: order.ID,
		Items:   order.Lines,
	})
}
