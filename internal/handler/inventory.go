package handler

import (
	"encoding/json"
	"net/http"

	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/internal/service"
	"ygo-storefront-api/pkg/logger"
	"ygo-storefront-api/pkg/response"
)

// InventoryHandler handles inventory-related HTTP requests.
type InventoryHandler struct {
	inventoryService *service.InventoryService
	log              *logger.Logger
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(inventoryService *service.InventoryService, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		log:              log,
	}
}

// applyRequest maps "<cardId>::<rarity>" keys to desired quantities. Values
// stay raw so one bad entry cannot fail the whole body.
type applyRequest struct {
	Updates map[string]json.RawMessage `json:"updates" validate:"required"`
}

type applyResponse struct {
	Success   bool                    `json:"success"`
	Inventory []model.InventoryRecord `json:"inventory"`
	Applied   map[string]int          `json:"applied"`
}

// List handles GET /api/inventory?cardId=<id>
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter model.InventoryFilter
	if raw := r.URL.Query().Get("cardId"); raw != "" {
		cardID, err := positiveID(raw, "cardId")
		if err != nil {
			writeError(w, r, h.log, err)
			return
		}
		filter.CardID = &cardID
	}

	records, err := h.inventoryService.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, records)
}

// Apply handles POST /api/inventory
func (h *InventoryHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	result, err := h.inventoryService.ApplyUpdates(r.Context(), req.Updates)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Raw(w, http.StatusOK, applyResponse{
		Success:   true,
		Inventory: result.Inventory,
		Applied:   result.Applied,
	})
}
