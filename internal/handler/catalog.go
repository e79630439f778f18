package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"ygo-storefront-api/internal/catalog"
	"ygo-storefront-api/pkg/logger"
	"ygo-storefront-api/pkg/response"
)

// CardSource is the read side of the catalog gateway.
type CardSource interface {
	Search(ctx context.Context, params catalog.Params) ([]json.RawMessage, error)
	GetByID(ctx context.Context, cardID int64) (json.RawMessage, error)
	GetPrice(ctx context.Context, cardID int64) (*catalog.PriceQuote, error)
}

// CatalogHandler serves card search, lookup and price quotes.
type CatalogHandler struct {
	cards            CardSource
	defaultArchetype string
	log              *logger.Logger
}

// NewCatalogHandler creates a catalog handler. defaultArchetype is searched
// when /cards is called without parameters; empty forwards the bare query.
func NewCatalogHandler(cards CardSource, defaultArchetype string, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{cards: cards, defaultArchetype: defaultArchetype, log: log}
}

// Search handles GET /api/cards?<upstream params>
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	params := catalog.Params(r.URL.Query())
	if len(params) == 0 && h.defaultArchetype != "" {
		params = catalog.Params{"archetype": []string{h.defaultArchetype}}
	}

	data, err := h.cards.Search(r.Context(), params)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, data)
}

// Card handles GET /api/card?id=<id>
func (h *CatalogHandler) Card(w http.ResponseWriter, r *http.Request) {
	cardID, err := positiveID(r.URL.Query().Get("id"), "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	card, err := h.cards.GetByID(r.Context(), cardID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, []json.RawMessage{card})
}

// Price handles GET /api/price?id=<id>
func (h *CatalogHandler) Price(w http.ResponseWriter, r *http.Request) {
	cardID, err := positiveID(r.URL.Query().Get("id"), "id")
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	quote, err := h.cards.GetPrice(r.Context(), cardID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Raw(w, http.StatusOK, quote)
}
