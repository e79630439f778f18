package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Card is the subset of the upstream card record the service reads.
// Search and lookup responses are passed through untouched; this type is
// used to project price quotes and ledger display data.
type Card struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Type       string      `json:"type,omitempty"`
	Archetype  string      `json:"archetype,omitempty"`
	CardSets   []CardSet   `json:"card_sets,omitempty"`
	CardImages []CardImage `json:"card_images,omitempty"`
	CardPrices []CardPrice `json:"card_prices,omitempty"`
}

// CardSet is one printing of a card.
type CardSet struct {
	SetName       string `json:"set_name"`
	SetCode       string `json:"set_code"`
	SetRarity     string `json:"set_rarity"`
	SetRarityCode string `json:"set_rarity_code,omitempty"`
	SetPrice      string `json:"set_price,omitempty"`
}

// CardImage holds artwork URLs.
type CardImage struct {
	ID              int64  `json:"id"`
	ImageURL        string `json:"image_url"`
	ImageURLSmall   string `json:"image_url_small,omitempty"`
	ImageURLCropped string `json:"image_url_cropped,omitempty"`
}

// CardPrice holds the marketplace prices reported upstream, as decimal strings.
type CardPrice struct {
	CardmarketPrice   string `json:"cardmarket_price,omitempty"`
	TcgplayerPrice    string `json:"tcgplayer_price,omitempty"`
	EbayPrice         string `json:"ebay_price,omitempty"`
	AmazonPrice       string `json:"amazon_price,omitempty"`
	CoolstuffincPrice string `json:"coolstuffinc_price,omitempty"`
}

// Price sources, in priority order.
const (
	SourceTCGPlayer  = "tcgplayer"
	SourceCardmarket = "cardmarket"
	SourceSetListing = "set_listing"
)

// PriceQuote is a point-in-time price read for one card. BestPrice is nil
// when no source reports a usable price.
type PriceQuote struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Image       string           `json:"image,omitempty"`
	Prices      *CardPrice       `json:"prices"`
	BestPrice   *decimal.Decimal `json:"bestPrice"`
	PriceSource string           `json:"priceSource,omitempty"`
}

// Quote projects a card into a price quote.
func (c Card) Quote() PriceQuote {
	q := PriceQuote{
		ID:   c.ID,
		Name: c.Name,
	}
	if len(c.CardImages) > 0 {
		q.Image = c.CardImages[0].ImageURLSmall
		if q.Image == "" {
			q.Image = c.CardImages[0].ImageURL
		}
	}
	if len(c.CardPrices) > 0 {
		prices := c.CardPrices[0]
		q.Prices = &prices
	}
	q.BestPrice, q.PriceSource = c.bestAvailablePrice()
	return q
}

// SetCodeFor returns the code of the first printing with the given rarity,
// compared case-insensitively, or "" when no printing matches.
func (c Card) SetCodeFor(rarity string) string {
	rarity = strings.TrimSpace(rarity)
	for _, set := range c.CardSets {
		if strings.EqualFold(strings.TrimSpace(set.SetRarity), rarity) {
			return set.SetCode
		}
	}
	return ""
}

// bestAvailablePrice returns the first usable price in priority order:
// TCGplayer market, Cardmarket, then the first priced set listing.
func (c Card) bestAvailablePrice() (*decimal.Decimal, string) {
	if len(c.CardPrices) > 0 {
		if p, ok := parsePrice(c.CardPrices[0].TcgplayerPrice); ok {
			return &p, SourceTCGPlayer
		}
		if p, ok := parsePrice(c.CardPrices[0].CardmarketPrice); ok {
			return &p, SourceCardmarket
		}
	}
	for _, set := range c.CardSets {
		if p, ok := parsePrice(set.SetPrice); ok {
			return &p, SourceSetListing
		}
	}
	return nil, ""
}

// parsePrice treats blank, unparsable and non-positive values as unknown.
func parsePrice(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	p, err := decimal.NewFromString(raw)
	if err != nil || !p.IsPositive() {
		return decimal.Zero, false
	}
	return p, true
}
