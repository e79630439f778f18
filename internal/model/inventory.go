package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// VariantKeyDelimiter joins card id and rarity in the wire form of a variant key.
	VariantKeyDelimiter = "::"

	// UnknownRarity is stored when a variant has no rarity label.
	UnknownRarity = "N/A"

	// MaxRarityLength is the longest rarity label, in characters, the
	// ledger stores.
	MaxRarityLength = 128
)

// VariantKey is the composite primary key of an inventory row.
// Its string form "<cardId>::<rarity>" exists only at the JSON boundary.
type VariantKey struct {
	CardID int64
	Rarity string
}

// NewVariantKey builds a key, defaulting a blank rarity to UnknownRarity.
func NewVariantKey(cardID int64, rarity string) VariantKey {
	rarity = strings.TrimSpace(rarity)
	if rarity == "" {
		rarity = UnknownRarity
	}
	return VariantKey{CardID: cardID, Rarity: rarity}
}

// ParseVariantKey decodes "<cardId>::<rarity>". The card id is numeric, so
// the first delimiter always ends it; a rarity may itself contain "::".
func ParseVariantKey(s string) (VariantKey, error) {
	idPart, rarity, found := strings.Cut(s, VariantKeyDelimiter)
	if !found {
		rarity = ""
	}
	cardID, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil || cardID <= 0 {
		return VariantKey{}, fmt.Errorf("invalid variant key %q: card id must be a positive integer", s)
	}
	key := NewVariantKey(cardID, rarity)
	if utf8.RuneCountInString(key.Rarity) > MaxRarityLength {
		return VariantKey{}, fmt.Errorf("invalid variant key %q: rarity longer than %d characters", s, MaxRarityLength)
	}
	return key, nil
}

// String returns the wire form of the key.
func (k VariantKey) String() string {
	rarity := k.Rarity
	if rarity == "" {
		rarity = UnknownRarity
	}
	return strconv.FormatInt(k.CardID, 10) + VariantKeyDelimiter + rarity
}

// MarshalText lets VariantKey serve as a JSON object key.
func (k VariantKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *VariantKey) UnmarshalText(text []byte) error {
	parsed, err := ParseVariantKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// CardVariant identifies one purchasable print of a card.
type CardVariant struct {
	CardID  int64  `json:"cardId"`
	Rarity  string `json:"rarity"`
	SetCode string `json:"setCode,omitempty"`
}

// VariantKey returns the variant's inventory key.
func (v CardVariant) VariantKey() VariantKey {
	return NewVariantKey(v.CardID, v.Rarity)
}

// InventoryRecord is one row of the inventory ledger.
type InventoryRecord struct {
	CardVariant
	Key       VariantKey `json:"key"`
	CardName  string     `json:"cardName,omitempty"`
	Quantity  int        `json:"quantity"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// InventoryFilter restricts a ledger listing.
type InventoryFilter struct {
	CardID *int64
}

// Matches reports whether a record passes the filter.
func (f InventoryFilter) Matches(rec InventoryRecord) bool {
	return f.CardID == nil || rec.CardID == *f.CardID
}

// VariantDetail carries catalog display data for one ledger row.
type VariantDetail struct {
	Key      VariantKey
	SetCode  string
	CardName string
}

// InventoryUpdate sets the quantity on hand for one variant.
type InventoryUpdate struct {
	Key      VariantKey
	Quantity int
}
