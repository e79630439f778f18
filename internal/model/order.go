package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Where an order ended up.
const (
	StoredDB     = "db"
	StoredMemory = "memory"
)

// Order prices are stored exactly: DECIMAL(34, 10) in MySQL and Decimal128
// in MongoDB, which holds 34 significant digits.
const (
	PriceScale     = 10
	PriceIntDigits = 24
)

var priceLimit = decimal.New(1, PriceIntDigits)

// PriceFits reports whether p can be stored without rounding.
func PriceFits(p decimal.Decimal) bool {
	return p.Equal(p.Truncate(PriceScale)) && p.Abs().LessThan(priceLimit)
}

// OrderLine is one item of an order. UnitPrice is the price captured at
// checkout; nil means the price was unknown.
type OrderLine struct {
	CardID    int64            `json:"id"`
	Qty       int              `json:"qty"`
	UnitPrice *decimal.Decimal `json:"price,omitempty"`
}

// OrderRecord is an immutable checkout result.
type OrderRecord struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"createdAt"`
	Lines     []OrderLine `json:"items"`
	Stored    string      `json:"stored"`
}

// Total sums qty * price over lines with a known price.
func (o OrderRecord) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Lines {
		if line.UnitPrice == nil {
			continue
		}
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
	}
	return total
}
