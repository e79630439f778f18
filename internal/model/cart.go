package model

// CartLine is one card's desired purchase quantity. Qty is always >= 1.
type CartLine struct {
	CardID int64 `json:"id"`
	Qty    int   `json:"qty"`
}

// CartSnapshot is the cart state delivered to observers and API clients.
type CartSnapshot struct {
	Items []CartLine `json:"items"`
	Count int        `json:"count"`
}

// CountItems sums quantities across lines.
func CountItems(lines []CartLine) int {
	count := 0
	for _, l := range lines {
		count += l.Qty
	}
	return count
}
