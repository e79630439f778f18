package repository

import (
	"context"

	"ygo-storefront-api/internal/model"
)

// InventoryRepository defines inventory ledger data access methods.
type InventoryRepository interface {
	// ListInventory returns ledger rows ordered by set code then card name.
	ListInventory(ctx context.Context, filter model.InventoryFilter) ([]model.InventoryRecord, error)

	// ApplyQuantities upserts the quantity of each variant in one unit of work.
	// Existing rows are overwritten (last writer wins).
	ApplyQuantities(ctx context.Context, updates []model.InventoryUpdate) error

	// AnnotateInventory sets set code and card name on existing rows and
	// returns how many rows changed. Quantities are untouched and no rows
	// are created.
	AnnotateInventory(ctx context.Context, details []model.VariantDetail) (int64, error)
}

// OrderRepository defines durable order storage.
type OrderRepository interface {
	// CreateOrder writes the order header and one row per line atomically.
	CreateOrder(ctx context.Context, order *model.OrderRecord) error

	// CountOrders returns the number of stored orders.
	CountOrders(ctx context.Context) (int64, error)
}

// Store is a backing store serving both the ledger and order intake.
type Store interface {
	InventoryRepository
	OrderRepository

	// Kind names the backend (sqlite, postgres, mysql, mongodb).
	Kind() string

	// GetStats returns statistics about the backing store.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the repository connection.
	Close() error
}
