package repository

import (
	"context"
	"sync"

	"ygo-storefront-api/internal/model"
)

// MemoryOrderStore keeps orders for the lifetime of the process.
// It is the non-durable fallback used when no backing store is available
// or a durable write fails.
type MemoryOrderStore struct {
	mu     sync.RWMutex
	orders []model.OrderRecord
}

// NewMemoryOrderStore creates an empty transient order store.
func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{}
}

// CreateOrder appends a copy of the order.
func (s *MemoryOrderStore) CreateOrder(ctx context.Context, order *model.OrderRecord) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = append(s.orders, cloneOrder(order))
	return nil
}

// CountOrders returns the number of transient orders.
func (s *MemoryOrderStore) CountOrders(ctx context.Context) (int64, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.orders)), nil
}

// List returns copies of all transient orders in insertion order.
func (s *MemoryOrderStore) List() []model.OrderRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.OrderRecord, len(s.orders))
	for i := range s.orders {
		out[i] = cloneOrder(&s.orders[i])
	}
	return out
}

func cloneOrder(order *model.OrderRecord) model.OrderRecord {
	clone := *order
	clone.Lines = append([]model.OrderLine(nil), order.Lines...)
	return clone
}

var _ OrderRepository = (*MemoryOrderStore)(nil)
