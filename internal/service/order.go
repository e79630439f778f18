package service

import (
	"context"
	"fmt"
	"time"

	"ygo-storefront-api/internal/metrics"
	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/internal/repository"
	"ygo-storefront-api/pkg/logger"
	"ygo-storefront-api/pkg/uid"
)

// OrderService persists checkout results. Orders go to the durable store
// when one is attached and the write succeeds, otherwise to the transient
// in-process store.
type OrderService struct {
	durable   repository.OrderRepository
	transient *repository.MemoryOrderStore
	metrics   *metrics.Metrics
	log       *logger.Logger
	now       func() time.Time
}

// NewOrderService creates an order service. durable may be nil.
func NewOrderService(durable repository.OrderRepository, transient *repository.MemoryOrderStore, m *metrics.Metrics, log *logger.Logger) *OrderService {
	if transient == nil {
		transient = repository.NewMemoryOrderStore()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &OrderService{
		durable:   durable,
		transient: transient,
		metrics:   m,
		log:       log.Component("orders"),
		now:       time.Now,
	}
}

// Transient exposes the fallback store for admin statistics.
func (s *OrderService) Transient() *repository.MemoryOrderStore {
	return s.transient
}

// Submit validates lines and records one order. An empty line set fails
// with ErrInvalidOrder and nothing is written.
func (s *OrderService) Submit(ctx context.Context, lines []model.OrderLine) (*model.OrderRecord, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrInvalidOrder)
	}
	for i, l := range lines {
		switch {
		case l.CardID <= 0:
			return nil, fmt.Errorf("%w: item %d: id must be a positive integer", ErrInvalidInput, i)
		case l.Qty < 1:
			return nil, fmt.Errorf("%w: item %d: qty must be at least 1", ErrInvalidInput, i)
		case l.UnitPrice != nil && l.UnitPrice.IsNegative():
			return nil, fmt.Errorf("%w: item %d: price must not be negative", ErrInvalidInput, i)
		case l.UnitPrice != nil && !model.PriceFits(*l.UnitPrice):
			return nil, fmt.Errorf("%w: item %d: price must have at most %d integer and %d decimal digits",
				ErrInvalidInput, i, model.PriceIntDigits, model.PriceScale)
		}
	}

	order := &model.OrderRecord{
		ID:        uid.NewOrderID(),
		CreatedAt: s.now().UTC(),
		Lines:     append([]model.OrderLine(nil), lines...),
	}

	if s.durable != nil {
		order.Stored = model.StoredDB
		err := s.durable.CreateOrder(ctx, order)
		if err == nil {
			s.recorded(ctx, order)
			return order, nil
		}
		s.log.Warn(ctx, "durable order write failed, keeping order in memory", "order_id", order.ID, "error", err.Error())
	}

	order.Stored = model.StoredMemory
	if err := s.transient.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}
	s.recorded(ctx, order)
	return order, nil
}

func (s *OrderService) recorded(ctx context.Context, order *model.OrderRecord) {
	s.metrics.IncOrder(order.Stored)
	s.log.Info(ctx, "order submitted",
		"order_id", order.ID,
		"stored", order.Stored,
		"lines", len(order.Lines),
		"total", order.Total().StringFixed(2),
	)
}
