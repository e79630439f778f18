package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ygo-storefront-api/internal/cart"
	"ygo-storefront-api/internal/catalog"
	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/pkg/logger"
)

// DefaultPriceConcurrency bounds parallel price lookups during checkout.
const DefaultPriceConcurrency = 4

// PriceSource reads point-in-time price quotes.
type PriceSource interface {
	GetPrice(ctx context.Context, cardID int64) (*catalog.PriceQuote, error)
}

// CheckoutService turns a client's cart into an order.
type CheckoutService struct {
	prices      PriceSource
	orders      *OrderService
	concurrency int
	log         *logger.Logger
}

// NewCheckoutService creates a checkout service.
func NewCheckoutService(prices PriceSource, orders *OrderService, concurrency int, log *logger.Logger) *CheckoutService {
	if concurrency <= 0 {
		concurrency = DefaultPriceConcurrency
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CheckoutService{
		prices:      prices,
		orders:      orders,
		concurrency: concurrency,
		log:         log.Component("checkout"),
	}
}

// Checkout prices every cart line, submits the order and removes the
// ordered quantities from the cart. Lines added while pricing was in flight
// stay in the cart. Any failed price lookup aborts before anything is
// persisted and leaves the cart untouched.
func (s *CheckoutService) Checkout(ctx context.Context, store *cart.Store) (*model.OrderRecord, error) {
	lines, err := store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidOrder)
	}

	quotes := make([]*catalog.PriceQuote, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, line := range lines {
		i, line := i, line
		g.Go(func() error {
			q, err := s.prices.GetPrice(gctx, line.CardID)
			if err != nil {
				return fmt.Errorf("price card %d: %w", line.CardID, err)
			}
			quotes[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	orderLines := make([]model.OrderLine, len(lines))
	for i, line := range lines {
		orderLines[i] = model.OrderLine{
			CardID:    line.CardID,
			Qty:       line.Qty,
			UnitPrice: quotes[i].BestPrice,
		}
	}

	order, err := s.orders.Submit(ctx, orderLines)
	if err != nil {
		return nil, err
	}

	if _, err := store.Deduct(ctx, lines); err != nil {
		s.log.Warn(ctx, "order stored but cart could not be updated", "order_id", order.ID, "error", err.Error())
	}
	return order, nil
}
