package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ygo-storefront-api/internal/cart"
	"ygo-storefront-api/internal/catalog"
	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/internal/repository"
)

type fakePrices struct {
	mu      sync.Mutex
	quotes  map[int64]*catalog.PriceQuote
	fail    map[int64]error
	calls   int
	onPrice func(ctx context.Context, cardID int64)
}

func (f *fakePrices) GetPrice(ctx context.Context, cardID int64) (*catalog.PriceQuote, error) {
	if f.onPrice != nil {
		f.onPrice(ctx, cardID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[cardID]; err != nil {
		return nil, err
	}
	if q, ok := f.quotes[cardID]; ok {
		return q, nil
	}
	return &catalog.PriceQuote{ID: cardID}, nil
}

func newCart(t *testing.T, lines ...model.CartLine) *cart.Store {
	t.Helper()
	store := cart.NewStore(cart.NewMemoryBackend().For("client-1"), nil)
	for _, l := range lines {
		_, err := store.Add(context.Background(), l.CardID, l.Qty)
		require.NoError(t, err)
	}
	return store
}

func TestCheckoutPricesLinesAndClearsCart(t *testing.T) {
	ctx := context.Background()
	prices := &fakePrices{quotes: map[int64]*catalog.PriceQuote{
		5: {ID: 5, BestPrice: price("1.50")},
	}}
	transient := repository.NewMemoryOrderStore()
	svc := NewCheckoutService(prices, NewOrderService(nil, transient, nil, nil), 2, nil)
	store := newCart(t, model.CartLine{CardID: 5, Qty: 2}, model.CartLine{CardID: 6, Qty: 1})

	order, err := svc.Checkout(ctx, store)
	require.NoError(t, err)

	require.Len(t, order.Lines, 2)
	assert.Equal(t, int64(5), order.Lines[0].CardID)
	assert.Equal(t, "1.50", order.Lines[0].UnitPrice.StringFixed(2))
	assert.Nil(t, order.Lines[1].UnitPrice, "unknown price stays absent")
	assert.Equal(t, model.StoredMemory, order.Stored)

	lines, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Len(t, transient.List(), 1)
}

func TestCheckoutEmptyCartIsInvalid(t *testing.T) {
	prices := &fakePrices{}
	svc := NewCheckoutService(prices, NewOrderService(nil, nil, nil, nil), 0, nil)

	_, err := svc.Checkout(context.Background(), newCart(t))
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.Zero(t, prices.calls)
}

func TestCheckoutUpstreamFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	prices := &fakePrices{fail: map[int64]error{
		6: fmt.Errorf("%w: status 503", catalog.ErrUpstreamUnavailable),
	}}
	transient := repository.NewMemoryOrderStore()
	svc := NewCheckoutService(prices, NewOrderService(nil, transient, nil, nil), 1, nil)
	store := newCart(t, model.CartLine{CardID: 5, Qty: 2}, model.CartLine{CardID: 6, Qty: 1})

	_, err := svc.Checkout(ctx, store)
	assert.ErrorIs(t, err, catalog.ErrUpstreamUnavailable)

	lines, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Empty(t, transient.List())
}

func TestCheckoutKeepsItemsAddedWhilePricing(t *testing.T) {
	ctx := context.Background()
	store := newCart(t, model.CartLine{CardID: 5, Qty: 1})

	var once sync.Once
	prices := &fakePrices{onPrice: func(ctx context.Context, cardID int64) {
		once.Do(func() {
			_, err := store.Add(ctx, 99, 3)
			assert.NoError(t, err)
			_, err = store.Add(ctx, 5, 2)
			assert.NoError(t, err)
		})
	}}
	svc := NewCheckoutService(prices, NewOrderService(nil, nil, nil, nil), 1, nil)

	order, err := svc.Checkout(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []model.OrderLine{{CardID: 5, Qty: 1}}, order.Lines)

	lines, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.CartLine{{CardID: 5, Qty: 2}, {CardID: 99, Qty: 3}}, lines)
}
