package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ygo-storefront-api/internal/cart"
	"ygo-storefront-api/internal/catalog"
	"ygo-storefront-api/internal/handler"
	"ygo-storefront-api/internal/metrics"
	"ygo-storefront-api/internal/repository"
	"ygo-storefront-api/internal/service"
	"ygo-storefront-api/pkg/logger"
)

type stubCards struct {
	lastParams catalog.Params
	down       bool
}

func (s *stubCards) Search(ctx context.Context, params catalog.Params) ([]json.RawMessage, error) {
	s.lastParams = params
	if s.down {
		return nil, catalog.ErrUpstreamUnavailable
	}
	return []json.RawMessage{json.RawMessage(`{"id":89631139,"name":"Blue-Eyes White Dragon"}`)}, nil
}

func (s *stubCards) GetByID(ctx context.Context, cardID int64) (json.RawMessage, error) {
	if cardID == 404 {
		return nil, fmt.Errorf("%w: id 404", catalog.ErrCardNotFound)
	}
	return json.RawMessage(fmt.Sprintf(`{"id":%d}`, cardID)), nil
}

func (s *stubCards) GetPrice(ctx context.Context, cardID int64) (*catalog.PriceQuote, error) {
	if s.down {
		return nil, catalog.ErrUpstreamUnavailable
	}
	p := decimal.RequireFromString("2.50")
	return &catalog.PriceQuote{ID: cardID, Name: "Card", Image: "img", BestPrice: &p, PriceSource: catalog.SourceTCGPlayer}, nil
}

type stubSync struct {
	runs int
	err  error
}

func (s *stubSync) Run(ctx context.Context) (int64, error) {
	s.runs++
	if s.err != nil {
		return 0, s.err
	}
	return 3, nil
}

type testEnv struct {
	srv       *httptest.Server
	cards     *stubCards
	sync      *stubSync
	transient *repository.MemoryOrderStore
	reg       *prometheus.Registry
}

func newTestEnv(t *testing.T, withStore bool, adminKey string) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logger.Nop()

	var store repository.Store
	var invRepo repository.InventoryRepository
	var orderRepo repository.OrderRepository
	if withStore {
		s, err := repository.NewSQLiteStore(ctx, ":memory:", log)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		store, invRepo, orderRepo = s, s, s
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	cards := &stubCards{}
	syncer := &stubSync{}
	transient := repository.NewMemoryOrderStore()
	orders := service.NewOrderService(orderRepo, transient, m, log)

	r := New(Config{
		Handler:          handler.New("ygo-storefront-api", "test", "pong from test", ""),
		InventoryHandler: handler.NewInventoryHandler(service.NewInventoryService(invRepo, m, log), log),
		CatalogHandler:   handler.NewCatalogHandler(cards, "Blue-Eyes", log),
		OrderHandler:     handler.NewOrderHandler(orders, log),
		CartHandler: handler.NewCartHandler(
			cart.NewManager(cart.NewMemoryBackend(), log),
			service.NewCheckoutService(cards, orders, 2, log),
			log,
		),
		AdminHandler: handler.NewAdminHandler(store, transient, "memory", "memory", log),
		SyncHandler:  handler.NewCatalogSyncHandler(syncer, log),
		AdminKey:     adminKey,
		Logger:       log,
		Metrics:      m,
		Gatherer:     reg,
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, cards: cards, sync: syncer, transient: transient, reg: reg}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	errObj, _ := body["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func TestPing(t *testing.T) {
	env := newTestEnv(t, false, "")

	status, body := env.do(t, http.MethodGet, "/api/ping", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pong from test", body["message"])
}

func TestStatusReportsMissingStore(t *testing.T) {
	env := newTestEnv(t, false, "")

	status, body := env.do(t, http.MethodGet, "/api/status", "", nil)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	checks := data["checks"].(map[string]any)
	assert.Equal(t, "not_configured", checks["database"])
}

func TestInventoryRoundTrip(t *testing.T) {
	env := newTestEnv(t, true, "")

	status, body := env.do(t, http.MethodPost, "/api/inventory",
		`{"updates":{"5::Ultra Rare":3,"5::bogus":-1,"6::":"2"}}`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"5::Ultra Rare": 3.0, "6::N/A": 2.0}, body["applied"])
	assert.Len(t, body["inventory"], 2)

	status, body = env.do(t, http.MethodGet, "/api/inventory?cardId=5", "", nil)
	require.Equal(t, http.StatusOK, status)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "5::Ultra Rare", row["key"])
	assert.Equal(t, 3.0, row["quantity"])
}

func TestInventoryWithoutStore(t *testing.T) {
	env := newTestEnv(t, false, "")

	status, body := env.do(t, http.MethodPost, "/api/inventory", `{"updates":{"5::Rare":3}}`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{}, body["applied"])

	status, body = env.do(t, http.MethodGet, "/api/inventory", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["data"])
}

func TestInventoryRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, true, "")

	status, body := env.do(t, http.MethodPost, "/api/inventory", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(body))

	status, body = env.do(t, http.MethodPost, "/api/inventory", `{"updates":`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", errorCode(body))

	status, _ = env.do(t, http.MethodGet, "/api/inventory?cardId=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminKeyGuardsWrites(t *testing.T) {
	env := newTestEnv(t, true, "s3cret")

	status, body := env.do(t, http.MethodPost, "/api/inventory", `{"updates":{"5::Rare":1}}`, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = env.do(t, http.MethodPost, "/api/inventory", `{"updates":{"5::Rare":1}}`, map[string]string{"X-Admin-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodPost, "/api/inventory", `{"updates":{"5::Rare":1}}`, map[string]string{"X-Admin-Key": "s3cret"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/api/inventory", "", nil)
	assert.Equal(t, http.StatusOK, status, "reads stay open")

	status, _ = env.do(t, http.MethodGet, "/api/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = env.do(t, http.MethodGet, "/api/admin/stats", "", map[string]string{"X-Admin-Key": "s3cret"})
	require.Equal(t, http.StatusOK, status)
	store := body["data"].(map[string]any)["store"].(map[string]any)
	assert.Equal(t, "connected", store["status"])
	assert.Equal(t, "sqlite", store["kind"])
}

func TestCatalogRoutes(t *testing.T) {
	env := newTestEnv(t, false, "")

	status, body := env.do(t, http.MethodGet, "/api/cards", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, catalog.Params{"archetype": {"Blue-Eyes"}}, env.cards.lastParams)

	status, _ = env.do(t, http.MethodGet, "/api/cards?fname=Magician&level=7", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, catalog.Params{"fname": {"Magician"}, "level": {"7"}}, env.cards.lastParams)

	status, body = env.do(t, http.MethodGet, "/api/card?id=46986414", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{map[string]any{"id": 46986414.0}}, body["data"])

	status, body = env.do(t, http.MethodGet, "/api/card?id=404", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = env.do(t, http.MethodGet, "/api/price?id=5", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5.0, body["id"])
	assert.Equal(t, "2.5", body["bestPrice"])

	status, _ = env.do(t, http.MethodGet, "/api/price", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	env.cards.down = true
	status, body = env.do(t, http.MethodGet, "/api/cards?fname=x", "", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", errorCode(body))
}

func TestOrderRoute(t *testing.T) {
	env := newTestEnv(t, false, "")

	status, body := env.do(t, http.MethodPost, "/api/order", `{"items":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ORDER", errorCode(body))

	status, body = env.do(t, http.MethodPost, "/api/order", `{"items":[{"id":5,"qty":0}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(body))

	status, body = env.do(t, http.MethodPost, "/api/order", `{"items":[{"id":5,"qty":2,"price":1.5,"name":"Blue-Eyes"}]}`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "memory", body["stored"])
	assert.NotEmpty(t, body["orderId"])
	assert.Len(t, env.transient.List(), 1)
}

func TestOrderRouteWithStore(t *testing.T) {
	env := newTestEnv(t, true, "")

	status, body := env.do(t, http.MethodPost, "/api/order", `{"items":[{"id":5,"qty":2,"price":"1.50"}]}`, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "db", body["stored"])
	assert.Empty(t, env.transient.List())
}

func TestCartFlowAndCheckout(t *testing.T) {
	env := newTestEnv(t, false, "")
	client := map[string]string{"X-Client-ID": "browser-1"}

	status, body := env.do(t, http.MethodPost, "/api/cart/items", `{"id":5,"qty":2}`, client)
	require.Equal(t, http.StatusOK, status)
	status, body = env.do(t, http.MethodPost, "/api/cart/items", `{"id":5,"qty":3}`, client)
	require.Equal(t, http.StatusOK, status)
	status, body = env.do(t, http.MethodPost, "/api/cart/items", `{"id":6}`, client)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 6.0, body["data"].(map[string]any)["count"])

	status, body = env.do(t, http.MethodPut, "/api/cart/items/6", `{"qty":4}`, client)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 9.0, body["data"].(map[string]any)["count"])

	status, body = env.do(t, http.MethodPut, "/api/cart/items/6", `{"qty":0}`, client)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5.0, body["data"].(map[string]any)["count"])

	status, body = env.do(t, http.MethodGet, "/api/cart", "", map[string]string{"X-Client-ID": "browser-2"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0.0, body["data"].(map[string]any)["count"])

	status, body = env.do(t, http.MethodPost, "/api/cart/checkout", "", client)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "memory", body["stored"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, map[string]any{"id": 5.0, "qty": 5.0, "price": "2.5"}, items[0])

	status, body = env.do(t, http.MethodGet, "/api/cart", "", client)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0.0, body["data"].(map[string]any)["count"])

	status, body = env.do(t, http.MethodPost, "/api/cart/checkout", "", client)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_ORDER", errorCode(body))
}

func TestCheckoutUpstreamDownKeepsCart(t *testing.T) {
	env := newTestEnv(t, false, "")
	client := map[string]string{"X-Client-ID": "browser-1"}

	status, _ := env.do(t, http.MethodPost, "/api/cart/items", `{"id":5}`, client)
	require.Equal(t, http.StatusOK, status)

	env.cards.down = true
	status, body := env.do(t, http.MethodPost, "/api/cart/checkout", "", client)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", errorCode(body))

	status, body = env.do(t, http.MethodGet, "/api/cart", "", client)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["data"].(map[string]any)["count"])
	assert.Empty(t, env.transient.List())
}

func TestCartRequiresClientID(t *testing.T) {
	env := newTestEnv(t, false, "")

	status, body := env.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "BAD_REQUEST", errorCode(body))

	status, body = env.do(t, http.MethodPost, "/api/cart/items", `{"id":0}`, map[string]string{"X-Client-ID": "c"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(body))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, false, "")
	env.do(t, http.MethodGet, "/api/ping", "", nil)

	resp, err := http.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `http_requests_total{method="GET",route="/api/ping",status="200"} 1`)
}

func TestRequestIDIsEchoed(t *testing.T) {
	env := newTestEnv(t, false, "")

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))

	resp2, err := http.Get(env.srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.NotEmpty(t, resp2.Header.Get("X-Request-ID"))
}

func TestAdminOrdersPaging(t *testing.T) {
	env := newTestEnv(t, false, "")
	for i := 0; i < 25; i++ {
		status, _ := env.do(t, http.MethodPost, "/api/order", fmt.Sprintf(`{"items":[{"id":%d,"qty":1}]}`, i+1), nil)
		require.Equal(t, http.StatusOK, status)
	}
	ids := make([]any, 0, 25)
	for _, o := range env.transient.List() {
		ids = append(ids, o.ID)
	}

	page := func(query string) map[string]any {
		t.Helper()
		status, body := env.do(t, http.MethodGet, "/api/admin/orders"+query, "", nil)
		require.Equal(t, http.StatusOK, status)
		return body["data"].(map[string]any)
	}
	orderIDs := func(data map[string]any) []any {
		var out []any
		for _, o := range data["orders"].([]any) {
			out = append(out, o.(map[string]any)["id"])
		}
		return out
	}

	data := page("")
	assert.Equal(t, float64(25), data["total"])
	assert.Equal(t, float64(1), data["page"])
	assert.Equal(t, float64(20), data["limit"])
	assert.Equal(t, ids[:20], orderIDs(data))

	data = page("?page=2")
	assert.Equal(t, ids[20:], orderIDs(data))

	data = page("?page=3&limit=10")
	assert.Equal(t, ids[20:], orderIDs(data))

	for _, query := range []string{"?page=4&limit=10", "?page=99", "?page=9223372036854775807&limit=100"} {
		data = page(query)
		assert.Empty(t, data["orders"], query)
		assert.NotNil(t, data["orders"], "%s: empty page is a list, not null", query)
		assert.Equal(t, float64(25), data["total"], query)
	}

	for _, query := range []string{"?limit=0", "?limit=-5", "?limit=101", "?limit=abc"} {
		data = page(query)
		assert.Equal(t, float64(20), data["limit"], query)
		assert.Len(t, data["orders"], 20, query)
	}

	data = page("?page=-3&limit=100")
	assert.Equal(t, float64(1), data["page"])
	assert.Equal(t, float64(100), data["limit"])
	assert.Len(t, data["orders"], 25)
}

func TestAdminCatalogSync(t *testing.T) {
	env := newTestEnv(t, true, "s3cret")

	status, _ := env.do(t, http.MethodPost, "/api/admin/catalog-sync", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Zero(t, env.sync.runs)

	status, body := env.do(t, http.MethodPost, "/api/admin/catalog-sync", "", map[string]string{"X-Admin-Key": "s3cret"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(3), body["data"].(map[string]any)["updated"])
	assert.Equal(t, 1, env.sync.runs)

	env.sync.err = fmt.Errorf("fetch cards: %w", catalog.ErrUpstreamUnavailable)
	status, body = env.do(t, http.MethodPost, "/api/admin/catalog-sync", "", map[string]string{"X-Admin-Key": "s3cret"})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", errorCode(body))
}
