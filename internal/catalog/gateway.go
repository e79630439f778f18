package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ygo-storefront-api/internal/cache"
	"ygo-storefront-api/internal/metrics"
	"ygo-storefront-api/pkg/logger"
)

// DefaultTimeout bounds every upstream call when Config.Timeout is unset.
const DefaultTimeout = 10 * time.Second

const maxBodyBytes = 64 << 20

var (
	// ErrUpstreamUnavailable means the upstream call failed, timed out or
	// answered with an unexpected status. It is never reported as an empty result.
	ErrUpstreamUnavailable = errors.New("upstream card source unavailable")

	// ErrCardNotFound means the upstream source answered but has no matching card.
	ErrCardNotFound = errors.New("card not found")
)

// Params is an opaque query bag forwarded verbatim to the upstream search.
// The upstream source decides which keys and values are valid.
type Params url.Values

// Encode returns the URL-encoded query.
func (p Params) Encode() string {
	return url.Values(p).Encode()
}

// Config configures a Gateway.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	CacheTTL   time.Duration // 0 disables response caching
	HTTPClient *http.Client
}

// Gateway is a read-only facade over the upstream card-data API.
type Gateway struct {
	baseURL  string
	timeout  time.Duration
	client   *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewGateway creates a gateway. c may be nil to disable caching.
func NewGateway(cfg Config, c cache.Cache, m *metrics.Metrics, log *logger.Logger) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Gateway{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		timeout:  timeout,
		client:   client,
		cache:    c,
		cacheTTL: cfg.CacheTTL,
		metrics:  m,
		log:      log,
	}
}

// upstreamEnvelope is the upstream response shape for both hits and misses.
type upstreamEnvelope struct {
	Data  []json.RawMessage `json:"data"`
	Error string            `json:"error,omitempty"`
}

// Search forwards params to the upstream card query and returns the raw
// result list.
func (g *Gateway) Search(ctx context.Context, params Params) ([]json.RawMessage, error) {
	return g.query(ctx, "search", params.Encode(), true)
}

// GetByID returns one card's full upstream record.
func (g *Gateway) GetByID(ctx context.Context, cardID int64) (json.RawMessage, error) {
	data, err := g.query(ctx, "card", idQuery(cardID), true)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrCardNotFound, cardID)
	}
	return data[0], nil
}

// GetPrice reads a card and projects its best available price. Prices are
// point-in-time reads and bypass the cache.
func (g *Gateway) GetPrice(ctx context.Context, cardID int64) (*PriceQuote, error) {
	data, err := g.query(ctx, "price", idQuery(cardID), false)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrCardNotFound, cardID)
	}

	var card Card
	if err := json.Unmarshal(data[0], &card); err != nil {
		return nil, fmt.Errorf("%w: malformed card record: %v", ErrUpstreamUnavailable, err)
	}
	quote := card.Quote()
	return &quote, nil
}

// Cards reads full records for ids in one upstream call, bypassing the
// cache. Cached lookups of the returned cards are evicted so the next read
// sees the same data. Ids the upstream source does not know are absent
// from the result; when none are known it fails with ErrCardNotFound.
func (g *Gateway) Cards(ctx context.Context, ids []int64) ([]Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	data, err := g.query(ctx, "sync", url.Values{"id": []string{strings.Join(parts, ",")}}.Encode(), false)
	if err != nil {
		return nil, err
	}

	cards := make([]Card, 0, len(data))
	for _, raw := range data {
		var card Card
		if err := json.Unmarshal(raw, &card); err != nil {
			return nil, fmt.Errorf("%w: malformed card record: %v", ErrUpstreamUnavailable, err)
		}
		cards = append(cards, card)
		g.evict(ctx, "card", idQuery(card.ID))
	}
	return cards, nil
}

func (g *Gateway) evict(ctx context.Context, op, rawQuery string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Delete(ctx, cacheKey(op, rawQuery)); err != nil {
		g.log.Warn(ctx, "catalog cache eviction failed", "op", op, "error", err.Error())
	}
}

func cacheKey(op, rawQuery string) string {
	return op + "?" + rawQuery
}

func idQuery(cardID int64) string {
	return url.Values{"id": []string{strconv.FormatInt(cardID, 10)}}.Encode()
}

func (g *Gateway) query(ctx context.Context, op, rawQuery string, cacheable bool) ([]json.RawMessage, error) {
	key := cacheKey(op, rawQuery)
	useCache := cacheable && g.cache != nil && g.cacheTTL > 0

	if useCache {
		if cached, err := g.cache.Get(ctx, key); err == nil {
			var data []json.RawMessage
			if err := json.Unmarshal(cached, &data); err == nil {
				g.metrics.ObserveUpstream(op, metrics.OutcomeCacheHit, 0)
				return data, nil
			}
		}
	}

	start := time.Now()
	data, err := g.fetch(ctx, rawQuery)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		g.metrics.ObserveUpstream(op, metrics.OutcomeOK, elapsed)
	case errors.Is(err, ErrCardNotFound):
		g.metrics.ObserveUpstream(op, metrics.OutcomeNotFound, elapsed)
		return nil, err
	default:
		g.metrics.ObserveUpstream(op, metrics.OutcomeUnavailable, elapsed)
		g.log.Warn(ctx, "catalog upstream call failed", "op", op, "error", err.Error(), "elapsed_ms", elapsed.Milliseconds())
		return nil, err
	}

	if useCache {
		if encoded, err := json.Marshal(data); err == nil {
			if err := g.cache.Set(ctx, key, encoded, g.cacheTTL); err != nil {
				g.log.Warn(ctx, "catalog cache write failed", "op", op, "error", err.Error())
			}
		}
	}
	return data, nil
}

// fetch performs one bounded GET against cardinfo.php.
func (g *Gateway) fetch(ctx context.Context, rawQuery string) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	endpoint := g.baseURL + "/cardinfo.php"
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUpstreamUnavailable, err)
	}

	var env upstreamEnvelope
	decodeErr := json.Unmarshal(body, &env)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if decodeErr != nil {
			return nil, fmt.Errorf("%w: malformed response: %v", ErrUpstreamUnavailable, decodeErr)
		}
		if env.Data == nil {
			env.Data = []json.RawMessage{}
		}
		return env.Data, nil
	case (resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound) && decodeErr == nil && env.Error != "":
		// The upstream answers "no card matching your query" with a 400.
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, env.Error)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
}
