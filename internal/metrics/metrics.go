package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Upstream call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
	OutcomeCacheHit    = "cache_hit"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics, or one
// built without a registerer, silently drops observations.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	ordersSubmitted  *prometheus.CounterVec
	inventoryApplied prometheus.Counter
	inventorySkipped prometheus.Counter
	catalogSynced    prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}

	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_upstream_requests_total",
			Help: "Catalog gateway calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "catalog_upstream_duration_seconds",
			Help:    "Latency of calls to the upstream card source.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		ordersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_submitted_total",
			Help: "Accepted orders by where they were stored.",
		}, []string{"stored"}),
		inventoryApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_updates_applied_total",
			Help: "Inventory quantity updates written to the ledger.",
		}),
		inventorySkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_updates_skipped_total",
			Help: "Inventory quantity updates dropped by validation.",
		}),
		catalogSynced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_sync_rows_updated_total",
			Help: "Inventory rows whose catalog display data was refreshed.",
		}),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.upstreamRequests,
		m.upstreamDuration,
		m.ordersSubmitted,
		m.inventoryApplied,
		m.inventorySkipped,
		m.catalogSynced,
	)
	return m
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveUpstream records one catalog gateway call. Cache hits carry no latency.
func (m *Metrics) ObserveUpstream(op, outcome string, d time.Duration) {
	if m == nil || m.upstreamRequests == nil {
		return
	}
	op = normalizeLabel(op)
	m.upstreamRequests.WithLabelValues(op, outcome).Inc()
	if outcome != OutcomeCacheHit {
		m.upstreamDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

// IncOrder counts an accepted order.
func (m *Metrics) IncOrder(stored string) {
	if m == nil || m.ordersSubmitted == nil {
		return
	}
	m.ordersSubmitted.WithLabelValues(normalizeLabel(stored)).Inc()
}

// AddInventoryUpdates counts applied and skipped ledger updates of one batch.
func (m *Metrics) AddInventoryUpdates(applied, skipped int) {
	if m == nil || m.inventoryApplied == nil {
		return
	}
	m.inventoryApplied.Add(float64(applied))
	m.inventorySkipped.Add(float64(skipped))
}

// AddCatalogSync counts ledger rows annotated by one catalog sync run.
func (m *Metrics) AddCatalogSync(updated int64) {
	if m == nil || m.catalogSynced == nil {
		return
	}
	m.catalogSynced.Add(float64(updated))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
