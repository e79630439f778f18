package handler

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"ygo-storefront-api/internal/repository"
	"ygo-storefront-api/pkg/logger"
	"ygo-storefront-api/pkg/response"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	store       repository.Store // nil when no backing store is attached
	transient   *repository.MemoryOrderStore
	cacheKind   string
	cartStorage string
	startTime   time.Time
	log         *logger.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	store repository.Store,
	transient *repository.MemoryOrderStore,
	cacheKind string,
	cartStorage string,
	log *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		store:       store,
		transient:   transient,
		cacheKind:   cacheKind,
		cartStorage: cartStorage,
		startTime:   time.Now(),
		log:         log,
	}
}

// GetStats handles GET /api/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["cache"] = h.cacheKind
	stats["cart_storage"] = h.cartStorage

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.store != nil {
		storeStats, err := h.store.GetStats(ctx)
		if err == nil {
			storeStats["status"] = "connected"
			storeStats["kind"] = h.store.Kind()
			stats["store"] = storeStats
		} else {
			h.log.Warn(ctx, "store stats unavailable", "error", err.Error())
			stats["store"] = map[string]interface{}{
				"kind":   h.store.Kind(),
				"status": "error",
				"error":  err.Error(),
			}
		}
	} else {
		stats["store"] = map[string]interface{}{
			"status": "not_configured",
		}
	}

	transient, _ := h.transient.CountOrders(ctx)
	stats["transient_orders"] = transient

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// ListTransientOrders handles GET /api/admin/orders?page=&limit=
// It pages through orders held in memory because no durable write succeeded.
func (h *AdminHandler) ListTransientOrders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	orders := h.transient.List()
	total := len(orders)
	start := total
	if page-1 <= total/limit {
		start = min((page-1)*limit, total)
	}
	end := min(start+limit, total)

	response.OK(w, map[string]interface{}{
		"orders": orders[start:end],
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

// CatalogSyncer refreshes ledger display data from the catalog.
type CatalogSyncer interface {
	Run(ctx context.Context) (int64, error)
}

// CatalogSyncHandler triggers a catalog sync on demand.
type CatalogSyncHandler struct {
	syncer CatalogSyncer
	log    *logger.Logger
}

// NewCatalogSyncHandler creates a new catalog sync handler.
func NewCatalogSyncHandler(syncer CatalogSyncer, log *logger.Logger) *CatalogSyncHandler {
	return &CatalogSyncHandler{syncer: syncer, log: log}
}

// Run handles POST /api/admin/catalog-sync
func (h *CatalogSyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	updated, err := h.syncer.Run(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"updated": updated,
	})
}
