package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ygo-storefront-api/internal/handler"
	"ygo-storefront-api/internal/metrics"
	"ygo-storefront-api/internal/middleware"
	"ygo-storefront-api/pkg/logger"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler          *handler.Handler
	InventoryHandler *handler.InventoryHandler
	CatalogHandler   *handler.CatalogHandler
	OrderHandler     *handler.OrderHandler
	CartHandler      *handler.CartHandler
	AdminHandler     *handler.AdminHandler
	SyncHandler      *handler.CatalogSyncHandler // optional

	// AdminKey guards inventory writes and /api/admin when set.
	AdminKey string

	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // nil disables /metrics
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID(log))
	r.Use(middleware.Logging(log, cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", handler.ClientIDHeader, middleware.AdminKeyHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	adminOnly := middleware.RequireAdminKey(cfg.AdminKey)

	r.Route("/api", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/ping", cfg.Handler.Ping)
			r.Get("/health", cfg.Handler.Health)
			r.Get("/status", cfg.Handler.Status)
		}

		if cfg.InventoryHandler != nil {
			r.Get("/inventory", cfg.InventoryHandler.List)
			r.With(adminOnly).Post("/inventory", cfg.InventoryHandler.Apply)
		}

		if cfg.CatalogHandler != nil {
			r.Get("/cards", cfg.CatalogHandler.Search)
			r.Get("/card", cfg.CatalogHandler.Card)
			r.Get("/price", cfg.CatalogHandler.Price)
		}

		if cfg.OrderHandler != nil {
			r.Post("/order", cfg.OrderHandler.Submit)
		}

		if cfg.CartHandler != nil {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cfg.CartHandler.Get)
				r.Delete("/", cfg.CartHandler.Clear)
				r.Post("/items", cfg.CartHandler.Add)
				r.Put("/items/{cardId}", cfg.CartHandler.SetQuantity)
				r.Delete("/items/{cardId}", cfg.CartHandler.Remove)
				r.Post("/checkout", cfg.CartHandler.Checkout)
			})
		}

		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Get("/orders", cfg.AdminHandler.ListTransientOrders)
				if cfg.SyncHandler != nil {
					r.Post("/catalog-sync", cfg.SyncHandler.Run)
				}
			})
		}
	})

	return r
}
