package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"ygo-storefront-api/internal/cache"
	"ygo-storefront-api/internal/cart"
	"ygo-storefront-api/internal/catalog"
	"ygo-storefront-api/internal/config"
	"ygo-storefront-api/internal/handler"
	"ygo-storefront-api/internal/metrics"
	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/internal/repository"
	"ygo-storefront-api/internal/router"
	"ygo-storefront-api/internal/service"
	"ygo-storefront-api/pkg/logger"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(logger.Options{
		ServiceName: cfg.App.Name,
		Level:       logger.ParseLevel(cfg.Log.Level),
		Format:      cfg.Log.Format,
	})
	ctx := context.Background()
	log.Info(ctx, "starting", "version", cfg.App.Version, "environment", cfg.App.Environment)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Backing store (optional)
	var store repository.Store
	if cfg.Database.Enabled() {
		openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		s, err := repository.Open(openCtx, cfg.Database.DriverName(), cfg.Database.DSN(), cfg.Database.MongoDatabase, log)
		cancel()
		if err != nil {
			log.Warn(ctx, "backing store unavailable, running without it", "driver", cfg.Database.DriverName(), "error", err.Error())
		} else {
			store = s
			defer store.Close()
			log.Info(ctx, "backing store connected", "kind", store.Kind())
		}
	} else {
		log.Warn(ctx, "DATABASE_URL not set, inventory is empty and orders are kept in memory")
	}

	// Redis (optional)
	var redisClient *redis.Client
	if cfg.UsesRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn(ctx, "redis connection failed, falling back to memory", "addr", cfg.Cache.RedisAddress(), "error", err.Error())
			redisClient.Close()
			redisClient = nil
		} else {
			log.Info(ctx, "redis client initialized", "addr", cfg.Cache.RedisAddress())
			defer redisClient.Close()
		}
		cancel()
	}

	// Catalog cache
	var catalogCache cache.Cache
	cacheKind := "memory"
	if strings.EqualFold(cfg.Cache.Type, "redis") && redisClient != nil {
		catalogCache = cache.NewRedisCache(redisClient, "")
		cacheKind = "redis"
	} else {
		memCache := cache.NewMemoryCache()
		defer memCache.Close()
		catalogCache = memCache
	}

	gateway := catalog.NewGateway(catalog.Config{
		BaseURL:  cfg.Catalog.BaseURL,
		Timeout:  cfg.Catalog.Timeout,
		CacheTTL: cfg.Catalog.CacheTTL,
	}, catalogCache, m, log.Component("catalog"))

	// Cart storage
	var backend cart.Backend
	cartStorage := strings.ToLower(cfg.Cart.Storage)
	switch {
	case cartStorage == "redis" && redisClient != nil:
		backend = cart.NewRedisBackend(redisClient, "", cfg.Cart.TTL)
	case cartStorage == "file":
		backend = cart.NewFileBackend(cfg.Cart.Dir)
	default:
		cartStorage = "memory"
		backend = cart.NewMemoryBackend()
	}
	cartLog := log.Component("cart")
	carts := cart.NewManager(backend, cartLog, func(ctx context.Context, snapshot model.CartSnapshot) {
		cartLog.Debug(ctx, "cart changed", "lines", len(snapshot.Items), "count", snapshot.Count)
	})
	if cartStorage == "file" && cfg.Cart.TTL > 0 {
		cleanup := service.NewCleanupScheduler(carts, service.CleanupConfig{IdleThreshold: cfg.Cart.TTL}, log)
		cleanup.Start()
		defer cleanup.Stop()
	}

	// Services
	var inventoryRepo repository.InventoryRepository
	var orderRepo repository.OrderRepository
	storeKind := ""
	if store != nil {
		inventoryRepo = store
		orderRepo = store
		storeKind = store.Kind()
	}
	transientOrders := repository.NewMemoryOrderStore()

	inventoryService := service.NewInventoryService(inventoryRepo, m, log)
	orderService := service.NewOrderService(orderRepo, transientOrders, m, log)
	checkoutService := service.NewCheckoutService(gateway, orderService, cfg.Catalog.PriceConcurrency, log)
	catalogSync := service.NewCatalogSync(inventoryRepo, gateway, cfg.Catalog.SyncBatchSize, m, log)

	if store != nil && cfg.Catalog.SyncInterval > 0 {
		syncScheduler := service.NewScheduler("catalog_sync", cfg.Catalog.SyncInterval, 10*time.Minute, catalogSync.Run, log)
		syncScheduler.Start()
		defer syncScheduler.Stop()
	}

	r := router.New(router.Config{
		Handler:          handler.New(cfg.App.Name, cfg.App.Version, cfg.App.PingMessage, storeKind),
		InventoryHandler: handler.NewInventoryHandler(inventoryService, log),
		CatalogHandler:   handler.NewCatalogHandler(gateway, cfg.Catalog.DefaultArchetype, log),
		OrderHandler:     handler.NewOrderHandler(orderService, log),
		CartHandler:      handler.NewCartHandler(carts, checkoutService, log),
		AdminHandler:     handler.NewAdminHandler(store, transientOrders, cacheKind, cartStorage, log),
		SyncHandler:      handler.NewCatalogSyncHandler(catalogSync, log),
		AdminKey:         cfg.App.AdminKey,
		Logger:           log,
		Metrics:          m,
		Gatherer:         reg,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info(ctx, "server listening", "addr", cfg.Server.Address(), "ping_message", cfg.App.PingMessage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown error", err)
	}

	log.Info(ctx, "server stopped")
}
