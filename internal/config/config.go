package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Log      LogConfig
	Database DatabaseConfig
	Catalog  CatalogConfig
	Cache    CacheConfig
	Cart     CartConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"ygo-storefront-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	PingMessage string `envconfig:"PING_MESSAGE" default:"ping"`
	AdminKey    string `envconfig:"ADMIN_KEY" default:""` // empty disables the admin guard
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// DatabaseConfig holds the optional backing store settings.
// An empty URL means no backing store: inventory reads are empty, inventory
// writes are no-ops and orders go to transient storage.
type DatabaseConfig struct {
	URL           string `envconfig:"DATABASE_URL" default:""`
	Driver        string `envconfig:"DATABASE_DRIVER" default:"postgres"` // postgres, mysql, sqlite or mongodb
	SSL           bool   `envconfig:"DATABASE_SSL" default:"false"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"ygo_storefront"`
}

// CatalogConfig holds upstream card-data settings.
type CatalogConfig struct {
	BaseURL          string        `envconfig:"CATALOG_BASE_URL" default:"https://db.ygoprodeck.com/api/v7"`
	Timeout          time.Duration `envconfig:"CATALOG_TIMEOUT" default:"10s"`
	CacheTTL         time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`
	DefaultArchetype string        `envconfig:"CATALOG_DEFAULT_ARCHETYPE" default:"Blue-Eyes"`
	PriceConcurrency int           `envconfig:"CATALOG_PRICE_CONCURRENCY" default:"4"`

	// SyncInterval schedules the ledger display-data sync; 0 disables it.
	SyncInterval  time.Duration `envconfig:"CATALOG_SYNC_INTERVAL" default:"24h"`
	SyncBatchSize int           `envconfig:"CATALOG_SYNC_BATCH_SIZE" default:"50"`
}

// CacheConfig holds Redis settings shared by the catalog cache and cart storage.
type CacheConfig struct {
	Type string `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// CartConfig holds cart persistence settings.
type CartConfig struct {
	Storage string        `envconfig:"CART_STORAGE" default:"memory"` // memory, redis or file
	Dir     string        `envconfig:"CART_DIR" default:"./data/carts"`
	TTL     time.Duration `envconfig:"CART_TTL" default:"720h"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// UsesRedis reports whether any component is configured to use Redis.
func (c *Config) UsesRedis() bool {
	return strings.EqualFold(c.Cache.Type, "redis") || strings.EqualFold(c.Cart.Storage, "redis")
}

// Enabled reports whether a backing store is configured.
func (d *DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(d.URL) != ""
}

// DSN returns the connection string for the configured driver. For
// postgres, DATABASE_SSL forces sslmode=require when the URL does not
// already choose a mode.
func (d *DatabaseConfig) DSN() string {
	if !d.SSL || d.DriverName() != "postgres" {
		return d.URL
	}
	u, err := url.Parse(d.URL)
	if err != nil || u.Scheme == "" {
		if strings.Contains(d.URL, "sslmode=") {
			return d.URL
		}
		return strings.TrimSpace(d.URL + " sslmode=require")
	}
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "require")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// DriverName normalizes the configured driver.
func (d *DatabaseConfig) DriverName() string {
	switch strings.ToLower(strings.TrimSpace(d.Driver)) {
	case "postgres", "postgresql", "pg":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	case "mongodb", "mongo":
		return "mongodb"
	default:
		return strings.ToLower(d.Driver)
	}
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
