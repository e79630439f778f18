package repository

import (
	"context"
	"fmt"

	"ygo-storefront-api/pkg/logger"
)

// Open connects the backing store for driver. Callers treat an error as
// "backing store absent" and degrade instead of exiting.
func Open(ctx context.Context, driver, dsn, mongoDatabase string, log *logger.Logger) (Store, error) {
	switch driver {
	case "postgres":
		return NewPostgresStore(ctx, dsn, log)
	case "mysql":
		return NewMySQLStore(ctx, dsn, log)
	case "sqlite":
		return NewSQLiteStore(ctx, dsn, log)
	case "mongodb":
		return NewMongoDBStore(ctx, dsn, mongoDatabase, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
