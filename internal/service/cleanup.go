package service

import (
	"context"
	"time"

	"ygo-storefront-api/pkg/logger"
)

// Sweeper removes carts idle for longer than a threshold.
type Sweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (int64, error)
}

// CleanupConfig holds configuration for the cleanup scheduler.
type CleanupConfig struct {
	// IdleThreshold is how long a cart may go unwritten before removal.
	IdleThreshold time.Duration

	// Interval is how often the sweep runs. Default: 1 hour.
	Interval time.Duration
}

// NewCleanupScheduler periodically expires idle carts on storages without
// native expiry.
func NewCleanupScheduler(sweeper Sweeper, config CleanupConfig, log *logger.Logger) *Scheduler {
	if config.IdleThreshold == 0 {
		config.IdleThreshold = 30 * 24 * time.Hour
	}
	if config.Interval == 0 {
		config.Interval = time.Hour
	}

	return NewScheduler("cart_cleanup", config.Interval, 5*time.Minute, func(ctx context.Context) (int64, error) {
		return sweeper.Sweep(ctx, config.IdleThreshold)
	}, log)
}
