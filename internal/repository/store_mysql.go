package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ygo-storefront-api/internal/migrate"
	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/pkg/logger"

	"github.com/go-sql-driver/mysql"
)

// MySQLStore implements Store using MySQL.
type MySQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewMySQLStore creates a MySQL store and applies migrations.
// dsn uses the driver format "user:pass@tcp(host:3306)/dbname"; a
// "mysql://" prefix is tolerated. parseTime is always enabled.
func NewMySQLStore(ctx context.Context, dsn string, log *logger.Logger) (*MySQLStore, error) {
	normalized, err := normalizeMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if _, err := migrate.Up(ctx, db, migrate.MySQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate MySQL: %w", err)
	}

	log.Info(ctx, "mysql store initialized")
	return &MySQLStore{db: db, log: log}, nil
}

// normalizeMySQLDSN parses a DSN and forces the options the store relies on.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(strings.TrimPrefix(dsn, "mysql://"))
	if err != nil {
		return "", fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Kind implements Store.
func (r *MySQLStore) Kind() string { return "mysql" }

// ListInventory returns ledger rows, optionally restricted to one card.
func (r *MySQLStore) ListInventory(ctx context.Context, filter model.InventoryFilter) ([]model.InventoryRecord, error) {
	query := `SELECT card_id, rarity, set_code, card_name, quantity, updated_at FROM inventory`
	var args []interface{}
	if filter.CardID != nil {
		query += ` WHERE card_id = ?`
		args = append(args, *filter.CardID)
	}
	query += ` ORDER BY COALESCE(set_code, ''), COALESCE(card_name, ''), card_id, rarity`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	return scanInventory(rows)
}

// ApplyQuantities upserts every update inside one transaction.
func (r *MySQLStore) ApplyQuantities(ctx context.Context, updates []model.InventoryUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inventory (card_id, rarity, quantity, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			quantity = VALUES(quantity),
			updated_at = VALUES(updated_at)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.Key.CardID, u.Key.Rarity, u.Quantity, now); err != nil {
			return fmt.Errorf("failed to upsert inventory %s: %w", u.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AnnotateInventory sets catalog display data on existing rows.
func (r *MySQLStore) AnnotateInventory(ctx context.Context, details []model.VariantDetail) (int64, error) {
	return annotateInventory(ctx, r.db, `
		UPDATE inventory SET set_code = ?, card_name = ?
		WHERE card_id = ? AND rarity = ?`, details)
}

// CreateOrder writes the order header and its lines in one transaction.
func (r *MySQLStore) CreateOrder(ctx context.Context, order *model.OrderRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO orders (id, created_at) VALUES (?, ?)`, order.ID, order.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_items (order_id, line_no, card_id, quantity, price, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, line := range order.Lines {
		if _, err := stmt.ExecContext(ctx, order.ID, i+1, line.CardID, line.Qty, priceValue(line.UnitPrice), order.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert order line %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountOrders returns the number of stored orders.
func (r *MySQLStore) CountOrders(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// GetStats returns statistics about the database.
func (r *MySQLStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var rows, units int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(quantity), 0) FROM inventory`).Scan(&rows, &units); err != nil {
		return nil, err
	}
	stats["inventory_rows"] = rows
	stats["inventory_units"] = units

	var orders int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders); err != nil {
		return nil, err
	}
	stats["orders"] = orders

	dbStats := r.db.Stats()
	stats["connections"] = map[string]interface{}{
		"open":     dbStats.OpenConnections,
		"in_use":   dbStats.InUse,
		"idle":     dbStats.Idle,
		"max_open": dbStats.MaxOpenConnections,
	}

	return stats, nil
}

// Close closes the database connection pool.
func (r *MySQLStore) Close() error {
	return r.db.Close()
}

// Ensure MySQLStore implements Store
var _ Store = (*MySQLStore)(nil)
