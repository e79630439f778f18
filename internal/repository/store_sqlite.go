package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"ygo-storefront-api/internal/migrate"
	"ygo-storefront-api/internal/model"
	"ygo-storefront-api/pkg/logger"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store using SQLite.
// Writes are serialized; SQLite only supports one writer.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *logger.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database and migrates it.
// dsn is a file path, a file: URI, or ":memory:".
func NewSQLiteStore(ctx context.Context, dsn string, log *logger.Logger) (*SQLiteStore, error) {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	if dsn != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // an in-memory database lives as long as its connection

	if _, err := migrate.Up(ctx, db, migrate.SQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate SQLite: %w", err)
	}

	log.Info(ctx, "sqlite store initialized", "dsn", dsn)
	return &SQLiteStore{db: db, log: log}, nil
}

// Kind implements Store.
func (r *SQLiteStore) Kind() string { return "sqlite" }

// ListInventory returns ledger rows, optionally restricted to one card.
func (r *SQLiteStore) ListInventory(ctx context.Context, filter model.InventoryFilter) ([]model.InventoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

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
func (r *SQLiteStore) ApplyQuantities(ctx context.Context, updates []model.InventoryUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO inventory (card_id, rarity, quantity, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(card_id, rarity) DO UPDATE SET
			quantity = excluded.quantity,
			updated_at = excluded.updated_at`)
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
func (r *SQLiteStore) AnnotateInventory(ctx context.Context, details []model.VariantDetail) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return annotateInventory(ctx, r.db, `
		UPDATE inventory SET set_code = ?, card_name = ?
		WHERE card_id = ? AND rarity = ?`, details)
}

// CreateOrder writes the order header and its lines in one transaction.
func (r *SQLiteStore) CreateOrder(ctx context.Context, order *model.OrderRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

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
func (r *SQLiteStore) CountOrders(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// GetStats returns statistics about the database.
func (r *SQLiteStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

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

	// Database size (approximate from page count)
	var pageCount, pageSize int64
	r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (r *SQLiteStore) Close() error {
	return r.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
