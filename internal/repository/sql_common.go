package repository

import (
	"context"
	"database/sql"
	"fmt"

	"ygo-storefront-api/internal/model"

	"github.com/shopspring/decimal"
)

// priceValue converts an optional price to a driver value without
// rounding; unknown prices are stored as NULL.
func priceValue(p *decimal.Decimal) interface{} {
	if p == nil {
		return nil
	}
	return p.String()
}

// scanInventory reads rows selected as
// card_id, rarity, set_code, card_name, quantity, updated_at.
func scanInventory(rows *sql.Rows) ([]model.InventoryRecord, error) {
	records := []model.InventoryRecord{}
	for rows.Next() {
		var (
			rec      model.InventoryRecord
			setCode  sql.NullString
			cardName sql.NullString
		)
		if err := rows.Scan(&rec.CardID, &rec.Rarity, &setCode, &cardName, &rec.Quantity, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		rec.SetCode = setCode.String
		rec.CardName = cardName.String
		rec.Key = rec.VariantKey()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inventory rows: %w", err)
	}
	return records, nil
}

// nullableText stores an empty display field as NULL.
func nullableText(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// annotateInventory runs query once per detail inside one transaction.
// query takes set_code, card_name, card_id, rarity in that order and must
// not create rows.
func annotateInventory(ctx context.Context, db *sql.DB, query string, details []model.VariantDetail) (int64, error) {
	if len(details) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var updated int64
	for _, d := range details {
		res, err := stmt.ExecContext(ctx, nullableText(d.SetCode), nullableText(d.CardName), d.Key.CardID, d.Key.Rarity)
		if err != nil {
			return 0, fmt.Errorf("failed to annotate inventory %s: %w", d.Key, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			updated += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}
