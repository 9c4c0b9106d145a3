package sqlite

import (
	"context"
	"fmt"

	"github.com/JonnyWalker81/larder/backend/internal/models"
)

// The inventory layer owns these tables in production. The writers below
// load local data and fixtures.

// InsertAcquisition records an acquisition event
func (d *DB) InsertAcquisition(ctx context.Context, e models.AcquisitionEvent) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO purchase_log (user_id, item_name, category, quantity, unit, occurred_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, models.NormalizeItemName(e.ItemName), e.Category, e.Quantity, e.Unit, formatTime(e.OccurredAt))
	if err != nil {
		return fmt.Errorf("failed to insert acquisition: %w", err)
	}
	return nil
}

// InsertDepletion records a depletion event
func (d *DB) InsertDepletion(ctx context.Context, e models.DepletionEvent) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO consumption_log (user_id, item_name, quantity_consumed, occurred_at, days_since_acquisition) VALUES (?, ?, ?, ?, ?)`,
		e.UserID, models.NormalizeItemName(e.ItemName), e.QuantityConsumed, formatTime(e.OccurredAt), nullFloat(e.DaysSinceAcquisition))
	if err != nil {
		return fmt.Errorf("failed to insert depletion: %w", err)
	}
	return nil
}

// SetStock replaces the inventory rows for an item with a single row
func (d *DB) SetStock(ctx context.Context, userID, itemName string, stock models.StockLevel) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	name := models.NormalizeItemName(itemName)
	if _, err := tx.ExecContext(ctx, `DELETE FROM inventory WHERE user_id = ? AND lower(trim(item_name)) = ?`, userID, name); err != nil {
		return fmt.Errorf("failed to clear inventory: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO inventory (user_id, item_name, quantity, unit) VALUES (?, ?, ?, ?)`,
		userID, name, stock.Quantity, stock.Unit); err != nil {
		return fmt.Errorf("failed to insert inventory: %w", err)
	}

	return tx.Commit()
}
