package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/internal/repository"
)

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates an event repository over the pool
func NewEventRepository(db *DB) repository.EventRepository {
	return &eventRepository{pool: db.Pool}
}

func (r *eventRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT user_id::text FROM purchase_log ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return ids, nil
}

func (r *eventRepository) ListItems(ctx context.Context, userID string) ([]models.ItemKey, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT item_name, category FROM purchase_log WHERE user_id = $1 ORDER BY occurred_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ItemKey, error) {
		var k models.ItemKey
		err := row.Scan(&k.ItemName, &k.Category)
		return k, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	return repository.DistinctItems(keys), nil
}

func (r *eventRepository) GetHistory(ctx context.Context, userID, itemName string) (*models.ItemHistory, error) {
	name := models.NormalizeItemName(itemName)

	rows, err := r.pool.Query(ctx,
		`SELECT id::text, item_name, category, quantity, unit, occurred_at
		 FROM purchase_log WHERE user_id = $1 AND lower(btrim(item_name)) = $2 ORDER BY occurred_at, id`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get acquisitions: %w", err)
	}
	acqs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AcquisitionEvent, error) {
		e := models.AcquisitionEvent{UserID: userID}
		err := row.Scan(&e.ID, &e.ItemName, &e.Category, &e.Quantity, &e.Unit, &e.OccurredAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get acquisitions: %w", err)
	}

	rows, err = r.pool.Query(ctx,
		`SELECT id::text, item_name, quantity_consumed, occurred_at, days_since_acquisition
		 FROM consumption_log WHERE user_id = $1 AND lower(btrim(item_name)) = $2 ORDER BY occurred_at, id`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get depletions: %w", err)
	}
	deps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DepletionEvent, error) {
		e := models.DepletionEvent{UserID: userID}
		err := row.Scan(&e.ID, &e.ItemName, &e.QuantityConsumed, &e.OccurredAt, &e.DaysSinceAcquisition)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get depletions: %w", err)
	}

	rows, err = r.pool.Query(ctx,
		`SELECT quantity, unit FROM inventory WHERE user_id = $1 AND lower(btrim(item_name)) = $2 ORDER BY id`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	stock, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.StockLevel, error) {
		var s models.StockLevel
		err := row.Scan(&s.Quantity, &s.Unit)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}

	return repository.BuildHistory(name, acqs, deps, stock), nil
}

func (r *eventRepository) LastAcquiredAt(ctx context.Context, userID string) (map[string]time.Time, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT lower(btrim(item_name)), MAX(occurred_at) FROM purchase_log WHERE user_id = $1 GROUP BY 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last acquisitions: %w", err)
	}
	defer rows.Close()

	last := make(map[string]time.Time)
	for rows.Next() {
		var (
			name string
			at   time.Time
		)
		if err := rows.Scan(&name, &at); err != nil {
			return nil, fmt.Errorf("failed to scan last acquisition: %w", err)
		}
		last[models.NormalizeItemName(name)] = at
	}
	return last, rows.Err()
}

func (r *eventRepository) CountEvents(ctx context.Context, userID string) (models.EventCounts, error) {
	var counts models.EventCounts

	err := r.pool.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM purchase_log WHERE user_id = $1),
		        (SELECT COUNT(*) FROM consumption_log WHERE user_id = $1)`,
		userID).Scan(&counts.Acquisitions, &counts.Depletions)
	if err != nil {
		return counts, fmt.Errorf("failed to count events: %w", err)
	}

	return counts, nil
}
