package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/internal/repository"
)

type eventRepository struct {
	db *sql.DB
}

// NewEventRepository creates an event repository over the database
func NewEventRepository(d *DB) repository.EventRepository {
	return &eventRepository{db: d.db}
}

func (r *eventRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM purchase_log ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *eventRepository) ListItems(ctx context.Context, userID string) ([]models.ItemKey, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_name, category FROM purchase_log WHERE user_id = ? ORDER BY occurred_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []models.ItemKey
	for rows.Next() {
		var k models.ItemKey
		if err := rows.Scan(&k.ItemName, &k.Category); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	return repository.DistinctItems(keys), nil
}

func (r *eventRepository) GetHistory(ctx context.Context, userID, itemName string) (*models.ItemHistory, error) {
	name := models.NormalizeItemName(itemName)

	acqs, err := r.acquisitions(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	deps, err := r.depletions(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	stock, err := r.stock(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	return repository.BuildHistory(name, acqs, deps, stock), nil
}

func (r *eventRepository) acquisitions(ctx context.Context, userID, name string) ([]models.AcquisitionEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, item_name, category, quantity, unit, occurred_at
		 FROM purchase_log WHERE user_id = ? AND lower(trim(item_name)) = ? ORDER BY occurred_at, id`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get acquisitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.AcquisitionEvent
	for rows.Next() {
		var (
			e          models.AcquisitionEvent
			id         int64
			occurredAt string
		)
		if err := rows.Scan(&id, &e.ItemName, &e.Category, &e.Quantity, &e.Unit, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan acquisition: %w", err)
		}
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		e.ID = fmt.Sprint(id)
		e.UserID = userID
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventRepository) depletions(ctx context.Context, userID, name string) ([]models.DepletionEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, item_name, quantity_consumed, occurred_at, days_since_acquisition
		 FROM consumption_log WHERE user_id = ? AND lower(trim(item_name)) = ? ORDER BY occurred_at, id`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get depletions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []models.DepletionEvent
	for rows.Next() {
		var (
			e          models.DepletionEvent
			id         int64
			occurredAt string
			daysSince  sql.NullFloat64
		)
		if err := rows.Scan(&id, &e.ItemName, &e.QuantityConsumed, &occurredAt, &daysSince); err != nil {
			return nil, fmt.Errorf("failed to scan depletion: %w", err)
		}
		if e.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		e.ID = fmt.Sprint(id)
		e.UserID = userID
		e.DaysSinceAcquisition = floatPtr(daysSince)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventRepository) stock(ctx context.Context, userID, name string) ([]models.StockLevel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT quantity, unit FROM inventory WHERE user_id = ? AND lower(trim(item_name)) = ? ORDER BY id`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var levels []models.StockLevel
	for rows.Next() {
		var s models.StockLevel
		if err := rows.Scan(&s.Quantity, &s.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan inventory: %w", err)
		}
		levels = append(levels, s)
	}
	return levels, rows.Err()
}

func (r *eventRepository) LastAcquiredAt(ctx context.Context, userID string) (map[string]time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT lower(trim(item_name)), MAX(occurred_at) FROM purchase_log WHERE user_id = ? GROUP BY 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last acquisitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	last := make(map[string]time.Time)
	for rows.Next() {
		var name, at string
		if err := rows.Scan(&name, &at); err != nil {
			return nil, fmt.Errorf("failed to scan last acquisition: %w", err)
		}
		t, err := parseTime(at)
		if err != nil {
			return nil, err
		}
		last[models.NormalizeItemName(name)] = t
	}
	return last, rows.Err()
}

func (r *eventRepository) CountEvents(ctx context.Context, userID string) (models.EventCounts, error) {
	var counts models.EventCounts

	err := r.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM purchase_log WHERE user_id = ?),
		        (SELECT COUNT(*) FROM consumption_log WHERE user_id = ?)`,
		userID, userID).Scan(&counts.Acquisitions, &counts.Depletions)
	if err != nil {
		return counts, fmt.Errorf("failed to count events: %w", err)
	}

	return counts, nil
}
