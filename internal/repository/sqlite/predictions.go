package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/internal/repository"
)

const predictionColumns = `id, user_id, item_name, category, current_stock, unit, depletion_date,
	suggested_quantity, confidence, urgency, days_until_depletion, last_analyzed,
	purchase_interval_days, avg_purchase_quantity, consumption_rate_per_day, sample_count`

type predictionRepository struct {
	db *sql.DB
}

// NewPredictionRepository creates a prediction repository over the database
func NewPredictionRepository(d *DB) repository.PredictionRepository {
	return &predictionRepository{db: d.db}
}

func (r *predictionRepository) Upsert(ctx context.Context, p *models.Prediction) error {
	var depletionDate sql.NullString
	if p.DepletionDate != nil {
		depletionDate = sql.NullString{String: p.DepletionDate.String(), Valid: true}
	}

	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO shopping_predictions (
			user_id, item_name, category, current_stock, unit, depletion_date,
			suggested_quantity, confidence, urgency, days_until_depletion, last_analyzed,
			purchase_interval_days, avg_purchase_quantity, consumption_rate_per_day, sample_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, item_name) DO UPDATE SET
			category = excluded.category,
			current_stock = excluded.current_stock,
			unit = excluded.unit,
			depletion_date = excluded.depletion_date,
			suggested_quantity = excluded.suggested_quantity,
			confidence = excluded.confidence,
			urgency = excluded.urgency,
			days_until_depletion = excluded.days_until_depletion,
			last_analyzed = excluded.last_analyzed,
			purchase_interval_days = excluded.purchase_interval_days,
			avg_purchase_quantity = excluded.avg_purchase_quantity,
			consumption_rate_per_day = excluded.consumption_rate_per_day,
			sample_count = excluded.sample_count
		RETURNING id`,
		p.UserID, models.NormalizeItemName(p.ItemName), p.Category, p.CurrentStock, p.Unit, depletionDate,
		nullFloat(p.SuggestedQuantity), string(p.Confidence), string(p.Urgency), nullFloat(p.DaysUntilDepletion),
		formatTime(p.LastAnalyzed), nullFloat(p.PurchaseIntervalDays), nullFloat(p.AvgPurchaseQuantity),
		nullFloat(p.ConsumptionRatePerDay), p.SampleCount,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to upsert prediction: %w", err)
	}

	p.ID = fmt.Sprint(id)
	return nil
}

func (r *predictionRepository) List(ctx context.Context, userID string, filter models.PredictionFilter) ([]models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM shopping_predictions WHERE user_id = ?`
	args := []any{userID}

	if filter.Urgency != nil {
		query += ` AND urgency = ?`
		args = append(args, string(*filter.Urgency))
	}
	if filter.MinConfidence != nil {
		tiers := filter.MinConfidence.AtLeast()
		query += ` AND confidence IN (?` + strings.Repeat(", ?", len(tiers)-1) + `)`
		for _, c := range tiers {
			args = append(args, string(c))
		}
	}
	query += ` ORDER BY item_name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var predictions []models.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, *p)
	}
	return predictions, rows.Err()
}

func (r *predictionRepository) Get(ctx context.Context, userID, itemName string) (*models.Prediction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+predictionColumns+` FROM shopping_predictions WHERE user_id = ? AND item_name = ?`,
		userID, models.NormalizeItemName(itemName))

	p, err := scanPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return p, err
}

func (r *predictionRepository) DeleteItems(ctx context.Context, userID string, itemNames []string) (int, error) {
	if len(itemNames) == 0 {
		return 0, nil
	}

	args := []any{userID}
	for _, n := range itemNames {
		args = append(args, models.NormalizeItemName(n))
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM shopping_predictions WHERE user_id = ? AND item_name IN (?`+strings.Repeat(", ?", len(itemNames)-1)+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete predictions: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete predictions: %w", err)
	}
	return int(n), nil
}

func (r *predictionRepository) Count(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shopping_predictions WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPrediction(s scanner) (*models.Prediction, error) {
	var (
		p                                    models.Prediction
		id                                   int64
		depletionDate                        sql.NullString
		suggested, days, interval, avg, rate sql.NullFloat64
		confidence, urgency, lastAnalyzed    string
	)

	err := s.Scan(&id, &p.UserID, &p.ItemName, &p.Category, &p.CurrentStock, &p.Unit, &depletionDate,
		&suggested, &confidence, &urgency, &days, &lastAnalyzed,
		&interval, &avg, &rate, &p.SampleCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan prediction: %w", err)
	}

	p.ID = fmt.Sprint(id)
	p.Confidence = models.Confidence(confidence)
	p.Urgency = models.Urgency(urgency)
	p.SuggestedQuantity = floatPtr(suggested)
	p.DaysUntilDepletion = floatPtr(days)
	p.PurchaseIntervalDays = floatPtr(interval)
	p.AvgPurchaseQuantity = floatPtr(avg)
	p.ConsumptionRatePerDay = floatPtr(rate)

	if depletionDate.Valid {
		d, err := models.ParseDate(depletionDate.String)
		if err != nil {
			return nil, err
		}
		p.DepletionDate = &d
	}

	if p.LastAnalyzed, err = parseTime(lastAnalyzed); err != nil {
		return nil, err
	}

	return &p, nil
}
