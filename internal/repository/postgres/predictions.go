package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/internal/repository"
)

const predictionColumns = `id::text, user_id::text, item_name, category, current_stock, unit, depletion_date,
	suggested_quantity, confidence, urgency, days_until_depletion, last_analyzed,
	purchase_interval_days, avg_purchase_quantity, consumption_rate_per_day, sample_count`

type predictionRepository struct {
	pool *pgxpool.Pool
}

// NewPredictionRepository creates a prediction repository over the pool
func NewPredictionRepository(db *DB) repository.PredictionRepository {
	return &predictionRepository{pool: db.Pool}
}

func (r *predictionRepository) Upsert(ctx context.Context, p *models.Prediction) error {
	var depletionDate *time.Time
	if p.DepletionDate != nil {
		d := p.DepletionDate.Time
		depletionDate = &d
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO shopping_predictions (
			user_id, item_name, category, current_stock, unit, depletion_date,
			suggested_quantity, confidence, urgency, days_until_depletion, last_analyzed,
			purchase_interval_days, avg_purchase_quantity, consumption_rate_per_day, sample_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, item_name) DO UPDATE SET
			category = EXCLUDED.category,
			current_stock = EXCLUDED.current_stock,
			unit = EXCLUDED.unit,
			depletion_date = EXCLUDED.depletion_date,
			suggested_quantity = EXCLUDED.suggested_quantity,
			confidence = EXCLUDED.confidence,
			urgency = EXCLUDED.urgency,
			days_until_depletion = EXCLUDED.days_until_depletion,
			last_analyzed = EXCLUDED.last_analyzed,
			purchase_interval_days = EXCLUDED.purchase_interval_days,
			avg_purchase_quantity = EXCLUDED.avg_purchase_quantity,
			consumption_rate_per_day = EXCLUDED.consumption_rate_per_day,
			sample_count = EXCLUDED.sample_count
		RETURNING id::text`,
		p.UserID, models.NormalizeItemName(p.ItemName), p.Category, p.CurrentStock, p.Unit, depletionDate,
		p.SuggestedQuantity, string(p.Confidence), string(p.Urgency), p.DaysUntilDepletion, p.LastAnalyzed,
		p.PurchaseIntervalDays, p.AvgPurchaseQuantity, p.ConsumptionRatePerDay, p.SampleCount,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert prediction: %w", err)
	}

	return nil
}

func (r *predictionRepository) List(ctx context.Context, userID string, filter models.PredictionFilter) ([]models.Prediction, error) {
	query := `SELECT ` + predictionColumns + ` FROM shopping_predictions WHERE user_id = $1`
	args := []any{userID}

	if filter.Urgency != nil {
		args = append(args, string(*filter.Urgency))
		query += fmt.Sprintf(` AND urgency = $%d`, len(args))
	}
	if filter.MinConfidence != nil {
		tiers := filter.MinConfidence.AtLeast()
		names := make([]string, len(tiers))
		for i, c := range tiers {
			names[i] = string(c)
		}
		args = append(args, names)
		query += fmt.Sprintf(` AND confidence = ANY($%d)`, len(args))
	}
	query += ` ORDER BY item_name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	predictions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Prediction, error) {
		p, err := scanPrediction(row)
		if err != nil {
			return models.Prediction{}, err
		}
		return *p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	return predictions, nil
}

func (r *predictionRepository) Get(ctx context.Context, userID, itemName string) (*models.Prediction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+predictionColumns+` FROM shopping_predictions WHERE user_id = $1 AND item_name = $2`,
		userID, models.NormalizeItemName(itemName))

	p, err := scanPrediction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

func (r *predictionRepository) DeleteItems(ctx context.Context, userID string, itemNames []string) (int, error) {
	if len(itemNames) == 0 {
		return 0, nil
	}

	names := make([]string, len(itemNames))
	for i, n := range itemNames {
		names[i] = models.NormalizeItemName(n)
	}

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM shopping_predictions WHERE user_id = $1 AND item_name = ANY($2)`, userID, names)
	if err != nil {
		return 0, fmt.Errorf("failed to delete predictions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *predictionRepository) Count(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM shopping_predictions WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return n, nil
}

func scanPrediction(row pgx.Row) (*models.Prediction, error) {
	var (
		p                   models.Prediction
		depletionDate       *time.Time
		confidence, urgency string
	)

	err := row.Scan(&p.ID, &p.UserID, &p.ItemName, &p.Category, &p.CurrentStock, &p.Unit, &depletionDate,
		&p.SuggestedQuantity, &confidence, &urgency, &p.DaysUntilDepletion, &p.LastAnalyzed,
		&p.PurchaseIntervalDays, &p.AvgPurchaseQuantity, &p.ConsumptionRatePerDay, &p.SampleCount)
	if err != nil {
		return nil, err
	}

	p.Confidence = models.Confidence(confidence)
	p.Urgency = models.Urgency(urgency)
	if depletionDate != nil {
		p.DepletionDate = models.DatePtr(*depletionDate)
	}

	return &p, nil
}
