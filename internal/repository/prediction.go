package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/pkg/supabase"
)

// predictionConflict is the unique key of a prediction row
const predictionConflict = "user_id,item_name"

type predictionRepository struct {
	client *supabase.Client
}

// NewPredictionRepository creates a new prediction repository backed by Supabase
func NewPredictionRepository(client *supabase.Client) PredictionRepository {
	return &predictionRepository{client: client}
}

func (r *predictionRepository) Upsert(ctx context.Context, prediction *models.Prediction) error {
	row := *prediction
	row.ID = ""
	row.ItemName = models.NormalizeItemName(row.ItemName)

	body, err := r.client.Upsert(ctx, TablePredictions, row, predictionConflict)
	if err != nil {
		return fmt.Errorf("failed to upsert prediction: %w", err)
	}

	var saved []models.Prediction
	if err := json.Unmarshal(body, &saved); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(saved) > 0 {
		prediction.ID = saved[0].ID
	}

	return nil
}

func (r *predictionRepository) List(ctx context.Context, userID string, filter models.PredictionFilter) ([]models.Prediction, error) {
	query := url.Values{
		"user_id": {"eq." + userID},
		"order":   {"item_name.asc"},
	}
	if filter.Urgency != nil {
		query.Set("urgency", "eq."+string(*filter.Urgency))
	}
	if filter.MinConfidence != nil {
		tiers := filter.MinConfidence.AtLeast()
		names := make([]string, len(tiers))
		for i, c := range tiers {
			names[i] = string(c)
		}
		query.Set("confidence", inList(names))
	}

	predictions, err := queryAll[models.Prediction](ctx, r.client, TablePredictions, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	return predictions, nil
}

func (r *predictionRepository) Get(ctx context.Context, userID, itemName string) (*models.Prediction, error) {
	body, err := r.client.Query(ctx, TablePredictions, url.Values{
		"user_id":   {"eq." + userID},
		"item_name": {"eq." + models.NormalizeItemName(itemName)},
		"limit":     {"1"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	var predictions []models.Prediction
	if err := json.Unmarshal(body, &predictions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if len(predictions) == 0 {
		return nil, ErrNotFound
	}

	return &predictions[0], nil
}

func (r *predictionRepository) DeleteItems(ctx context.Context, userID string, itemNames []string) (int, error) {
	if len(itemNames) == 0 {
		return 0, nil
	}

	names := make([]string, len(itemNames))
	for i, n := range itemNames {
		names[i] = models.NormalizeItemName(n)
	}
	filter := url.Values{
		"user_id":   {"eq." + userID},
		"item_name": {inList(names)},
	}

	n, err := r.client.Count(ctx, TablePredictions, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	if err := r.client.DeleteWhere(ctx, TablePredictions, filter); err != nil {
		return 0, fmt.Errorf("failed to delete predictions: %w", err)
	}

	return n, nil
}

func (r *predictionRepository) Count(ctx context.Context, userID string) (int, error) {
	n, err := r.client.Count(ctx, TablePredictions, url.Values{"user_id": {"eq." + userID}})
	if err != nil {
		return 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return n, nil
}

// inList builds a PostgREST in.(...) filter with every value quoted
func inList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		quoted[i] = `"` + v + `"`
	}
	return "in.(" + strings.Join(quoted, ",") + ")"
}
