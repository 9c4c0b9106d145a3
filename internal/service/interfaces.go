package service

import (
	"context"

	"github.com/JonnyWalker81/larder/backend/internal/models"
)

// PredictionService defines the interface for shopping prediction business logic
type PredictionService interface {
	// Analyze recomputes the prediction of every item the user ever acquired.
	// Per-item store failures are reported in the result, not as an error.
	Analyze(ctx context.Context, userID string, forceRefresh bool) (*models.AnalyzeResult, error)
	// AnalyzeAll runs Analyze and PruneStale for every known user
	AnalyzeAll(ctx context.Context, forceRefresh bool) (*models.BatchResult, error)
	ListPredictions(ctx context.Context, userID string, filter models.PredictionFilter) ([]models.Prediction, error)
	GetItemInsight(ctx context.Context, userID, itemName string) (*models.ItemInsight, error)
	GetShoppingList(ctx context.Context, userID string) (*models.ShoppingList, error)
	GetStatus(ctx context.Context, userID string) (*models.PatternStatus, error)
	// PruneStale deletes predictions for items not acquired within the retention window
	PruneStale(ctx context.Context, userID string) (int, error)
}
