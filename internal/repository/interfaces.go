package repository

import (
	"context"
	"errors"
	"time"

	"github.com/JonnyWalker81/larder/backend/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Table names shared by every store implementation
const (
	TableAcquisitions = "purchase_log"
	TableDepletions   = "consumption_log"
	TableInventory    = "inventory"
	TablePredictions  = "shopping_predictions"
)

// EventRepository reads the acquisition and depletion history written by
// the inventory layer. Item names are matched case-insensitively.
type EventRepository interface {
	// ListUserIDs returns every user with at least one acquisition
	ListUserIDs(ctx context.Context) ([]string, error)
	// ListItems returns every distinct item the user ever acquired
	ListItems(ctx context.Context, userID string) ([]models.ItemKey, error)
	// GetHistory returns both event series ascending by time, plus the
	// inventory row if one exists
	GetHistory(ctx context.Context, userID, itemName string) (*models.ItemHistory, error)
	// LastAcquiredAt maps each item to its most recent acquisition
	LastAcquiredAt(ctx context.Context, userID string) (map[string]time.Time, error)
	// CountEvents fills the acquisition and depletion counts
	CountEvents(ctx context.Context, userID string) (models.EventCounts, error)
}

// PredictionRepository stores one prediction row per (user, item)
type PredictionRepository interface {
	// Upsert replaces the row for the prediction's user and item
	Upsert(ctx context.Context, prediction *models.Prediction) error
	// List returns the user's predictions matching the filter's urgency and
	// minimum confidence, in no particular order
	List(ctx context.Context, userID string, filter models.PredictionFilter) ([]models.Prediction, error)
	// Get returns ErrNotFound when the item has no prediction
	Get(ctx context.Context, userID, itemName string) (*models.Prediction, error)
	// DeleteItems removes the named items' predictions and reports how many went
	DeleteItems(ctx context.Context, userID string, itemNames []string) (int, error)
	Count(ctx context.Context, userID string) (int, error)
}
