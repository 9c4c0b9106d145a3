package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonnyWalker81/larder/backend/internal/lock"
	"github.com/JonnyWalker81/larder/backend/internal/logger"
	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/internal/pattern"
	"github.com/JonnyWalker81/larder/backend/internal/repository"
)

const (
	// DefaultWorkers bounds concurrent item analyses per user
	DefaultWorkers = 4

	// DefaultStaleAfter is how long a prediction counts as fresh
	DefaultStaleAfter = 6 * time.Hour

	// DefaultRetentionDays drops predictions for items not bought in this window
	DefaultRetentionDays = 90

	DefaultListLimit = 50
	MaxListLimit     = 100

	// ReadyForAnalysisEvents is how many purchases or consumptions make
	// a user's history worth analyzing
	ReadyForAnalysisEvents = 3
)

// Options tunes a prediction service. Zero values take the defaults.
type Options struct {
	Workers       int
	StaleAfter    time.Duration
	RetentionDays int
	// Now is the clock; tests inject a fixed one
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Workers < 1 {
		o.Workers = DefaultWorkers
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	if o.RetentionDays < 1 {
		o.RetentionDays = DefaultRetentionDays
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type predictionService struct {
	eventRepo      repository.EventRepository
	predictionRepo repository.PredictionRepository
	locker         lock.Locker
	opts           Options
}

// NewPredictionService creates a new prediction service
func NewPredictionService(
	eventRepo repository.EventRepository,
	predictionRepo repository.PredictionRepository,
	locker lock.Locker,
	opts Options,
) PredictionService {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &predictionService{
		eventRepo:      eventRepo,
		predictionRepo: predictionRepo,
		locker:         locker,
		opts:           opts.withDefaults(),
	}
}

// Analyze runs the pattern pipeline for each of the user's items in parallel
func (s *predictionService) Analyze(ctx context.Context, userID string, forceRefresh bool) (*models.AnalyzeResult, error) {
	if logger.RunIDFromContext(ctx) == "" {
		ctx = logger.WithRunID(ctx, "")
	}
	ctx = logger.WithUserID(ctx, userID)
	log := logger.Ctx(ctx)
	started := time.Now()
	now := s.opts.Now()

	items, err := s.eventRepo.ListItems(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	fresh := map[string]bool{}
	if !forceRefresh {
		fresh = s.freshItems(ctx, userID, now)
	}

	var (
		analyzed, saved, skipped atomic.Int64
		mu                       sync.Mutex
		failures                 []models.ItemFailure
	)

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if fresh[models.NormalizeItemName(item.ItemName)] {
			skipped.Add(1)
			continue
		}

		item := item
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			itemCtx := logger.WithItem(ctx, item.ItemName)
			err := s.analyzeItem(itemCtx, userID, item, now)
			// Only the run's own cancellation drops an item; a store
			// timeout under a live run is an ordinary item failure.
			if err != nil && ctx.Err() != nil {
				return nil
			}

			analyzed.Add(1)
			if err != nil {
				logger.Ctx(itemCtx).Warn("item analysis failed", logger.Err(err))
				mu.Lock()
				failures = append(failures, models.ItemFailure{ItemName: item.ItemName, Error: err.Error()})
				mu.Unlock()
				return nil
			}
			saved.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].ItemName < failures[j].ItemName
	})

	result := &models.AnalyzeResult{
		ItemsAnalyzed:    int(analyzed.Load()),
		PredictionsSaved: int(saved.Load()),
		ItemsSkipped:     int(skipped.Load()),
		FailedItems:      failures,
	}

	log.Info("analysis finished",
		logger.Int("items", len(items)),
		logger.Int("items_analyzed", result.ItemsAnalyzed),
		logger.Int("predictions_saved", result.PredictionsSaved),
		logger.Int("items_skipped", result.ItemsSkipped),
		logger.Int("items_failed", len(failures)),
		logger.Bool("force_refresh", forceRefresh),
		logger.Duration("duration", time.Since(started)),
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// analyzeItem reads, computes and writes one item under its lock
func (s *predictionService) analyzeItem(ctx context.Context, userID string, item models.ItemKey, now time.Time) error {
	unlock, err := s.locker.Lock(ctx, lock.ItemKey(userID, item.ItemName))
	if err != nil {
		return fmt.Errorf("failed to lock item: %w", err)
	}
	defer unlock()

	history, err := s.eventRepo.GetHistory(ctx, userID, item.ItemName)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if history.Category == "" {
		history.Category = item.Category
	}

	prediction, p := pattern.Analyze(now, userID, *history)
	if p.ExcludedEvents > 0 {
		logger.Ctx(ctx).Debug("malformed events excluded",
			logger.Int("excluded_events", p.ExcludedEvents),
		)
	}

	if err := s.predictionRepo.Upsert(ctx, &prediction); err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}

	return nil
}

// freshItems returns the items analyzed within StaleAfter. A failed lookup
// means nothing is treated as fresh.
func (s *predictionService) freshItems(ctx context.Context, userID string, now time.Time) map[string]bool {
	existing, err := s.predictionRepo.List(ctx, userID, models.PredictionFilter{})
	if err != nil {
		logger.Ctx(ctx).Warn("failed to check prediction freshness", logger.Err(err))
		return map[string]bool{}
	}

	fresh := make(map[string]bool, len(existing))
	for _, p := range existing {
		if now.Sub(p.LastAnalyzed) < s.opts.StaleAfter {
			fresh[models.NormalizeItemName(p.ItemName)] = true
		}
	}
	return fresh
}

// AnalyzeAll processes users one at a time and keeps going past failures
func (s *predictionService) AnalyzeAll(ctx context.Context, forceRefresh bool) (*models.BatchResult, error) {
	if logger.RunIDFromContext(ctx) == "" {
		ctx = logger.WithRunID(ctx, "")
	}
	log := logger.Ctx(ctx)

	userIDs, err := s.eventRepo.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	batch := &models.BatchResult{}
	for _, userID := range userIDs {
		userCtx := logger.WithUserID(ctx, userID)

		res, err := s.Analyze(userCtx, userID, forceRefresh)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return batch, ctxErr
		}
		if err != nil {
			batch.UsersFailed++
			logger.Ctx(userCtx).Error("user analysis failed", logger.Err(err))
			continue
		}
		batch.PredictionsSaved += res.PredictionsSaved

		pruned, err := s.PruneStale(userCtx, userID)
		if err != nil {
			logger.Ctx(userCtx).Warn("failed to prune stale predictions", logger.Err(err))
		}
		batch.PredictionsPruned += pruned
		batch.UsersProcessed++
	}

	log.Info("batch analysis finished",
		logger.Int("users_processed", batch.UsersProcessed),
		logger.Int("users_failed", batch.UsersFailed),
		logger.Int("predictions_saved", batch.PredictionsSaved),
		logger.Int("predictions_pruned", batch.PredictionsPruned),
	)

	return batch, nil
}

func (s *predictionService) PruneStale(ctx context.Context, userID string) (int, error) {
	cutoff := s.opts.Now().AddDate(0, 0, -s.opts.RetentionDays)

	last, err := s.eventRepo.LastAcquiredAt(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get last acquisitions: %w", err)
	}

	existing, err := s.predictionRepo.List(ctx, userID, models.PredictionFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list predictions: %w", err)
	}

	var stale []string
	for _, p := range existing {
		at, ok := last[models.NormalizeItemName(p.ItemName)]
		if !ok || at.Before(cutoff) {
			stale = append(stale, p.ItemName)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	n, err := s.predictionRepo.DeleteItems(ctx, userID, stale)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale predictions: %w", err)
	}
	return n, nil
}

// ListPredictions returns predictions most urgent first, capped at the limit
func (s *predictionService) ListPredictions(ctx context.Context, userID string, filter models.PredictionFilter) ([]models.Prediction, error) {
	predictions, err := s.predictionRepo.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	pattern.SortPredictions(predictions)

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if len(predictions) > limit {
		predictions = predictions[:limit]
	}

	if predictions == nil {
		predictions = []models.Prediction{}
	}
	return predictions, nil
}

func (s *predictionService) GetItemInsight(ctx context.Context, userID, itemName string) (*models.ItemInsight, error) {
	p, err := s.predictionRepo.Get(ctx, userID, itemName)
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction for %s: %w", itemName, err)
	}

	return &models.ItemInsight{
		ItemName:     p.ItemName,
		Category:     p.Category,
		CurrentStock: p.CurrentStock,
		Unit:         p.Unit,
		Pattern: models.InsightPattern{
			PurchaseFrequencyDays: p.PurchaseIntervalDays,
			AvgQuantityPurchased:  p.AvgPurchaseQuantity,
			ConsumptionRatePerDay: p.ConsumptionRatePerDay,
			DataPoints:            p.SampleCount,
		},
		Prediction: models.InsightPrediction{
			DepletionDate:      p.DepletionDate,
			DaysUntilDepletion: p.DaysUntilDepletion,
			SuggestedQuantity:  p.SuggestedQuantity,
			Urgency:            p.Urgency,
			Confidence:         p.Confidence,
		},
		LastAnalyzed: p.LastAnalyzed,
	}, nil
}

// GetShoppingList buckets every prediction by urgency
func (s *predictionService) GetShoppingList(ctx context.Context, userID string) (*models.ShoppingList, error) {
	predictions, err := s.predictionRepo.List(ctx, userID, models.PredictionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	pattern.SortPredictions(predictions)

	list := &models.ShoppingList{
		Urgent:      []models.ShoppingItem{},
		ThisWeek:    []models.ShoppingItem{},
		Later:       []models.ShoppingItem{},
		TotalItems:  len(predictions),
		GeneratedAt: s.opts.Now(),
	}

	for _, p := range predictions {
		item := models.ShoppingItem{
			ItemName:          p.ItemName,
			Category:          p.Category,
			SuggestedQuantity: p.SuggestedQuantity,
			Unit:              p.Unit,
			CurrentStock:      p.CurrentStock,
			DepletionDate:     p.DepletionDate,
			Confidence:        p.Confidence,
			Reason:            pattern.Reason(p),
		}

		switch p.Urgency {
		case models.UrgencyThisWeek:
			list.ThisWeek = append(list.ThisWeek, item)
		case models.UrgencyLater:
			list.Later = append(list.Later, item)
		default:
			list.Urgent = append(list.Urgent, item)
		}
	}

	return list, nil
}

func (s *predictionService) GetStatus(ctx context.Context, userID string) (*models.PatternStatus, error) {
	counts, err := s.eventRepo.CountEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	counts.Predictions, err = s.predictionRepo.Count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}

	return &models.PatternStatus{
		UserID:     userID,
		DataPoints: counts,
		ReadyForAnalysis: counts.Acquisitions >= ReadyForAnalysisEvents ||
			counts.Depletions >= ReadyForAnalysisEvents,
	}, nil
}
