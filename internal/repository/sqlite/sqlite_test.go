package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/internal/repository"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "larder.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func f(v float64) *float64 { return &v }

func TestEventRepository_History(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, db.InsertAcquisition(ctx, models.AcquisitionEvent{
		UserID: "u1", ItemName: "Rice", Category: "grains", Quantity: 2, Unit: "kg", OccurredAt: base.AddDate(0, 0, 10),
	}))
	require.NoError(t, db.InsertAcquisition(ctx, models.AcquisitionEvent{
		UserID: "u1", ItemName: "rice", Category: "grains", Quantity: 2, Unit: "kg", OccurredAt: base,
	}))
	require.NoError(t, db.InsertDepletion(ctx, models.DepletionEvent{
		UserID: "u1", ItemName: "rice", QuantityConsumed: 2, OccurredAt: base.AddDate(0, 0, 10), DaysSinceAcquisition: f(10),
	}))
	require.NoError(t, db.InsertDepletion(ctx, models.DepletionEvent{
		UserID: "u1", ItemName: "rice", QuantityConsumed: 0.5, OccurredAt: base.AddDate(0, 0, 11),
	}))
	require.NoError(t, db.InsertAcquisition(ctx, models.AcquisitionEvent{
		UserID: "u2", ItemName: "milk", Quantity: 1, Unit: "l", OccurredAt: base,
	}))

	repo := NewEventRepository(db)

	h, err := repo.GetHistory(ctx, "u1", "RICE")
	require.NoError(t, err)
	require.Len(t, h.Acquisitions, 2)
	assert.True(t, h.Acquisitions[0].OccurredAt.Equal(base), "acquisitions must be ascending")
	require.Len(t, h.Depletions, 2)
	assert.Equal(t, 10.0, *h.Depletions[0].DaysSinceAcquisition)
	assert.Nil(t, h.Depletions[1].DaysSinceAcquisition)
	assert.Nil(t, h.Stock)

	require.NoError(t, db.SetStock(ctx, "u1", "rice", models.StockLevel{Quantity: 1.5, Unit: "kg"}))
	h, err = repo.GetHistory(ctx, "u1", "rice")
	require.NoError(t, err)
	require.NotNil(t, h.Stock)
	assert.Equal(t, 1.5, h.Stock.Quantity)

	items, err := repo.ListItems(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.ItemKey{{ItemName: "rice", Category: "grains"}}, items)

	users, err := repo.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)

	last, err := repo.LastAcquiredAt(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, last["rice"].Equal(base.AddDate(0, 0, 10)))

	counts, err := repo.CountEvents(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Acquisitions)
	assert.Equal(t, 2, counts.Depletions)
}

func TestEventRepository_MixedCaseRows(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Rows written by other clients are not normalized
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO purchase_log (user_id, item_name, category, quantity, unit, occurred_at) VALUES
		 ('u1', 'Rice', 'grains', 2, 'kg', ?), ('u1', ' rice ', 'grains', 2, 'kg', ?), ('u1', 'Brown Rice', '', 1, 'kg', ?)`,
		formatTime(base), formatTime(base.AddDate(0, 0, 10)), formatTime(base.AddDate(0, 0, 20)))
	require.NoError(t, err)
	_, err = db.db.ExecContext(ctx,
		`INSERT INTO consumption_log (user_id, item_name, quantity_consumed, occurred_at) VALUES ('u1', 'RICE', 2, ?)`,
		formatTime(base.AddDate(0, 0, 10)))
	require.NoError(t, err)
	_, err = db.db.ExecContext(ctx, `INSERT INTO inventory (user_id, item_name, quantity, unit) VALUES ('u1', 'Rice', 1, 'kg')`)
	require.NoError(t, err)

	repo := NewEventRepository(db)

	h, err := repo.GetHistory(ctx, "u1", "rice")
	require.NoError(t, err)
	assert.Len(t, h.Acquisitions, 2)
	assert.Len(t, h.Depletions, 1)
	require.NotNil(t, h.Stock)
	assert.Equal(t, 1.0, h.Stock.Quantity)

	last, err := repo.LastAcquiredAt(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, last, 2)
	assert.True(t, last["rice"].Equal(base.AddDate(0, 0, 10)), last["rice"])

	require.NoError(t, db.SetStock(ctx, "u1", "rice", models.StockLevel{Quantity: 3, Unit: "kg"}))
	h, err = repo.GetHistory(ctx, "u1", "RICE")
	require.NoError(t, err)
	assert.Equal(t, 3.0, h.Stock.Quantity)
}

func TestPredictionRepository_UpsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewPredictionRepository(db)
	analyzed := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	p := &models.Prediction{
		UserID:             "u1",
		ItemName:           "Rice",
		Category:           "grains",
		CurrentStock:       1,
		Unit:               "kg",
		DepletionDate:      models.DatePtr(analyzed.AddDate(0, 0, 5)),
		SuggestedQuantity:  f(2),
		Confidence:         models.ConfidenceLow,
		Urgency:            models.UrgencyThisWeek,
		DaysUntilDepletion: f(5),
		LastAnalyzed:       analyzed,
		SampleCount:        2,
	}
	require.NoError(t, repo.Upsert(ctx, p))
	firstID := p.ID

	p.Urgency = models.UrgencyUrgent
	p.DaysUntilDepletion = nil
	p.DepletionDate = nil
	require.NoError(t, repo.Upsert(ctx, p))
	assert.Equal(t, firstID, p.ID, "upsert must keep one row per item")

	got, err := repo.Get(ctx, "u1", "rice")
	require.NoError(t, err)
	assert.Equal(t, models.UrgencyUrgent, got.Urgency)
	assert.Nil(t, got.DaysUntilDepletion)
	assert.Nil(t, got.DepletionDate)
	assert.Equal(t, 2.0, *got.SuggestedQuantity)
	assert.True(t, got.LastAnalyzed.Equal(analyzed))

	n, err := repo.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPredictionRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewPredictionRepository(openTestDB(t))
	now := time.Now()

	for _, p := range []models.Prediction{
		{UserID: "u1", ItemName: "milk", Confidence: models.ConfidenceHigh, Urgency: models.UrgencyUrgent, LastAnalyzed: now},
		{UserID: "u1", ItemName: "eggs", Confidence: models.ConfidenceLow, Urgency: models.UrgencyUrgent, LastAnalyzed: now},
		{UserID: "u1", ItemName: "tea", Confidence: models.ConfidenceMedium, Urgency: models.UrgencyLater, LastAnalyzed: now},
		{UserID: "u2", ItemName: "milk", Confidence: models.ConfidenceHigh, Urgency: models.UrgencyUrgent, LastAnalyzed: now},
	} {
		p := p
		require.NoError(t, repo.Upsert(ctx, &p))
	}

	all, err := repo.List(ctx, "u1", models.PredictionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	urgent := models.UrgencyUrgent
	medium := models.ConfidenceMedium
	filtered, err := repo.List(ctx, "u1", models.PredictionFilter{Urgency: &urgent, MinConfidence: &medium})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "milk", filtered[0].ItemName)

	deleted, err := repo.DeleteItems(ctx, "u1", []string{"Milk", "tea", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = repo.Get(ctx, "u1", "milk")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.Get(ctx, "u2", "milk")
	assert.NoError(t, err)
}
