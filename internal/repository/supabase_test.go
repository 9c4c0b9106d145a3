package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/pkg/supabase"
)

// fakePostgREST serves canned JSON per table and records the last query
type fakePostgREST struct {
	tables  map[string]string
	queries map[string]string
	counts  map[string]string
}

func newFakePostgREST() *fakePostgREST {
	return &fakePostgREST{
		tables:  make(map[string]string),
		queries: make(map[string]string),
		counts:  make(map[string]string),
	}
}

func (f *fakePostgREST) query(t *testing.T, table string) url.Values {
	t.Helper()
	q, err := url.ParseQuery(f.queries[table])
	require.NoError(t, err)
	return q
}

func (f *fakePostgREST) serve(t *testing.T) *supabase.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := r.URL.Path[len("/rest/v1/"):]
		f.queries[table] = r.URL.RawQuery

		if r.Method == http.MethodHead {
			w.Header().Set("Content-Range", "*/"+f.counts[table])
			return
		}
		if r.Method == http.MethodPost {
			var row map[string]any
			_ = json.NewDecoder(r.Body).Decode(&row)
			row["id"] = "pred-1"
			_ = json.NewEncoder(w).Encode([]map[string]any{row})
			return
		}

		body, ok := f.tables[table]
		if !ok {
			body = "[]"
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return supabase.NewClient(srv.URL, "k")
}

func TestEventRepository_GetHistory(t *testing.T) {
	fake := newFakePostgREST()
	fake.tables[TableAcquisitions] = `[
		{"item_name":"rice","category":"grains","quantity":2,"unit":"kg","occurred_at":"2026-03-01T09:00:00Z"},
		{"item_name":"rice","category":"grains","quantity":2,"unit":"kg","occurred_at":"2026-03-11T09:00:00Z"}
	]`
	fake.tables[TableDepletions] = `[
		{"item_name":"rice","quantity_consumed":2,"occurred_at":"2026-03-11T09:00:00Z","days_since_acquisition":10}
	]`
	fake.tables[TableInventory] = `[{"quantity":1.5,"unit":"kg"},{"quantity":0.5,"unit":"kg"}]`

	repo := NewEventRepository(fake.serve(t))
	h, err := repo.GetHistory(context.Background(), "user-1", "  Rice ")
	require.NoError(t, err)

	assert.Equal(t, "rice", h.ItemName)
	assert.Equal(t, "grains", h.Category)
	require.Len(t, h.Acquisitions, 2)
	require.Len(t, h.Depletions, 1)
	require.NotNil(t, h.Depletions[0].DaysSinceAcquisition)
	assert.Equal(t, 10.0, *h.Depletions[0].DaysSinceAcquisition)
	require.NotNil(t, h.Stock)
	assert.Equal(t, 2.0, h.Stock.Quantity)
	q := fake.query(t, TableAcquisitions)
	assert.Equal(t, "ilike.*rice*", q.Get("item_name"))
	assert.Equal(t, "occurred_at.asc,id.asc", q.Get("order"))
}

func TestEventRepository_GetHistory_MatchesAnyCase(t *testing.T) {
	fake := newFakePostgREST()
	fake.tables[TableAcquisitions] = `[
		{"item_name":"Rice","quantity":2,"unit":"kg","occurred_at":"2026-03-01T09:00:00Z"},
		{"item_name":"brown rice","quantity":1,"unit":"kg","occurred_at":"2026-03-02T09:00:00Z"},
		{"item_name":" RICE ","quantity":2,"unit":"kg","occurred_at":"2026-03-11T09:00:00Z"}
	]`
	fake.tables[TableDepletions] = `[
		{"item_name":"rice","quantity_consumed":2,"occurred_at":"2026-03-11T09:00:00Z"},
		{"item_name":"Rice Krispies","quantity_consumed":1,"occurred_at":"2026-03-11T09:00:00Z"}
	]`
	fake.tables[TableInventory] = `[
		{"item_name":"Rice","quantity":1,"unit":"kg"},
		{"item_name":"wild rice","quantity":4,"unit":"kg"}
	]`

	repo := NewEventRepository(fake.serve(t))
	h, err := repo.GetHistory(context.Background(), "user-1", "rice")
	require.NoError(t, err)

	require.Len(t, h.Acquisitions, 2)
	assert.Equal(t, "Rice", h.Acquisitions[0].ItemName)
	assert.Equal(t, " RICE ", h.Acquisitions[1].ItemName)
	require.Len(t, h.Depletions, 1)
	require.NotNil(t, h.Stock)
	assert.Equal(t, 1.0, h.Stock.Quantity)

	inv := fake.query(t, TableInventory)
	assert.Equal(t, "item_name,quantity,unit", inv.Get("select"))
	assert.Equal(t, "id.asc", inv.Get("order"))
}

func TestItemNameFilter_EscapesLikeMetacharacters(t *testing.T) {
	assert.Equal(t, `ilike.*100\% juice*`, itemNameFilter("100% juice"))
	assert.Equal(t, `ilike.*a\_b*`, itemNameFilter("a_b"))
	assert.Equal(t, `ilike.*c:\\d*`, itemNameFilter(`c:\d`))
}

func TestQueryAll_PagesWithStableOrder(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "occurred_at.asc,id.asc", q.Get("order"))
		offsets = append(offsets, q.Get("offset"))
		if q.Get("offset") == "0" {
			rows := make([]map[string]string, pageSize)
			for i := range rows {
				rows[i] = map[string]string{"item_name": "rice"}
			}
			_ = json.NewEncoder(w).Encode(rows)
			return
		}
		_, _ = w.Write([]byte(`[{"item_name":"milk"}]`))
	}))
	t.Cleanup(srv.Close)

	items, err := NewEventRepository(supabase.NewClient(srv.URL, "k")).ListItems(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, []string{"0", fmt.Sprint(pageSize)}, offsets)
	assert.Len(t, items, 2)
}

func TestEventRepository_GetHistory_NoInventoryRow(t *testing.T) {
	fake := newFakePostgREST()
	repo := NewEventRepository(fake.serve(t))

	h, err := repo.GetHistory(context.Background(), "user-1", "salt")
	require.NoError(t, err)
	assert.Nil(t, h.Stock)
	assert.Empty(t, h.Acquisitions)
}

func TestEventRepository_ListItemsAndUsers(t *testing.T) {
	fake := newFakePostgREST()
	fake.tables[TableAcquisitions] = `[
		{"user_id":"u2","item_name":"Milk","category":""},
		{"user_id":"u1","item_name":"milk","category":"dairy"},
		{"user_id":"u1","item_name":"eggs","category":"dairy"}
	]`
	repo := NewEventRepository(fake.serve(t))

	items, err := repo.ListItems(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.ItemKey{
		{ItemName: "eggs", Category: "dairy"},
		{ItemName: "milk", Category: "dairy"},
	}, items)

	users, err := repo.ListUserIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, users)
}

func TestEventRepository_CountEvents(t *testing.T) {
	fake := newFakePostgREST()
	fake.counts[TableAcquisitions] = "4"
	fake.counts[TableDepletions] = "2"
	repo := NewEventRepository(fake.serve(t))

	counts, err := repo.CountEvents(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, counts.Acquisitions)
	assert.Equal(t, 2, counts.Depletions)
}

func TestEventRepository_LastAcquiredAt(t *testing.T) {
	fake := newFakePostgREST()
	fake.tables[TableAcquisitions] = `[
		{"item_name":"rice","occurred_at":"2026-03-11T09:00:00Z"},
		{"item_name":"rice","occurred_at":"2026-03-01T09:00:00Z"}
	]`
	repo := NewEventRepository(fake.serve(t))

	last, err := repo.LastAcquiredAt(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), last["rice"].UTC())
	assert.Equal(t, "occurred_at.desc,id.desc", fake.query(t, TableAcquisitions).Get("order"))
}

func TestPredictionRepository_GetNotFound(t *testing.T) {
	repo := NewPredictionRepository(newFakePostgREST().serve(t))

	_, err := repo.Get(context.Background(), "u1", "rice")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPredictionRepository_ListFilters(t *testing.T) {
	fake := newFakePostgREST()
	fake.tables[TablePredictions] = `[{"item_name":"rice","urgency":"urgent","confidence":"high","depletion_date":"2026-03-15","last_analyzed":"2026-03-10T08:00:00Z"}]`
	repo := NewPredictionRepository(fake.serve(t))

	urgent := models.UrgencyUrgent
	medium := models.ConfidenceMedium
	preds, err := repo.List(context.Background(), "u1", models.PredictionFilter{Urgency: &urgent, MinConfidence: &medium})
	require.NoError(t, err)

	require.Len(t, preds, 1)
	require.NotNil(t, preds[0].DepletionDate)
	assert.Equal(t, "2026-03-15", preds[0].DepletionDate.String())
	assert.Contains(t, fake.queries[TablePredictions], "urgency=eq.urgent")
	assert.Contains(t, fake.queries[TablePredictions], "confidence=in.")
}

func TestPredictionRepository_UpsertSetsID(t *testing.T) {
	repo := NewPredictionRepository(newFakePostgREST().serve(t))

	p := &models.Prediction{UserID: "u1", ItemName: "Rice", Confidence: models.ConfidenceLow, Urgency: models.UrgencyUrgent}
	require.NoError(t, repo.Upsert(context.Background(), p))
	assert.Equal(t, "pred-1", p.ID)
}

func TestInList(t *testing.T) {
	assert.Equal(t, `in.("a","b,c","d\"e")`, inList([]string{"a", "b,c", `d"e`}))
}
