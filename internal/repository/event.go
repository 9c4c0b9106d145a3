package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/JonnyWalker81/larder/backend/pkg/supabase"
)

// pageSize bounds each PostgREST request; larger results are paged
const pageSize = 1000

type eventRepository struct {
	client *supabase.Client
}

// NewEventRepository creates a new event repository backed by Supabase
func NewEventRepository(client *supabase.Client) EventRepository {
	return &eventRepository{client: client}
}

func (r *eventRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	type row struct {
		UserID string `json:"user_id"`
	}

	rows, err := queryAll[row](ctx, r.client, TableAcquisitions, url.Values{
		"select": {"user_id"},
		"order":  {"user_id.asc,id.asc"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	ids := make([]string, 0)
	for _, row := range rows {
		if row.UserID == "" || seen[row.UserID] {
			continue
		}
		seen[row.UserID] = true
		ids = append(ids, row.UserID)
	}

	return ids, nil
}

func (r *eventRepository) ListItems(ctx context.Context, userID string) ([]models.ItemKey, error) {
	rows, err := queryAll[models.ItemKey](ctx, r.client, TableAcquisitions, url.Values{
		"select":  {"item_name,category"},
		"user_id": {"eq." + userID},
		"order":   {"occurred_at.asc,id.asc"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	return DistinctItems(rows), nil
}

func (r *eventRepository) GetHistory(ctx context.Context, userID, itemName string) (*models.ItemHistory, error) {
	name := models.NormalizeItemName(itemName)
	filter := func(order string) url.Values {
		return url.Values{
			"user_id":   {"eq." + userID},
			"item_name": {itemNameFilter(name)},
			"order":     {order},
		}
	}

	acqs, err := queryAll[models.AcquisitionEvent](ctx, r.client, TableAcquisitions, filter("occurred_at.asc,id.asc"))
	if err != nil {
		return nil, fmt.Errorf("failed to get acquisitions: %w", err)
	}
	acqs = keepItem(acqs, name, func(e models.AcquisitionEvent) string { return e.ItemName })

	deps, err := queryAll[models.DepletionEvent](ctx, r.client, TableDepletions, filter("occurred_at.asc,id.asc"))
	if err != nil {
		return nil, fmt.Errorf("failed to get depletions: %w", err)
	}
	deps = keepItem(deps, name, func(e models.DepletionEvent) string { return e.ItemName })

	type stockRow struct {
		ItemName string `json:"item_name"`
		models.StockLevel
	}
	q := filter("id.asc")
	q.Set("select", "item_name,quantity,unit")
	rows, err := queryAll[stockRow](ctx, r.client, TableInventory, q)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	var stock []models.StockLevel
	for _, row := range keepItem(rows, name, func(s stockRow) string { return s.ItemName }) {
		stock = append(stock, row.StockLevel)
	}

	return BuildHistory(name, acqs, deps, stock), nil
}

// itemNameFilter matches name case-insensitively with any surrounding
// whitespace. LIKE metacharacters in name are escaped; rows that still match
// too broadly are dropped by keepItem.
func itemNameFilter(name string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(name)
	return "ilike.*" + escaped + "*"
}

func keepItem[T any](rows []T, name string, itemName func(T) string) []T {
	kept := rows[:0]
	for _, row := range rows {
		if models.NormalizeItemName(itemName(row)) == name {
			kept = append(kept, row)
		}
	}
	return kept
}

func (r *eventRepository) LastAcquiredAt(ctx context.Context, userID string) (map[string]time.Time, error) {
	type row struct {
		ItemName   string    `json:"item_name"`
		OccurredAt time.Time `json:"occurred_at"`
	}

	rows, err := queryAll[row](ctx, r.client, TableAcquisitions, url.Values{
		"select":  {"item_name,occurred_at"},
		"user_id": {"eq." + userID},
		"order":   {"occurred_at.desc,id.desc"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get last acquisitions: %w", err)
	}

	last := make(map[string]time.Time)
	for _, row := range rows {
		name := models.NormalizeItemName(row.ItemName)
		if _, ok := last[name]; !ok {
			last[name] = row.OccurredAt
		}
	}

	return last, nil
}

func (r *eventRepository) CountEvents(ctx context.Context, userID string) (models.EventCounts, error) {
	var counts models.EventCounts
	filter := url.Values{"user_id": {"eq." + userID}}

	n, err := r.client.Count(ctx, TableAcquisitions, filter)
	if err != nil {
		return counts, fmt.Errorf("failed to count acquisitions: %w", err)
	}
	counts.Acquisitions = n

	n, err = r.client.Count(ctx, TableDepletions, filter)
	if err != nil {
		return counts, fmt.Errorf("failed to count depletions: %w", err)
	}
	counts.Depletions = n

	return counts, nil
}

// queryAll pages through a PostgREST query until a short page comes back
func queryAll[T any](ctx context.Context, client *supabase.Client, table string, query url.Values) ([]T, error) {
	var all []T

	for offset := 0; ; offset += pageSize {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("limit", fmt.Sprint(pageSize))
		q.Set("offset", fmt.Sprint(offset))

		body, err := client.Query(ctx, table, q)
		if err != nil {
			return nil, err
		}

		var page []T
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", table, err)
		}

		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// DistinctItems collapses acquisition rows to one key per normalized name.
// Rows are expected oldest first so the latest non-empty category wins.
func DistinctItems(rows []models.ItemKey) []models.ItemKey {
	byName := make(map[string]string, len(rows))
	for _, row := range rows {
		name := models.NormalizeItemName(row.ItemName)
		if name == "" {
			continue
		}
		if _, ok := byName[name]; !ok || row.Category != "" {
			byName[name] = row.Category
		}
	}

	items := make([]models.ItemKey, 0, len(byName))
	for name, cat := range byName {
		items = append(items, models.ItemKey{ItemName: name, Category: cat})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ItemName < items[j].ItemName
	})

	return items
}

// BuildHistory assembles an ItemHistory. Multiple inventory rows for one
// item are summed; no rows means the stock is unknown.
func BuildHistory(name string, acqs []models.AcquisitionEvent, deps []models.DepletionEvent, stock []models.StockLevel) *models.ItemHistory {
	h := &models.ItemHistory{
		ItemName:     name,
		Acquisitions: acqs,
		Depletions:   deps,
	}

	for i := len(acqs) - 1; i >= 0; i-- {
		if acqs[i].Category != "" {
			h.Category = acqs[i].Category
			break
		}
	}

	if len(stock) > 0 {
		level := &models.StockLevel{}
		for _, s := range stock {
			level.Quantity += s.Quantity
			if level.Unit == "" {
				level.Unit = s.Unit
			}
		}
		h.Stock = level
	}

	return h
}
